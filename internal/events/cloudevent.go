package events

import (
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
)

// TypePrefix prefixes the CloudEvents type of every lifecycle event.
const TypePrefix = "io.github.oshokin.wakealarm."

// ToCloudEvent wraps a lifecycle event into a CloudEvents envelope.
func ToCloudEvent(source string, event domain.Event) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetSource(source)
	ce.SetType(TypePrefix + string(event.Type))
	ce.SetSubject(event.AlarmID)
	ce.SetTime(event.OccurredAt)

	if err := ce.SetData(cloudevents.ApplicationJSON, event); err != nil {
		return ce, fmt.Errorf("encode event data: %w", err)
	}

	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("invalid cloud event: %w", err)
	}

	return ce, nil
}
