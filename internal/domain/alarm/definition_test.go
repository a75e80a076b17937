package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefinition_ApplyDefaults(t *testing.T) {
	t.Parallel()

	def := &Definition{ID: "a1", Label: "  morning  "}
	def.ApplyDefaults()

	require.Equal(t, "morning", def.Label)
	require.Equal(t, SoundProfileDefault, def.SoundProfile)
	require.Equal(t, DefaultSnoozeDurationMinutes, def.SnoozeDurationMinutes)
	require.Equal(t, DefaultMaxRingDuration, def.MaxRingDuration)
}

func TestDefinition_Validate(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, time.March, 1, 6, 0, 0, 0, time.UTC)

	valid := func() *Definition {
		def := &Definition{ID: "a1", TriggerAt: now.Add(2 * time.Second)}
		def.ApplyDefaults()

		return def
	}

	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Definition) {}},
		{name: "missing id", mutate: func(d *Definition) { d.ID = " " }, wantErr: true},
		{name: "trigger now", mutate: func(d *Definition) { d.TriggerAt = now }, wantErr: true},
		{name: "trigger in past", mutate: func(d *Definition) { d.TriggerAt = now.Add(-time.Minute) }, wantErr: true},
		{name: "unknown profile", mutate: func(d *Definition) { d.SoundProfile = "jazz" }, wantErr: true},
		{name: "negative snooze", mutate: func(d *Definition) { d.SnoozeDurationMinutes = -1 }, wantErr: true},
		{name: "negative ring", mutate: func(d *Definition) { d.MaxRingDuration = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := valid()
			tt.mutate(def)

			err := def.Validate(now)
			if !tt.wantErr {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, ErrInvalidAlarmDefinition)
		})
	}

	var nilDef *Definition
	require.ErrorIs(t, nilDef.Validate(now), ErrInvalidAlarmDefinition)
}

func TestDefinition_SnoozeDuration(t *testing.T) {
	t.Parallel()

	def := &Definition{SnoozeDurationMinutes: 5}

	require.Equal(t, 5*time.Minute, def.SnoozeDuration(0))
	require.Equal(t, 9*time.Minute, def.SnoozeDuration(9))
}

func TestDefinition_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	def := &Definition{ID: "a1", Label: "one"}
	cloned := def.Clone()
	cloned.Label = "two"

	require.Equal(t, "one", def.Label)

	var nilDef *Definition
	require.Nil(t, nilDef.Clone())
}

func TestParseSoundProfile(t *testing.T) {
	t.Parallel()

	profile, err := ParseSoundProfile(" Alert ")
	require.NoError(t, err)
	require.Equal(t, SoundProfileAlert, profile)

	profile, err = ParseSoundProfile("")
	require.NoError(t, err)
	require.Equal(t, SoundProfileDefault, profile)

	_, err = ParseSoundProfile("opera")
	require.ErrorIs(t, err, ErrInvalidAlarmDefinition)
}
