package alarm

import "time"

// LayerName identifies one independent playback path.
type LayerName string

const (
	// LayerPrimary plays the preferred sound asset immediately.
	LayerPrimary LayerName = "primary"
	// LayerBackup replays the asset after a stagger to absorb primary failures.
	LayerBackup LayerName = "backup"
	// LayerFallback plays the host default alert tone and never depends on bundled assets.
	LayerFallback LayerName = "fallback"
)

// LayerNames lists the layers in their deterministic start order.
//
//nolint:gochecknoglobals // Immutable ordering shared by the orchestrator and sessions.
var LayerNames = []LayerName{LayerPrimary, LayerBackup, LayerFallback}

// SourceKind tells the host where a layer's sound comes from.
type SourceKind string

const (
	// SourceAsset is a sound shipped with the application.
	SourceAsset SourceKind = "asset"
	// SourceSystemTone is the host's own default alert tone.
	SourceSystemTone SourceKind = "system"
)

// Source references the sound a layer plays.
type Source struct {
	// Kind is the origin of the sound.
	Kind SourceKind
	// Profile is the sound profile for asset sources.
	Profile SoundProfile
}

// Layer is a static playback descriptor, recomputed per session.
type Layer struct {
	// Name identifies the layer.
	Name LayerName
	// ActivationDelay staggers the start relative to the session start.
	ActivationDelay time.Duration
	// Source is the sound to loop.
	Source Source
}

// PlanLayers builds the layer chain for a profile using the configured staggers.
func PlanLayers(profile SoundProfile, backupDelay, fallbackDelay time.Duration) []Layer {
	asset := Source{Kind: SourceAsset, Profile: profile}

	return []Layer{
		{Name: LayerPrimary, Source: asset},
		{Name: LayerBackup, ActivationDelay: backupDelay, Source: asset},
		{Name: LayerFallback, ActivationDelay: fallbackDelay, Source: Source{Kind: SourceSystemTone}},
	}
}
