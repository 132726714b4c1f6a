package domain

// AudioMixerConfig holds per-source gain levels for the audio mix.
// Gains are clamped to [0, 1.5] by the compositor.
type AudioMixerConfig struct {
	MicGain         float64
	SystemAudioGain float64
}

// DefaultMixerConfig returns unity gain for both sources.
func DefaultMixerConfig() AudioMixerConfig {
	return AudioMixerConfig{MicGain: 1.0, SystemAudioGain: 1.0}
}

const (
	MinGain = 0.0
	MaxGain = 1.5
)

// ClampGain bounds a gain value to the supported range.
func ClampGain(g float64) float64 {
	if g < MinGain {
		return MinGain
	}
	if g > MaxGain {
		return MaxGain
	}
	return g
}
