package compositor

import (
	"sync"

	"streamcast/internal/core/domain"
)

// gainControl shares mixer gains between the running mix goroutine
// and live adjustments, so a gain change never rebuilds the pipeline.
type gainControl struct {
	mu    sync.RWMutex
	mixer domain.AudioMixerConfig
}

func newGainControl(mixer domain.AudioMixerConfig) *gainControl {
	return &gainControl{mixer: mixer}
}

func (g *gainControl) get() domain.AudioMixerConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mixer
}

func (g *gainControl) set(mixer domain.AudioMixerConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mixer = mixer
}

// gainFor maps a source track label to its configured gain.
func gainFor(label string, mixer domain.AudioMixerConfig) float64 {
	switch label {
	case "systemAudio":
		return domain.ClampGain(mixer.SystemAudioGain)
	default:
		return domain.ClampGain(mixer.MicGain)
	}
}

// applyGain scales samples in place with clipping.
func applyGain(samples []int16, gain float64) {
	if gain == 1.0 {
		return
	}
	for i, s := range samples {
		samples[i] = clip16(float64(s) * gain)
	}
}

// mixInto adds src into dst sample-wise with clipping. Shorter blocks
// contribute silence for the missing tail.
func mixInto(dst, src []int16) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] = clip16(float64(dst[i]) + float64(src[i]))
	}
}

func clip16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// runAudioMix pumps the primary track into out, folding in the
// latest block from each secondary track. The primary paces the mix;
// secondaries that stall contribute silence rather than blocking.
func runAudioMix(out *derivedAudioTrack, primary domain.AudioTrack, secondaries []domain.AudioTrack, gains *gainControl) {
	defer out.finish()

	for {
		var frame domain.AudioFrame
		var ok bool
		select {
		case frame, ok = <-primary.Samples():
			if !ok {
				return
			}
		case <-out.stopReq:
			return
		}

		mixer := gains.get()
		mixed := make([]int16, len(frame.Samples))
		copy(mixed, frame.Samples)
		applyGain(mixed, gainFor(primary.Label(), mixer))

		for _, sec := range secondaries {
			select {
			case secFrame, secOK := <-sec.Samples():
				if !secOK {
					continue
				}
				block := make([]int16, len(secFrame.Samples))
				copy(block, secFrame.Samples)
				applyGain(block, gainFor(sec.Label(), mixer))
				mixInto(mixed, block)
			default:
			}
		}

		frame.Samples = mixed
		select {
		case out.samples <- frame:
		case <-out.stopReq:
			return
		}
	}
}
