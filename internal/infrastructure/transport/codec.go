package transport

import (
	"os/exec"

	"streamcast/internal/core/domain"
)

// CodecProfile is one entry in the ordered codec preference list.
type CodecProfile struct {
	Name       string
	VideoCodec string // encoder name
	VideoID    string // matroska codec id
	AudioID    string
	Container  string
	Ext        string
}

// codecPreferences is tried in order; the first supported profile
// wins. The mp4 fallback exists for hosts whose encoder build lacks
// libvpx, but this engine has no streamable mp4 muxer, so it only
// ever matches when a future muxer lands.
var codecPreferences = []CodecProfile{
	{Name: "vp9-opus", VideoCodec: "libvpx-vp9", VideoID: "V_VP9", AudioID: "A_PCM/INT/LIT", Container: "webm", Ext: "webm"},
	{Name: "vp8-opus", VideoCodec: "libvpx", VideoID: "V_VP8", AudioID: "A_PCM/INT/LIT", Container: "webm", Ext: "webm"},
	{Name: "h264-aac", VideoCodec: "libx264", VideoID: "V_MPEG4/ISO/AVC", AudioID: "A_AAC", Container: "mp4", Ext: "mp4"},
}

// NegotiateCodec walks the preference list and returns the first
// profile the probe accepts. It runs before any socket is opened so
// an unsupportable host fails fast.
func NegotiateCodec(supported func(CodecProfile) bool) (CodecProfile, error) {
	for _, p := range codecPreferences {
		if supported(p) {
			return p, nil
		}
	}
	return CodecProfile{}, domain.ErrCodecUnsupported
}

// defaultCodecProbe accepts webm profiles when the encoder binary is
// on PATH. mp4 profiles are rejected: there is no streamable mp4
// muxer here.
func defaultCodecProbe(encoderPath string) func(CodecProfile) bool {
	return func(p CodecProfile) bool {
		if p.Container != "webm" {
			return false
		}
		_, err := exec.LookPath(encoderPath)
		return err == nil
	}
}
