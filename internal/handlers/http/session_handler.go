package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/monitoring"
)

type SessionHandler struct {
	sessions  ports.SessionService
	devices   ports.DeviceCatalog
	capture   ports.CaptureAcquirer
	collector *monitoring.PrometheusCollector
}

func NewSessionHandler(
	sessions ports.SessionService,
	devices ports.DeviceCatalog,
	capture ports.CaptureAcquirer,
	collector *monitoring.PrometheusCollector,
) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		devices:   devices,
		capture:   capture,
		collector: collector,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/devices", h.ListDevices)
		api.GET("/devices/desktop-sources", h.ListDesktopSources)

		api.POST("/session/preview", h.StartPreview)
		api.POST("/session/start", h.GoLive)
		api.POST("/session/stop", h.Stop)
		api.GET("/session/status", h.Status)
		api.POST("/session/clip", h.SaveClip)
		api.POST("/session/mixer", h.SetMixerGains)
	}

	router.GET("/health", h.Healthz)
	if h.collector != nil {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

type deviceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsDefault bool   `json:"is_default"`
}

func toDeviceResponses(devs []domain.DeviceDescriptor) []deviceResponse {
	out := make([]deviceResponse, 0, len(devs))
	for _, d := range devs {
		out = append(out, deviceResponse{
			ID:        string(d.ID),
			Name:      d.Name,
			Type:      string(d.Type),
			IsDefault: d.IsDefault,
		})
	}
	return out
}

func (h *SessionHandler) ListDevices(c *gin.Context) {
	list := h.devices.GetDevices(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"microphones":          toDeviceResponses(list.Microphones),
		"system_audio":         toDeviceResponses(list.SystemAudio),
		"cameras":              toDeviceResponses(list.Cameras),
		"default_microphone":   string(list.DefaultMic),
		"default_system_audio": string(list.DefaultSystemAudio),
	})
}

// ListDesktopSources reports whether screen capture works on this host.
// The capture path grabs whole displays, so there is one source per
// primary display rather than per window.
func (h *SessionHandler) ListDesktopSources(c *gin.Context) {
	supported := h.capture.ScreenCaptureSupported()
	sources := []gin.H{}
	if supported {
		sources = append(sources, gin.H{"id": "screen:0", "name": "Entire Screen"})
	}
	c.JSON(http.StatusOK, gin.H{
		"supported": supported,
		"sources":   sources,
	})
}

type previewRequest struct {
	CameraDeviceID  string  `json:"camera_device_id"`
	MicDeviceID     string  `json:"mic_device_id"`
	SystemAudioID   string  `json:"system_audio_id"`
	ScreenShare     bool    `json:"screen_share"`
	Resolution      string  `json:"resolution"`
	FrameRate       int     `json:"frame_rate"`
	BitrateKbps     int     `json:"bitrate_kbps"`
	MobileProfile   bool    `json:"mobile_profile"`
	MicGain         float64 `json:"mic_gain"`
	SystemAudioGain float64 `json:"system_audio_gain"`
}

func (h *SessionHandler) StartPreview(c *gin.Context) {
	var req previewRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := domain.MediaSourceConfig{
		CameraDeviceID: domain.DeviceID(req.CameraDeviceID),
		MicDeviceID:    domain.DeviceID(req.MicDeviceID),
		SystemAudioID:  domain.DeviceID(req.SystemAudioID),
		ScreenShare:    req.ScreenShare,
		Resolution:     domain.ResolutionPreset(req.Resolution),
		FrameRate:      req.FrameRate,
		BitrateKbps:    req.BitrateKbps,
		MobileProfile:  req.MobileProfile,
	}
	if req.MicGain != 0 || req.SystemAudioGain != 0 {
		cfg.Mixer = domain.AudioMixerConfig{
			MicGain:         req.MicGain,
			SystemAudioGain: req.SystemAudioGain,
		}
	}

	session, err := h.sessions.StartPreview(c.Request.Context(), cfg)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": toSessionResponse(session)})
}

type goLiveRequest struct {
	Mode      string `json:"mode" binding:"required"`
	Title     string `json:"title"`
	StreamKey string `json:"stream_key"`
}

func (h *SessionHandler) GoLive(c *gin.Context) {
	var req goLiveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.GoLive(c.Request.Context(), domain.TransportMode(req.Mode), req.Title, req.StreamKey)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": toSessionResponse(session)})
}

func (h *SessionHandler) Stop(c *gin.Context) {
	if err := h.sessions.Stop(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": string(domain.StateIdle)})
}

func (h *SessionHandler) Status(c *gin.Context) {
	session, err := h.sessions.Status(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if h.collector != nil {
		h.collector.RecordHealth(session.Health)
	}
	c.JSON(http.StatusOK, gin.H{"session": toSessionResponse(session)})
}

func (h *SessionHandler) SaveClip(c *gin.Context) {
	path, err := h.sessions.SaveClip(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

type mixerRequest struct {
	MicGain         float64 `json:"mic_gain"`
	SystemAudioGain float64 `json:"system_audio_gain"`
}

func (h *SessionHandler) SetMixerGains(c *gin.Context) {
	var req mixerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mixer := domain.AudioMixerConfig{
		MicGain:         req.MicGain,
		SystemAudioGain: req.SystemAudioGain,
	}
	if err := h.sessions.SetMixerGains(c.Request.Context(), mixer); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mixer": mixer})
}

func (h *SessionHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type healthResponse struct {
	BitrateKbps int     `json:"bitrate_kbps"`
	FrameRate   int     `json:"frame_rate"`
	Quality     string  `json:"quality"`
	PacketLoss  float64 `json:"packet_loss"`
	LatencyMs   int64   `json:"latency_ms"`
}

type sessionResponse struct {
	ID          string         `json:"id"`
	State       string         `json:"state"`
	Transport   string         `json:"transport,omitempty"`
	Title       string         `json:"title,omitempty"`
	ViewerCount int            `json:"viewer_count"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	DurationSec float64        `json:"duration_sec"`
	Health      healthResponse `json:"health"`
	LastError   string         `json:"last_error,omitempty"`
}

func toSessionResponse(s *domain.StreamSession) sessionResponse {
	resp := sessionResponse{
		ID:          string(s.ID),
		State:       string(s.State),
		Transport:   string(s.Transport),
		Title:       s.Title,
		ViewerCount: s.ViewerCount,
		DurationSec: s.Duration.Seconds(),
		Health: healthResponse{
			BitrateKbps: s.Health.BitrateKbps,
			FrameRate:   s.Health.FrameRate,
			Quality:     string(s.Health.Quality),
			PacketLoss:  s.Health.PacketLoss,
			LatencyMs:   s.Health.Latency.Milliseconds(),
		},
		LastError: s.LastError,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		resp.StartedAt = &t
	}
	return resp
}
