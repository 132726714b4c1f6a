package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/utils"
	"streamcast/pkg/validation"
)

// SessionConfig carries the session-level timeouts and paths.
type SessionConfig struct {
	ClipDir          string
	TrackStopTimeout time.Duration
	ReadyTimeout     time.Duration

	// RelayRTMPURL, when set, points the relay host at an external
	// RTMP ingest instead of the relay's own viewer fan-out.
	RelayRTMPURL string

	// DefaultFrameRate is reported in health snapshots when the
	// capture source carries no explicit rate.
	DefaultFrameRate int
}

// sessionService drives the single broadcast session through
// idle -> preview -> connecting -> live. Every transport signal lands
// here as a normalized event; health samples never change state.
type sessionService struct {
	log        *zap.SugaredLogger
	cfg        SessionConfig
	acquirer   ports.CaptureAcquirer
	compositor ports.Compositor
	transports ports.TransportFactory
	monitor    ports.HealthMonitor
	repo       ports.SessionRepository
	clips      ports.ClipBuffer
	metrics    ports.MetricsSink

	mu         sync.Mutex
	session    *domain.StreamSession
	camera     *domain.MediaStream
	screen     *domain.MediaStream
	composed   *domain.MediaStream
	transport  ports.Transport
	readyTimer *time.Timer
	durStop    chan struct{}

	// reportedQuality is the last server-pushed quality; it overrides
	// the locally derived one until the next session starts.
	reportedQuality domain.StreamQuality
}

func NewSessionService(
	log *zap.SugaredLogger,
	cfg SessionConfig,
	acquirer ports.CaptureAcquirer,
	compositor ports.Compositor,
	transports ports.TransportFactory,
	monitor ports.HealthMonitor,
	repo ports.SessionRepository,
	clips ports.ClipBuffer,
	metrics ports.MetricsSink,
) ports.SessionService {
	return &sessionService{
		log:        log,
		cfg:        cfg,
		acquirer:   acquirer,
		compositor: compositor,
		transports: transports,
		monitor:    monitor,
		repo:       repo,
		clips:      clips,
		metrics:    metrics,
	}
}

func (s *sessionService) StartPreview(ctx context.Context, cfg domain.MediaSourceConfig) (*domain.StreamSession, error) {
	s.mu.Lock()
	if s.session != nil && s.session.State != domain.StateError {
		s.mu.Unlock()
		return nil, domain.ErrSessionActive
	}
	prev := s.session
	s.session = nil
	s.mu.Unlock()

	// a session left in the error state is replaced, not resumed
	if prev != nil {
		s.repo.Delete(ctx, prev.ID)
	}

	if err := validateSourceConfig(cfg); err != nil {
		return nil, err
	}
	if (cfg.Mixer == domain.AudioMixerConfig{}) {
		cfg.Mixer = domain.DefaultMixerConfig()
	}

	camera, screen, err := s.acquireSources(ctx, cfg)
	if err != nil {
		return nil, err
	}

	composed, err := s.compositor.Compose(ctx, camera, screen, cfg)
	if err != nil {
		s.stopStreams(ctx, camera, screen)
		return nil, err
	}
	s.watchSourceTracks(camera, screen)

	session := &domain.StreamSession{
		ID:     domain.SessionID(utils.GenerateID("sess")),
		State:  domain.StatePreview,
		Source: cfg,
	}

	s.mu.Lock()
	s.session = session
	s.camera = camera
	s.screen = screen
	s.composed = composed
	s.mu.Unlock()

	if err := s.repo.Save(ctx, session); err != nil {
		s.log.Warnw("session snapshot save failed", "session", session.ID, "error", err)
	}
	s.notifyState(domain.StatePreview)
	s.log.Infow("preview started", "session", session.ID,
		"camera", cfg.CameraDeviceID, "screen", cfg.ScreenShare, "resolution", cfg.Resolution)
	return s.snapshot(), nil
}

// acquireSources runs at most two acquisitions: one for the camera
// plus all audio devices, one video-only for the screen. A screen-only
// session gets its audio on the screen acquisition instead.
func (s *sessionService) acquireSources(ctx context.Context, cfg domain.MediaSourceConfig) (camera, screen *domain.MediaStream, err error) {
	camCfg := cfg
	camCfg.ScreenShare = false
	wantCamera := camCfg.CameraDeviceID != "" || camCfg.MicDeviceID != "" || camCfg.SystemAudioID != ""
	if wantCamera {
		camera, err = s.acquirer.Acquire(ctx, camCfg)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.ScreenShare {
		scrCfg := cfg
		scrCfg.CameraDeviceID = ""
		scrCfg.MicDeviceID = ""
		scrCfg.SystemAudioID = ""
		screen, err = s.acquirer.Acquire(ctx, scrCfg)
		if err != nil {
			s.stopStreams(ctx, camera, nil)
			return nil, nil, err
		}
	}
	return camera, screen, nil
}

func (s *sessionService) GoLive(ctx context.Context, mode domain.TransportMode, title, streamKey string) (*domain.StreamSession, error) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if s.session.State != domain.StatePreview {
		s.mu.Unlock()
		return nil, domain.ErrSessionActive
	}

	if title != "" {
		if err := validation.ValidateStreamTitle(title); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	// Native ingest and an external RTMP target behind the relay have
	// no server to mint a key for us. The relay's own fan-out does.
	keyless := mode == domain.TransportNative ||
		(mode == domain.TransportRelay && s.cfg.RelayRTMPURL != "")
	if streamKey == "" && keyless {
		s.mu.Unlock()
		return nil, domain.ErrCredentialRequired
	}
	if streamKey != "" {
		if err := validation.ValidateStreamKey(streamKey); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	transport, err := s.transports.New(mode)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.session.Transport = mode
	s.session.Title = title
	s.session.StreamKey = streamKey
	s.session.State = domain.StateConnecting
	s.session.LastError = ""
	s.reportedQuality = ""
	session := s.session
	composed := s.composed
	s.mu.Unlock()

	s.repo.Save(ctx, session)
	s.notifyState(domain.StateConnecting)

	if err := transport.Connect(ctx, session, composed); err != nil {
		// The transport was never attached, so fail() cannot reach it.
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		transport.Close(closeCtx)
		cancel()
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.transport = transport
	// some relays never acknowledge; after the grace period the
	// session is assumed live rather than stuck connecting
	s.readyTimer = time.AfterFunc(s.cfg.ReadyTimeout, func() {
		s.log.Infow("no ready signal within grace period, assuming live", "session", session.ID)
		s.markLive()
	})
	s.mu.Unlock()

	go s.eventLoop(transport)

	s.log.Infow("going live", "session", session.ID, "transport", mode, "title", title)
	return s.snapshot(), nil
}

func (s *sessionService) eventLoop(transport ports.Transport) {
	for ev := range transport.Events() {
		s.handleEvent(ev)
	}
}

func (s *sessionService) handleEvent(ev domain.Event) {
	switch ev.Kind {
	case domain.EventTransportReady:
		s.markLive()

	case domain.EventViewerCount:
		s.mu.Lock()
		var snap *domain.StreamSession
		if s.session != nil {
			s.session.ViewerCount = ev.Count
			c := *s.session
			snap = &c
		}
		s.mu.Unlock()
		if snap != nil {
			s.repo.Save(context.Background(), snap)
		}
		if s.metrics != nil {
			s.metrics.ViewerCount(ev.Count)
		}

	case domain.EventViewerJoined, domain.EventViewerLeft:
		s.log.Debugw("viewer membership changed", "kind", ev.Kind, "peer", ev.PeerID)

	case domain.EventQualityReport:
		s.mu.Lock()
		if s.session != nil {
			s.reportedQuality = ev.Quality
			s.session.Health.Quality = ev.Quality
		}
		s.mu.Unlock()

	case domain.EventStreamKey:
		s.mu.Lock()
		var snap *domain.StreamSession
		if s.session != nil {
			if s.session.StreamKey == "" {
				s.session.StreamKey = ev.StreamKey
			}
			c := *s.session
			snap = &c
		}
		s.mu.Unlock()
		if snap != nil {
			s.repo.Save(context.Background(), snap)
		}

	case domain.EventTransportError:
		if ev.PeerID != "" {
			// one viewer's connection failing never ends the session
			s.log.Warnw("peer transport error", "peer", ev.PeerID, "error", ev.Err)
			return
		}
		s.fail(ev.Err)

	case domain.EventTransportClosed:
		s.fail(ev.Err)

	case domain.EventEncoderCrash:
		if s.metrics != nil {
			s.metrics.EncoderCrashed()
		}
		s.fail(ev.Err)

	case domain.EventTrackEnded:
		s.fail(fmt.Errorf("capture track ended unexpectedly"))
	}
}

func (s *sessionService) markLive() {
	s.mu.Lock()
	if s.session == nil || s.session.State != domain.StateConnecting {
		s.mu.Unlock()
		return
	}
	s.session.State = domain.StateLive
	s.session.StartedAt = time.Now()
	session := s.session
	snap := *s.session
	transport := s.transport
	if s.readyTimer != nil {
		s.readyTimer.Stop()
		s.readyTimer = nil
	}
	s.durStop = make(chan struct{})
	durStop := s.durStop
	s.mu.Unlock()

	go s.trackDuration(session, durStop)
	if s.monitor != nil && transport != nil {
		s.monitor.Start(context.Background(), snap.ID, transport.Stats)
	}
	s.repo.Save(context.Background(), &snap)
	s.notifyState(domain.StateLive)
	s.log.Infow("session live", "session", snap.ID, "transport", snap.Transport)
}

// trackDuration advances the visible duration once a second and folds
// in the latest health sample.
func (s *sessionService) trackDuration(session *domain.StreamSession, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.session != session || session.State != domain.StateLive {
				s.mu.Unlock()
				return
			}
			session.Duration = time.Since(session.StartedAt)
			if s.monitor != nil {
				health := s.monitor.Latest()
				if s.reportedQuality != "" {
					// server verdicts outrank local derivation
					health.Quality = s.reportedQuality
				}
				if health.Quality == "" {
					health.Quality = domain.QualityGood
				}
				health.FrameRate = session.Source.FrameRate
				if health.FrameRate == 0 {
					health.FrameRate = s.cfg.DefaultFrameRate
				}
				if health.FrameRate == 0 {
					health.FrameRate = 30
				}
				session.Health = health
			}
			transport := s.transport
			s.mu.Unlock()
			if s.metrics != nil && transport != nil {
				s.metrics.BytesSent(transport.Stats().BytesSent)
			}
		case <-stop:
			return
		}
	}
}

func (s *sessionService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil
	}
	session := s.session
	res := s.takeResources()
	s.session = nil
	s.mu.Unlock()

	s.teardown(ctx, res)
	s.repo.Delete(ctx, session.ID)
	s.notifyState(domain.StateIdle)
	s.log.Infow("session stopped", "session", session.ID, "duration", session.Duration)
	return nil
}

// fail moves the session to the error state and releases every
// resource. The snapshot stays queryable until the next preview.
func (s *sessionService) fail(err error) {
	s.mu.Lock()
	if s.session == nil || s.session.State == domain.StateError {
		s.mu.Unlock()
		return
	}
	s.session.State = domain.StateError
	if err != nil {
		s.session.LastError = err.Error()
	}
	session := s.session
	res := s.takeResources()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.teardown(ctx, res)
	s.repo.Save(ctx, session)
	s.notifyState(domain.StateError)
	s.log.Errorw("session failed", "session", session.ID, "error", err)
}

// sessionResources is everything torn down when a session ends.
type sessionResources struct {
	transport  ports.Transport
	camera     *domain.MediaStream
	screen     *domain.MediaStream
	readyTimer *time.Timer
	durStop    chan struct{}
}

// takeResources detaches the live resources under the caller's lock.
func (s *sessionService) takeResources() sessionResources {
	res := sessionResources{
		transport:  s.transport,
		camera:     s.camera,
		screen:     s.screen,
		readyTimer: s.readyTimer,
		durStop:    s.durStop,
	}
	s.transport = nil
	s.camera = nil
	s.screen = nil
	s.composed = nil
	s.readyTimer = nil
	s.durStop = nil
	return res
}

// teardown order: timers stop first so nothing re-arms, then the
// transport flushes and closes its socket, then derived and source
// tracks come down each within the stop timeout.
func (s *sessionService) teardown(ctx context.Context, res sessionResources) {
	if res.readyTimer != nil {
		res.readyTimer.Stop()
	}
	if res.durStop != nil {
		close(res.durStop)
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if res.transport != nil {
		if err := res.transport.Close(ctx); err != nil {
			s.log.Warnw("transport close failed", "error", err)
		}
	}
	if err := s.compositor.Close(ctx); err != nil {
		s.log.Warnw("compositor close failed", "error", err)
	}
	s.stopStreams(ctx, res.camera, res.screen)
}

func (s *sessionService) stopStreams(ctx context.Context, streams ...*domain.MediaStream) {
	for _, stream := range streams {
		if stream == nil {
			continue
		}
		stopCtx, cancel := context.WithTimeout(ctx, s.cfg.TrackStopTimeout)
		if err := stream.StopAll(stopCtx); err != nil {
			s.log.Warnw("track stop failed", "error", err)
		}
		cancel()
	}
}

func (s *sessionService) Status(ctx context.Context) (*domain.StreamSession, error) {
	s.mu.Lock()
	if s.session != nil {
		if s.session.State == domain.StateLive {
			s.session.Duration = time.Since(s.session.StartedAt)
		}
		snap := *s.session
		s.mu.Unlock()
		return &snap, nil
	}
	s.mu.Unlock()

	// the in-memory session is gone after a restart; fall back to the
	// stored snapshot
	session, err := s.repo.GetCurrent(ctx)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) SaveClip(ctx context.Context) (string, error) {
	if s.clips == nil || s.clips.Len() == 0 {
		return "", fmt.Errorf("no recorded media to clip")
	}
	path, err := s.clips.Save(s.cfg.ClipDir)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.ClipSaved()
	}
	s.log.Infow("clip saved", "path", path)
	return path, nil
}

func (s *sessionService) SetMixerGains(ctx context.Context, mixer domain.AudioMixerConfig) error {
	if err := validation.ValidateGain(mixer.MicGain); err != nil {
		return err
	}
	if err := validation.ValidateGain(mixer.SystemAudioGain); err != nil {
		return err
	}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	s.session.Source.Mixer = mixer
	session := s.session
	s.mu.Unlock()

	if err := s.compositor.SetGains(mixer); err != nil {
		return err
	}
	s.repo.Save(ctx, session)
	return nil
}

// watchSourceTracks turns unsolicited track endings into events.
// Deliberate stops never fire these hooks.
func (s *sessionService) watchSourceTracks(streams ...*domain.MediaStream) {
	ended := func() {
		s.handleEvent(domain.Event{Kind: domain.EventTrackEnded, At: time.Now()})
	}
	for _, stream := range streams {
		if stream == nil {
			continue
		}
		if stream.Video != nil {
			stream.Video.OnEnded(ended)
		}
		for _, a := range stream.Audio {
			a.OnEnded(ended)
		}
	}
}

func (s *sessionService) snapshot() *domain.StreamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	snap := *s.session
	return &snap
}

func (s *sessionService) notifyState(state domain.SessionState) {
	if s.metrics != nil {
		s.metrics.SessionStateChanged(state)
	}
}

func validateSourceConfig(cfg domain.MediaSourceConfig) error {
	if cfg.FrameRate != 0 {
		if err := validation.ValidateFrameRate(cfg.FrameRate); err != nil {
			return err
		}
	}
	if cfg.BitrateKbps != 0 {
		if err := validation.ValidateBitrate(cfg.BitrateKbps); err != nil {
			return err
		}
	}
	if cfg.Resolution != "" {
		if err := validation.ValidateResolution(string(cfg.Resolution)); err != nil {
			return err
		}
	}
	return nil
}
