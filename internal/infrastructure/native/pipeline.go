package native

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

// PipelineConfig configures the single-process encode pipeline.
type PipelineConfig struct {
	EncoderPath  string
	Display      string
	FrameRate    int
	BitrateKbps  int
	KeyframeSecs int
	IngestBase   string
	StopGrace    time.Duration
}

// Pipeline runs one external encoder process for the whole broadcast.
// The process grabs the screen and audio devices itself, so the
// composed in-process stream is not consumed on this path.
type Pipeline struct {
	log *zap.SugaredLogger
	cfg PipelineConfig

	mu        sync.Mutex
	cmd       *exec.Cmd
	events    chan domain.Event
	closed    bool
	waitDone  chan struct{}
	bytesSent atomic.Uint64
}

func NewPipeline(log *zap.SugaredLogger, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		log:    log,
		cfg:    cfg,
		events: make(chan domain.Event, 16),
	}
}

func (p *Pipeline) Connect(ctx context.Context, session *domain.StreamSession, _ *domain.MediaStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return fmt.Errorf("pipeline already running")
	}

	var audio []AudioInput
	src := session.Source
	if src.MicDeviceID != "" {
		audio = append(audio, AudioInput{
			DeviceID: string(src.MicDeviceID),
			Gain:     domain.ClampGain(src.Mixer.MicGain),
		})
	}
	if src.SystemAudioID != "" {
		audio = append(audio, AudioInput{
			DeviceID: string(src.SystemAudioID),
			Gain:     domain.ClampGain(src.Mixer.SystemAudioGain),
		})
	}

	args := BuildEncodeArgs(EncodeConfig{
		Display:      p.cfg.Display,
		AudioInputs:  audio,
		FrameRate:    p.cfg.FrameRate,
		BitrateKbps:  p.cfg.BitrateKbps,
		KeyframeSecs: p.cfg.KeyframeSecs,
		IngestURL:    ingestURL(p.cfg.IngestBase, session.StreamKey),
	})

	cmd := exec.Command(p.cfg.EncoderPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProcessSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProcessSpawn, err)
	}

	p.cmd = cmd
	p.waitDone = make(chan struct{})
	p.log.Infow("encoder started", "pid", cmd.Process.Pid, "args", strings.Join(args, " "))

	go p.watchStderr(stderr)
	go p.wait()
	return nil
}

// watchStderr treats progress lines as liveness: the first one means
// media is flowing and the transport is ready.
func (p *Pipeline) watchStderr(r io.Reader) {
	ready := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), "frame=") {
			continue
		}
		if !ready {
			ready = true
			p.emit(domain.Event{Kind: domain.EventTransportReady, At: time.Now()})
		}
		if size, ok := parseProgressSize(line); ok {
			p.bytesSent.Store(size)
		}
	}
}

func (p *Pipeline) wait() {
	err := p.cmd.Wait()
	close(p.waitDone)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	p.log.Errorw("encoder exited unexpectedly", "error", err)
	p.emit(domain.Event{
		Kind: domain.EventEncoderCrash,
		Err:  fmt.Errorf("%w: %v", domain.ErrProcessCrash, err),
		At:   time.Now(),
	})
}

func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cmd := p.cmd
	waitDone := p.waitDone
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			cmd.Process.Kill()
		}
		select {
		case <-waitDone:
		case <-time.After(p.cfg.StopGrace):
			p.log.Warnw("encoder ignored SIGTERM, killing", "grace", p.cfg.StopGrace)
			cmd.Process.Kill()
			<-waitDone
		case <-ctx.Done():
			cmd.Process.Kill()
		}
	}
	close(p.events)
	return nil
}

func (p *Pipeline) Events() <-chan domain.Event {
	return p.events
}

func (p *Pipeline) Stats() domain.TransportStats {
	return domain.TransportStats{BytesSent: p.bytesSent.Load()}
}

// emit delivers an event without ever blocking under the mutex.
// Advisory events are dropped when the channel is full, fatal ones
// evict the oldest queued event until they fit.
func (p *Pipeline) emit(ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for {
		select {
		case p.events <- ev:
			return
		default:
		}
		if !ev.Fatal() {
			return
		}
		select {
		case <-p.events:
		default:
		}
	}
}

// parseProgressSize extracts the cumulative output size from an
// encoder progress line ("... size=    1024kB ...").
func parseProgressSize(line string) (uint64, bool) {
	idx := strings.Index(line, "size=")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len("size="):])
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r != '-' && (r < '0' || r > '9')
	})
	if end <= 0 {
		return 0, false
	}
	kb, err := strconv.ParseUint(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return kb * 1024, true
}

func ingestURL(base, streamKey string) string {
	if streamKey == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + streamKey
}
