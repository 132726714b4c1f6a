package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"streamcast/pkg/validation"
)

type Config struct {
	Control struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"control"`

	Signaling struct {
		URL          string        `yaml:"url"`
		DialAttempts int           `yaml:"dial_attempts"`
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
	} `yaml:"signaling"`

	Relay struct {
		URL            string        `yaml:"url"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		ReadyTimeout   time.Duration `yaml:"ready_timeout"`
		RTMPURL        string        `yaml:"rtmp_url,omitempty"`
	} `yaml:"relay"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		ICETimeout time.Duration `yaml:"ice_timeout"`
	} `yaml:"webrtc"`

	Capture struct {
		MobileProfile     bool          `yaml:"mobile_profile"`
		DefaultResolution string        `yaml:"default_resolution"`
		DefaultFrameRate  int           `yaml:"default_frame_rate"`
		TrackStopTimeout  time.Duration `yaml:"track_stop_timeout"`
		DeviceCacheTTL    time.Duration `yaml:"device_cache_ttl"`
	} `yaml:"capture"`

	Native struct {
		EncoderPath  string        `yaml:"encoder_path"`
		IngestURL    string        `yaml:"ingest_url"`
		DisplayInput string        `yaml:"display_input,omitempty"`
		OutputWidth  int           `yaml:"output_width"`
		OutputHeight int           `yaml:"output_height"`
		FrameRate    int           `yaml:"frame_rate"`
		BitrateKbps  int           `yaml:"bitrate_kbps"`
		KeyframeSecs int           `yaml:"keyframe_secs"`
		StopGrace    time.Duration `yaml:"stop_grace"`
	} `yaml:"native"`

	Clips struct {
		Capacity  int    `yaml:"capacity"`
		OutputDir string `yaml:"output_dir"`
	} `yaml:"clips"`

	Recordings struct {
		Enabled   bool   `yaml:"enabled"`
		OutputDir string `yaml:"output_dir"`
	} `yaml:"recordings"`

	Viewers struct {
		// Forward-looking thresholds for mesh -> sfu -> hls escalation.
		// Only mesh and relay are constructible today.
		MeshMax int `yaml:"mesh_max"`
		SFUMax  int `yaml:"sfu_max"`
	} `yaml:"viewers"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		HealthInterval    time.Duration `yaml:"health_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		Enabled   bool   `yaml:"enabled"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Control.Address == "" {
		return fmt.Errorf("control.address must not be empty")
	}
	if c.Control.ReadTimeout <= 0 {
		return fmt.Errorf("control.read_timeout must be > 0")
	}
	if c.Control.WriteTimeout <= 0 {
		return fmt.Errorf("control.write_timeout must be > 0")
	}
	if c.Control.ShutdownTimeout <= 0 {
		return fmt.Errorf("control.shutdown_timeout must be > 0")
	}

	if c.Signaling.DialAttempts < 0 {
		return fmt.Errorf("signaling.dial_attempts must be >= 0")
	}
	if c.Signaling.PingInterval <= 0 {
		return fmt.Errorf("signaling.ping_interval must be > 0")
	}

	if c.Relay.ConnectTimeout <= 0 {
		return fmt.Errorf("relay.connect_timeout must be > 0")
	}
	if c.Relay.ReadyTimeout <= 0 {
		return fmt.Errorf("relay.ready_timeout must be > 0")
	}
	if c.Relay.RTMPURL != "" {
		if err := validation.ValidateRTMPURL(c.Relay.RTMPURL); err != nil {
			return fmt.Errorf("relay.rtmp_url: %w", err)
		}
	}

	if c.WebRTC.ICETimeout <= 0 {
		return fmt.Errorf("webrtc.ice_timeout must be > 0")
	}

	switch c.Capture.DefaultResolution {
	case "360p", "480p", "720p", "1080p":
	default:
		return fmt.Errorf("capture.default_resolution must be one of 360p/480p/720p/1080p")
	}
	if c.Capture.DefaultFrameRate <= 0 {
		return fmt.Errorf("capture.default_frame_rate must be > 0")
	}
	if c.Capture.TrackStopTimeout <= 0 {
		return fmt.Errorf("capture.track_stop_timeout must be > 0")
	}
	if c.Capture.DeviceCacheTTL <= 0 {
		return fmt.Errorf("capture.device_cache_ttl must be > 0")
	}

	if c.Native.EncoderPath == "" {
		return fmt.Errorf("native.encoder_path must not be empty")
	}
	if c.Native.IngestURL == "" {
		return fmt.Errorf("native.ingest_url must not be empty")
	}
	if c.Native.BitrateKbps <= 0 {
		return fmt.Errorf("native.bitrate_kbps must be > 0")
	}
	if c.Native.KeyframeSecs <= 0 {
		return fmt.Errorf("native.keyframe_secs must be > 0")
	}
	if c.Native.StopGrace <= 0 {
		return fmt.Errorf("native.stop_grace must be > 0")
	}

	if c.Clips.Capacity <= 0 {
		return fmt.Errorf("clips.capacity must be > 0")
	}

	if c.Viewers.MeshMax <= 0 {
		return fmt.Errorf("viewers.mesh_max must be > 0")
	}
	if c.Viewers.SFUMax < c.Viewers.MeshMax {
		return fmt.Errorf("viewers.sfu_max must be >= viewers.mesh_max")
	}

	if c.Monitoring.HealthInterval <= 0 {
		return fmt.Errorf("monitoring.health_interval must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Control.Address = "127.0.0.1:7880"
	cfg.Control.ReadTimeout = 30 * time.Second
	cfg.Control.WriteTimeout = 30 * time.Second
	cfg.Control.ShutdownTimeout = 15 * time.Second

	cfg.Signaling.URL = "ws://localhost:8081/ws"
	cfg.Signaling.DialAttempts = 3
	cfg.Signaling.PingInterval = 30 * time.Second
	cfg.Signaling.PongTimeout = 60 * time.Second

	cfg.Relay.URL = "ws://localhost:8082/ingest"
	cfg.Relay.ConnectTimeout = 10 * time.Second
	cfg.Relay.ReadyTimeout = 5 * time.Second

	cfg.WebRTC.ICETimeout = 15 * time.Second

	cfg.Capture.MobileProfile = false
	cfg.Capture.DefaultResolution = "720p"
	cfg.Capture.DefaultFrameRate = 30
	cfg.Capture.TrackStopTimeout = time.Second
	cfg.Capture.DeviceCacheTTL = 5 * time.Second

	cfg.Native.EncoderPath = "ffmpeg"
	cfg.Native.IngestURL = "rtmp://localhost:1935/live"
	cfg.Native.OutputWidth = 1920
	cfg.Native.OutputHeight = 1080
	cfg.Native.FrameRate = 30
	cfg.Native.BitrateKbps = 4500
	cfg.Native.KeyframeSecs = 2
	cfg.Native.StopGrace = 500 * time.Millisecond

	cfg.Clips.Capacity = 30
	cfg.Clips.OutputDir = "."

	cfg.Recordings.Enabled = false
	cfg.Recordings.OutputDir = "."

	cfg.Viewers.MeshMax = 5
	cfg.Viewers.SFUMax = 50

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.HealthInterval = 2 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.Enabled = false

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("STREAMCAST_CONTROL_ADDRESS"); addr != "" {
		c.Control.Address = addr
	}
	if url := os.Getenv("STREAMCAST_SIGNALING_URL"); url != "" {
		c.Signaling.URL = url
	}
	if url := os.Getenv("STREAMCAST_RELAY_URL"); url != "" {
		c.Relay.URL = url
	}
	if url := os.Getenv("STREAMCAST_RELAY_RTMP_URL"); url != "" {
		c.Relay.RTMPURL = url
	}
	if path := os.Getenv("STREAMCAST_ENCODER_PATH"); path != "" {
		c.Native.EncoderPath = path
	}
	if level := os.Getenv("STREAMCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("STREAMCAST_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
