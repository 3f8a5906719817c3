package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/redis/go-redis/v9"
)

// Config - Global variable to export
var Config AppConfig

// AppConfig defines the full application configuration, loaded once at
// process start and passed explicitly to the components that need it.
type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Temporal TemporalConfig `koanf:"temporal"`
	Cache    CacheConfig    `koanf:"cache"`
	Minio    MinioConfig    `koanf:"minio"`
	AI       AIConfig       `koanf:"ai"`
	Pipeline PipelineConfig `koanf:"pipeline"`
}

// ServerConfig defines process-level configurations
type ServerConfig struct {
	Debug bool `koanf:"debug"`
}

// DatabaseConfig related to database
type DatabaseConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	Version  uint   `koanf:"version"`
	TimeZone string `koanf:"timezone"`
	Pool     struct {
		IdleConnections int           `koanf:"idleconnections"`
		MaxConnections  int           `koanf:"maxconnections"`
		ConnLifeTime    time.Duration `koanf:"connlifetime"`
	}
}

// TemporalConfig related to the Temporal server
type TemporalConfig struct {
	HostPort  string `koanf:"hostport"`
	Namespace string `koanf:"namespace"`
}

// CacheConfig related to Redis
type CacheConfig struct {
	Redis struct {
		RedisOptions redis.Options `koanf:"redisoptions"`
	}
}

// MinioConfig related to the object storage backend
type MinioConfig struct {
	Host       string `koanf:"host"`
	Port       string `koanf:"port"`
	RootUser   string `koanf:"rootuser"`
	RootPwd    string `koanf:"rootpwd"`
	BucketName string `koanf:"bucketname"`
	Secure     bool   `koanf:"secure"`
}

// AIConfig defines the configuration for the AI-vision collaborator. An
// empty API key disables the AI stages entirely.
type AIConfig struct {
	Provider string `koanf:"provider"`
	APIKey   string `koanf:"apikey"`
	Model    string `koanf:"model"`
}

// Vector-source terminal policies for the preview stage.
const (
	VectorPolicyCompletedFlag = "completed-flag"
	VectorPolicySkipped       = "skipped"
)

// ThumbnailSize is one configured preview output size, identified by name.
type ThumbnailSize struct {
	Name   string `koanf:"name"`
	Width  int    `koanf:"width"`
	Height int    `koanf:"height"`
}

// PipelineConfig holds every threshold the processing stages consume. It is
// constructed once at startup and handed to the worker; stage logic never
// reads ambient globals.
type PipelineConfig struct {
	// StageTimeout bounds a single stage execution.
	StageTimeout time.Duration `koanf:"stagetimeout"`
	// WatchdogThreshold is the age after which an asset stuck in PROCESSING
	// is reconciled to FAILED. Must exceed twice StageTimeout, the preview
	// stage's budget.
	WatchdogThreshold time.Duration `koanf:"watchdogthreshold"`
	// WatchdogInterval is the sweep schedule of the watchdog workflow.
	WatchdogInterval time.Duration `koanf:"watchdoginterval"`
	// MaxPixelArea is the source pixel-area ceiling above which the preview
	// engine switches to degraded mode.
	MaxPixelArea int `koanf:"maxpixelarea"`
	// OversizedFactor multiplies MaxPixelArea into the hard-reject boundary:
	// sources past it are refused without decoding. Must leave room for
	// degraded mode, so it has to exceed 1.
	OversizedFactor int `koanf:"oversizedfactor"`
	// PreferredEncoding is the preview output format; FallbackEncoding is
	// used when no encoder for the preferred format is available.
	PreferredEncoding string `koanf:"preferredencoding"`
	FallbackEncoding  string `koanf:"fallbackencoding"`
	// MaxTransientAttempts bounds retries of transient failures inside the
	// preview engine.
	MaxTransientAttempts int `koanf:"maxtransientattempts"`
	// GateRetryDelay is the fixed re-enqueue delay of a gated stage that
	// finds the preview signal not ready yet.
	GateRetryDelay time.Duration `koanf:"gateretrydelay"`
	// GateMaxAttempts bounds a gated stage's own retry budget, separate from
	// the preview engine's.
	GateMaxAttempts int `koanf:"gatemaxattempts"`
	// AutoApplyConfidence is the minimum confidence for an AI tag to be
	// applied without review.
	AutoApplyConfidence float64 `koanf:"autoapplyconfidence"`
	// VectorPolicy selects the terminal state of vector sources:
	// VectorPolicyCompletedFlag (COMPLETED with a no-preview flag) or
	// VectorPolicySkipped.
	VectorPolicy string `koanf:"vectorpolicy"`
	// ThumbnailSizes are the configured output sizes, largest first.
	ThumbnailSizes []ThumbnailSize `koanf:"thumbnailsizes"`
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"pipeline.stagetimeout":         "5m",
		"pipeline.watchdogthreshold":    "15m",
		"pipeline.watchdoginterval":     "5m",
		"pipeline.maxpixelarea":         64_000_000,
		"pipeline.oversizedfactor":      8,
		"pipeline.preferredencoding":    "webp",
		"pipeline.fallbackencoding":     "jpeg",
		"pipeline.maxtransientattempts": 3,
		"pipeline.gateretrydelay":       "10s",
		"pipeline.gatemaxattempts":      120,
		"pipeline.autoapplyconfidence":  0.85,
		"pipeline.vectorpolicy":         "completed-flag",
	}, "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(file.Provider(filePath), parser); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return ValidatePipelineConfig(cfg.Pipeline)
}

// ValidatePipelineConfig enforces the threshold hierarchy that keeps the
// watchdog from racing live workers. The preview stage runs on twice the
// stage timeout, so the watchdog threshold must clear that budget too.
func ValidatePipelineConfig(cfg PipelineConfig) error {
	if cfg.WatchdogThreshold <= 2*cfg.StageTimeout {
		return fmt.Errorf("watchdog threshold (%v) must exceed twice the stage timeout (%v)", cfg.WatchdogThreshold, cfg.StageTimeout)
	}
	if len(cfg.ThumbnailSizes) == 0 {
		return fmt.Errorf("at least one thumbnail size must be configured")
	}
	if cfg.OversizedFactor <= 1 {
		return fmt.Errorf("oversized factor (%d) must exceed 1 to leave room for degraded mode", cfg.OversizedFactor)
	}
	if cfg.VectorPolicy != VectorPolicyCompletedFlag && cfg.VectorPolicy != VectorPolicySkipped {
		return fmt.Errorf("invalid vector policy: %q", cfg.VectorPolicy)
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	_ = fs.Parse(os.Args[1:])

	return *configPath
}
