package worker

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/objectstorage"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/preview"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
)

// TaskQueue is the Temporal task queue name for all workflows and activities.
const TaskQueue = "asset-pipeline"

// ActivityTimeoutStandard is the fallback timeout for normal activities when
// no stage timeout is configured. ActivityTimeoutLong is the fallback for the
// decode/resample/upload heavy preview stage.
// Too short = premature failures. Too long = blocked worker slots.
const (
	ActivityTimeoutStandard = 5 * time.Minute  // DB, MinIO, AI calls
	ActivityTimeoutLong     = 10 * time.Minute // Preview generation
)

// previewTimeoutFactor scales the stage timeout into the preview stage's
// budget. The watchdog threshold must stay above the scaled value.
const previewTimeoutFactor = 2

// RetryInitialInterval, RetryBackoffCoefficient, RetryMaximumInterval*, and RetryMaximumAttempts control retry behavior.
// Prevents retry storms under high concurrency.
const (
	RetryInitialInterval         = 1 * time.Second   // Prevents retry storms
	RetryBackoffCoefficient      = 2.0               // Exponential: 1s→2s→4s
	RetryMaximumIntervalStandard = 30 * time.Second  // Transient failures
	RetryMaximumIntervalLong     = 100 * time.Second // Service recovery
	RetryMaximumAttempts         = 3                 // 3 attempts = ~7s max
)

// Config defines the configuration for the worker
type Config struct {
	Repository    repository.Repository
	ObjectStorage objectstorage.ObjectStorageI
	AIClient      ai.Client
	RedisClient   *redis.Client
	Pipeline      config.PipelineConfig
}

// Worker implements the Temporal worker with all workflows and activities
type Worker struct {
	repository    repository.Repository
	objectStorage objectstorage.ObjectStorageI
	aiClient      ai.Client
	redisClient   *redis.Client
	engine        *preview.Engine
	pipeline      config.PipelineConfig
	log           *zap.Logger
}

// stageTimeout is the per-activity deadline, taken from the pipeline
// configuration so the watchdog hierarchy check binds the timeouts actually
// in force.
func (w *Worker) stageTimeout() time.Duration {
	if w.pipeline.StageTimeout > 0 {
		return w.pipeline.StageTimeout
	}
	return ActivityTimeoutStandard
}

// previewTimeout is the preview stage's deadline, scaled up from the stage
// timeout for decode/resample/upload heavy sources.
func (w *Worker) previewTimeout() time.Duration {
	if w.pipeline.StageTimeout > 0 {
		return previewTimeoutFactor * w.pipeline.StageTimeout
	}
	return ActivityTimeoutLong
}

// New creates a new worker instance
func New(cfg Config, log *zap.Logger) (*Worker, error) {
	w := &Worker{
		repository:    cfg.Repository,
		objectStorage: cfg.ObjectStorage,
		aiClient:      cfg.AIClient,
		redisClient:   cfg.RedisClient,
		engine:        preview.NewEngine(cfg.Pipeline),
		pipeline:      cfg.Pipeline,
		log:           log,
	}
	return w, nil
}
