package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/classifier"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/repository"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/service"
)

type processAssetWorkflow struct {
	temporalClient client.Client
	worker         *Worker
}

// NewProcessAssetWorkflow creates a new ProcessAssetWorkflow dispatcher
func NewProcessAssetWorkflow(temporalClient client.Client, worker *Worker) *processAssetWorkflow {
	return &processAssetWorkflow{
		temporalClient: temporalClient,
		worker:         worker,
	}
}

func (p *processAssetWorkflow) Execute(ctx context.Context, param service.ProcessAssetWorkflowParam) error {
	workflowOptions := client.StartWorkflowOptions{
		ID:                    fmt.Sprintf("process-asset-%s", param.AssetUID.String()),
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	_, err := p.temporalClient.ExecuteWorkflow(ctx, workflowOptions, p.worker.ProcessAssetWorkflow, param)
	return err
}

// stageAttempts derives the attempt count for a failure record. A retryable
// failure only surfaces to the workflow once the stage's whole retry ceiling
// is spent; a non-retryable one surfaces on the first attempt.
func (w *Worker) stageAttempts(stage pipeline.Stage, stageErr error) int {
	var appErr *temporal.ApplicationError
	if !errors.As(stageErr, &appErr) || appErr.NonRetryable() {
		return 1
	}
	switch stage {
	case pipeline.StageGeneratePreviews:
		return w.pipeline.MaxTransientAttempts
	case pipeline.StageComputedMetadata, pipeline.StageAITag, pipeline.StageAIMetadata,
		pipeline.StageAIAutoApply, pipeline.StageAISuggest:
		return w.pipeline.GateMaxAttempts
	default:
		return RetryMaximumAttempts
	}
}

// ProcessAssetWorkflow orchestrates one processing attempt for a committed
// asset:
//
//  1. Claim the per-commit idempotency guard; a duplicate trigger no-ops.
//  2. Classify once; unsupported assets short-circuit straight to Finalizer.
//  3. Otherwise run the ordered chain: extract-metadata, generate-previews,
//     then the gated pixel-consuming stages (computed metadata and the AI
//     stages), then finalize and promote.
//
// A stage's terminal failure is recorded and the chain moves on: the
// Finalizer is unconditionally reachable, and no stage outcome ever touches
// the asset's visibility fields.
func (w *Worker) ProcessAssetWorkflow(ctx workflow.Context, param service.ProcessAssetWorkflowParam) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ProcessAssetWorkflow", "assetUID", param.AssetUID.String())

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: w.stageTimeout(),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalStandard,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	})

	var started bool
	err := workflow.ExecuteActivity(ctx, w.MarkProcessingStartedActivity,
		&MarkProcessingStartedActivityParam{AssetUID: param.AssetUID}).Get(ctx, &started)
	if err != nil {
		return err
	}
	if !started {
		logger.Info("Processing already started for this commit, no-op",
			"assetUID", param.AssetUID.String())
		return nil
	}

	completed := false

	// If the workflow is terminated or cancelled mid-chain, land the preview
	// state machine on a terminal status so the asset never advertises
	// in-flight work forever. Disconnected context so this runs on cancel.
	defer func() {
		if completed {
			return
		}
		cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
		cleanupCtx = workflow.WithActivityOptions(cleanupCtx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    RetryInitialInterval,
				BackoffCoefficient: RetryBackoffCoefficient,
				MaximumInterval:    RetryMaximumIntervalStandard,
				MaximumAttempts:    RetryMaximumAttempts,
			},
		})
		logger.Warn("Workflow did not complete, reconciling preview state",
			"assetUID", param.AssetUID.String())
		_ = workflow.ExecuteActivity(cleanupCtx, w.UpdateThumbnailStatusActivity,
			&UpdateThumbnailStatusActivityParam{
				AssetUID: param.AssetUID,
				From:     repository.ThumbnailStatusProcessing,
				To:       repository.ThumbnailStatusFailed,
				Reason:   repository.ReasonTimeout,
			}).Get(cleanupCtx, nil)
		_ = workflow.ExecuteActivity(cleanupCtx, w.RecordFailureActivity,
			&RecordFailureActivityParam{
				AssetUID: param.AssetUID,
				Stage:    string(pipeline.StageGeneratePreviews),
				Category: string(pipeline.FailureInternal),
				Message:  "asset processing was interrupted before completion",
			}).Get(cleanupCtx, nil)
	}()

	// recordStageFailure persists a stage's terminal failure and lets the
	// chain continue toward the Finalizer.
	recordStageFailure := func(stage pipeline.Stage, stageErr error) {
		category := failureCategoryOf(stageErr)
		message := stageErr.Error()
		if IsPreviewNotReady(stageErr) {
			category = pipeline.FailureTimeout
			message = fmt.Sprintf("gate retry budget exhausted waiting for previews: %v", stageErr)
		}
		logger.Error("Stage failed", "stage", string(stage), "category", string(category), "error", stageErr)
		if err := workflow.ExecuteActivity(ctx, w.RecordFailureActivity,
			&RecordFailureActivityParam{
				AssetUID: param.AssetUID,
				Stage:    string(stage),
				Category: string(category),
				Message:  message,
				Attempts: w.stageAttempts(stage, stageErr),
			}).Get(ctx, nil); err != nil {
			logger.Error("Failed to record stage failure", "stage", string(stage), "error", err)
		}
	}

	var category string
	err = workflow.ExecuteActivity(ctx, w.ClassifyAssetActivity,
		&ClassifyAssetActivityParam{AssetUID: param.AssetUID}).Get(ctx, &category)
	if err != nil {
		// classification could not even read the object; record and fall
		// through to the short-circuit path so the Finalizer still runs
		recordStageFailure(pipeline.StageClassify, err)
		category = string(classifier.CategoryUnsupported)
	}

	if classifier.Category(category) == classifier.CategoryUnsupported {
		if err := workflow.ExecuteActivity(ctx, w.ShortCircuitActivity,
			&ShortCircuitActivityParam{AssetUID: param.AssetUID}).Get(ctx, nil); err != nil {
			recordStageFailure(pipeline.StageClassify, err)
		}
		if err := workflow.ExecuteActivity(ctx, w.FinalizeAssetActivity,
			&FinalizeAssetActivityParam{AssetUID: param.AssetUID}).Get(ctx, nil); err != nil {
			recordStageFailure(pipeline.StageFinalize, err)
			return err
		}
		completed = true
		logger.Info("Short-circuited unsupported asset", "assetUID", param.AssetUID.String())
		return nil
	}

	if err := workflow.ExecuteActivity(ctx, w.ExtractMetadataActivity,
		&ExtractMetadataActivityParam{AssetUID: param.AssetUID}).Get(ctx, nil); err != nil {
		recordStageFailure(pipeline.StageExtractMetadata, err)
	}

	previewCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: w.previewTimeout(),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalLong,
			MaximumAttempts:    int32(w.pipeline.MaxTransientAttempts),
		},
	})
	if err := workflow.ExecuteActivity(previewCtx, w.GeneratePreviewsActivity,
		&GeneratePreviewsActivityParam{AssetUID: param.AssetUID, Category: category}).Get(previewCtx, nil); err != nil {
		recordStageFailure(pipeline.StageGeneratePreviews, err)
	}

	// Gated stages: fixed-interval retry-until-ready. Each checks the
	// preview signal at entry and reports not ready without side effects;
	// the policy below re-enqueues it until the signal flips or the gate's
	// own attempt ceiling expires.
	gatedCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: w.stageTimeout(),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    w.pipeline.GateRetryDelay,
			BackoffCoefficient: 1.0,
			MaximumInterval:    w.pipeline.GateRetryDelay,
			MaximumAttempts:    int32(w.pipeline.GateMaxAttempts),
		},
	})

	if err := workflow.ExecuteActivity(gatedCtx, w.PopulateComputedMetadataActivity,
		&PopulateComputedMetadataActivityParam{AssetUID: param.AssetUID}).Get(gatedCtx, nil); err != nil {
		recordStageFailure(pipeline.StageComputedMetadata, err)
	}

	aiStages := []struct {
		stage    pipeline.Stage
		activity any
	}{
		{pipeline.StageAITag, w.AITagActivity},
		{pipeline.StageAIMetadata, w.AIGenerateMetadataActivity},
		{pipeline.StageAIAutoApply, w.AIAutoApplyTagsActivity},
		{pipeline.StageAISuggest, w.AISuggestMetadataActivity},
	}
	for _, s := range aiStages {
		if err := workflow.ExecuteActivity(gatedCtx, s.activity,
			&AIActivityParam{AssetUID: param.AssetUID}).Get(gatedCtx, nil); err != nil {
			recordStageFailure(s.stage, err)
		}
	}

	if err := workflow.ExecuteActivity(ctx, w.FinalizeAssetActivity,
		&FinalizeAssetActivityParam{AssetUID: param.AssetUID}).Get(ctx, nil); err != nil {
		recordStageFailure(pipeline.StageFinalize, err)
		return err
	}

	if err := workflow.ExecuteActivity(ctx, w.PromoteAssetActivity,
		&PromoteAssetActivityParam{AssetUID: param.AssetUID}).Get(ctx, nil); err != nil {
		recordStageFailure(pipeline.StagePromote, err)
		return err
	}

	completed = true
	logger.Info("ProcessAssetWorkflow finished", "assetUID", param.AssetUID.String())
	return nil
}
