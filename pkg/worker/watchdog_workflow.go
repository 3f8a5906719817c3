package worker

import (
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WatchdogWorkflowID is the fixed ID of the scheduled watchdog run; the
// scheduler dedupes on it so only one sweep is in flight.
const WatchdogWorkflowID = "asset-pipeline-watchdog"

// WatchdogWorkflow runs one reconciliation sweep. It is scheduled on a fixed
// interval by the worker process, independent of any asset's chain.
func (w *Worker) WatchdogWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: w.stageTimeout(),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalStandard,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	})

	var result SweepStuckAssetsActivityResult
	if err := workflow.ExecuteActivity(ctx, w.SweepStuckAssetsActivity).Get(ctx, &result); err != nil {
		logger.Error("Watchdog sweep failed", "error", err)
		return err
	}

	if result.Scanned > 0 {
		logger.Info("Watchdog sweep finished",
			"scanned", result.Scanned,
			"reconciled", result.Reconciled,
			"lostToRaces", result.LostToRaces)
	}
	return nil
}
