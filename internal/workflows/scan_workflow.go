package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

type ScanInput struct {
	ScanID       string
	AgentType    string
	Market       string
	AutomationID string
	Trigger      string
	StartedAt    string
}

type ScanResult struct {
	Status    string
	DealCount int
}

// ScanWorkflow drives one market scan: run the scan activity, then record
// the outcome in the owning automation's inbox when there is one. Activities
// are not retried; a scan that fails is surfaced as failed rather than
// re-run against rate-limited providers.
func ScanWorkflow(ctx workflow.Context, input ScanInput) (ScanResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	scanOut := RunScanOutput{}
	err := workflow.ExecuteActivity(ctx, "RunMarketScan", RunScanInput{
		ScanID:    input.ScanID,
		AgentType: input.AgentType,
		Market:    input.Market,
	}).Get(ctx, &scanOut)
	if err != nil {
		logger.Error("market scan activity failed", "error", err)
		failureInput := ScanFailureInput{
			ScanID: input.ScanID,
			Error:  err.Error(),
		}
		if failErr := workflow.ExecuteActivity(ctx, "HandleScanFailure", failureInput).Get(ctx, nil); failErr != nil {
			logger.Error("failed to persist scan failure", "error", failErr)
		}
		if input.AutomationID != "" {
			inbox := InboxInput{
				AutomationID: input.AutomationID,
				ScanID:       input.ScanID,
				Status:       "failed",
				Error:        err.Error(),
				Trigger:      input.Trigger,
				StartedAt:    input.StartedAt,
			}
			if inboxErr := workflow.ExecuteActivity(ctx, "RecordScanInbox", inbox).Get(ctx, nil); inboxErr != nil {
				logger.Error("failed to record inbox entry", "error", inboxErr)
			}
		}
		return ScanResult{Status: "failed"}, nil
	}

	if input.AutomationID != "" {
		inbox := InboxInput{
			AutomationID: input.AutomationID,
			ScanID:       input.ScanID,
			Status:       "completed",
			DealCount:    int64(scanOut.DealCount),
			Trigger:      input.Trigger,
			StartedAt:    input.StartedAt,
		}
		if err := workflow.ExecuteActivity(ctx, "RecordScanInbox", inbox).Get(ctx, nil); err != nil {
			logger.Error("failed to record inbox entry", "error", err)
		}
	}

	return ScanResult{Status: "completed", DealCount: scanOut.DealCount}, nil
}
