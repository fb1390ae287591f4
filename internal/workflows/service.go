package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "dealflow-scans"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

func (s *Service) StartScan(ctx context.Context, input ScanInput) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(input.ScanID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, ScanWorkflow, input)
	return err
}

func (s *Service) CancelScan(ctx context.Context, scanID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(scanID), "")
}

func workflowID(scanID string) string {
	return fmt.Sprintf("scan:%s", scanID)
}
