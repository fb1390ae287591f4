package workflows

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	tests "go.temporal.io/sdk/testsuite"
)

type ScanWorkflowTestSuite struct {
	suite.Suite
	testSuite *tests.WorkflowTestSuite
	env       *tests.TestWorkflowEnvironment
}

func (s *ScanWorkflowTestSuite) SetupTest() {
	s.testSuite = &tests.WorkflowTestSuite{}
	s.env = s.testSuite.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(ScanWorkflow)
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input RunScanInput) (RunScanOutput, error) {
		return RunScanOutput{}, nil
	}, activity.RegisterOptions{Name: "RunMarketScan"})
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input ScanFailureInput) error {
		return nil
	}, activity.RegisterOptions{Name: "HandleScanFailure"})
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input InboxInput) error {
		return nil
	}, activity.RegisterOptions{Name: "RecordScanInbox"})
}

func (s *ScanWorkflowTestSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func (s *ScanWorkflowTestSuite) TestScanWorkflow_Success() {
	scanID := "scan-1"

	s.env.OnActivity("RunMarketScan", mock.Anything, RunScanInput{
		ScanID:    scanID,
		AgentType: "land_acquisition",
		Market:    "Las Vegas, NV",
	}).Return(RunScanOutput{DealCount: 3, Model: "groq/llama-3.3-70b-versatile", Stage: "tool_loop"}, nil).Once()

	s.env.ExecuteWorkflow(ScanWorkflow, ScanInput{
		ScanID:    scanID,
		AgentType: "land_acquisition",
		Market:    "Las Vegas, NV",
	})
	s.True(s.env.IsWorkflowCompleted())

	var result ScanResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal("completed", result.Status)
	s.Equal(3, result.DealCount)
}

func (s *ScanWorkflowTestSuite) TestScanWorkflow_RecordsInboxForAutomation() {
	scanID := "scan-2"

	s.env.OnActivity("RunMarketScan", mock.Anything, mock.Anything).
		Return(RunScanOutput{DealCount: 2}, nil).Once()
	s.env.OnActivity("RecordScanInbox", mock.Anything, InboxInput{
		AutomationID: "auto-1",
		ScanID:       scanID,
		Status:       "completed",
		DealCount:    2,
		Trigger:      "schedule",
		StartedAt:    "2026-08-30T09:00:00Z",
	}).Return(nil).Once()

	s.env.ExecuteWorkflow(ScanWorkflow, ScanInput{
		ScanID:       scanID,
		AgentType:    "land_acquisition",
		Market:       "Las Vegas, NV",
		AutomationID: "auto-1",
		Trigger:      "schedule",
		StartedAt:    "2026-08-30T09:00:00Z",
	})
	s.True(s.env.IsWorkflowCompleted())

	var result ScanResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal("completed", result.Status)
}

func (s *ScanWorkflowTestSuite) TestScanWorkflow_ActivityFailure() {
	scanID := "scan-3"

	s.env.OnActivity("RunMarketScan", mock.Anything, mock.Anything).
		Return(RunScanOutput{}, context.DeadlineExceeded).Once()
	s.env.OnActivity("HandleScanFailure", mock.Anything, mock.MatchedBy(func(input ScanFailureInput) bool {
		return input.ScanID == scanID && strings.Contains(input.Error, "deadline")
	})).Return(nil).Once()

	s.env.ExecuteWorkflow(ScanWorkflow, ScanInput{
		ScanID:    scanID,
		AgentType: "fix_and_flip",
		Market:    "Las Vegas, NV",
	})
	s.True(s.env.IsWorkflowCompleted())

	var result ScanResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal("failed", result.Status)
}

func (s *ScanWorkflowTestSuite) TestScanWorkflow_FailureRecordsInbox() {
	scanID := "scan-4"

	s.env.OnActivity("RunMarketScan", mock.Anything, mock.Anything).
		Return(RunScanOutput{}, context.DeadlineExceeded).Once()
	s.env.OnActivity("HandleScanFailure", mock.Anything, mock.Anything).Return(nil).Once()
	s.env.OnActivity("RecordScanInbox", mock.Anything, mock.MatchedBy(func(input InboxInput) bool {
		return input.AutomationID == "auto-1" && input.Status == "failed" && input.Error != ""
	})).Return(nil).Once()

	s.env.ExecuteWorkflow(ScanWorkflow, ScanInput{
		ScanID:       scanID,
		AgentType:    "land_acquisition",
		Market:       "Las Vegas, NV",
		AutomationID: "auto-1",
	})
	s.True(s.env.IsWorkflowCompleted())
}

func TestScanWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(ScanWorkflowTestSuite))
}
