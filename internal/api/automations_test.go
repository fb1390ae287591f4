package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dealflowhq/dealflow/control-plane/internal/store"
)

func TestCreateAutomation_Defaults(t *testing.T) {
	server, mem, _ := newTestServer("unused", nil)

	recorder := doJSON(t, server.Router(), http.MethodPost, "/automations", automationUpsertRequest{
		Name:      "weekday vegas land",
		AgentType: "land_acquisition",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	record := decodeBody[automationRecord](t, recorder)
	require.Equal(t, []string{"mon", "tue", "wed", "thu", "fri"}, record.Days)
	require.Equal(t, "09:00", record.TimeOfDay)
	require.Equal(t, "UTC", record.Timezone)
	require.Equal(t, defaultMarket, record.Market)
	require.True(t, record.Enabled)
	require.NotEmpty(t, record.NextRunAt)

	persisted, err := mem.GetAutomation(t.Context(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	require.Equal(t, record.NextRunAt, persisted.NextRunAt)
}

func TestCreateAutomation_Validation(t *testing.T) {
	server, _, _ := newTestServer("unused", nil)
	router := server.Router()

	recorder := doJSON(t, router, http.MethodPost, "/automations", automationUpsertRequest{AgentType: "land_acquisition"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, router, http.MethodPost, "/automations", automationUpsertRequest{Name: "x", AgentType: "bad_agent"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody[map[string]string](t, recorder)
	require.Equal(t, "Unknown agent type", body["error"])

	recorder = doJSON(t, router, http.MethodPost, "/automations", automationUpsertRequest{
		Name:      "x",
		AgentType: "land_acquisition",
		TimeOfDay: "25:99",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUpdateAutomation(t *testing.T) {
	server, mem, _ := newTestServer("unused", nil)
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{
		ID:        "auto-1",
		Name:      "vegas land",
		AgentType: "land_acquisition",
		Market:    defaultMarket,
		Days:      []string{"mon"},
		TimeOfDay: "09:00",
		Timezone:  "UTC",
		Enabled:   true,
	}))

	disabled := false
	recorder := doJSON(t, server.Router(), http.MethodPut, "/automations/auto-1", automationUpsertRequest{
		Market:  "Henderson, NV",
		Enabled: &disabled,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	record := decodeBody[automationRecord](t, recorder)
	require.Equal(t, "Henderson, NV", record.Market)
	require.False(t, record.Enabled)
	require.Empty(t, record.NextRunAt, "disabling clears the schedule")
}

func TestUpdateAutomation_NotFound(t *testing.T) {
	server, _, _ := newTestServer("unused", nil)
	recorder := doJSON(t, server.Router(), http.MethodPut, "/automations/missing", automationUpsertRequest{Name: "x"})
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDeleteAutomation(t *testing.T) {
	server, mem, _ := newTestServer("unused", nil)
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{ID: "auto-1"}))

	recorder := doJSON(t, server.Router(), http.MethodDelete, "/automations/auto-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodDelete, "/automations/auto-1", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAutomationInboxReadFlow(t *testing.T) {
	server, mem, _ := newTestServer("unused", nil)
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{ID: "auto-1", Name: "vegas"}))
	require.NoError(t, mem.CreateAutomationInboxEntry(t.Context(), store.AutomationInboxEntry{
		ID: "e1", AutomationID: "auto-1", Status: "completed", DealCount: 2, Unread: true, StartedAt: "2026-08-30T09:00:00Z",
	}))

	recorder := doJSON(t, server.Router(), http.MethodGet, "/automations/auto-1/inbox", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	detail := decodeBody[automationDetailResponse](t, recorder)
	require.Len(t, detail.Inbox, 1)
	require.Equal(t, 1, detail.UnreadCount)
	require.Equal(t, "completed", detail.Automation.LastStatus)

	recorder = doJSON(t, server.Router(), http.MethodPost, "/automations/auto-1/inbox/e1/read", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodGet, "/automations/auto-1/inbox", nil)
	detail = decodeBody[automationDetailResponse](t, recorder)
	require.Equal(t, 0, detail.UnreadCount)
}

func TestRunAutomationNow_StartsWorkflow(t *testing.T) {
	wf := &fakeWorkflowService{}
	server, mem, _ := newTestServer("unused", wf)
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{
		ID:        "auto-1",
		AgentType: "land_acquisition",
		Market:    defaultMarket,
		Enabled:   true,
	}))

	recorder := doJSON(t, server.Router(), http.MethodPost, "/automations/auto-1/run", nil)
	require.Equal(t, http.StatusAccepted, recorder.Code)

	resp := decodeBody[automationQueueResponse](t, recorder)
	require.True(t, resp.Queued)
	require.NotEmpty(t, resp.ScanID)

	started := wf.startedInputs()
	require.Len(t, started, 1)
	require.Equal(t, "auto-1", started[0].AutomationID)
	require.Equal(t, "manual", started[0].Trigger)

	automation, err := mem.GetAutomation(t.Context(), "auto-1")
	require.NoError(t, err)
	require.True(t, automation.InProgress)
}

func TestRunAutomationNow_Conflicts(t *testing.T) {
	server, mem, _ := newTestServer("unused", &fakeWorkflowService{})
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{ID: "busy", Enabled: true, InProgress: true}))
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{ID: "off", Enabled: false}))

	recorder := doJSON(t, server.Router(), http.MethodPost, "/automations/busy/run", nil)
	require.Equal(t, http.StatusConflict, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodPost, "/automations/off/run", nil)
	require.Equal(t, http.StatusConflict, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodPost, "/automations/missing/run", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestProcessDueAutomations(t *testing.T) {
	wf := &fakeWorkflowService{}
	server, mem, _ := newTestServer("unused", wf)

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{
		ID: "due", AgentType: "land_acquisition", Market: defaultMarket, Enabled: true, NextRunAt: past,
	}))
	require.NoError(t, mem.CreateAutomation(t.Context(), store.Automation{
		ID: "later", AgentType: "land_acquisition", Market: defaultMarket, Enabled: true, NextRunAt: future,
	}))

	recorder := doJSON(t, server.Router(), http.MethodPost, "/automations/process-due", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	resp := decodeBody[automationProcessResponse](t, recorder)
	require.Equal(t, 1, resp.Queued)

	started := wf.startedInputs()
	require.Len(t, started, 1)
	require.Equal(t, "due", started[0].AutomationID)
	require.Equal(t, "schedule", started[0].Trigger)

	claimed, err := mem.GetAutomation(t.Context(), "due")
	require.NoError(t, err)
	require.True(t, claimed.InProgress)
}
