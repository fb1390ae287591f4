package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dealflowhq/dealflow/control-plane/internal/config"
	"github.com/dealflowhq/dealflow/control-plane/internal/engine"
	"github.com/dealflowhq/dealflow/control-plane/internal/events"
	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
	"github.com/dealflowhq/dealflow/control-plane/internal/store/memory"
	"github.com/dealflowhq/dealflow/control-plane/internal/workflows"
)

type stubRich struct {
	text string
	err  error
}

func (s stubRich) Model() string { return "claude-sonnet-4-6" }

func (s stubRich) Generate(ctx context.Context, system string, messages []llm.Message, maxTokens int) (string, error) {
	return s.text, s.err
}

type fakeWorkflowService struct {
	mu        sync.Mutex
	started   []workflows.ScanInput
	cancelled []string
	err       error
}

func (f *fakeWorkflowService) StartScan(ctx context.Context, input workflows.ScanInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, input)
	return nil
}

func (f *fakeWorkflowService) CancelScan(ctx context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, scanID)
	return f.err
}

func (f *fakeWorkflowService) startedInputs() []workflows.ScanInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workflows.ScanInput(nil), f.started...)
}

func testConfig() config.Config {
	return config.Config{
		GroqAPIKey:        "gsk-test",
		ChatMaxTokens:     2000,
		ScanMaxTokens:     3000,
		MinLandAcres:      2.0,
		AcreageFilterMode: "annotate",
	}
}

func newTestServer(richText string, wf WorkflowService) (*Server, *memory.MemoryStore, *events.Broker) {
	mem := memory.New()
	broker := events.NewBroker()
	eng := &engine.Engine{Rich: stubRich{text: richText}}
	return NewServer(mem, broker, wf, eng, testConfig()), mem, broker
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&value))
	return value
}
