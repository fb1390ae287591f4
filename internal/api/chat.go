package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dealflowhq/dealflow/control-plane/internal/agents"
	"github.com/dealflowhq/dealflow/control-plane/internal/deals"
	"github.com/dealflowhq/dealflow/control-plane/internal/engine"
	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	System    string        `json:"system"`
	MaxTokens int           `json:"max_tokens"`
}

type chatContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Content []chatContentBlock `json:"content"`
	Model   string             `json:"model,omitempty"`
	Stage   string             `json:"stage,omitempty"`
}

// chat runs one conversational turn through the provider cascade. The caller
// always gets a well-formed response body; provider failures degrade inside
// the engine rather than surfacing as transport errors.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Failed to process request", http.StatusInternalServerError)
		return
	}

	history := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.ChatMaxTokens
	}

	answer := s.engine.Answer(r.Context(), engine.Request{
		TraceID:     uuid.NewString(),
		System:      req.System,
		History:     history,
		MaxTokens:   maxTokens,
		Temperature: 0.15,
	})

	text := answer.Text
	if agents.IsLandContext(req.System) {
		policy := deals.Policy{MinAcres: s.cfg.MinLandAcres, Mode: s.cfg.AcreageFilterMode}
		text = policy.FilterText(text)
	}

	writeJSONStatus(w, chatResponse{
		Content: []chatContentBlock{{Type: "text", Text: text}},
		Model:   answer.Model,
		Stage:   answer.Stage,
	}, http.StatusOK)
}
