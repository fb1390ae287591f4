package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{APIKey: "tvly-test"})
	if client.baseURL != "https://api.tavily.com" {
		t.Errorf("expected default baseURL, got %s", client.baseURL)
	}
	if client.maxResults != 6 {
		t.Errorf("expected default maxResults 6, got %d", client.maxResults)
	}
}

func TestClient_Search_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("expected path '/search', got %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if payload["search_depth"] != "advanced" {
			t.Errorf("expected search_depth advanced, got %v", payload["search_depth"])
		}
		if payload["max_results"] != float64(6) {
			t.Errorf("expected max_results 6, got %v", payload["max_results"])
		}
		if payload["include_answer"] != true {
			t.Errorf("expected include_answer true, got %v", payload["include_answer"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"two parcels found","results":[
			{"title":"5 acres in Ocala","url":"https://example.com/a","content":"vacant land"},
			{"title":"10 acres near Tampa","url":"https://example.com/b","content":"wooded lot"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "tvly-test", BaseURL: server.URL})
	result := client.Search(context.Background(), "land for sale florida")
	if result.Answer != "two parcels found" {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[1].URL != "https://example.com/b" {
		t.Errorf("unexpected second url: %s", result.Items[1].URL)
	}
}

func TestClient_Search_MissingKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when API key is missing")
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	result := client.Search(context.Background(), "anything")
	if !result.Empty() {
		t.Error("expected empty result without API key")
	}
}

func TestClient_Search_ServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "tvly-test", BaseURL: server.URL})
	result := client.Search(context.Background(), "anything")
	if !result.Empty() {
		t.Error("expected empty result on server failure")
	}
}

func TestResult_Text(t *testing.T) {
	result := Result{
		Answer: "summary",
		Items: []Item{
			{Title: "A", URL: "https://a", Content: "first"},
			{Title: "B", URL: "https://b", Content: "second"},
		},
	}
	want := "ANSWER: summary\n\n" +
		"TITLE: A\nURL: https://a\nSNIPPET: first" +
		"\n\n---\n\n" +
		"TITLE: B\nURL: https://b\nSNIPPET: second"
	if got := result.Text(); got != want {
		t.Errorf("unexpected rendering:\n%q\nwant:\n%q", got, want)
	}

	if (Result{}).Text() != "" {
		t.Error("empty result should render to empty string")
	}

	noAnswer := Result{Items: []Item{{Title: "A", URL: "https://a", Content: "x"}}}
	if got := noAnswer.Text(); got != "TITLE: A\nURL: https://a\nSNIPPET: x" {
		t.Errorf("unexpected rendering without answer: %q", got)
	}
}
