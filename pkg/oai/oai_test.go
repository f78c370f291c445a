package oai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PathwiseAI/pathwise-engine/engine/orchestrate"
)

func fakeAPI(t *testing.T, chatReply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{0.1, 0.2, 0.3},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": chatReply}},
			},
		})
	})
	return httptest.NewServer(mux)
}

func testClient(srvURL, chatModel string) *Client {
	opts := DefaultOptions()
	opts.APIKey = "test"
	opts.BaseURL = srvURL
	if chatModel != "" {
		opts.ChatModel = chatModel
	}
	return New(opts)
}

func TestEmbedBatch(t *testing.T) {
	srv := fakeAPI(t, "")
	defer srv.Close()

	c := testClient(srv.URL, "")
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 3 {
		t.Errorf("vecs = %v", vecs)
	}
	if vecs[0][0] != 0.1 {
		t.Errorf("vec[0][0] = %v", vecs[0][0])
	}
}

func TestScoreParsesAndClamps(t *testing.T) {
	cases := []struct {
		reply string
		want  float64
		ok    bool
	}{
		{"0.85", 0.85, true},
		{" 0.5\n", 0.5, true},
		{"1.7", 1, true},
		{"-0.3", 0, true},
		{"very relevant", 0, false},
	}
	for _, tc := range cases {
		srv := fakeAPI(t, tc.reply)
		c := testClient(srv.URL, "")
		got, err := c.Score(context.Background(), "q", "passage")
		srv.Close()
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("reply %q: got %v, %v", tc.reply, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("reply %q: expected parse error", tc.reply)
		}
	}
}

func TestGenerateRendersEvidence(t *testing.T) {
	srv := fakeAPI(t, "Negotiate with data [1].")
	defer srv.Close()

	c := testClient(srv.URL, "")
	packet := orchestrate.EvidencePacket{Items: []orchestrate.EvidenceItem{
		{Index: 1, ChunkID: "c1", Text: "Use market data.", Filename: "salary.txt"},
	}}
	got, err := c.Generate(context.Background(), "how to negotiate?", packet)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Negotiate with data [1]." {
		t.Errorf("got %q", got)
	}
}

func TestGenerateEmptyPacket(t *testing.T) {
	var captured string
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		captured = req.Messages[len(req.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "I have no evidence for that."}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.Generate(context.Background(), "q", orchestrate.EvidencePacket{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(captured, "(no evidence retrieved)") {
		t.Errorf("prompt missing empty-context marker: %q", captured)
	}
}
