package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesnalabs/mesna-bot/internal/session"
)

func geminiReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			}},
		},
	}
}

func TestGeminiChat_RoleMapping(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(geminiReply("Ji bilkul!"))
	}))
	defer server.Close()

	c := NewGeminiClient("test-key", "gemini-1.5-flash")
	c.SetTestTransport(server.URL)

	history := []session.Turn{
		{Role: session.RoleCustomer, Text: "salam"},
		{Role: session.RoleAssistant, Text: "wa alaikum"},
	}
	reply, err := c.Chat(context.Background(), "system text", history, "menu?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Ji bilkul!" {
		t.Errorf("unexpected reply %q", reply)
	}

	if len(gotReq.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(gotReq.Contents))
	}
	if gotReq.Contents[0].Role != "user" || gotReq.Contents[1].Role != "model" || gotReq.Contents[2].Role != "user" {
		t.Errorf("unexpected role mapping: %v %v %v", gotReq.Contents[0].Role, gotReq.Contents[1].Role, gotReq.Contents[2].Role)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "system text" {
		t.Error("expected system instruction to travel separately")
	}
}

func TestGeminiChat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "bad key"},
		})
	}))
	defer server.Close()

	c := NewGeminiClient("bad-key", "gemini-1.5-flash")
	c.SetTestTransport(server.URL)

	if _, err := c.Chat(context.Background(), "sys", nil, "hi"); err == nil {
		t.Fatal("expected error from API error payload")
	}
}

func TestAnalyzeMenuImage_StripsFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("expected one content with prompt + image parts, got %+v", req.Contents)
		} else if req.Contents[0].Parts[1].InlineData == nil {
			t.Error("expected inline image data")
		}
		json.NewEncoder(w).Encode(geminiReply("```json\n{\"Burgers\":[{\"item\":\"Zinger\",\"price\":\"450\"}]}\n```"))
	}))
	defer server.Close()

	imagePath := filepath.Join(t.TempDir(), "menu.jpg")
	if err := os.WriteFile(imagePath, []byte("fake-jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewGeminiClient("test-key", "gemini-1.5-flash")
	c.SetTestTransport(server.URL)

	m, err := c.AnalyzeMenuImage(context.Background(), imagePath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m["Burgers"]) != 1 || m["Burgers"][0].Name != "Zinger" {
		t.Errorf("unexpected menu: %+v", m)
	}
}

func TestAnalyzeMenuImage_MissingFile(t *testing.T) {
	c := NewGeminiClient("test-key", "gemini-1.5-flash")
	if _, err := c.AnalyzeMenuImage(context.Background(), filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Fatal("expected error for missing image")
	}
}
