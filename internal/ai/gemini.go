package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mesnalabs/mesna-bot/internal/menu"
	"github.com/mesnalabs/mesna-bot/internal/session"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Gemini generateContent API. History turns map to
// Gemini's user/model roles; the system instruction travels separately.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTestTransport points the client at a test server.
func (c *GeminiClient) SetTestTransport(baseURL string) {
	c.baseURL = baseURL
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends the history plus new message as a turn-based generateContent
// call and returns the model text.
func (c *GeminiClient) Chat(ctx context.Context, system string, history []session.Turn, message string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, t := range history {
		role := "user"
		if t.Role == session.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Text}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: message}}})

	reqBody := geminiRequest{
		Contents:          contents,
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
	}
	return c.generate(ctx, reqBody)
}

// AnalyzeMenuImage runs a vision extraction over a photographed menu and
// decodes the model's JSON into a menu model. Used by the menu sync tool.
func (c *GeminiClient) AnalyzeMenuImage(ctx context.Context, imagePath string) (menu.Menu, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read menu image: %w", err)
	}

	const visionPrompt = `Analyze this restaurant menu image and extract all food items, categories, and prices.
Return ONLY a clean JSON object in this format:
{
  "CategoryName": [
    { "item": "Food Name", "price": "Price" }
  ]
}`

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: visionPrompt},
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
	}

	raw, err := c.generate(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	// Models wrap JSON in markdown fences more often than not.
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.TrimSpace(raw)

	var m menu.Menu
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse menu extraction: %w", err)
	}
	return m, nil
}

func (c *GeminiClient) generate(ctx context.Context, reqBody geminiRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error %d: %s", apiResp.Error.Code, apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from provider")
	}
	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}
