// Package render is the client for the external diffusion engine that
// actually produces images.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"prismfx/internal/config"
)

type Engine struct {
	baseURL string
	model   string
	width   int
	height  int
	client  *http.Client
}

func NewEngine(cfg config.RenderConfig) *Engine {
	return &Engine{
		baseURL: strings.TrimSuffix(cfg.EngineURL, "/"),
		model:   cfg.Model,
		width:   cfg.Width,
		height:  cfg.Height,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type generateResponse struct {
	Image  string `json:"image"` // base64
	Format string `json:"format"`
	Error  string `json:"error"`
}

// Result is one rendered image.
type Result struct {
	Data        []byte
	ContentType string
}

// Generate renders a single image for the prompt. The call blocks for the
// duration of the render; cancellation goes through ctx.
func (e *Engine) Generate(ctx context.Context, prompt string) (Result, error) {
	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: prompt,
		Width:  e.width,
		Height: e.height,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/images", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("engine status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != "" {
		return Result{}, fmt.Errorf("engine error: %s", decoded.Error)
	}
	if decoded.Image == "" {
		return Result{}, fmt.Errorf("engine returned no image")
	}

	data, err := base64.StdEncoding.DecodeString(decoded.Image)
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	contentType := "image/png"
	if decoded.Format != "" {
		contentType = "image/" + strings.TrimPrefix(decoded.Format, "image/")
	}

	return Result{Data: data, ContentType: contentType}, nil
}
