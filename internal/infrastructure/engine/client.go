package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/accord-app/accord/internal/domain/dispute"
	"github.com/accord-app/accord/internal/domain/engine"
)

// Client is the HTTP adapter for the external reasoning engine. An empty
// base URL leaves the engine unavailable; the orchestrator short-circuits
// to an error verdict in that case.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "engine").Logger(),
	}
}

func (c *Client) Available() bool {
	return c.baseURL != ""
}

func (c *Client) Phase1(ctx context.Context, data engine.CaseData, opts engine.Options) (*engine.Phase1Result, error) {
	var out engine.Phase1Result
	if err := c.post(ctx, "/v1/phase1", map[string]any{"case": data, "options": opts}, &out); err != nil {
		return nil, err
	}
	if len(out.Resolutions) == 0 {
		return nil, fmt.Errorf("engine returned no resolutions")
	}
	return &out, nil
}

func (c *Client) Phase2(ctx context.Context, phase1 *engine.Phase1Result, opts engine.Options) (*engine.Phase2Result, error) {
	var out engine.Phase2Result
	if err := c.post(ctx, "/v1/phase2", map[string]any{"phase1": phase1, "options": opts}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) HybridResolution(ctx context.Context, data engine.CaseData, analysis string, pickA, pickB dispute.Resolution, contextText string) (*engine.HybridResult, error) {
	var out engine.HybridResult
	err := c.post(ctx, "/v1/hybrid", map[string]any{
		"case":     data,
		"analysis": analysis,
		"pickA":    pickA,
		"pickB":    pickB,
		"context":  contextText,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExtractInsights(ctx context.Context, data engine.CaseData, caseID string) {
	if err := c.post(ctx, "/v1/insights", map[string]any{"case": data, "caseId": caseID}, nil); err != nil {
		c.logger.Warn().Err(err).Str("case_id", caseID).Msg("insight extraction failed")
	}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	if !c.Available() {
		return fmt.Errorf("engine is not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal engine request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}
