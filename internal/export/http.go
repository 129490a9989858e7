// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/notebook-index/internal/httputil"
	"github.com/pdiddy/notebook-index/pkg/types"
)

const defaultRenderTimeout = 30 * time.Second

// HTTPRenderer posts the hyperlinked form as JSON to a render service. The
// service answers 2xx with an optional JSON body {"location": "..."}; a 429
// or 503 is retried with backoff.
type HTTPRenderer struct {
	Client    *http.Client
	URL       string
	UserAgent string

	// Token, when set, is sent as a bearer token.
	Token string
}

// NewHTTPRenderer returns an HTTPRenderer for cfg.RenderURL.
func NewHTTPRenderer(cfg types.ExportConfig) *HTTPRenderer {
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &HTTPRenderer{
		Client:    &http.Client{Timeout: timeout},
		URL:       cfg.RenderURL,
		UserAgent: cfg.UserAgent,
	}
}

type renderResponse struct {
	Location string `json:"location"`
}

// Render sends doc to the render service.
func (h *HTTPRenderer) Render(ctx context.Context, doc types.RenderedDocument) (types.Artifact, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return types.Artifact{}, fmt.Errorf("marshaling document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		return types.Artifact{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, h.Client, req, 0)
	if err != nil {
		return types.Artifact{}, fmt.Errorf("render service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.Artifact{}, fmt.Errorf("render service returned HTTP %d", resp.StatusCode)
	}

	artifact := types.Artifact{Location: h.URL, Bytes: int64(len(payload))}
	if loc := resp.Header.Get("Location"); loc != "" {
		artifact.Location = loc
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Artifact{}, fmt.Errorf("reading render response: %w", err)
	}
	if len(bytes.TrimSpace(body)) > 0 {
		var rr renderResponse
		if err := json.Unmarshal(body, &rr); err != nil {
			return types.Artifact{}, fmt.Errorf("parsing render response: %w", err)
		}
		if rr.Location != "" {
			artifact.Location = rr.Location
		}
	}
	return artifact, nil
}
