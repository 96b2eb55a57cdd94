// Package httpapi sends consultation tasks to the backend service over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
)

const maxErrorBody = 512

type Client struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

var _ ports.Consultant = (*Client)(nil)

func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{url: strings.TrimSpace(url), httpClient: httpClient, now: time.Now}
}

type consultRequest struct {
	Task string `json:"task"`
}

type consultResponse struct {
	Status   string `json:"status"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Consult posts the task and waits for the answer. The deadline of ctx bounds
// the whole exchange.
func (c *Client) Consult(ctx context.Context, task string) (domain.ConsultResult, error) {
	if c.url == "" {
		return domain.ConsultResult{}, errors.New("consult url is not configured")
	}

	body, err := json.Marshal(consultRequest{Task: task})
	if err != nil {
		return domain.ConsultResult{}, fmt.Errorf("encode consult request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.ConsultResult{}, fmt.Errorf("build consult request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ConsultResult{}, fmt.Errorf("send consult request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.ConsultResult{}, fmt.Errorf("consult request failed: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded consultResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.ConsultResult{}, fmt.Errorf("decode consult response: %w", err)
	}
	if decoded.Error != "" {
		return domain.ConsultResult{}, fmt.Errorf("consult failed: %s", decoded.Error)
	}

	status := decoded.Status
	if status == "" {
		status = "completed"
	}

	return domain.ConsultResult{
		Task:        task,
		Status:      status,
		Response:    decoded.Response,
		CompletedAt: c.now(),
	}, nil
}
