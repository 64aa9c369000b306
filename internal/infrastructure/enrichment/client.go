// Package enrichment is the client for the remote summarize, translate and
// role-assignment services.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/infrastructure/resilience"
)

const (
	DefaultTimeout = 30 * time.Second
	tokenHeader    = "x-internal-token"
)

type Config struct {
	Token        string
	SummarizeURL string
	TranslateURL string
	AssignURL    string
	Timeout      time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.SummarizeURL = strings.TrimSpace(cfg.SummarizeURL)
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   executor,
	}
}

// Available reports whether the remote services are configured at all.
func (c *Client) Available() bool {
	return c.cfg.Token != "" && c.cfg.SummarizeURL != ""
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "summarize", c.cfg.SummarizeURL, map[string]any{"text": text}, &raw); err != nil {
		return "", err
	}
	summary, err := decodeSummary(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "enrichment summarize", err)
	}
	return summary, nil
}

func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	request := map[string]any{
		"text":            text,
		"target_language": targetLanguage,
	}
	var response struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := c.call(ctx, "translate", c.cfg.TranslateURL, request, &response); err != nil {
		return "", err
	}
	translated := strings.TrimSpace(response.TranslatedText)
	if translated == "" {
		return "", domain.WrapError(domain.ErrTemporary, "enrichment translate", errors.New("empty translated_text"))
	}
	return translated, nil
}

func (c *Client) AssignRoles(ctx context.Context, documentText string, tasks []domain.GeneratedTask) ([]domain.Role, error) {
	request := map[string]any{
		"document_text": documentText,
		"tasks":         tasks,
	}
	var raw json.RawMessage
	if err := c.call(ctx, "assign", c.cfg.AssignURL, request, &raw); err != nil {
		return nil, err
	}
	roles, err := decodeAssignments(raw, len(tasks))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "enrichment assign", err)
	}
	return roles, nil
}

func (c *Client) call(ctx context.Context, operation, url string, payload any, out any) error {
	if strings.TrimSpace(url) == "" {
		return domain.WrapError(domain.ErrTemporary, "enrichment "+operation, errors.New("endpoint not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, operation, url, payload, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "enrichment."+operation, call, classifyEnrichmentError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "enrichment "+operation, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, operation, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enrichment %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// decodeSummary accepts {"summary": "..."} or a bare JSON string.
func decodeSummary(raw json.RawMessage) (string, error) {
	var object struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &object); err == nil && strings.TrimSpace(object.Summary) != "" {
		return strings.TrimSpace(object.Summary), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}
	return "", errors.New("summary missing from response")
}

// decodeAssignments accepts a bare role array or {"assignments": [...]}.
// Missing positions and unknown roles become OTHER.
func decodeAssignments(raw json.RawMessage, taskCount int) ([]domain.Role, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var object struct {
			Assignments []string `json:"assignments"`
		}
		if err := json.Unmarshal(raw, &object); err != nil {
			return nil, fmt.Errorf("decode assignments: %w", err)
		}
		list = object.Assignments
	}
	if len(list) == 0 && taskCount > 0 {
		return nil, errors.New("empty assignment list")
	}

	roles := make([]domain.Role, taskCount)
	for i := range roles {
		roles[i] = domain.RoleOther
		if i >= len(list) {
			continue
		}
		if role, ok := domain.ParseRole(list[i]); ok && role.Assignable() {
			roles[i] = role
		}
	}
	return roles, nil
}
