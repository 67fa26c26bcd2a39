package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

// HeaderProvider injects per-request headers, typically the identity header.
type HeaderProvider func() map[string]string

// Identity returns a provider that sets X-User-Id on every request.
func Identity(userID string) HeaderProvider {
	return func() map[string]string {
		return map[string]string{"X-User-Id": userID}
	}
}

// Client is a JSON client for the game service. It satisfies the submission
// and fetch interfaces the reconciling mirror needs.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateProposal(ctx context.Context, req livedto.CreateProposalRequest) (string, error) {
	var resp livedto.CreateProposalResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/proposals", req, &resp, false); err != nil {
		return "", err
	}
	return resp.ProposalID, nil
}

func (c *Client) ListOpenProposals(ctx context.Context) ([]livedto.ProposalInfo, error) {
	var resp []livedto.ProposalInfo
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/proposals", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ResolveProposal(ctx context.Context, proposalID string) (string, error) {
	var resp livedto.ResolveProposalResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/proposals/"+proposalID+"/resolve", nil, &resp, false); err != nil {
		return "", err
	}
	return resp.GameID, nil
}

// Game fetches authoritative game state.
func (c *Client) Game(ctx context.Context, gameID string) (livedto.GameResponse, error) {
	var resp livedto.GameResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/games/"+gameID, nil, &resp, true); err != nil {
		return livedto.GameResponse{}, err
	}
	return resp, nil
}

// SubmitMove submits one move. Not retried here: the request id makes a
// retry safe server-side, but the reconciler decides when to resubmit.
func (c *Client) SubmitMove(ctx context.Context, gameID string, mv rules.Move, requestID string) (livedto.MoveResponse, error) {
	req := livedto.MoveRequest{From: mv.From, To: mv.To, Promotion: mv.Promotion, RequestID: requestID}
	var resp livedto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+gameID+"/move", req, &resp, false); err != nil {
		return livedto.MoveResponse{}, err
	}
	return resp, nil
}

func (c *Client) Resign(ctx context.Context, gameID string) (livedto.GameResponse, error) {
	var resp livedto.GameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+gameID+"/resign", nil, &resp, false); err != nil {
		return livedto.GameResponse{}, err
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = max(c.retryMax, 1)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := errorFromResponse(status, resp.Body())
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

// errorFromResponse reconstructs the server's typed failure so callers can
// branch on codes instead of status strings.
func errorFromResponse(status int, body []byte) error {
	var er livedto.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Code != "" {
		return &livedto.DomainError{Code: er.Code, Message: er.Message, Retryable: er.Retryable}
	}
	return fmt.Errorf("game api error: status=%d body=%s", status, truncate(string(body), 512))
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
