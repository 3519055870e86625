// Package client talks to the wordguess HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	handlers "github.com/CodeAndHammer/wordguess/internal/handlers"
	models "github.com/CodeAndHammer/wordguess/internal/models"
)

// APIError is a non-2xx response. Game is set for game_over responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Game       *models.Payload
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordguess api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) GameOver() bool { return e.Code == constants.ErrorCodeGameOver }

// Retryable reports whether the server asked the caller to try again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	baseURL    string
	ownerID    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, ownerID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		ownerID:    ownerID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Start(ctx context.Context, solverID, solverName string) (models.Payload, error) {
	var p models.Payload
	err := c.do(ctx, http.MethodPost, constants.RouteStart, handlers.StartRequest{SolverID: solverID, SolverName: solverName}, &p)
	return p, err
}

func (c *Client) Guess(ctx context.Context, token, guess string) (models.Payload, error) {
	var p models.Payload
	err := c.do(ctx, http.MethodPost, constants.RouteGuess, handlers.GuessRequest{GameToken: token, Guess: guess}, &p)
	return p, err
}

func (c *Client) Game(ctx context.Context, token string) (models.Payload, error) {
	var p models.Payload
	err := c.do(ctx, http.MethodGet, "/api/games/"+url.PathEscape(token), nil, &p)
	return p, err
}

func (c *Client) SolverStats(ctx context.Context, solverID string) (handlers.SolverStatsResponse, error) {
	var s handlers.SolverStatsResponse
	err := c.do(ctx, http.MethodGet, "/api/solvers/"+url.PathEscape(solverID), nil, &s)
	return s, err
}

func (c *Client) SolverGames(ctx context.Context, solverID string, page, perPage int) (handlers.SolverGamesResponse, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	path := "/api/solvers/" + url.PathEscape(solverID) + "/games"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var g handlers.SolverGamesResponse
	err := c.do(ctx, http.MethodGet, path, nil, &g)
	return g, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(constants.OwnerIDHeader, c.ownerID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e handlers.ErrorResponse
		if jerr := json.Unmarshal(data, &e); jerr != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
			e.Message = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Code: e.Error, Message: e.Message, Game: e.Game}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
