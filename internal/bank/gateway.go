package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrAuthorizationDeclined is returned when the bank answers the settlement
// call with a non-zero error code.
var ErrAuthorizationDeclined = errors.New("bank authorization declined")

// Gateway authorizes a deposit with the partner bank before any funds are
// credited. The call is synchronous; a transport failure and a declined
// authorization are both reported as errors.
type Gateway interface {
	Authorize(ctx context.Context) error
}

// HTTPGateway calls the bank settlement endpoint over HTTP. The endpoint
// responds with a JSON body carrying an error code, zero meaning approved.
type HTTPGateway struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPGateway builds a gateway client with the given request timeout.
func NewHTTPGateway(url string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type authorizeResponse struct {
	Error int `json:"error"`
}

// Authorize performs the settlement call. Exceeding the client timeout is
// indistinguishable from any other transport failure.
func (g *HTTPGateway) Authorize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return fmt.Errorf("build bank request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log("bank settlement call failed", err)
		return fmt.Errorf("call bank: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("bank returned status %d", resp.StatusCode)
		g.log("bank settlement call failed", err)
		return err
	}

	var parsed authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		g.log("bank settlement response unreadable", err)
		return fmt.Errorf("decode bank response: %w", err)
	}
	if parsed.Error != 0 {
		err := fmt.Errorf("%w: code %d", ErrAuthorizationDeclined, parsed.Error)
		g.log("bank declined settlement", err)
		return err
	}
	return nil
}

func (g *HTTPGateway) log(msg string, err error) {
	if g.logger != nil {
		g.logger.Error(msg, "url", g.url, "error", err)
	}
}

// StaticGateway approves every authorization. Useful for tests and local
// development without a bank endpoint.
type StaticGateway struct{}

// Authorize always approves.
func (StaticGateway) Authorize(context.Context) error { return nil }

// FailingGateway declines every authorization. Test double.
type FailingGateway struct {
	Err error
}

// Authorize always fails, with Err when set.
func (g FailingGateway) Authorize(context.Context) error {
	if g.Err != nil {
		return g.Err
	}
	return ErrAuthorizationDeclined
}
