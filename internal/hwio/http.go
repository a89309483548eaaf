package hwio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dokzlo13/dimmerd/internal/devices"
)

// HTTPPort talks to a hardware sidecar process over a small JSON API:
//
//	GET  {endpoint}/quantities/{quantity}  -> {"value": 1.0}
//	PUT  {endpoint}/quantities/{quantity}  <- {"value": 1.0}
//	GET  {endpoint}/devices                -> [{"manufacturer": "...", "model": "..."}]
//
// The sidecar answers 404 for quantities it has no reading for.
type HTTPPort struct {
	endpoint   string
	httpClient *http.Client
}

type quantityValue struct {
	Value float64 `json:"value"`
}

// NewHTTPPort creates a client for the sidecar at endpoint.
func NewHTTPPort(endpoint string, timeout time.Duration) *HTTPPort {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPPort{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get reads the native value of q.
func (p *HTTPPort) Get(ctx context.Context, q Quantity) (float64, error) {
	resp, err := p.request(ctx, http.MethodGet, "quantities/"+url.PathEscape(string(q)), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNoValue
	}
	if err := checkStatus(resp); err != nil {
		return 0, err
	}

	var out quantityValue
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", q, err)
	}
	return out.Value, nil
}

// Set writes the native value of q.
func (p *HTTPPort) Set(ctx context.Context, q Quantity, v float64) error {
	body, err := json.Marshal(quantityValue{Value: v})
	if err != nil {
		return err
	}

	resp, err := p.request(ctx, http.MethodPut, "quantities/"+url.PathEscape(string(q)), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// Devices returns the sidecar's current device enumeration.
func (p *HTTPPort) Devices(ctx context.Context) ([]devices.Identity, error) {
	resp, err := p.request(ctx, http.MethodGet, "devices", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var ids []devices.Identity
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	return ids, nil
}

// Close releases idle connections.
func (p *HTTPPort) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPPort) request(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+"/"+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return p.httpClient.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("hardware sidecar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
