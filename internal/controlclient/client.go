package controlclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/breeze-rmm/agent/internal/httputil"
	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("controlclient")

// ErrNotFound is returned by Heartbeat when the control service reports
// the camera id is unknown, typically after a server restart — the
// trigger for re-registration.
var ErrNotFound = errors.New("controlclient: camera not found")

// Client is an HTTP+JSON implementation of the ControlClient port.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

// New creates a Client over its own zero-value http.Transport. If tlsCfg
// is nil, that transport uses Go's default TLS verification (or plaintext,
// per the scheme of baseURL).
func New(baseURL, authToken string, tlsCfg *tls.Config) *Client {
	transport := &http.Transport{}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		retry: httputil.DefaultRetryConfig(),
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body []byte
	var err error
	if reqBody != nil {
		body, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("controlclient: marshal request: %w", err)
		}
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	if c.authToken != "" {
		headers.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := httputil.Do(ctx, c.httpClient, method, c.baseURL+path, body, headers, c.retry)
	if err != nil {
		log.Warn("control client transport error", "method", method, "path", path, "error", err)
		return fmt.Errorf("controlclient: transport error: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("controlclient: read response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("controlclient: unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("controlclient: decode response: %w", err)
		}
	}
	return nil
}

// RegisterCamera registers the camera descriptor, returning the
// server-assigned camera_id.
func (c *Client) RegisterCamera(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cameras", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnregisterCamera deregisters a previously registered camera.
func (c *Client) UnregisterCamera(ctx context.Context, cameraID string) (*UnregisterResponse, error) {
	var resp UnregisterResponse
	path := fmt.Sprintf("/v1/cameras/%s", cameraID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat reports liveness. Returns ErrNotFound itself (not wrapped)
// when the server no longer recognizes cameraID.
func (c *Client) Heartbeat(ctx context.Context, req HeartbeatRequest) (*HeartbeatResponse, error) {
	var resp HeartbeatResponse
	path := fmt.Sprintf("/v1/cameras/%s/heartbeat", req.CameraID)
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Polling polls for the next PTZ task.
func (c *Client) Polling(ctx context.Context, req PollingRequest) (*PollingResponse, error) {
	var resp PollingResponse
	path := fmt.Sprintf("/v1/cameras/%s/polling", req.CameraID)
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
