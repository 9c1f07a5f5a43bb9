// Package linkup is the HTTP client for the regional LibreLinkUp-style cloud
// endpoints. It owns the wire protocol: request headers, response envelopes,
// status-code mapping to typed errors and bounded retry of transient
// failures. It holds no session state; callers supply an AuthContext.
package linkup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const requestTimeout = 30 * time.Second

// Upstream result codes inside the response envelope.
const (
	statusOK                 = 0
	statusInvalidCredentials = 2
	statusTermsOfUse         = 4
	statusMinimumVersion     = 920
)

// EndpointFor returns the base URL for a region slug. An empty region means
// the global endpoint, used until the first login redirect pins a region.
func EndpointFor(region string) string {
	if region == "" {
		return "https://api.libreview.io"
	}
	return fmt.Sprintf("https://api-%s.libreview.io", region)
}

type Client struct {
	httpClient *http.Client
	product    string
	version    string
	logger     logging.Logger

	// newBackoff builds the retry schedule for one logical request.
	// Swappable in tests.
	newBackoff func() retry.Backoff
}

func NewClient(product, version string, logger logging.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		product:    product,
		version:    version,
		logger:     logger,
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
		},
	}
}

// do performs one logical request with bounded retries. 429 and 5xx responses
// and transport errors are retried with exponential backoff; 401 and other
// non-200 statuses fail immediately. Returns the raw response body.
func (c *Client) do(ctx context.Context, method, url string, auth *AuthContext, body []byte) ([]byte, error) {
	if auth != nil && (auth.Token == "" || auth.AccountID == "") {
		// An incomplete AuthContext is a programming error in this client,
		// caught before anything reaches the network.
		return nil, fmt.Errorf("authenticated call without token or account id: %w", common.ErrMissingHeader)
	}

	log := c.logger.With("req_id", uuid.NewString(), "method", method, "url", url)

	var respBody []byte

	err := retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return err
		}

		req.Header.Set(common.ProductHeaderName, c.product)
		req.Header.Set(common.VersionHeaderName, c.version)
		req.Header.Set("accept", "application/json")
		if body != nil {
			req.Header.Set("content-type", "application/json")
		}
		if auth != nil {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+auth.Token)
			req.Header.Set(common.AccountIDHeaderName, auth.AccountID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Warn(ctx, "request failed, will retry", "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrUnavailable, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: read body: %v", common.ErrUnavailable, err))
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", resp.Status, common.ErrUnauthorized)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			log.Warn(ctx, "transient upstream failure, will retry", "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("%s: %w", resp.Status, common.ErrUnavailable))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected response %s", resp.Status)
		}

		respBody = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug(ctx, "request completed", "bytes", len(respBody))
	return respBody, nil
}

// getJSON performs an authenticated GET, unwraps the response envelope and
// decodes its data payload into out.
func (c *Client) getJSON(ctx context.Context, auth AuthContext, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, auth.BaseURL+path, &auth, nil)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Status != statusOK {
		return statusError(env.Status, env.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// statusError maps an upstream envelope status to a typed error.
func statusError(status int, apiErr *apiError) error {
	switch status {
	case statusInvalidCredentials:
		return common.ErrInvalidCredentials
	case statusTermsOfUse:
		return common.ErrTermsOfUse
	case statusMinimumVersion:
		return common.ErrMinimumVersion
	default:
		msg := ""
		if apiErr != nil {
			msg = apiErr.Message
		}
		return fmt.Errorf("upstream rejected request: status %d %s", status, msg)
	}
}
