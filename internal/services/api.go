// JSON HTTP client shared by the REST backed services (Microsoft Graph, OpenAI)
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/cadence/internal/shared"
)

// APIService performs JSON requests against a REST API rooted at baseURL.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// NewAPIService creates a new API service. The client is expected to carry authentication (e.g. an oauth2 transport).
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		headers:    map[string]string{},
	}
}

// WithHeader sets a header sent on every request and returns the service.
func (a *APIService) WithHeader(key, value string) *APIService {
	a.headers[key] = value
	return a
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// APIError is returned for non-2xx responses.
//
// It matches [shared.ErrAPIRequest] and a status specific sentinel with [errors.Is].
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
	kind       error
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

func (e *APIError) Unwrap() []error {
	if e.kind == nil {
		return []error{shared.ErrAPIRequest}
	}
	return []error{shared.ErrAPIRequest, e.kind}
}

// statusError maps an HTTP status onto the sentinel handlers use for their response code.
func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case http.StatusForbidden:
		return shared.ErrForbidden
	case http.StatusNotFound, http.StatusGone:
		return shared.ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return shared.ErrConflict
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return shared.ErrServiceUnavailable
	case http.StatusGatewayTimeout:
		return shared.ErrTimeout
	default:
		return nil
	}
}

// Do sends a request and decodes a JSON response into out when out is non-nil.
//
// body may be nil, a []byte sent as-is, or any value encoded as JSON. Absolute
// URLs (such as Graph's @odata.nextLink) are used without the base URL.
func (a *APIService) Do(ctx context.Context, method, path string, body, out any) (*APIResponse, error) {
	fullURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		fullURL = a.baseURL + path
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", shared.ErrTimeout, method, fullURL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &jsonData); err == nil {
			apiResp.IsJSON = true
			apiResp.JSONData = jsonData
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiResp, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        fullURL,
			Body:       string(data),
			kind:       statusError(resp.StatusCode),
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return apiResp, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.Do(ctx, http.MethodPost, path, data, nil)
}

// Delete performs a DELETE request to path.
func (a *APIService) Delete(ctx context.Context, path string) error {
	_, err := a.Do(ctx, http.MethodDelete, path, nil, nil)
	return err
}
