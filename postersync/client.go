package postersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type posterClient struct {
	baseURL    string
	token      string
	http       *http.Client
	limiter    <-chan time.Time
	maxRetries int
	retryBase  time.Duration
}

func newPosterClient(token string) (*posterClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("POSTER_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://joinposter.com/api"
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("poster api token is empty")
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("POSTER_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	maxRetries := 3
	if v := strings.TrimSpace(os.Getenv("POSTER_API_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			maxRetries = n
		}
	}

	return &posterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    time.Tick(interval),
		maxRetries: maxRetries,
		retryBase:  time.Second,
	}, nil
}

// posterListResponse flattens the two envelope shapes the API serves:
// {"response": [...]} for catalogue methods and
// {"response": {"data": [...], "count": N, "page": {...}}} for paginated ones.
type posterListResponse struct {
	Items []json.RawMessage
	Count int64
	Page  posterPageInfo
}

type posterPageInfo struct {
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
	Count   int `json:"count"`
}

type posterEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error"`
	Message  string          `json:"message"`
}

type posterObjectResponse struct {
	Data  []json.RawMessage `json:"data"`
	Count json.Number       `json:"count"`
	Page  posterPageInfo    `json:"page"`
}

type posterAPIError struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
}

// posterHTTPError is a non-2xx response. Kept as a type so the retry loop
// can tell a 502 from a 401.
type posterHTTPError struct {
	StatusCode int
	Body       string
}

func (e *posterHTTPError) Error() string {
	return fmt.Sprintf("poster api error %d: %s", e.StatusCode, e.Body)
}

// getList calls one list method, retrying transient transport failures with
// backoff before giving up. API-level errors (bad token, bad params) fail
// immediately; only network errors, 429 and 5xx responses get another
// attempt.
func (c *posterClient) getList(ctx context.Context, method string, params url.Values) (posterListResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return posterListResponse{}, ctx.Err()
			case <-time.After(retryBackoff(attempt, c.retryBase)):
			}
		}
		resp, err := c.doGetList(ctx, method, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return posterListResponse{}, err
		}
	}
	return posterListResponse{}, lastErr
}

func retryBackoff(attempt int, base time.Duration) time.Duration {
	sleep := base * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *posterHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *posterClient) doGetList(ctx context.Context, method string, params url.Values) (posterListResponse, error) {
	<-c.limiter

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.token)
	endpoint := c.baseURL + "/" + strings.TrimLeft(method, "/") + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return posterListResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return posterListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return posterListResponse{}, &posterHTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var envelope posterEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return posterListResponse{}, err
	}
	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		return posterListResponse{}, parseAPIError(envelope.Error, envelope.Message)
	}
	if len(envelope.Response) == 0 {
		return posterListResponse{}, fmt.Errorf("poster api %s: empty response", method)
	}

	return parseListEnvelope(envelope.Response)
}

func parseListEnvelope(response json.RawMessage) (posterListResponse, error) {
	trimmed := strings.TrimSpace(string(response))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(response, &items); err != nil {
			return posterListResponse{}, err
		}
		return posterListResponse{Items: items, Count: int64(len(items))}, nil
	}

	var obj posterObjectResponse
	if err := json.Unmarshal(response, &obj); err != nil {
		return posterListResponse{}, err
	}
	count, _ := obj.Count.Int64()
	return posterListResponse{Items: obj.Data, Count: count, Page: obj.Page}, nil
}

func parseAPIError(raw json.RawMessage, message string) error {
	var apiErr posterAPIError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("poster api error %s: %s", apiErr.Code.String(), apiErr.Message)
	}
	// Some methods return the error code as a bare number with the message
	// on the envelope.
	if message != "" {
		return fmt.Errorf("poster api error %s: %s", strings.TrimSpace(string(raw)), message)
	}
	return fmt.Errorf("poster api error: %s", strings.TrimSpace(string(raw)))
}
