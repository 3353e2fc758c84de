package stats

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

	"hoopscraper/internal/httpcache"
	"hoopscraper/pkg/config"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/logger"
)

// Client talks to the stats.nba.com JSON API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	leagueID   string
	logger     logger.Logger
}

// NewClient creates a stats API client from cfg. When cfg.CacheTTL is set,
// reference endpoints (player lists and the player index) are cached in
// memory for that long.
func NewClient(cfg *config.StatsConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	transport := httpcache.NewTransport(http.DefaultTransport, cfg.CacheTTL, isReferenceRequest)

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		headers: map[string]string{
			"Accept":             "application/json, text/plain, */*",
			"Accept-Language":    "en-US,en;q=0.9",
			"Connection":         "keep-alive",
			"Origin":             "https://www.nba.com",
			"Referer":            "https://www.nba.com/",
			"x-nba-stats-origin": "stats",
			"x-nba-stats-token":  "true",
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		leagueID: cfg.LeagueID,
		logger:   log,
	}
	if cfg.UserAgent != "" {
		c.headers["User-Agent"] = cfg.UserAgent
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.leagueID == "" {
		c.leagueID = DefaultLeagueID
	}
	return c
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func isReferenceRequest(req *http.Request) bool {
	p := req.URL.Path
	return strings.HasSuffix(p, "/"+EndpointCommonAllPlayers) || strings.HasSuffix(p, "/"+EndpointPlayerIndex)
}

// Get requests endpoint with params and decodes the result sets. Every
// failure is a fetch failure carrying its transport type.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	u := fmt.Sprintf("%s/stats/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Transport(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithError(err).ErrorWithFields("HTTP request failed", map[string]interface{}{
			"endpoint":    endpoint,
			"duration_ms": duration.Milliseconds(),
		})
		return nil, &errs.Error{
			Kind:    errs.KindFetchFailure,
			Type:    errs.ErrorTypeNetwork,
			Message: "network error",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, u, resp.StatusCode, duration)

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Transport(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var out Response
	if err := dec.Decode(&out); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"endpoint":     endpoint,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, errs.Transport(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return &out, nil
}

// checkResponseStatus maps HTTP status codes to transport errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.Transport(errs.ErrorTypeAuth, code, "request rejected")
	case code == http.StatusNotFound:
		return errs.Transport(errs.ErrorTypeNotFound, code, "resource not found")
	case code == http.StatusTooManyRequests:
		return errs.Transport(errs.ErrorTypeRateLimit, code, "rate limit exceeded")
	case code >= 500:
		return errs.Transport(errs.ErrorTypeServerError, code, "server error")
	case code >= 400:
		// the stats API answers 400 with a plain-text reason for bad parameters
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return errs.Transport(errs.ErrorTypeUnknown, code, "unexpected status code: %s", strings.TrimSpace(string(reason)))
	default:
		return nil
	}
}
