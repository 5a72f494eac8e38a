package serp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"serp-go/pkg/logger"
	"serp-go/pkg/model"
)

// ClientConfig configures the search oracle client
type ClientConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// ClientOption customizes the underlying fasthttp client
type ClientOption func(*fasthttp.Client)

// WithDialer routes all connections through dial
func WithDialer(dial fasthttp.DialFunc) ClientOption {
	return func(c *fasthttp.Client) {
		c.Dial = dial
	}
}

type httpSearchClient struct {
	config ClientConfig
	client *fasthttp.Client
	parser *ResponseParser
	log    *logger.Logger

	totalRequests  uint64
	failedRequests uint64
}

// NewHTTPSearchClient creates a fasthttp-backed oracle client
func NewHTTPSearchClient(config ClientConfig, opts ...ClientOption) SearchClient {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = 32
	}
	if config.UserAgent == "" {
		config.UserAgent = "serp-go/1.0"
	}

	client := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConnsPerHost,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}

	return &httpSearchClient{
		config: config,
		client: client,
		parser: NewResponseParser(),
		log:    logger.GetLogger().WithField("component", "serp_client"),
	}
}

func (c *httpSearchClient) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	atomic.AddUint64(&c.totalRequests, 1)

	results, err := c.doSearch(ctx, query, num)
	if err != nil {
		atomic.AddUint64(&c.failedRequests, 1)
		c.log.WithError(err).WithField("query", query).Debug("Search request failed")
		return nil, err
	}
	return results, nil
}

func (c *httpSearchClient) doSearch(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	if c.config.APIKey == "" {
		return nil, &Error{Kind: KindConfig, Query: query, Err: ErrMissingCredentials}
	}
	if c.config.Endpoint == "" {
		return nil, &Error{Kind: KindConfig, Query: query, Err: errors.New("search API endpoint is not configured")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if num <= 0 {
		num = DefaultResultsPerQuery
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.Endpoint)
	req.URI().QueryArgs().Add("q", query)
	req.URI().QueryArgs().Add("num", strconv.Itoa(num))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	if err := c.client.DoTimeout(req, resp, requestTimeout(ctx, c.config.Timeout)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Kind: KindTransport, Query: query, Err: fmt.Errorf("request failed: %w", err)}
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return nil, &Error{Kind: KindConfig, StatusCode: status, Query: query, Err: ErrUnauthorized}
	case status != fasthttp.StatusOK:
		body := resp.Body()
		return nil, &Error{
			Kind:       KindStatus,
			StatusCode: status,
			Query:      query,
			Err:        fmt.Errorf("search API returned status %d: %s", status, string(body[:min(len(body), 200)])),
		}
	}

	results, err := c.parser.Parse(resp.Body(), num)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Query: query, Err: err}
	}
	return results, nil
}

// requestTimeout bounds a request by the context deadline when it is sooner
func requestTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			if remaining <= 0 {
				return time.Millisecond
			}
			return remaining
		}
	}
	return timeout
}
