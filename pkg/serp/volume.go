package serp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"serp-go/pkg/logger"
	"serp-go/pkg/retry"
)

// VolumeConfig configures the keyword-metrics API client
type VolumeConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	BatchSize int           `mapstructure:"batch_size"`
}

type httpVolumeClient struct {
	config VolumeConfig
	client *fasthttp.Client
	parser *ResponseParser
	retry  *retry.SimpleRetry
	log    *logger.Logger
}

// NewHTTPVolumeClient creates a batched search-volume client
func NewHTTPVolumeClient(config VolumeConfig, policy retry.Policy, opts ...ClientOption) VolumeClient {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 5
	}
	policy.IsRetryable = IsRetryable

	client := &fasthttp.Client{
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	}
	for _, opt := range opts {
		opt(client)
	}

	return &httpVolumeClient{
		config: config,
		client: client,
		parser: NewResponseParser(),
		retry:  retry.NewSimpleRetry(policy),
		log:    logger.GetLogger().WithField("component", "volume_client"),
	}
}

// Lookup queries keywords in batches joined by commas. Keywords the API does
// not know are absent from the result.
func (c *httpVolumeClient) Lookup(ctx context.Context, keywords []string) (map[string]int, error) {
	volumes := make(map[string]int, len(keywords))

	for start := 0; start < len(keywords); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(keywords))
		batch := keywords[start:end]

		var batchVolumes map[string]int
		err := c.retry.Execute(ctx, func(ctx context.Context) error {
			var err error
			batchVolumes, err = c.doLookup(ctx, batch)
			return err
		})
		if err != nil {
			c.log.WithError(err).WithField("keywords_count", len(batch)).Warn("Volume lookup failed")
			return volumes, err
		}
		for k, v := range batchVolumes {
			volumes[k] = v
		}
	}

	c.log.WithFields(map[string]interface{}{
		"requested": len(keywords),
		"found":     len(volumes),
	}).Debug("Volume lookup completed")
	return volumes, nil
}

func (c *httpVolumeClient) doLookup(ctx context.Context, keywords []string) (map[string]int, error) {
	query := strings.Join(keywords, ",")
	if c.config.Endpoint == "" {
		return nil, &Error{Kind: KindConfig, Query: query, Err: errors.New("volume API endpoint is not configured")}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.Endpoint)
	req.URI().QueryArgs().Add("keyword", query)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", "serp-go/1.0")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

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
		return nil, &Error{Kind: KindStatus, StatusCode: status, Query: query, Err: fmt.Errorf("volume API returned status %d", status)}
	}

	volumes, err := c.parser.ParseVolume(resp.Body())
	if err != nil {
		return nil, &Error{Kind: KindDecode, Query: query, Err: err}
	}
	return volumes, nil
}
