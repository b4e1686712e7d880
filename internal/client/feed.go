package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ymlfeed/exporter/internal/config"
	"ymlfeed/exporter/internal/domain"
	"ymlfeed/exporter/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// FeedClient is the byte source of an export run.
type FeedClient interface {
	// Open starts a GET of the feed and returns its body unread. When prev
	// carries validators the request is conditional and an unchanged feed
	// yields domain.ErrNotModified.
	Open(ctx context.Context, url string, prev *domain.FeedState) (*Feed, error)
	Close() error
}

// Feed is an open feed response. The caller must close Body.
type Feed struct {
	Body io.ReadCloser
	Meta domain.FeedMeta
}

type feedClient struct {
	rl            ratelimit.Limiter
	config        config.FeedConfig
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
}

func NewFeedClient(cfg config.FeedConfig, proxySupplier proxy.ProxySupplier) FeedClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &feedClient{
		rl:            rl,
		config:        cfg,
		httpClient:    client,
		proxySupplier: proxySupplier,
	}
}

func (c *feedClient) Open(ctx context.Context, url string, prev *domain.FeedState) (*Feed, error) {
	resp, err := c.get(ctx, url, prev)
	if err != nil && ctx.Err() == nil && c.proxySupplier != nil && c.proxySupplier.Len() > 1 {
		if newProxy := c.proxySupplier.Get(); newProxy != "" {
			log.Warnf("🔄 Fetch failed (%v), switching to proxy %s", err, newProxy)
			c.httpClient.SetProxy(newProxy)
			resp, err = c.get(ctx, url, prev)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
		}
		return nil, &domain.FetchError{URL: url, Err: err}
	}

	if resp.StatusCode() == http.StatusNotModified {
		resp.Body.Close()
		return nil, domain.ErrNotModified
	}

	if !resp.IsSuccess() {
		resp.Body.Close()
		return nil, &domain.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	meta := domain.FeedMeta{
		URL:           url,
		StatusCode:    resp.StatusCode(),
		ETag:          resp.Header().Get("ETag"),
		LastModified:  resp.Header().Get("Last-Modified"),
		ContentLength: resp.RawResponse.ContentLength,
	}

	log.Debugf("Feed %s answered %d (etag=%q, length=%d)", url, meta.StatusCode, meta.ETag, meta.ContentLength)

	return &Feed{
		Body: &bodyReader{body: resp.Body, url: url},
		Meta: meta,
	}, nil
}

func (c *feedClient) get(ctx context.Context, url string, prev *domain.FeedState) (*resty.Response, error) {
	c.rl.Take()

	req := c.httpClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)

	if prev != nil {
		if prev.ETag != "" {
			req.SetHeader("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.SetHeader("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err := req.Get(url)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	return resp, nil
}

func (c *feedClient) Close() error {
	return c.httpClient.Close()
}

// bodyReader reports read failures (resets, timeouts) as fetch errors so the
// XML layer does not mistake them for malformed input.
type bodyReader struct {
	body io.ReadCloser
	url  string
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &domain.FetchError{URL: b.url, Err: err}
	}
	return n, err
}

func (b *bodyReader) Close() error {
	return b.body.Close()
}
