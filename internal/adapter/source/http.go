package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// HTTP downloads the dataset with retries on transport errors and 5xx responses.
// The client timeout covers the whole exchange, including the caller's read of
// the streamed body, so it must allow for the full download.
type HTTP struct {
	url    string
	client *resty.Client
	logger *slog.Logger
}

func NewHTTP(url string, opts Options, logger *slog.Logger) *HTTP {
	opts = opts.withDefaults()
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4 * opts.RetryWait).
		SetDoNotParseResponse(true).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		}).
		AddRetryHook(closeRetriedBody)

	return &HTTP{url: url, client: client, logger: logger}
}

func (h *HTTP) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := h.client.R().SetContext(ctx).Get(h.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", h.url, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("fetch %s: unexpected status %d", h.url, resp.StatusCode())
	}

	h.logger.Info("dataset download started", "url", h.url, "attempts", resp.Request.Attempt)
	return body, nil
}

func (h *HTTP) String() string { return h.url }

// closeRetriedBody releases the unparsed body of a response that is about to be
// retried. It also runs after the last attempt; Open closes that body again,
// which is harmless.
func closeRetriedBody(r *resty.Response, _ error) {
	if r == nil {
		return
	}
	if body := r.RawBody(); body != nil {
		_ = body.Close()
	}
}
