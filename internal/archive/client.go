package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/internal/common"
	customLog "github.com/evmstream/processor/internal/log"
)

const DEFAULT_REQUEST_TIMEOUT = 60 * time.Second

// backoffScheduleMs is the wait before the n-th retry; the index clamps to the
// last entry.
var backoffScheduleMs = []int{100, 500, 2000, 5000, 10000, 20000}

// RetryObserver is invoked before every backoff sleep. errorsInRow counts the
// consecutive failures so far, backoffMs is the upcoming sleep.
type RetryObserver func(err error, query *Query, errorsInRow int, backoffMs int)

// IArchiveClient is the surface the ingest pipeline consumes.
type IArchiveClient interface {
	Query(ctx context.Context, query Query) (*QueryResponse, error)
	GetHeight(ctx context.Context) (int64, error)
}

type Client struct {
	url        string
	squidId    string
	httpClient *http.Client
	onRetry    RetryObserver
	logger     zerolog.Logger
}

func NewClient(cfg *config.ArchiveConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("archive url is not configured")
	}
	squidId := cfg.SquidId
	if squidId == "" {
		squidId = common.SquidId()
	}
	return &Client{
		url:     cfg.URL,
		squidId: squidId,
		httpClient: &http.Client{
			Timeout: DEFAULT_REQUEST_TIMEOUT,
		},
		logger: customLog.NewLogger("archive"),
	}, nil
}

// SetRetryObserver registers the callback invoked on every retry.
func (c *Client) SetRetryObserver(observer RetryObserver) {
	c.onRetry = observer
}

// GetHeight returns the maximum block height the archive guarantees
// queryable, or -1 when the archive holds no data yet.
func (c *Client) GetHeight(ctx context.Context) (int64, error) {
	var status StatusResponse
	err := c.withRetries(ctx, nil, func() error {
		return c.getJSON(ctx, c.url+"/status", &status)
	})
	if err != nil {
		return 0, err
	}

	height := status.ParquetBlockNumber
	if status.ParquetBlockNumber > status.DbMinBlockNumber {
		height = status.DbMaxBlockNumber
	}
	if height == 0 {
		return -1, nil
	}
	return height, nil
}

// Query POSTs the query document and decodes the response. A response with a
// non-empty errors array is terminal.
func (c *Client) Query(ctx context.Context, query Query) (*QueryResponse, error) {
	var response QueryResponse
	err := c.withRetries(ctx, &query, func() error {
		return c.postJSON(ctx, c.url+"/query", query, &response)
	})
	if err != nil {
		return nil, err
	}
	if len(response.Errors) > 0 {
		return nil, &ProtocolError{Details: response.Errors}
	}
	return &response, nil
}

// withRetries runs op until it succeeds, the error is terminal, or the
// context is done. Transient errors back off on the fixed schedule.
func (c *Client) withRetries(ctx context.Context, query *Query, op func() error) error {
	errorsInRow := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		errorsInRow++
		backoffIdx := errorsInRow - 1
		if backoffIdx >= len(backoffScheduleMs) {
			backoffIdx = len(backoffScheduleMs) - 1
		}
		backoffMs := backoffScheduleMs[backoffIdx]
		if c.onRetry != nil {
			c.onRetry(err, query, errorsInRow, backoffMs)
		}
		c.logger.Warn().Err(err).Int("errorsInRow", errorsInRow).Msgf("Retrying archive request in %dms", backoffMs)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(backoffMs) * time.Millisecond):
		}
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal archive query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("accept", "application/json")
	req.Header.Set("accept-encoding", "gzip, br")
	req.Header.Set("x-squid-id", c.squidId)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String(), Body: string(body)}
	}

	reader, err := decompressedBody(resp)
	if err != nil {
		return err
	}

	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("failed to decode archive response from %s: %w", req.URL.String(), err)
	}
	return nil
}

// decompressedBody unwraps the response body. Setting accept-encoding by hand
// disables the transport's transparent gzip handling, so both codings are
// handled here.
func decompressedBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("content-encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
