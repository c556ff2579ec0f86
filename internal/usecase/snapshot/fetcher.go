package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/muhammadchandra19/booksync/pkg/util"
)

const (
	userAgent = "booksync/1.0"
	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// Fetcher retrieves book snapshots from the exchange REST API.
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  logger.Interface
}

var _ snapshotv1.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a Fetcher for the configured snapshot endpoint.
func NewFetcher(cfg config.SnapshotConfig, log logger.Interface) *Fetcher {
	return NewFetcherWithClient(cfg.APIURL, &http.Client{Timeout: cfg.Timeout}, log)
}

// NewFetcherWithClient creates a Fetcher that sends its requests through client.
func NewFetcherWithClient(baseURL string, client *http.Client, log logger.Interface) *Fetcher {
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  log,
	}
}

// Fetch requests GET {base}/products/{productID}/book?level={level}.
func (f *Fetcher) Fetch(ctx context.Context, productID string, level int) (*snapshotv1.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/products/%s/book?level=%s", f.baseURL, url.PathEscape(productID), strconv.Itoa(level))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewCodeTracer(errors.SnapshotFetchError).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if requestID := util.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewCodeTracer(errors.SnapshotFetchError).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.NewCodeTracer(errors.SnapshotStatusError).
			Wrap(fmt.Errorf("GET %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body))))
	}

	var snapshot snapshotv1.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, errors.NewCodeTracer(errors.SnapshotDecodeError).Wrap(err)
	}
	snapshot.ProductID = productID

	f.logger.InfoContext(ctx, "Snapshot fetched",
		logger.NewField("sequence", snapshot.Sequence),
		logger.NewField("bids", len(snapshot.Bids)),
		logger.NewField("asks", len(snapshot.Asks)),
		logger.NewField("duration", time.Since(start).String()),
	)

	return &snapshot, nil
}
