package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/muhammadchandra19/booksync/pkg/redis"
)

const (
	keyPrefix = "checkpoint:"
	// indexKey maps each product to the sequence of its latest checkpoint.
	indexKey = "checkpoint:index"
)

// Summary describes the latest checkpoint of one product.
type Summary struct {
	ProductID string `json:"productId"`
	Sequence  int64  `json:"sequence"`
}

// Store keeps the latest checkpoint per product in Redis.
type Store struct {
	client redis.Client
	ttl    time.Duration
	logger logger.Interface
}

var _ snapshotv1.Store = (*Store)(nil)

// NewStore creates a Store. A zero ttl keeps checkpoints until they are overwritten.
func NewStore(client redis.Client, ttl time.Duration, log logger.Interface) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func key(productID string) string {
	return keyPrefix + productID
}

// Store writes checkpoint as the latest one of its product.
func (s *Store) Store(ctx context.Context, checkpoint *snapshotv1.Checkpoint) error {
	if checkpoint == nil || checkpoint.Snapshot == nil {
		return errors.NewErrorDetails("checkpoint has no snapshot", string(errors.GeneralBadRequestError), "checkpoint")
	}
	productID := checkpoint.Snapshot.ProductID

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return errors.NewCodeTracer(errors.CheckpointMarshalError).Wrap(err)
	}

	if err := s.client.Set(ctx, key(productID), payload, s.ttl); err != nil {
		return errors.NewCodeTracer(errors.CheckpointStoreError).Wrap(err)
	}
	if _, err := s.client.HSet(ctx, indexKey, map[string]any{productID: checkpoint.Snapshot.Sequence}); err != nil {
		return errors.NewCodeTracer(errors.CheckpointStoreError).Wrap(err)
	}

	s.logger.DebugContext(ctx, "Checkpoint stored",
		logger.NewField("sequence", checkpoint.Snapshot.Sequence),
		logger.NewField("orders", checkpoint.Snapshot.Len()),
		logger.NewField("bytes", len(payload)),
	)
	return nil
}

// LoadStore reads the latest checkpoint of productID.
func (s *Store) LoadStore(ctx context.Context, productID string) (*snapshotv1.Checkpoint, error) {
	payload, err := s.client.Get(ctx, key(productID))
	if err != nil {
		return nil, errors.NewCodeTracer(errors.CheckpointLoadError).Wrap(err)
	}
	if payload == "" {
		return nil, errors.NewErrorDetails(fmt.Sprintf("no checkpoint for %s", productID),
			string(errors.GeneralNotFoundError), "product_id")
	}

	var checkpoint snapshotv1.Checkpoint
	if err := json.Unmarshal([]byte(payload), &checkpoint); err != nil {
		return nil, errors.NewCodeTracer(errors.CheckpointLoadError).Wrap(err)
	}
	return &checkpoint, nil
}

// List returns the latest checkpointed sequence of every product, ordered by product.
// Entries may outlive expired checkpoints.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	index, err := s.client.HGetAll(ctx, indexKey)
	if err != nil {
		return nil, errors.NewCodeTracer(errors.CheckpointLoadError).Wrap(err)
	}

	summaries := make([]Summary, 0, len(index))
	for productID, value := range index {
		sequence, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.logger.Warn("Skipping malformed checkpoint index entry",
				logger.NewField("product_id", productID),
				logger.NewField("value", value),
			)
			continue
		}
		summaries = append(summaries, Summary{ProductID: productID, Sequence: sequence})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ProductID < summaries[j].ProductID
	})
	return summaries, nil
}
