package snapshotv1

import "context"

// Fetcher retrieves a snapshot of an instrument's book at the given level of detail.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=snapshotv1_mock
type Fetcher interface {
	Fetch(ctx context.Context, productID string, level int) (*Snapshot, error)
}

// Store defines the interface for storing and loading book checkpoints.
type Store interface {
	Store(ctx context.Context, checkpoint *Checkpoint) error
	LoadStore(ctx context.Context, productID string) (*Checkpoint, error)
}
