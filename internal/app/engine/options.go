package engine

import "time"

// Options represents configuration options for the Engine.
type Options struct {
	// SnapshotLevel is passed to the snapshot fetcher; 3 returns individual orders.
	SnapshotLevel int
	// MailboxSize bounds the events queued for one instrument before Consume blocks.
	MailboxSize int
	// RetryMinBackoff and RetryMaxBackoff bound the delay before refetching a failed snapshot.
	RetryMinBackoff time.Duration
	RetryMaxBackoff time.Duration
	// ReadErrorBackoff is the first delay after a failed feed read in Run.
	ReadErrorBackoff time.Duration
	// CheckpointInterval is how often synced books are written to the checkpoint store.
	CheckpointInterval time.Duration
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		SnapshotLevel:      3,
		MailboxSize:        1024,
		RetryMinBackoff:    500 * time.Millisecond,
		RetryMaxBackoff:    30 * time.Second,
		ReadErrorBackoff:   100 * time.Millisecond,
		CheckpointInterval: 30 * time.Second,
	}
}
