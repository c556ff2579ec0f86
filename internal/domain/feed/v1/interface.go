package feedv1

import "context"

// Reader delivers decoded feed events in the order they were received.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=feedv1_mock
type Reader interface {
	// ReadEvent blocks until the next event is available
	ReadEvent(ctx context.Context) (*Event, error)
	// Close closes the reader
	Close() error
}
