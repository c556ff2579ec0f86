package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/muhammadchandra19/booksync/internal/app/engine"
	orderbookv1 "github.com/muhammadchandra19/booksync/internal/domain/orderbook/v1"
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/booksync/internal/usecase/checkpoint"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/booksync/pkg/logger"
)

const (
	defaultDepth = 50
	maxDepth     = 1000
)

// BookService is the part of the sync engine the API reads from.
type BookService interface {
	Book(productID string) (orderbookv1.Reader, error)
	Snapshot(ctx context.Context, productID string) (*snapshotv1.Snapshot, error)
	Status(productID string) (engine.Status, error)
	Statuses() []engine.Status
	Resync(productID string) error
}

// CheckpointService lists and loads stored checkpoints.
type CheckpointService interface {
	List(ctx context.Context) ([]checkpoint.Summary, error)
	LoadStore(ctx context.Context, productID string) (*snapshotv1.Checkpoint, error)
}

// Server exposes the synced books over HTTP.
type Server struct {
	books       BookService
	checkpoints CheckpointService
	metrics     http.Handler
	logger      logger.Interface
}

// Option configures optional parts of the Server.
type Option func(*Server)

// WithCheckpoints serves the /checkpoints endpoints from store.
func WithCheckpoints(store CheckpointService) Option {
	return func(s *Server) {
		s.checkpoints = store
	}
}

// WithMetrics serves handler on /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// NewServer creates a new Server.
func NewServer(books BookService, log logger.Interface, opts ...Option) *Server {
	s := &Server{
		books:  books,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes wrapped in the health check and request middlewares.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /books/{product}", s.getBook)
	mux.HandleFunc("GET /books/{product}/orders/{id}", s.getOrder)
	mux.HandleFunc("GET /books/{product}/depth", s.getDepth)
	mux.HandleFunc("POST /books/{product}/resync", s.resync)
	mux.HandleFunc("GET /status", s.getStatuses)
	mux.HandleFunc("GET /status/{product}", s.getStatus)

	if s.checkpoints != nil {
		mux.HandleFunc("GET /checkpoints", s.listCheckpoints)
		mux.HandleFunc("GET /checkpoints/{product}", s.getCheckpoint)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	health := healthcheck.HealthCheck{Ready: s.ready}
	return RequestID(AccessLog(s.logger)(health.Handler(mux)))
}

// ready fails until every tracked book has been synced at least once.
func (s *Server) ready() error {
	for _, status := range s.books.Statuses() {
		if status.SyncedAt.IsZero() {
			return errors.NewErrorDetails("book "+status.ProductID+" has never been synced",
				string(errors.BookNotSyncedError), "product_id")
		}
	}
	return nil
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.books.Snapshot(r.Context(), r.PathValue("product"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, snapshot)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	book, err := s.books.Book(r.PathValue("product"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := book.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, order)
}

func (s *Server) getDepth(w http.ResponseWriter, r *http.Request) {
	levels := defaultDepth
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDepth {
			s.writeError(w, r, errors.NewErrorDetails("levels must be between 1 and 1000",
				string(errors.GeneralBadRequestError), "levels"))
			return
		}
		levels = n
	}

	book, err := s.books.Book(r.PathValue("product"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, book.Depth(levels))
}

func (s *Server) resync(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("product")
	if err := s.books.Resync(productID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Resync requested", logger.NewField("product_id", productID))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) getStatuses(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.books.Statuses())
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.books.Status(r.PathValue("product"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.checkpoints.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, summaries)
}

func (s *Server) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpoint, err := s.checkpoints.LoadStore(r.Context(), r.PathValue("product"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, checkpoint)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), err, logger.NewField("path", r.URL.Path))
	}
	s.writeJSON(w, r, status, errorResponse{Code: string(code), Message: err.Error()})
}

func statusOf(err error) (int, errors.ErrorCode) {
	switch {
	case errors.ErrorCodeEquals(err, errors.InstrumentNotTrackedError):
		return http.StatusNotFound, errors.InstrumentNotTrackedError
	case errors.ErrorCodeEquals(err, errors.BookNotSyncedError):
		return http.StatusServiceUnavailable, errors.BookNotSyncedError
	case errors.ErrorCodeEquals(err, errors.GeneralNotFoundError), stderrors.Is(err, orderbookv1.ErrOrderNotFound):
		return http.StatusNotFound, errors.GeneralNotFoundError
	case errors.ErrorCodeEquals(err, errors.GeneralBadRequestError):
		return http.StatusBadRequest, errors.GeneralBadRequestError
	default:
		return http.StatusInternalServerError, errors.GeneralInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to write response", logger.NewField("error", err.Error()))
	}
}
