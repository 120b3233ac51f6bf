package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a search is sent
const DefaultDebounce = 300 * time.Millisecond

// SearchFunc runs one search. It must honour ctx cancellation.
type SearchFunc[T any] func(ctx context.Context, query string) (T, error)

// SearchResult is the outcome published for one query. A cleared search
// has an empty Query and zero Results.
type SearchResult[T any] struct {
	Query   string
	Results T
	Err     error
}

// SearchConfig configures a SearchController
type SearchConfig struct {
	Debounce     time.Duration
	Preprocessor *QueryPreprocessor
}

// SearchController turns a stream of keystrokes into at most one search
// for the latest query. A newer query cancels the request for an older one
// and results that arrive for a superseded query are dropped.
type SearchController[T any] struct {
	search   SearchFunc[T]
	debounce time.Duration
	queries  *QueryPreprocessor
	onResult func(SearchResult[T])
	logger   *zap.Logger

	mutex      sync.Mutex
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	latest     SearchResult[T]
	pending    bool
	closed     bool
}

// NewSearchController creates a controller. onResult may be nil; it is
// called with the controller's lock held and must not call back into it.
func NewSearchController[T any](search SearchFunc[T], cfg SearchConfig, onResult func(SearchResult[T]), logger *zap.Logger) *SearchController[T] {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Preprocessor == nil {
		cfg.Preprocessor = NewQueryPreprocessor(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchController[T]{
		search:   search,
		debounce: cfg.Debounce,
		queries:  cfg.Preprocessor,
		onResult: onResult,
		logger:   logger.Named("search"),
	}
}

// Search schedules a search for query after the quiet period. Earlier
// scheduled or running searches are abandoned. A query shorter than the
// minimum length clears the results immediately without a request.
func (s *SearchController[T]) Search(query string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.generation++
	s.stopLocked()

	cleaned, err := s.queries.Validate(query)
	if err != nil {
		result := SearchResult[T]{}
		if !errors.Is(err, domain.ErrInvalidQuery) || !s.queries.TooShort(query) {
			result = SearchResult[T]{Query: cleaned, Err: err}
		}
		s.publishLocked(result)
		return
	}

	gen := s.generation
	s.pending = true
	s.timer = time.AfterFunc(s.debounce, func() {
		s.fire(gen, cleaned)
	})
}

// stopLocked stops the pending timer and cancels the running request
func (s *SearchController[T]) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = false
}

func (s *SearchController[T]) fire(gen uint64, query string) {
	s.mutex.Lock()
	if gen != s.generation || s.closed {
		s.mutex.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.timer = nil
	s.mutex.Unlock()

	s.logger.Debug("searching", zap.String("query", query))
	results, err := s.search(ctx, query)
	cancel()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if gen != s.generation || s.closed {
		s.logger.Debug("discarding superseded result", zap.String("query", query))
		return
	}
	s.cancel = nil
	s.pending = false
	if err != nil {
		err = domain.AsError(err)
	}
	s.publishLocked(SearchResult[T]{Query: query, Results: results, Err: err})
}

func (s *SearchController[T]) publishLocked(r SearchResult[T]) {
	s.latest = r
	if s.onResult != nil {
		s.onResult(r)
	}
}

// Results returns the last published result
func (s *SearchController[T]) Results() SearchResult[T] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.latest
}

// Pending reports whether a search is scheduled or running
func (s *SearchController[T]) Pending() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pending
}

// Clear abandons any pending search and clears the results
func (s *SearchController[T]) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.generation++
	s.stopLocked()
	s.publishLocked(SearchResult[T]{})
}

// Close cancels everything; later calls to Search are ignored
func (s *SearchController[T]) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	s.generation++
	s.stopLocked()
}
