package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSearch is a SearchFunc that records the queries it receives
type recordingSearch struct {
	mutex   sync.Mutex
	queries []string
	delay   time.Duration
	aborted atomic.Int32
}

func (r *recordingSearch) search(ctx context.Context, query string) ([]string, error) {
	r.mutex.Lock()
	r.queries = append(r.queries, query)
	r.mutex.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			r.aborted.Add(1)
			return nil, ctx.Err()
		}
	}
	return []string{query + "-result"}, nil
}

func (r *recordingSearch) calls() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.queries...)
}

type resultLog struct {
	mutex   sync.Mutex
	results []SearchResult[[]string]
}

func (l *resultLog) record(r SearchResult[[]string]) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.results = append(l.results, r)
}

func (l *resultLog) all() []SearchResult[[]string] {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]SearchResult[[]string](nil), l.results...)
}

func TestSearchController_DebouncesKeystrokes(t *testing.T) {
	rec := &recordingSearch{}
	log := &resultLog{}
	s := NewSearchController(rec.search, SearchConfig{Debounce: 300 * time.Millisecond}, log.record, nil)
	defer s.Close()

	for _, q := range []string{"a", "ap", "app"} {
		s.Search(q)
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Pending() }, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"app"}, rec.calls())
	got := s.Results()
	assert.Equal(t, "app", got.Query)
	assert.Equal(t, []string{"app-result"}, got.Results)
	assert.NoError(t, got.Err)

	// "a" is below the minimum length and clears immediately
	results := log.all()
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Query)
	assert.Equal(t, "app", results[1].Query)
}

func TestSearchController_NewQueryCancelsRunningSearch(t *testing.T) {
	rec := &recordingSearch{delay: 500 * time.Millisecond}
	log := &resultLog{}
	s := NewSearchController(rec.search, SearchConfig{Debounce: 10 * time.Millisecond}, log.record, nil)
	defer s.Close()

	s.Search("pasta")
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, 5*time.Millisecond)

	s.Search("pizza")
	require.Eventually(t, func() bool { return rec.aborted.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Results().Query == "pizza" }, 2*time.Second, 10*time.Millisecond)

	for _, r := range log.all() {
		assert.NotEqual(t, "pasta", r.Query, "superseded result must be discarded")
	}
}

func TestSearchController_DiscardsLateResults(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	log := &resultLog{}
	// ignores cancellation to simulate a result arriving after supersession
	stubborn := func(ctx context.Context, query string) ([]string, error) {
		calls.Add(1)
		if query == "old" {
			<-release
		}
		return []string{query}, nil
	}
	s := NewSearchController(stubborn, SearchConfig{Debounce: 10 * time.Millisecond}, log.record, nil)
	defer s.Close()

	s.Search("old")
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Search("new")
	require.Eventually(t, func() bool { return s.Results().Query == "new" }, time.Second, 5*time.Millisecond)

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "new", s.Results().Query)
	for _, r := range log.all() {
		assert.NotEqual(t, "old", r.Query)
	}
}

func TestSearchController_ErrorsAndClear(t *testing.T) {
	s := NewSearchController(func(ctx context.Context, query string) ([]string, error) {
		return nil, &domain.Error{Kind: domain.KindServer, Message: "down"}
	}, SearchConfig{Debounce: 5 * time.Millisecond}, nil, nil)
	defer s.Close()

	s.Search("soup")
	require.Eventually(t, func() bool { return s.Results().Err != nil }, time.Second, 5*time.Millisecond)
	assert.True(t, domain.IsKind(s.Results().Err, domain.KindServer))

	s.Clear()
	assert.Equal(t, SearchResult[[]string]{}, s.Results())

	long := make([]byte, DefaultMaxQueryLength+1)
	for i := range long {
		long[i] = 'x'
	}
	s.Search(string(long))
	assert.ErrorIs(t, s.Results().Err, domain.ErrInvalidQuery)
	assert.False(t, s.Pending())
}

func TestSearchController_Close(t *testing.T) {
	rec := &recordingSearch{}
	s := NewSearchController(rec.search, SearchConfig{Debounce: 20 * time.Millisecond}, nil, nil)

	s.Search("soup")
	assert.True(t, s.Pending())
	s.Close()
	s.Search("salad")

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.calls())
	assert.False(t, s.Pending())
}
