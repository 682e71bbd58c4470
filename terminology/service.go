package terminology

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxWorkers bounds concurrent expansion requests.
const DefaultMaxWorkers = 10

// ServiceConfig configures an expansion service.
type ServiceConfig struct {
	MaxWorkers int
	CacheSize  int
	CacheTTL   time.Duration
}

// Service runs cache-aware expansions against a terminology client.
// A Service (and its cache) belongs to one user session; see Registry.
type Service struct {
	client     Client
	cache      *ExpansionCache
	maxWorkers int
	log        zerolog.Logger
}

// NewService creates a Service over the given client.
func NewService(client Client, config ServiceConfig, log zerolog.Logger) *Service {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultMaxWorkers
	}
	return &Service{
		client:     client,
		cache:      NewExpansionCache(config.CacheSize, config.CacheTTL),
		maxWorkers: config.MaxWorkers,
		log:        log,
	}
}

// Cache exposes the session cache.
func (s *Service) Cache() *ExpansionCache {
	return s.cache
}

// Client exposes the underlying terminology client.
func (s *Service) Client() Client {
	return s.client
}

// Expand expands one code, serving from the session cache when a valid
// entry exists. Failures come back as a result with Err set; the error
// return is reserved for context cancellation.
func (s *Service) Expand(ctx context.Context, code string, includeInactive bool) *ExpansionResult {
	if entry, ok := s.cache.Get(code, includeInactive); ok {
		return &ExpansionResult{
			Code:          code,
			SourceDisplay: entry.SourceDisplay,
			Children:      entry.Children,
			TotalCount:    entry.TotalCount,
			FromCache:     true,
		}
	}

	result, err := s.client.Expand(ctx, code, includeInactive)
	if err != nil {
		var svcErr *ServiceError
		if !asServiceError(err, &svcErr) {
			svcErr = NewServiceError(CategoryUnknown, err)
		}
		return &ExpansionResult{Code: code, Err: svcErr}
	}

	if result.SourceDisplay == "" {
		if display, err := s.client.Lookup(ctx, code); err == nil {
			result.SourceDisplay = display
		}
	}

	s.cache.Put(code, includeInactive, &CacheEntry{
		SourceDisplay: result.SourceDisplay,
		Children:      result.Children,
		TotalCount:    result.TotalCount,
		CachedAt:      time.Now(),
	})
	return result
}

// ProgressFunc is invoked after each completed batch item.
type ProgressFunc func(completed, total int, code string)

// ExpandBatch expands codes concurrently on a bounded worker pool and
// returns results keyed by code. Order of completion is irrelevant; a
// failed code carries its own error annotation and never prevents
// siblings from succeeding. There is no mid-batch cancellation beyond
// ctx: dispatched requests run to completion or failure.
func (s *Service) ExpandBatch(ctx context.Context, codes []string, includeInactive bool, progress ProgressFunc) map[string]*ExpansionResult {
	results := make(map[string]*ExpansionResult, len(codes))
	if len(codes) == 0 {
		return results
	}

	workers := s.maxWorkers
	if workers > len(codes) {
		workers = len(codes)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	completed := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for code := range jobs {
				result := s.Expand(ctx, code, includeInactive)

				mu.Lock()
				results[code] = result
				completed++
				if progress != nil {
					progress(completed, len(codes), code)
				}
				mu.Unlock()
			}
		}()
	}

	for _, code := range codes {
		jobs <- code
	}
	close(jobs)
	wg.Wait()

	s.log.Debug().
		Int("codes", len(codes)).
		Int("workers", workers).
		Msg("Completed batch expansion")

	return results
}
