// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package seeding materializes synthetic datasets into the database backend
// so a fresh deployment has rows to search. Jobs run in the background with
// bounded concurrency and expose progress snapshots for the API.
package seeding

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
)

// Sink receives generated rows. *postgres.Provider satisfies it.
type Sink interface {
	UpsertResults(ctx context.Context, dataset string, results []*search.SearchResult) error
}

// CacheInvalidator drops cached result sets after a seed lands, so stale
// cached pages do not shadow the new rows. search.CacheBackend satisfies it.
type CacheInvalidator interface {
	Clear(ctx context.Context, pattern string) error
}

// Defaults for the seeder's tunables.
const (
	DefaultWorkers   = 4
	DefaultBatchSize = 100

	// MaxRows bounds one request; the generator is synthetic, anything
	// larger is a typo.
	MaxRows = 1_000_000
)

var datasetNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// JobState describes where a seeding job is in its lifecycle.
type JobState string

// Job states.
const (
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)

// Job is a point-in-time snapshot of one seeding job.
type Job struct {
	ID         string     `json:"id"`
	Dataset    string     `json:"dataset"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	State      JobState   `json:"state"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Request asks for Rows synthetic documents in Dataset.
type Request struct {
	Dataset string `json:"dataset"`
	Rows    int    `json:"rows"`
}

// Validate rejects requests the seeder cannot honor.
func (r Request) Validate() error {
	if r.Dataset == "" {
		return fmt.Errorf("%w: dataset is required", search.ErrInvalidConfig)
	}
	if !datasetNameRe.MatchString(r.Dataset) {
		return fmt.Errorf("%w: invalid dataset name %q", search.ErrInvalidConfig, r.Dataset)
	}
	if r.Rows <= 0 {
		return fmt.Errorf("%w: rows must be positive", search.ErrInvalidConfig)
	}
	if r.Rows > MaxRows {
		return fmt.Errorf("%w: rows %d exceeds maximum %d", search.ErrInvalidConfig, r.Rows, MaxRows)
	}
	return nil
}

// Seeder generates synthetic documents and writes them through a Sink.
// All methods are safe for concurrent use.
type Seeder struct {
	sink      Sink
	cache     CacheInvalidator
	workers   int
	batchSize int

	mu   sync.Mutex
	jobs map[string]*Job
}

// Option customizes a Seeder.
type Option func(*Seeder)

// WithCache clears the cache namespace after each successful seed.
func WithCache(cache CacheInvalidator) Option {
	return func(s *Seeder) { s.cache = cache }
}

// WithWorkers bounds the number of concurrent batch writers.
func WithWorkers(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithBatchSize sets how many rows each upsert carries.
func WithBatchSize(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New builds a Seeder writing through sink.
func New(sink Sink, opts ...Option) *Seeder {
	s := &Seeder{
		sink:      sink,
		workers:   DefaultWorkers,
		batchSize: DefaultBatchSize,
		jobs:      make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartJob launches a background seeding job and returns its id. The job is
// detached from ctx: it outlives the HTTP request that started it.
func (s *Seeder) StartJob(ctx context.Context, req Request) (string, error) {
	id, err := s.register(req)
	if err != nil {
		return "", err
	}

	jobCtx := context.WithoutCancel(ctx)
	go func() {
		err := s.run(jobCtx, id, req)
		s.finish(id, err)
		if err != nil {
			logger.Errorf("Seeding job %s for dataset %q failed: %v", id, req.Dataset, err)
			return
		}
		logger.Infof("Seeding job %s wrote %d rows into dataset %q", id, req.Rows, req.Dataset)
	}()
	return id, nil
}

// Seed runs one seeding job synchronously and returns its final snapshot.
// The CLI uses this surface; the API goes through StartJob.
func (s *Seeder) Seed(ctx context.Context, req Request) (*Job, error) {
	id, err := s.register(req)
	if err != nil {
		return nil, err
	}

	runErr := s.run(ctx, id, req)
	s.finish(id, runErr)

	job, _ := s.Progress(id)
	if runErr != nil {
		return job, fmt.Errorf("seeding dataset %q: %w", req.Dataset, runErr)
	}
	return job, nil
}

// Progress returns a snapshot of the job, or ErrJobNotFound.
func (s *Seeder) Progress(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", search.ErrJobNotFound, id)
	}
	snapshot := *job
	return &snapshot, nil
}

func (s *Seeder) register(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.jobs[id] = &Job{
		ID:        id,
		Dataset:   req.Dataset,
		Total:     req.Rows,
		State:     JobStateRunning,
		StartedAt: time.Now().UTC(),
	}
	s.mu.Unlock()
	return id, nil
}

// run fans the row range out over worker goroutines in batches. The first
// failing batch cancels the rest.
func (s *Seeder) run(ctx context.Context, id string, req Request) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < req.Rows; start += s.batchSize {
		n := min(s.batchSize, req.Rows-start)
		offset := start
		g.Go(func() error {
			rows := Generate(req.Dataset, offset, n)
			if err := s.sink.UpsertResults(ctx, req.Dataset, rows); err != nil {
				return fmt.Errorf("writing batch at offset %d: %w", offset, err)
			}
			s.advance(id, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if s.cache != nil {
		// Cached result sets predate the new rows.
		if err := s.cache.Clear(ctx, ""); err != nil {
			logger.Warnf("Clearing cache after seeding %q: %v", req.Dataset, err)
		}
	}
	return nil
}

func (s *Seeder) advance(id string, n int) {
	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		job.Completed += n
	}
	s.mu.Unlock()
}

func (s *Seeder) finish(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.FinishedAt = &now
	if err != nil {
		job.State = JobStateFailed
		job.Error = err.Error()
		return
	}
	job.State = JobStateDone
}
