// Package batch runs campaign jobs through an injected pipeline with a
// bounded worker pool and aggregates per-job outcomes.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/adlift/adlift/pkg/queue"
)

// PipelineFunc runs the full creative pipeline for one campaign brief.
// It is supplied by the caller; this package only cares whether it
// returns an error.
type PipelineFunc func(ctx context.Context, briefPath string) error

// Config tunes the worker pool.
type Config struct {
	// MaxWorkers bounds concurrent pipeline executions.
	MaxWorkers int

	// JobTimeout caps a single pipeline call. Zero means no limit, which
	// lets a hung job block a worker slot indefinitely.
	JobTimeout time.Duration

	// RateLimit throttles pipeline dispatches per second. Zero disables
	// throttling.
	RateLimit rate.Limit

	// PollInterval is how long queue-draining workers sleep when the
	// queue has no pending jobs.
	PollInterval time.Duration
}

// DefaultConfig returns the pool defaults: 4 workers, no timeout, no
// rate limit.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   4,
		PollInterval: 500 * time.Millisecond,
	}
}

func (c Config) normalized() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

// Result is the outcome of one campaign run. Duration is wall-clock
// seconds measured around the pipeline call itself.
type Result struct {
	Campaign  string  `json:"campaign"`
	BriefPath string  `json:"brief_path"`
	Success   bool    `json:"success"`
	Duration  float64 `json:"duration"`
	Error     string  `json:"error,omitempty"`
}

// Processor executes campaign briefs against the pipeline. Results
// accumulate across calls in completion order.
type Processor struct {
	cfg      Config
	pipeline PipelineFunc
	limiter  *rate.Limiter
	runID    string
	log      *zap.Logger

	mu      sync.Mutex
	results []Result
}

// New builds a processor around the given pipeline.
func New(cfg Config, pipeline PipelineFunc, log *zap.Logger) *Processor {
	cfg = cfg.normalized()
	if log == nil {
		log = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(cfg.RateLimit, 1)
	}
	runID := uuid.NewString()
	return &Processor{
		cfg:      cfg,
		pipeline: pipeline,
		limiter:  limiter,
		runID:    runID,
		log:      log.With(zap.String("run_id", runID)),
	}
}

// RunID identifies this processor's batch run in logs and reports.
func (p *Processor) RunID() string { return p.runID }

// ProcessDirectory discovers campaign briefs (*.json, non-recursive) in
// directory and runs each through the pipeline, at most MaxWorkers at a
// time. It blocks until every brief has finished and returns the per-brief
// results in completion order. One brief's failure or panic never aborts
// its siblings.
func (p *Processor) ProcessDirectory(ctx context.Context, directory string) ([]Result, error) {
	briefs, err := DiscoverBriefs(directory)
	if err != nil {
		return nil, err
	}
	if len(briefs) == 0 {
		p.log.Info("no campaign briefs found", zap.String("directory", directory))
		return nil, nil
	}
	p.log.Info("batch started",
		zap.String("directory", directory),
		zap.Int("campaigns", len(briefs)),
		zap.Int("max_workers", p.cfg.MaxWorkers))

	start := time.Now()
	first := len(p.Results())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxWorkers)
	for _, brief := range briefs {
		g.Go(func() error {
			p.record(p.runOne(gctx, brief))
			return nil
		})
	}
	_ = g.Wait()

	results := p.Results()[first:]
	p.log.Info("batch finished",
		zap.Int("campaigns", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// Run drains q with MaxWorkers concurrent workers until ctx is cancelled.
// Each claimed job runs through the pipeline and its terminal status is
// written back to the queue.
func (p *Processor) Run(ctx context.Context, q *queue.Queue) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.MaxWorkers; i++ {
		g.Go(func() error {
			for {
				job, ok := q.ClaimNext()
				if !ok {
					select {
					case <-gctx.Done():
						return nil
					case <-time.After(p.cfg.PollInterval):
						continue
					}
				}
				res := p.runOne(gctx, job.BriefPath)
				p.record(res)
				if res.Success {
					q.UpdateStatus(job.ID, queue.StatusCompleted, "", map[string]any{
						"campaign": res.Campaign,
						"duration": res.Duration,
					})
				} else {
					q.UpdateStatus(job.ID, queue.StatusFailed, res.Error, nil)
				}
				if gctx.Err() != nil {
					return nil
				}
			}
		})
	}
	_ = g.Wait()
}

// runOne executes the pipeline for a single brief. Pipeline panics are
// contained here and reported as failed results.
func (p *Processor) runOne(ctx context.Context, briefPath string) (res Result) {
	res = Result{
		Campaign:  campaignName(briefPath),
		BriefPath: briefPath,
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	runCtx := ctx
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start).Seconds()
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("pipeline panic: %v", r)
			p.log.Error("pipeline panicked",
				zap.String("campaign", res.Campaign),
				zap.Any("panic", r))
		}
	}()

	err := p.pipeline(runCtx, briefPath)
	if err != nil {
		res.Error = err.Error()
		p.log.Warn("campaign failed",
			zap.String("campaign", res.Campaign),
			zap.Error(err))
		return res
	}
	res.Success = true
	p.log.Info("campaign processed", zap.String("campaign", res.Campaign))
	return res
}

func (p *Processor) record(r Result) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
}

// Results returns a copy of all accumulated results in completion order.
func (p *Processor) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}

// SuccessRate returns the percentage of accumulated results that
// succeeded, 0 when nothing has run yet.
func (p *Processor) SuccessRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return 0
	}
	ok := 0
	for _, r := range p.results {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(p.results)) * 100
}

// DiscoverBriefs lists *.json files directly inside directory, sorted by
// name for deterministic submission order.
func DiscoverBriefs(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("read brief directory %s: %w", directory, err)
	}
	var briefs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		briefs = append(briefs, filepath.Join(directory, e.Name()))
	}
	sort.Strings(briefs)
	return briefs, nil
}

// campaignName extracts the campaign_name field from a brief file,
// falling back to the brief's base filename.
func campaignName(briefPath string) string {
	fallback := strings.TrimSuffix(filepath.Base(briefPath), filepath.Ext(briefPath))
	data, err := os.ReadFile(briefPath)
	if err != nil {
		return fallback
	}
	var brief struct {
		CampaignName string `json:"campaign_name"`
	}
	if err := json.Unmarshal(data, &brief); err != nil || brief.CampaignName == "" {
		return fallback
	}
	return brief.CampaignName
}
