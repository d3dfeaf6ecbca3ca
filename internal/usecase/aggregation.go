package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	domrepo "MarketPull/internal/domain/repository"
	pipemetrics "MarketPull/internal/service/metrics"
	applogger "MarketPull/pkg/logger"
)

// AggregationPipeline runs the candle builder and the roll-up chain in
// strict order on a fixed cadence. A failed stage is logged and retried on
// the next cycle; recompute-and-replace semantics make that safe.
type AggregationPipeline struct {
	builder *CandleBuilder
	stages  []*RollupReducer

	interval     time.Duration
	initialDelay time.Duration

	metrics domrepo.Metrics
	l       *applogger.Logger

	mu       sync.Mutex // serializes pipeline passes (loop vs manual trigger)
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewAggregationPipeline(
	builder *CandleBuilder,
	stages []*RollupReducer,
	interval, initialDelay time.Duration,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *AggregationPipeline {
	if interval <= 0 {
		interval = time.Minute
	}
	pipemetrics.Register()
	return &AggregationPipeline{
		builder:      builder,
		stages:       stages,
		interval:     interval,
		initialDelay: initialDelay,
		metrics:      metrics,
		l:            l,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the aggregation loop. The initial delay lets raw ticks
// accumulate before the first pass.
func (p *AggregationPipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.l != nil {
			p.l.Info("aggregation loop starting",
				applogger.Duration("interval", p.interval),
				applogger.Duration("initial_delay", p.initialDelay),
			)
		}
		if !p.wait(ctx, p.initialDelay) {
			return
		}
		for {
			if err := p.RunOnce(ctx); err != nil {
				if p.l != nil {
					p.l.Error("aggregation pass error", applogger.Error(err))
				}
			}
			if !p.wait(ctx, p.interval) {
				return
			}
		}
	}()
}

// Stop signals the loop and waits for the in-flight pass to finish.
func (p *AggregationPipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// RunOnce executes one full pipeline pass: builder first, then the five
// roll-up stages in order. Each stage observes the committed output of the
// previous one. Returns the last stage error, if any; earlier failures do
// not stop later stages.
func (p *AggregationPipeline) RunOnce(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	var lastErr error

	if err := p.runStage(ctx, "1m_builder", func() error { return p.builder.Run(ctx, now) }); err != nil {
		lastErr = fmt.Errorf("candle builder: %w", err)
	}
	for _, stage := range p.stages {
		stage := stage
		name := fmt.Sprintf("%s_to_%s", stage.Stage().Source, stage.Stage().Target)
		if err := p.runStage(ctx, name, func() error { return stage.Run(ctx, now) }); err != nil {
			lastErr = fmt.Errorf("stage %s: %w", name, err)
		}
	}

	pipemetrics.PipelineRuns.Inc()
	if p.l != nil {
		p.l.Info("aggregation pass complete", applogger.Duration("took", time.Since(now)))
	}
	return lastErr
}

func (p *AggregationPipeline) runStage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	pipemetrics.StageLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		pipemetrics.StageErrors.WithLabelValues(name).Inc()
		p.metrics.RecordError("aggregation_" + name)
		if p.l != nil {
			p.l.Error("pipeline stage failed", applogger.String("stage", name), applogger.Error(err))
		}
	}
	return err
}

// wait sleeps for d, returning false if the stop signal or context fired.
func (p *AggregationPipeline) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-p.stopCh:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
