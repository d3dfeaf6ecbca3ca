package usecase

import (
	"context"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	mid "MarketPull/internal/middleware"
)

// TradeCollector consumes the live trade stream and feeds every trade through
// the realtime pipeline, or straight into the processor when no pipeline is
// configured.
type TradeCollector struct {
	stream  drepo.MarketStream
	proc    *TradeProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewTradeCollector creates a new TradeCollector instance.
func NewTradeCollector(stream drepo.MarketStream, proc *TradeProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *TradeCollector {
	return &TradeCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	trCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, trCh, errCh)
	return nil
}

// consume processes trades until the context is cancelled. The stream's read
// loop exits after the first failure and closes both channels, so every error
// or channel close is followed by a reconnect and a fresh Read; the stale
// channels are never selected on again.
func (c *TradeCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.metrics.RecordError("stream")
			}
			// Drain trades the dying read loop already buffered.
			for t := range trCh {
				c.handle(ctx, t)
			}
			if trCh, errCh = c.resume(ctx); trCh == nil {
				return
			}
		case t, ok := <-trCh:
			if !ok {
				if trCh, errCh = c.resume(ctx); trCh == nil {
					return
				}
				continue
			}
			c.handle(ctx, t)
		}
	}
}

func (c *TradeCollector) handle(ctx context.Context, t *models.Trade) {
	if t == nil {
		return
	}
	if c.pipe != nil {
		_ = c.pipe.Process(ctx, t)
	} else {
		_ = c.proc.Process(ctx, t)
	}
	c.metrics.RecordLastPrice(t.Symbol, t.Price)
}

// resume re-establishes the stream and returns the new connection's channels.
// Reconnect applies the stream's own backoff delay, so failures retry without
// spinning. Returns nil channels once the context is cancelled.
func (c *TradeCollector) resume(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			continue
		}
		return c.stream.Read(ctx)
	}
}

func (c *TradeCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying TradeProcessor for lifecycle management.
func (c *TradeCollector) Processor() *TradeProcessor { return c.proc }

// Shutdown stops pipeline and closes stream.
func (c *TradeCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
