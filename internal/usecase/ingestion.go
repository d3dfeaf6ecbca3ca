package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	icache "MarketPull/internal/service/cache"
	applogger "MarketPull/pkg/logger"
)

const latencyRingSize = 100

// PayloadSink is one destination for per-tick payloads. Sinks fail
// independently; an error on one never blocks the others.
type PayloadSink interface {
	Name() string
	Write(ctx context.Context, p *models.MarketPayload) error
}

// IngestionService is the fetch loop: every interval it pulls one tick per
// tracked symbol, derives the indicator/depth payload, caches the latest
// view per symbol, and writes each payload to all sinks concurrently.
type IngestionService struct {
	source   domrepo.TickSource
	sinks    []PayloadSink
	symbols  []string
	interval time.Duration
	depthN   int
	latest   icache.BytesCache
	latest0  time.Duration // ttl for the latest-payload cache
	metrics  domrepo.Metrics
	l        *applogger.Logger

	mu            sync.Mutex
	lastFetchTime time.Time
	latencies     []float64 // seconds, ring of last 100 cycles

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewIngestionService(
	source domrepo.TickSource,
	sinks []PayloadSink,
	symbols []string,
	interval time.Duration,
	depthTopN int,
	latest icache.BytesCache,
	latestTTL time.Duration,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *IngestionService {
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	if depthTopN <= 0 {
		depthTopN = 5
	}
	if latest == nil {
		latest = icache.NewTTLCache()
	}
	return &IngestionService{
		source:   source,
		sinks:    sinks,
		symbols:  symbols,
		interval: interval,
		depthN:   depthTopN,
		latest:   latest,
		latest0:  latestTTL,
		metrics:  metrics,
		l:        l,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the ingestion loop.
func (s *IngestionService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.l != nil {
			s.l.Info("ingestion loop starting",
				applogger.Strings("symbols", s.symbols),
				applogger.Duration("interval", s.interval),
			)
		}
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}

			start := time.Now()
			s.runCycle(ctx)
			elapsed := time.Since(start)
			s.recordCycle(elapsed)

			remaining := s.interval - elapsed
			if remaining > 0 && !s.wait(ctx, remaining) {
				return
			}
		}
	}()
}

// Stop signals the loop and waits for the in-flight cycle to finish.
func (s *IngestionService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Symbols returns the tracked symbol list.
func (s *IngestionService) Symbols() []string { return s.symbols }

// runCycle fetches all symbols and fans payload writes out to the sinks.
// Per-symbol and per-sink failures are logged and isolated; the cycle
// always completes.
func (s *IngestionService) runCycle(ctx context.Context) {
	ticks, err := s.source.FetchTicks(ctx, s.symbols)
	if err != nil {
		s.metrics.RecordError("fetch_cycle")
		if s.l != nil {
			s.l.Error("tick fetch failed", applogger.Error(err))
		}
		return
	}

	var wg sync.WaitGroup
	for _, t := range ticks {
		if t == nil {
			continue
		}
		payload := BuildMarketPayload(t, s.depthN)
		s.cacheLatest(payload)
		s.metrics.RecordLastPrice(payload.Symbol, payload.LastPrice)

		wg.Add(1)
		go func(p *models.MarketPayload) {
			defer wg.Done()
			s.writeToSinks(ctx, p)
		}(payload)
	}
	wg.Wait()

	if s.l != nil {
		s.l.Info("ingestion cycle processed", applogger.Int("snapshots", len(ticks)))
	}
}

func (s *IngestionService) writeToSinks(ctx context.Context, p *models.MarketPayload) {
	var wg sync.WaitGroup
	for _, sink := range s.sinks {
		wg.Add(1)
		go func(sk PayloadSink) {
			defer wg.Done()
			start := time.Now()
			if err := sk.Write(ctx, p); err != nil {
				s.metrics.RecordError("sink_" + sk.Name())
				if s.l != nil {
					s.l.Error("sink write failed",
						applogger.String("sink", sk.Name()),
						applogger.String("symbol", p.Symbol),
						applogger.Error(err),
					)
				}
				return
			}
			s.metrics.RecordMessageSent(sk.Name(), p.Symbol)
			s.metrics.RecordLatency("sink_"+sk.Name(), time.Since(start).Seconds())
		}(sink)
	}
	wg.Wait()
}

func (s *IngestionService) cacheLatest(p *models.MarketPayload) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.latest.SetBytes("latest:"+p.Symbol, b, s.latest0); err != nil && s.l != nil {
		s.l.Warn("latest payload cache set failed", applogger.Error(err))
	}
}

// LatestPayload returns the most recent payload for symbol, or nil when the
// symbol is not tracked or no cycle has completed yet.
func (s *IngestionService) LatestPayload(symbol string) *models.MarketPayload {
	b, ok, err := s.latest.GetBytes("latest:" + symbol)
	if err != nil || !ok {
		return nil
	}
	var p models.MarketPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil
	}
	return &p
}

// Stats reports loop health: last fetch time plus the rolling latency ring.
// Dashboards use this to tell "no recent data" apart from "pipeline down".
func (s *IngestionService) Stats() models.IngestStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.IngestStats{
		Symbols:         s.symbols,
		IntervalSeconds: int(s.interval.Seconds()),
		LastFetchTime:   s.lastFetchTime,
		TrackedSymbols:  s.trackedCount(),
	}
	if len(s.latencies) > 0 {
		sum := 0.0
		for _, v := range s.latencies {
			sum += v
		}
		stats.AvgFetchLatencyMs = round2(sum / float64(len(s.latencies)) * 1000)
	}
	recent := s.latencies
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	stats.RecentLatenciesMs = make([]float64, 0, len(recent))
	for _, v := range recent {
		stats.RecentLatenciesMs = append(stats.RecentLatenciesMs, round2(v*1000))
	}
	return stats
}

func (s *IngestionService) trackedCount() int {
	n := 0
	for _, sym := range s.symbols {
		if _, ok, err := s.latest.GetBytes("latest:" + sym); err == nil && ok {
			n++
		}
	}
	return n
}

func (s *IngestionService) recordCycle(elapsed time.Duration) {
	s.mu.Lock()
	s.lastFetchTime = time.Now()
	s.latencies = append(s.latencies, elapsed.Seconds())
	if len(s.latencies) > latencyRingSize {
		s.latencies = s.latencies[1:]
	}
	s.mu.Unlock()
	s.metrics.RecordLatency("ingest_cycle", elapsed.Seconds())
}

func (s *IngestionService) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
