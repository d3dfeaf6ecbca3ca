package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a MarketStream backed by the Binance combined trade
// WebSocket feed.
type Stream struct {
	baseURL        string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex // guards conn and connected across Reconnect
	conn      *websocket.Conn
	connected bool
}

// NewStream creates a Binance trade stream for the given symbols.
func NewStream(baseURL string, symbols []string, reconnectDelay, pingInterval time.Duration) drepo.MarketStream {
	return &Stream{
		baseURL:        strings.TrimRight(baseURL, "/"),
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the combined stream endpoint with all symbols subscribed
// up front, e.g. /stream?streams=btcusdt@trade/ethusdt@trade.
func (s *Stream) Connect(ctx context.Context) error {
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@trade")
	}
	u := fmt.Sprintf("%s/stream?streams=%s", s.baseURL, strings.Join(streams, "/"))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("binance stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Subscribe is a no-op: the combined-stream URL carries the subscriptions.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.current() == nil {
		return fmt.Errorf("binance stream not connected")
	}
	return nil
}

// current returns the live connection, nil when disconnected.
func (s *Stream) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	return s.conn
}

type wsTrade struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Qty    string `json:"q"`
	TimeMs int64  `json:"T"`
}

type wsEnvelope struct {
	Stream string  `json:"stream"`
	Data   wsTrade `json:"data"`
}

// Read streams Trade events and errors for the connection that is live at
// call time. Both goroutines are bound to that connection: the read loop exits
// on the first read failure and the ping loop exits with it, so Reconnect
// followed by a fresh Read never races the old pair.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})
	conn := s.current()

	// ping loop, stops when the read loop exits
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteMessage(websocket.PongMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(trades)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- fmt.Errorf("binance stream conn nil")
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("binance stream read: %w", err)
				return
			}
			var env wsEnvelope
			if err := json.Unmarshal(b, &env); err != nil {
				// ignore non-trade frames
				continue
			}
			if env.Data.Symbol == "" {
				continue
			}
			price, pok := parseFloat(env.Data.Price)
			qty, qok := parseFloat(env.Data.Qty)
			if !pok || !qok {
				continue
			}
			trade := &models.Trade{
				Symbol:    env.Data.Symbol,
				Timestamp: env.Data.TimeMs / 1000,
				Price:     price,
				Volume:    qty,
			}
			select {
			case trades <- trade:
			default:
				// drop on backpressure
			}
		}
	}()

	return trades, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.connected = false
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
