// Package stream connects the Ingestor to a realtime exchange feed: a
// reconnecting WebSocket client whose dial is guarded by a circuit
// breaker, a per-host rate limiter guarding the historical REST fallback,
// and exponential backoff between reconnect attempts. Grounded on kraken_ws.go's WebSocketClient, but
// collapsed from Kraken's multi-pair L1/L2/trade subscription model down to
// a single symbol's trade/kline stream feeding ohlcv.Ingestor directly.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker"

	"github.com/sawpanic/bottomrun/internal/ohlcv"
)

// wireMessage is the envelope this client expects from the upstream feed:
// either a trade tick or a closed kline, discriminated by Type.
type wireMessage struct {
	Type   string  `json:"type"` // "trade" | "kline_closed"
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Qty    float64 `json:"qty"`
	TS     int64   `json:"ts"` // unix millis

	Bar *wireBar `json:"bar,omitempty"`
}

type wireBar struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	TradeCnt  int64   `json:"trade_count"`
}

// Ingestor is the subset of ohlcv.Ingestor the client drives.
type Ingestor interface {
	OnTick(tick ohlcv.Tick)
	OnClose(ctx context.Context, bar ohlcv.Bar) error
}

// Client maintains a single reconnecting WebSocket subscription for one
// symbol and interval, feeding every tick and closed kline into an
// Ingestor. On every (re)connect it first pulls the delta since the last
// closed bar through hist, per the reconnect-before-replay rule.
type Client struct {
	url      string
	symbol   string
	interval string

	ingestor Ingestor
	hist     ohlcv.HistoricalSource
	breaker  *gobreaker.CircuitBreaker
	backoff  *Backoff

	mu           sync.Mutex
	conn         *websocket.Conn
	closeCh      chan struct{}
	lastCloseTS  time.Time
}

// New constructs a Client. url is the exchange WebSocket endpoint, symbol
// and interval identify the single stream this client subscribes to, and
// hist is used for the post-reconnect delta fetch.
func New(url, symbol, interval string, ingestor Ingestor, hist ohlcv.HistoricalSource) *Client {
	return &Client{
		url:      url,
		symbol:   symbol,
		interval: interval,
		ingestor: ingestor,
		hist:     hist,
		breaker:  NewBreaker("stream:" + symbol),
		backoff:  NewBackoff(),
		closeCh:  make(chan struct{}),
	}
}

// Run connects and reconnects until ctx is cancelled, driving backoff and
// the post-reconnect delta fetch on every (re)connection.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("symbol", c.symbol).Msg("stream disconnected, reconnecting")
		}

		delay := c.backoff.Next()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connectAndServe dials once, performs the reconnect-delta catch-up, then
// reads until the connection drops or ctx is cancelled.
func (c *Client) connectAndServe(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		u, perr := url.Parse(c.url)
		if perr != nil {
			return nil, fmt.Errorf("invalid stream url: %w", perr)
		}
		dialer := websocket.DefaultDialer
		dialer.HandshakeTimeout = 15 * time.Second
		conn, _, derr := dialer.DialContext(ctx, u.String(), nil)
		if derr != nil {
			return nil, fmt.Errorf("stream dial failed: %w", derr)
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return err
	}
	c.backoff.Reset()

	if err := c.catchUpDelta(ctx); err != nil {
		log.Warn().Err(err).Str("symbol", c.symbol).Msg("reconnect delta fetch failed, resuming live stream anyway")
	}

	return c.messageLoop(ctx)
}

// catchUpDelta fetches every closed bar since the last one this client
// observed, applying each through the Ingestor before live ticks resume.
// Per the reconnect policy, this runs on every (re)connect before the
// stream is trusted again; on the very first connect lastCloseTS is zero
// and it returns without calling FetchRange.
func (c *Client) catchUpDelta(ctx context.Context) error {
	c.mu.Lock()
	since := c.lastCloseTS
	c.mu.Unlock()

	if since.IsZero() {
		return nil
	}

	bars, err := c.hist.FetchRange(ctx, c.symbol, c.interval, since, time.Now())
	if err != nil {
		return err
	}
	for _, bar := range bars {
		if err := c.ingestor.OnClose(ctx, bar); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) messageLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.closeConn()
			return nil
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("stream connection not established")
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.closeConn()
			return err
		}

		if err := c.handleMessage(ctx, data); err != nil {
			log.Error().Err(err).Str("symbol", c.symbol).Msg("failed to process stream message")
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) error {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode stream message: %w", err)
	}

	switch msg.Type {
	case "trade":
		c.ingestor.OnTick(ohlcv.Tick{
			Symbol: msg.Symbol,
			Price:  msg.Price,
			Qty:    msg.Qty,
			TS:     time.UnixMilli(msg.TS),
		})
	case "kline_closed":
		if msg.Bar == nil {
			return fmt.Errorf("kline_closed message missing bar payload")
		}
		openTime := time.UnixMilli(msg.Bar.OpenTime)
		bar := ohlcv.Bar{
			Symbol:     c.symbol,
			Interval:   c.interval,
			OpenTime:   openTime,
			CloseTime:  ohlcv.CloseTimeFor(openTime, c.interval),
			Open:       msg.Bar.Open,
			High:       msg.Bar.High,
			Low:        msg.Bar.Low,
			Close:      msg.Bar.Close,
			Volume:     msg.Bar.Volume,
			TradeCount: msg.Bar.TradeCnt,
		}
		if err := c.ingestor.OnClose(ctx, bar); err != nil {
			return err
		}
		c.mu.Lock()
		if bar.CloseTime.After(c.lastCloseTS) {
			c.lastCloseTS = bar.CloseTime
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close tears down any active connection. It does not stop Run: Run treats
// the closed connection as a disconnect and reconnects until its context
// is cancelled.
func (c *Client) Close() error {
	c.closeConn()
	return nil
}
