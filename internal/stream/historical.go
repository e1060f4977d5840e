package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sawpanic/bottomrun/internal/ohlcv"
)

// wireHistBar is the REST backfill endpoint's per-bar payload shape.
type wireHistBar struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
	Trades   int64   `json:"trade_count"`
}

// RESTSource implements ohlcv.HistoricalSource against a REST klines
// endpoint, rate-limited per host so gap repair and reconnect catch-up
// never exceed the exchange's request budget.
type RESTSource struct {
	baseURL string
	host    string
	client  *http.Client
	limiter *Limiter
}

// NewRESTSource builds a RESTSource. rps and burst bound requests against
// host, shared across every symbol fetched from it.
func NewRESTSource(baseURL string, rps float64, burst int) *RESTSource {
	u, _ := url.Parse(baseURL)
	host := baseURL
	if u != nil && u.Host != "" {
		host = u.Host
	}
	return &RESTSource{
		baseURL: baseURL,
		host:    host,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: NewLimiter(rps, burst),
	}
}

// FetchRange retrieves closed bars for [from, to], respecting the host rate
// limit. Satisfies ohlcv.HistoricalSource.
func (s *RESTSource) FetchRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]ohlcv.Bar, error) {
	if err := s.limiter.Wait(ctx, s.host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("to", strconv.FormatInt(to.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build klines request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("klines request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines request returned %d", resp.StatusCode)
	}

	var wire []wireHistBar
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode klines response: %w", err)
	}

	bars := make([]ohlcv.Bar, 0, len(wire))
	for _, w := range wire {
		openTime := time.UnixMilli(w.OpenTime)
		bars = append(bars, ohlcv.Bar{
			Symbol:     symbol,
			Interval:   interval,
			OpenTime:   openTime,
			CloseTime:  ohlcv.CloseTimeFor(openTime, interval),
			Open:       w.Open,
			High:       w.High,
			Low:        w.Low,
			Close:      w.Close,
			Volume:     w.Volume,
			TradeCount: w.Trades,
			IsClosed:   true,
		})
	}
	return bars, nil
}
