package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WazirxConfig holds WazirX credentials and client tuning.
type WazirxConfig struct {
	APIKey     string
	APISecret  string
	Timeout    time.Duration // per-request bound; defaults to 10s
	RecvWindow int64         // ms
}

// Wazirx is a WazirX spot trading client.
type Wazirx struct {
	cfg        WazirxConfig
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	nowMillis func() int64 // test hook
}

// NewWazirx builds a client against the production endpoint.
func NewWazirx(cfg WazirxConfig) *Wazirx {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	return &Wazirx{
		cfg:        cfg,
		baseURL:    "https://api.wazirx.com",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// WazirX allows 10 req/s per key; stay under it.
		limiter:   rate.NewLimiter(rate.Limit(8), 8),
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// venueSymbol converts "BTC/USDT" into WazirX notation "btcusdt".
func venueSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}

func (w *Wazirx) FetchBalance(ctx context.Context) (Balance, error) {
	params := url.Values{}
	body, err := w.doSigned(ctx, http.MethodGet, "/sapi/v1/funds", params)
	if err != nil {
		return Balance{}, err
	}

	var funds []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	}
	if err := json.Unmarshal(body, &funds); err != nil {
		return Balance{}, fmt.Errorf("decode funds: %w", err)
	}

	for _, f := range funds {
		if !strings.EqualFold(f.Asset, "usdt") {
			continue
		}
		free := parseFloat(f.Free)
		locked := parseFloat(f.Locked)
		return Balance{Free: free, Total: free + locked}, nil
	}
	// Absent asset row means a zero balance, not an error.
	return Balance{}, nil
}

func (w *Wazirx) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", venueSymbol(symbol))
	body, err := w.doPublic(ctx, "/sapi/v1/ticker/24hr", params)
	if err != nil {
		return 0, err
	}

	var t struct {
		LastPrice string `json:"lastPrice"`
	}
	if err := json.Unmarshal(body, &t); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	last := parseFloat(t.LastPrice)
	if last <= 0 {
		return 0, fmt.Errorf("ticker for %s has no last price", symbol)
	}
	return last, nil
}

func (w *Wazirx) FetchMarket(ctx context.Context, symbol string) (Market, error) {
	body, err := w.doPublic(ctx, "/sapi/v1/exchangeInfo", url.Values{})
	if err != nil {
		return Market{}, err
	}

	var info struct {
		Symbols []struct {
			Symbol             string `json:"symbol"`
			BaseAssetPrecision int    `json:"baseAssetPrecision"`
			QuotePrecision     int    `json:"quoteAssetPrecision"`
			Filters            []struct {
				FilterType  string `json:"filterType"`
				MinQty      string `json:"minQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return Market{}, fmt.Errorf("decode exchange info: %w", err)
	}

	want := venueSymbol(symbol)
	for _, s := range info.Symbols {
		if s.Symbol != want {
			continue
		}
		m := Market{
			Symbol:            symbol,
			QuantityPrecision: s.BaseAssetPrecision,
			PricePrecision:    s.QuotePrecision,
			// Venue minimum order value is ~1 USDT; filters may tighten it.
			MinNotional: 1.0,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				if v := parseFloat(f.MinQty); v > 0 {
					m.MinQuantity = v
				}
			case "NOTIONAL", "MIN_NOTIONAL":
				if v := parseFloat(f.MinNotional); v > 0 {
					m.MinNotional = v
				}
			}
		}
		return m, nil
	}
	return Market{}, &VenueError{Code: http.StatusNotFound, Msg: "unknown symbol " + symbol}
}

func (w *Wazirx) SubmitLimitOrder(ctx context.Context, symbol string, side Side, qty, price float64) (string, error) {
	params := url.Values{}
	params.Set("symbol", venueSymbol(symbol))
	params.Set("side", string(side))
	params.Set("type", "limit")
	params.Set("quantity", formatFloat(qty))
	params.Set("price", formatFloat(price))

	body, err := w.doSigned(ctx, http.MethodPost, "/sapi/v1/order", params)
	if err != nil {
		return "", err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

func (w *Wazirx) SubmitMarketOrder(ctx context.Context, symbol string, side Side, qty float64) (string, error) {
	// WazirX has no true market type; cross the spread with an aggressive
	// limit priced off the last trade.
	last, err := w.FetchTicker(ctx, symbol)
	if err != nil {
		return "", err
	}
	price := last * 1.01
	if side == SideSell {
		price = last * 0.99
	}
	mkt, err := w.FetchMarket(ctx, symbol)
	if err != nil {
		return "", err
	}
	return w.SubmitLimitOrder(ctx, symbol, side, qty, RoundToPrecision(price, mkt.PricePrecision))
}

func (w *Wazirx) FetchOrderStatus(ctx context.Context, orderID, symbol string) (OrderState, error) {
	params := url.Values{}
	params.Set("orderId", orderID)
	body, err := w.doSigned(ctx, http.MethodGet, "/sapi/v1/order", params)
	if err != nil {
		return OrderState{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderState{}, fmt.Errorf("decode order status: %w", err)
	}
	return OrderState{
		Status:    mapStatus(resp.Status),
		FilledQty: parseFloat(resp.ExecutedQty),
	}, nil
}

func (w *Wazirx) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", venueSymbol(symbol))
	params.Set("orderId", orderID)
	_, err := w.doSigned(ctx, http.MethodDelete, "/sapi/v1/order", params)
	return err
}

type orderResponse struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
}

// mapStatus normalizes WazirX order states (wait/done/cancel).
func mapStatus(s string) OrderStatus {
	switch strings.ToLower(s) {
	case "wait", "idle":
		return StatusOpen
	case "done":
		return StatusFilled
	case "cancel":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// doPublic performs an unauthenticated GET.
func (w *Wazirx) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := w.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return w.send(ctx, req)
}

// doSigned signs the query and performs the HTTP request.
func (w *Wazirx) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if w.cfg.APIKey == "" || w.cfg.APISecret == "" {
		return nil, errors.New("wazirx: API key/secret required")
	}

	params.Set("timestamp", strconv.FormatInt(w.nowMillis(), 10))
	params.Set("recvWindow", strconv.FormatInt(w.cfg.RecvWindow, 10))
	params.Set("signature", sign(params.Encode(), w.cfg.APISecret))

	var (
		req *http.Request
		err error
	)
	encoded := params.Encode()
	endpoint := w.baseURL + path
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", w.cfg.APIKey)

	return w.send(ctx, req)
}

func (w *Wazirx) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 500 {
		return nil, fmt.Errorf("wazirx %s %s status %d: %s", req.Method, req.URL.Path, res.StatusCode, string(body))
	}
	if res.StatusCode >= 400 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, &VenueError{Code: res.StatusCode, Msg: msg}
	}
	return body, nil
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// RoundToPrecision rounds v to the given number of decimal places.
func RoundToPrecision(v float64, places int) float64 {
	pow := math.Pow10(places)
	return math.Round(v*pow) / pow
}

// FloorToPrecision truncates v down to the given number of decimal places.
// Sizing must never round up: that could push notional past the risk cap.
func FloorToPrecision(v float64, places int) float64 {
	pow := math.Pow10(places)
	return math.Floor(v*pow) / pow
}
