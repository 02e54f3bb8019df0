// Package notify pushes trade lifecycle events to Telegram.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"webhook-trader/internal/events"
)

// Telegram relays bus events to a Telegram chat. Delivery is
// best-effort: failures are logged and never block trading.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	baseURL  string

	bus  *events.Bus
	subs []*events.Subscription
}

func NewTelegram(botToken, chatID string, bus *events.Bus) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  "https://api.telegram.org",
		bus:      bus,
	}
}

// Start subscribes to the event stream and relays until Stop.
func (t *Telegram) Start() {
	t.relay(events.EventOrderOpened, func(payload any) string {
		return "📈 " + describe(payload)
	})
	t.relay(events.EventPositionClosed, func(payload any) string {
		pc, ok := payload.(events.PositionClosed)
		if !ok {
			return ""
		}
		emoji := "✅"
		if pc.PnL < 0 {
			emoji = "🔻"
		}
		tag := ""
		if pc.Simulated {
			tag = " [DRY RUN]"
		}
		return fmt.Sprintf("%s Closed %s %s (%s)%s\nEntry %.2f → Exit %.2f\nP&L %.2f | Daily %.2f",
			emoji, strings.ToUpper(pc.Side), pc.Symbol, pc.Reason, tag, pc.Entry, pc.Exit, pc.PnL, pc.DailyPnL)
	})
	t.relay(events.EventRiskAlert, func(payload any) string {
		return "⚠️ " + describe(payload)
	})
}

func (t *Telegram) relay(e events.Event, format func(any) string) {
	sub := t.bus.Subscribe(e, 16)
	t.subs = append(t.subs, sub)
	go func() {
		for payload := range sub.C {
			if msg := format(payload); msg != "" {
				t.send(msg)
			}
		}
	}()
}

// Stop detaches from the bus; relay goroutines exit when their
// channels close.
func (t *Telegram) Stop() {
	for _, sub := range t.subs {
		sub.Close()
	}
}

// Announce sends a one-off message outside the event stream, e.g. the
// startup banner.
func (t *Telegram) Announce(text string) {
	go t.send(text)
}

func describe(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	return fmt.Sprintf("%+v", payload)
}

// send posts one message; errors are logged, never returned.
func (t *Telegram) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("[NOTIFY] build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := t.client.Do(req)
	if err != nil {
		log.Printf("[NOTIFY] telegram send failed: %v", err)
		return
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		log.Printf("[NOTIFY] telegram responded %d", res.StatusCode)
	}
}
