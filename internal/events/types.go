package events

// Event enumerates high-level topics inside the trader.
type Event string

const (
	EventSignalReceived Event = "signal.received"
	EventSignalRejected Event = "signal.rejected"
	EventOrderOpened    Event = "order.opened"
	EventOrderFilled    Event = "order.filled"
	EventOrderCancelled Event = "order.cancelled"
	EventPositionClosed Event = "position.closed"
	EventRiskAlert      Event = "risk_alert"
)

// PositionClosed is published when the monitor realizes P&L on a close.
type PositionClosed struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Entry     float64 `json:"entry"`
	Exit      float64 `json:"exit"`
	PnL       float64 `json:"pnl"`
	Reason    string  `json:"reason"`
	DailyPnL  float64 `json:"daily_pnl"`
	Simulated bool    `json:"simulated"`
}
