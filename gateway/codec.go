package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/command"
	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
)

// wireEnvelope 网关消息包装：type 判别 data 的具体负载。
type wireEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wireOrderEvent 订单事件的线格式。价格字段用字符串承载十进制。
type wireOrderEvent struct {
	OrderID          string `json:"order_id"`
	AccountID        string `json:"account_id"`
	BrokerOrderID    string `json:"broker_order_id,omitempty"`
	Symbol           string `json:"symbol,omitempty"`
	Side             string `json:"side,omitempty"`
	OrdType          string `json:"ord_type,omitempty"`
	Quantity         int64  `json:"quantity,omitempty"`
	Price            string `json:"price,omitempty"`
	TimeInForce      string `json:"time_in_force,omitempty"`
	ExpireTime       string `json:"expire_time,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Response         string `json:"response,omitempty"`
	ExecutionID      string `json:"execution_id,omitempty"`
	BrokerPositionID string `json:"broker_position_id,omitempty"`
	FilledQty        int64  `json:"filled_qty,omitempty"`
	AvgPrice         string `json:"avg_price,omitempty"`
	ModifiedQuantity int64  `json:"modified_quantity,omitempty"`
	ModifiedPrice    string `json:"modified_price,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// wireAccountState 账户事件的线格式。
type wireAccountState struct {
	AccountID        string `json:"account_id"`
	Brokerage        string `json:"brokerage"`
	Currency         string `json:"currency"`
	CashBalance      string `json:"cash_balance"`
	CashStartDay     string `json:"cash_start_day"`
	CashActivityDay  string `json:"cash_activity_day"`
	MarginUsed       string `json:"margin_used"`
	MarginRatio      string `json:"margin_ratio"`
	MarginCallStatus string `json:"margin_call_status"`
	Timestamp        string `json:"timestamp"`
}

// wireCommand 出站命令的线格式。
type wireCommand struct {
	OrderID          string `json:"order_id,omitempty"`
	AccountID        string `json:"account_id,omitempty"`
	Symbol           string `json:"symbol,omitempty"`
	Side             string `json:"side,omitempty"`
	OrdType          string `json:"ord_type,omitempty"`
	Quantity         int64  `json:"quantity,omitempty"`
	Price            string `json:"price,omitempty"`
	TimeInForce      string `json:"time_in_force,omitempty"`
	ExpireTime       string `json:"expire_time,omitempty"`
	Label            string `json:"label,omitempty"`
	Reason           string `json:"reason,omitempty"`
	ModifiedQuantity int64  `json:"modified_quantity,omitempty"`
	ModifiedPrice    string `json:"modified_price,omitempty"`
	StopLossOrderID  string `json:"stop_loss_order_id,omitempty"`
	TakeProfitID     string `json:"take_profit_order_id,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// ParseEvent 解析网关回流消息为事件。
func ParseEvent(raw []byte) (event.Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	if env.Type == "AccountState" {
		var w wireAccountState
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("parse account state: %w", err)
		}
		ts, err := parseTime(w.Timestamp)
		if err != nil {
			return nil, err
		}
		return event.NewAccountState(
			identity.AccountID(w.AccountID),
			identity.Brokerage(w.Brokerage),
			w.Currency,
			parseDecimal(w.CashBalance),
			parseDecimal(w.CashStartDay),
			parseDecimal(w.CashActivityDay),
			parseDecimal(w.MarginUsed),
			parseDecimal(w.MarginRatio),
			w.MarginCallStatus,
			ts), nil
	}

	var w wireOrderEvent
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return nil, fmt.Errorf("parse order event: %w", err)
	}
	ts, err := parseTime(w.Timestamp)
	if err != nil {
		return nil, err
	}
	orderID := identity.OrderID(w.OrderID)
	accountID := identity.AccountID(w.AccountID)

	switch env.Type {
	case "OrderSubmitted":
		return event.NewOrderSubmitted(orderID, accountID, ts), nil
	case "OrderAccepted":
		return event.NewOrderAccepted(orderID, accountID, ts), nil
	case "OrderRejected":
		return event.NewOrderRejected(orderID, accountID, w.Reason, ts), nil
	case "OrderWorking":
		expire, err := parseOptionalTime(w.ExpireTime)
		if err != nil {
			return nil, err
		}
		return event.NewOrderWorking(orderID, accountID, w.BrokerOrderID,
			identity.Symbol(w.Symbol), parseSide(w.Side), parseOrdType(w.OrdType),
			w.Quantity, parseDecimal(w.Price), parseTIF(w.TimeInForce), expire, ts), nil
	case "OrderModified":
		return event.NewOrderModified(orderID, accountID, w.BrokerOrderID,
			w.ModifiedQuantity, parseDecimal(w.ModifiedPrice), ts), nil
	case "OrderCancelled":
		return event.NewOrderCancelled(orderID, accountID, ts), nil
	case "OrderCancelReject":
		return event.NewOrderCancelReject(orderID, accountID, w.Response, w.Reason, ts), nil
	case "OrderExpired":
		return event.NewOrderExpired(orderID, accountID, ts), nil
	case "OrderFilled":
		return event.NewOrderFilled(orderID, accountID,
			identity.ExecutionID(w.ExecutionID),
			identity.PositionID(w.BrokerPositionID),
			identity.Symbol(w.Symbol), parseSide(w.Side),
			w.FilledQty, parseDecimal(w.AvgPrice), ts), nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// EncodeCommand 序列化出站命令。
func EncodeCommand(cmd command.Command) ([]byte, error) {
	var (
		typ string
		w   wireCommand
	)

	switch c := cmd.(type) {
	case command.AccountInquiry:
		typ = "AccountInquiry"
		w = wireCommand{AccountID: c.AccountID.String(), Timestamp: formatTime(c.Ts)}
	case command.SubmitOrder:
		typ = "SubmitOrder"
		w = encodeOrder(c)
	case command.SubmitAtomicOrder:
		typ = "SubmitAtomicOrder"
		entry := c.AtomicOrder.Entry
		w = wireCommand{
			OrderID:         entry.ID.String(),
			Symbol:          entry.Symbol.String(),
			Side:            entry.Side.String(),
			OrdType:         entry.Type.String(),
			Quantity:        entry.Quantity,
			Price:           entry.Price.String(),
			TimeInForce:     entry.TimeInForce.String(),
			Label:           entry.Label.String(),
			StopLossOrderID: c.AtomicOrder.StopLoss.ID.String(),
			Timestamp:       formatTime(c.Ts),
		}
		if c.AtomicOrder.HasTakeProfit() {
			w.TakeProfitID = c.AtomicOrder.TakeProfit.ID.String()
		}
	case command.ModifyOrder:
		typ = "ModifyOrder"
		w = wireCommand{
			OrderID:          c.OrderID.String(),
			ModifiedQuantity: c.ModifiedQuantity,
			ModifiedPrice:    c.ModifiedPrice.String(),
			Timestamp:        formatTime(c.Ts),
		}
	case command.CancelOrder:
		typ = "CancelOrder"
		w = wireCommand{
			OrderID:   c.OrderID.String(),
			Reason:    c.Reason,
			Timestamp: formatTime(c.Ts),
		}
	default:
		return nil, fmt.Errorf("unknown command type %s", cmd.GetType())
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Type: typ, Data: data})
}

func encodeOrder(c command.SubmitOrder) wireCommand {
	o := c.Order
	w := wireCommand{
		OrderID:     o.ID.String(),
		Symbol:      o.Symbol.String(),
		Side:        o.Side.String(),
		OrdType:     o.Type.String(),
		Quantity:    o.Quantity,
		TimeInForce: o.TimeInForce.String(),
		Label:       o.Label.String(),
		Timestamp:   formatTime(c.Ts),
	}
	if o.Type.IsPriced() {
		w.Price = o.Price.String()
	}
	if o.ExpireTime != nil {
		w.ExpireTime = formatTime(*o.ExpireTime)
	}
	return w
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}
	}
	return d
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSide(s string) enums.OrderSide {
	if s == "SELL" {
		return enums.OrderSideSell
	}
	return enums.OrderSideBuy
}

func parseOrdType(s string) enums.OrderType {
	switch s {
	case "LIMIT":
		return enums.OrderTypeLimit
	case "STOP_MARKET":
		return enums.OrderTypeStopMarket
	case "STOP_LIMIT":
		return enums.OrderTypeStopLimit
	case "MIT":
		return enums.OrderTypeMIT
	default:
		return enums.OrderTypeMarket
	}
}

func parseTIF(s string) enums.TimeInForce {
	switch s {
	case "GTC":
		return enums.TimeInForceGTC
	case "GTD":
		return enums.TimeInForceGTD
	case "FOC":
		return enums.TimeInForceFOC
	case "IOC":
		return enums.TimeInForceIOC
	default:
		return enums.TimeInForceDay
	}
}
