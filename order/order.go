package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
)

var (
	// ErrOrderIDMismatch 事件的订单号与本订单不符
	ErrOrderIDMismatch = errors.New("event order id does not match order")
	// ErrAccountIDMismatch 事件的账户号与订单已登记账户不符
	ErrAccountIDMismatch = errors.New("event account id does not match order account")
)

// 包级共享状态机；转换表只读，可安全共享。
var machine = NewStateMachine()

// Order 订单实体。仅由执行引擎通过 ApplyEvent 变更。
type Order struct {
	ID          identity.OrderID
	Symbol      identity.Symbol
	Side        enums.OrderSide
	Type        enums.OrderType
	Purpose     enums.OrderPurpose
	Quantity    int64
	Price       decimal.Decimal // 仅限价/触价类型有意义
	Label       identity.Label
	TimeInForce enums.TimeInForce
	ExpireTime  *time.Time
	Timestamp   time.Time
	InitID      uuid.UUID

	// 券商回报后才赋值
	BrokerOrderID    string
	AccountID        identity.AccountID
	BrokerPositionID identity.PositionID

	// 派生生命周期状态
	Status       Status
	FilledQty    int64
	AvgPrice     decimal.Decimal
	Slippage     decimal.Decimal
	executionIDs map[identity.ExecutionID]struct{}
	execOrder    []identity.ExecutionID
	events       []event.Event
}

// NewOrderFromInitialized 从 OrderInitialized 事件构造订单（工厂内部使用）。
func NewOrderFromInitialized(e event.OrderInitialized) *Order {
	o := &Order{
		ID:           e.OrderID,
		Symbol:       e.Symbol,
		Side:         e.Side,
		Type:         e.OrdType,
		Purpose:      e.Purpose,
		Quantity:     e.Quantity,
		Price:        e.Price,
		Label:        e.Label,
		TimeInForce:  e.TimeInForce,
		ExpireTime:   e.ExpireTime,
		Timestamp:    e.Ts,
		InitID:       e.ID,
		Status:       StatusInitialized,
		executionIDs: make(map[identity.ExecutionID]struct{}),
	}
	o.events = append(o.events, e)
	return o
}

// IsWorking 订单是否仍在簿上等待成交。
func (o *Order) IsWorking() bool { return machine.IsWorkingState(o.Status) }

// IsCompleted 订单是否进入终态。
func (o *Order) IsCompleted() bool { return machine.IsFinalState(o.Status) }

// CanCancel 当前状态是否还能被撤单或改单。
func (o *Order) CanCancel() bool { return machine.CanCancel(o.Status) }

// EventCount 已应用事件数。
func (o *Order) EventCount() int { return len(o.events) }

// LastEvent 最近一次应用的事件。
func (o *Order) LastEvent() event.Event {
	if len(o.events) == 0 {
		return nil
	}
	return o.events[len(o.events)-1]
}

// Events 事件日志的只读副本。
func (o *Order) Events() []event.Event {
	out := make([]event.Event, len(o.events))
	copy(out, o.events)
	return out
}

// ExecutionIDs 已记录的成交编号（按到达顺序）。
func (o *Order) ExecutionIDs() []identity.ExecutionID {
	out := make([]identity.ExecutionID, len(o.execOrder))
	copy(out, o.execOrder)
	return out
}

// ApplyEvent 应用订单事件并推进状态机。
// 订单号不符或账户号不符时返回错误且不追加事件。
func (o *Order) ApplyEvent(e event.OrderEvent) error {
	if e.GetOrderID() != o.ID {
		return fmt.Errorf("%w: order=%s event=%s", ErrOrderIDMismatch, o.ID, e.GetOrderID())
	}
	if accountID, ok := eventAccountID(e); ok {
		if !o.AccountID.IsZero() && accountID != o.AccountID {
			return fmt.Errorf("%w: order=%s have=%s got=%s", ErrAccountIDMismatch, o.ID, o.AccountID, accountID)
		}
	}

	switch ev := e.(type) {
	case event.OrderInvalid:
		if err := o.transition(StatusInvalid); err != nil {
			return err
		}
	case event.OrderDenied:
		if err := o.transition(StatusDenied); err != nil {
			return err
		}
	case event.OrderSubmitted:
		if err := o.transition(StatusSubmitted); err != nil {
			return err
		}
		o.setAccountID(ev.AccountID)
	case event.OrderAccepted:
		if err := o.transition(StatusAccepted); err != nil {
			return err
		}
		o.setAccountID(ev.AccountID)
	case event.OrderRejected:
		if err := o.transition(StatusRejected); err != nil {
			return err
		}
		o.setAccountID(ev.AccountID)
	case event.OrderWorking:
		if err := o.transition(StatusWorking); err != nil {
			return err
		}
		o.setAccountID(ev.AccountID)
		o.BrokerOrderID = ev.BrokerOrderID
	case event.OrderModified:
		// 改单就地改写数量与价格，不离开 WORKING；
		// 新数量小于已成交量时在重估中落入 OVER_FILLED。
		o.Quantity = ev.ModifiedQuantity
		if o.Type.IsPriced() {
			o.Price = ev.ModifiedPrice
		}
		if ev.BrokerOrderID != "" {
			o.BrokerOrderID = ev.BrokerOrderID
		}
		if o.FilledQty > 0 {
			if err := o.reevaluateFilled(); err != nil {
				return err
			}
		}
	case event.OrderCancelled:
		if err := o.transition(StatusCancelled); err != nil {
			return err
		}
		o.setAccountID(ev.AccountID)
	case event.OrderExpired:
		if err := o.transition(StatusExpired); err != nil {
			return err
		}
		o.setAccountID(ev.AccountID)
	case event.OrderCancelReject:
		// 不改变订单状态，仅记录
	case event.OrderFilled:
		if err := o.applyFill(ev); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unhandled order event type %s", e.GetType())
	}

	o.events = append(o.events, e)
	return nil
}

// applyFill 累积成交并派生成交子状态与滑点。
func (o *Order) applyFill(ev event.OrderFilled) error {
	if _, dup := o.executionIDs[ev.ExecutionID]; dup {
		// 重复成交编号按集合语义静默吸收，不重复累积
		return nil
	}

	prevQty := o.FilledQty
	newQty := prevQty + ev.FilledQty

	// 量加权平均成交价
	if newQty > 0 {
		prevTotal := o.AvgPrice.Mul(decimal.NewFromInt(prevQty))
		fillTotal := ev.AvgPrice.Mul(decimal.NewFromInt(ev.FilledQty))
		o.AvgPrice = prevTotal.Add(fillTotal).Div(decimal.NewFromInt(newQty))
	}
	o.FilledQty = newQty

	o.executionIDs[ev.ExecutionID] = struct{}{}
	o.execOrder = append(o.execOrder, ev.ExecutionID)
	o.setAccountID(ev.AccountID)
	if !ev.BrokerPositionID.IsZero() {
		o.BrokerPositionID = ev.BrokerPositionID
	}

	if o.Type.IsPriced() {
		o.recalcSlippage()
	}

	return o.reevaluateFilled()
}

// reevaluateFilled 按已成交量重估成交子状态。
func (o *Order) reevaluateFilled() error {
	var target Status
	switch {
	case o.FilledQty > o.Quantity:
		target = StatusOverFilled
	case o.FilledQty == o.Quantity:
		target = StatusFilled
	default:
		target = StatusPartiallyFilled
	}
	return o.transition(target)
}

// recalcSlippage 按方向计算滑点：买单为均价减挂价，卖单相反。
func (o *Order) recalcSlippage() {
	if o.Side == enums.OrderSideBuy {
		o.Slippage = o.AvgPrice.Sub(o.Price)
	} else {
		o.Slippage = o.Price.Sub(o.AvgPrice)
	}
}

func (o *Order) transition(target Status) error {
	if err := machine.ValidateTransition(o.Status, target); err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = target
	return nil
}

func (o *Order) setAccountID(id identity.AccountID) {
	if o.AccountID.IsZero() && !id.IsZero() {
		o.AccountID = id
	}
}

// eventAccountID 提取事件携带的账户号（若有）。
func eventAccountID(e event.OrderEvent) (identity.AccountID, bool) {
	switch ev := e.(type) {
	case event.OrderSubmitted:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderAccepted:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderRejected:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderWorking:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderModified:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderCancelled:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderCancelReject:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderExpired:
		return ev.AccountID, !ev.AccountID.IsZero()
	case event.OrderFilled:
		return ev.AccountID, !ev.AccountID.IsZero()
	default:
		return "", false
	}
}
