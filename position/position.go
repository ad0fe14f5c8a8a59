// Package position 实现由成交驱动的净仓位模型。
// 首笔成交建仓，净数量归零即平仓；引擎把仓位当作只响应 Apply 的不透明对象。
package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
)

// ErrPositionClosed 已平仓仓位不再接受成交
var ErrPositionClosed = errors.New("position already closed")

// Position 净仓位。由同一 PositionID 下的一笔或多笔成交构成。
type Position struct {
	ID         identity.PositionID
	Symbol     identity.Symbol
	StrategyID identity.StrategyID

	Direction     enums.MarketPosition
	Quantity      int64 // 带符号净数量：多头为正
	PeakQuantity  int64
	AvgEntryPrice decimal.Decimal
	AvgExitPrice  decimal.Decimal

	OpenedTime time.Time
	ClosedTime *time.Time

	entryQty int64
	exitQty  int64

	orderIDs     map[identity.OrderID]struct{}
	executionIDs map[identity.ExecutionID]struct{}
	events       []event.OrderFilled
}

// New 以首笔成交建仓。
func New(id identity.PositionID, strategyID identity.StrategyID, fill event.OrderFilled) *Position {
	p := &Position{
		ID:           id,
		Symbol:       fill.Symbol,
		StrategyID:   strategyID,
		OpenedTime:   fill.Ts,
		orderIDs:     make(map[identity.OrderID]struct{}),
		executionIDs: make(map[identity.ExecutionID]struct{}),
	}
	p.applyFill(fill)
	return p
}

// IsClosed 净数量是否已归零。
func (p *Position) IsClosed() bool { return p.ClosedTime != nil }

// IsFlat 当前是否无敞口。
func (p *Position) IsFlat() bool { return p.Quantity == 0 }

// IsLong 是否为多头敞口。
func (p *Position) IsLong() bool { return p.Quantity > 0 }

// IsShort 是否为空头敞口。
func (p *Position) IsShort() bool { return p.Quantity < 0 }

// EventCount 已应用成交数。
func (p *Position) EventCount() int { return len(p.events) }

// OrderIDs 参与该仓位的订单号集合（只读副本）。
func (p *Position) OrderIDs() []identity.OrderID {
	out := make([]identity.OrderID, 0, len(p.orderIDs))
	for id := range p.orderIDs {
		out = append(out, id)
	}
	return out
}

// Apply 应用后续成交。
func (p *Position) Apply(fill event.OrderFilled) error {
	if p.IsClosed() {
		return fmt.Errorf("%w: position=%s", ErrPositionClosed, p.ID)
	}
	p.applyFill(fill)
	return nil
}

func (p *Position) applyFill(fill event.OrderFilled) {
	p.orderIDs[fill.OrderID] = struct{}{}
	p.executionIDs[fill.ExecutionID] = struct{}{}
	p.events = append(p.events, fill)

	signed := fill.FilledQty
	if fill.Side == enums.OrderSideSell {
		signed = -signed
	}

	prev := p.Quantity
	next := prev + signed

	// 与现有敞口同向（或建仓）计入入场均价，反向计入出场均价
	increasing := prev == 0 || (prev > 0) == (signed > 0)
	if increasing {
		p.AvgEntryPrice = weightedAvg(p.AvgEntryPrice, p.entryQty, fill.AvgPrice, fill.FilledQty)
		p.entryQty += fill.FilledQty
	} else {
		p.AvgExitPrice = weightedAvg(p.AvgExitPrice, p.exitQty, fill.AvgPrice, fill.FilledQty)
		p.exitQty += fill.FilledQty
	}

	p.Quantity = next
	if abs(next) > p.PeakQuantity {
		p.PeakQuantity = abs(next)
	}

	switch {
	case next > 0:
		p.Direction = enums.MarketPositionLong
	case next < 0:
		p.Direction = enums.MarketPositionShort
	default:
		p.Direction = enums.MarketPositionFlat
		closed := fill.Ts
		p.ClosedTime = &closed
	}
}

// ReturnRealized 已实现收益率：出入场均价差相对入场均价，空头取反。
// 仅在平仓后有意义；未平仓返回零值。
func (p *Position) ReturnRealized() decimal.Decimal {
	if !p.IsClosed() || p.AvgEntryPrice.IsZero() {
		return decimal.Decimal{}
	}
	ret := p.AvgExitPrice.Sub(p.AvgEntryPrice).Div(p.AvgEntryPrice)
	if p.events[0].Side == enums.OrderSideSell {
		ret = ret.Neg()
	}
	return ret
}

func weightedAvg(avg decimal.Decimal, qty int64, price decimal.Decimal, fillQty int64) decimal.Decimal {
	total := qty + fillQty
	if total == 0 {
		return decimal.Decimal{}
	}
	prev := avg.Mul(decimal.NewFromInt(qty))
	add := price.Mul(decimal.NewFromInt(fillQty))
	return prev.Add(add).Div(decimal.NewFromInt(total))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
