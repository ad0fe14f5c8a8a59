package order

import (
	"exec-engine-go/identity"
)

// AtomicOrder 原子订单：入场单 + 止损单 + 可选止盈单，作为一次逻辑提交。
type AtomicOrder struct {
	ID         identity.OrderID
	Entry      *Order
	StopLoss   *Order
	TakeProfit *Order // 可为 nil
}

// NewAtomicOrder 组装原子订单，标识为入场单号加 "A" 前缀。
func NewAtomicOrder(entry, stopLoss, takeProfit *Order) *AtomicOrder {
	return &AtomicOrder{
		ID:         identity.AtomicOrderID(entry.ID),
		Entry:      entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
}

// HasTakeProfit 是否带止盈子单。
func (a *AtomicOrder) HasTakeProfit() bool { return a.TakeProfit != nil }

// Orders 按提交顺序返回全部子单。
func (a *AtomicOrder) Orders() []*Order {
	out := []*Order{a.Entry, a.StopLoss}
	if a.TakeProfit != nil {
		out = append(out, a.TakeProfit)
	}
	return out
}
