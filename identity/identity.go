// Package identity 定义执行核心使用的各类值类型标识符。
// 所有标识符按内容比较，可作为 map key，内部表示对上层不可见。
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// TraderID 交易员标识
type TraderID string

// StrategyID 策略标识
type StrategyID string

// OrderID 订单标识
type OrderID string

// PositionID 仓位标识
type PositionID string

// AccountID 账户标识
type AccountID string

// Brokerage 券商/交易所标识
type Brokerage string

// Label 订单/定时器等的人类可读标签
type Label string

// Symbol 交易标的
type Symbol string

// ExecutionID 券商回报中的成交编号
type ExecutionID string

func (t TraderID) String() string    { return string(t) }
func (s StrategyID) String() string  { return string(s) }
func (o OrderID) String() string     { return string(o) }
func (p PositionID) String() string  { return string(p) }
func (a AccountID) String() string   { return string(a) }
func (b Brokerage) String() string   { return string(b) }
func (l Label) String() string       { return string(l) }
func (s Symbol) String() string      { return string(s) }
func (e ExecutionID) String() string { return string(e) }

// IsZero 标识符是否为空值
func (o OrderID) IsZero() bool    { return o == "" }
func (p PositionID) IsZero() bool { return p == "" }
func (a AccountID) IsZero() bool  { return a == "" }
func (s StrategyID) IsZero() bool { return s == "" }

// NewOrderID 按 (tag, trader, strategy, count) 生成单调订单号。
func NewOrderID(idTag string, trader TraderID, strategy StrategyID, count int64) OrderID {
	return OrderID(fmt.Sprintf("O-%s-%s-%s-%d", idTag, trader, strategy, count))
}

// AtomicOrderID 原子订单号为入场单号加 "A" 前缀。
func AtomicOrderID(entry OrderID) OrderID {
	return OrderID("A" + string(entry))
}

// NewGUID 生成事件唯一标识。
func NewGUID() uuid.UUID {
	return uuid.New()
}
