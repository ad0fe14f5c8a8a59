package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
)

var (
	// ErrInvalidQuantity 数量必须为正
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	// ErrPriceRequired 限价/触价类型必须带价格
	ErrPriceRequired = errors.New("price required for priced order type")
	// ErrPriceNotAllowed 市价单不允许带价格
	ErrPriceNotAllowed = errors.New("price not allowed for market order")
	// ErrExpireTimeRequired GTD 必须带到期时间
	ErrExpireTimeRequired = errors.New("expire time required for GTD order")
	// ErrExpireTimeInPast GTD 到期时间必须晚于当前时间
	ErrExpireTimeInPast = errors.New("expire time must be in the future")
)

// TimeSource 工厂取时接口，测试与回测注入模拟时钟。
type TimeSource interface {
	TimeNow() time.Time
}

// Factory 订单工厂。按 (trader, strategy) 作用域生成单调订单号。
// 工厂为策略私有，单线程使用。
type Factory struct {
	idTag    string
	trader   identity.TraderID
	strategy identity.StrategyID
	ts       TimeSource
	count    int64
}

// NewFactory 创建订单工厂。
func NewFactory(idTag string, trader identity.TraderID, strategy identity.StrategyID, ts TimeSource) *Factory {
	return &Factory{
		idTag:    idTag,
		trader:   trader,
		strategy: strategy,
		ts:       ts,
	}
}

// Count 已生成订单数。
func (f *Factory) Count() int64 { return f.count }

// Reset 归零订单计数（回测重放用）。
func (f *Factory) Reset() { f.count = 0 }

// Market 市价单。
func (f *Factory) Market(symbol identity.Symbol, side enums.OrderSide, quantity int64, label identity.Label) (*Order, error) {
	return f.build(symbol, side, enums.OrderTypeMarket, enums.OrderPurposeNone, quantity,
		decimal.Decimal{}, label, enums.TimeInForceDay, nil)
}

// Limit 限价单。
func (f *Factory) Limit(symbol identity.Symbol, side enums.OrderSide, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time) (*Order, error) {
	return f.build(symbol, side, enums.OrderTypeLimit, enums.OrderPurposeNone, quantity, price, label, tif, expireTime)
}

// StopMarket 止损市价单。
func (f *Factory) StopMarket(symbol identity.Symbol, side enums.OrderSide, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time) (*Order, error) {
	return f.build(symbol, side, enums.OrderTypeStopMarket, enums.OrderPurposeNone, quantity, price, label, tif, expireTime)
}

// StopLimit 止损限价单。
func (f *Factory) StopLimit(symbol identity.Symbol, side enums.OrderSide, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time) (*Order, error) {
	return f.build(symbol, side, enums.OrderTypeStopLimit, enums.OrderPurposeNone, quantity, price, label, tif, expireTime)
}

// MarketIfTouched 触价市价单。
func (f *Factory) MarketIfTouched(symbol identity.Symbol, side enums.OrderSide, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time) (*Order, error) {
	return f.build(symbol, side, enums.OrderTypeMIT, enums.OrderPurposeNone, quantity, price, label, tif, expireTime)
}

// AtomicMarket 市价入场的原子订单（入场 + 止损 + 可选止盈）。
func (f *Factory) AtomicMarket(symbol identity.Symbol, side enums.OrderSide, quantity int64, label identity.Label, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal) (*AtomicOrder, error) {
	entry, err := f.buildWithPurpose(symbol, side, enums.OrderTypeMarket, enums.OrderPurposeEntry, quantity,
		decimal.Decimal{}, entryLabel(label), enums.TimeInForceDay, nil)
	if err != nil {
		return nil, err
	}
	return f.buildAtomic(entry, stopLossPrice, takeProfitPrice, label)
}

// AtomicLimit 限价入场的原子订单。
func (f *Factory) AtomicLimit(symbol identity.Symbol, side enums.OrderSide, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal) (*AtomicOrder, error) {
	entry, err := f.buildWithPurpose(symbol, side, enums.OrderTypeLimit, enums.OrderPurposeEntry, quantity, price,
		entryLabel(label), tif, expireTime)
	if err != nil {
		return nil, err
	}
	return f.buildAtomic(entry, stopLossPrice, takeProfitPrice, label)
}

// buildAtomic 派生子单：止损固定为 STOP_MARKET/GTC，止盈为 LIMIT/GTC，方向相反数量相等。
func (f *Factory) buildAtomic(entry *Order, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal, label identity.Label) (*AtomicOrder, error) {
	child := entry.Side.Opposite()

	stopLoss, err := f.buildWithPurpose(entry.Symbol, child, enums.OrderTypeStopMarket, enums.OrderPurposeStopLoss,
		entry.Quantity, stopLossPrice, identity.Label(string(label)+"_SL"), enums.TimeInForceGTC, nil)
	if err != nil {
		return nil, fmt.Errorf("atomic stop loss: %w", err)
	}

	var takeProfit *Order
	if takeProfitPrice != nil {
		takeProfit, err = f.buildWithPurpose(entry.Symbol, child, enums.OrderTypeLimit, enums.OrderPurposeTakeProfit,
			entry.Quantity, *takeProfitPrice, identity.Label(string(label)+"_TP"), enums.TimeInForceGTC, nil)
		if err != nil {
			return nil, fmt.Errorf("atomic take profit: %w", err)
		}
	}

	return NewAtomicOrder(entry, stopLoss, takeProfit), nil
}

func entryLabel(label identity.Label) identity.Label {
	return identity.Label(string(label) + "_E")
}

func (f *Factory) build(symbol identity.Symbol, side enums.OrderSide, ordType enums.OrderType, purpose enums.OrderPurpose, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time) (*Order, error) {
	return f.buildWithPurpose(symbol, side, ordType, purpose, quantity, price, label, tif, expireTime)
}

func (f *Factory) buildWithPurpose(symbol identity.Symbol, side enums.OrderSide, ordType enums.OrderType, purpose enums.OrderPurpose, quantity int64, price decimal.Decimal, label identity.Label, tif enums.TimeInForce, expireTime *time.Time) (*Order, error) {
	now := f.ts.TimeNow()
	if err := validate(ordType, quantity, price, tif, expireTime, now); err != nil {
		return nil, err
	}

	f.count++
	id := identity.NewOrderID(f.idTag, f.trader, f.strategy, f.count)

	init := event.NewOrderInitialized(id, symbol, side, ordType, purpose, quantity, price, label, tif, expireTime, now)
	return NewOrderFromInitialized(init), nil
}

// validate 工厂前置校验；违反即为调用方编程错误。
func validate(ordType enums.OrderType, quantity int64, price decimal.Decimal, tif enums.TimeInForce, expireTime *time.Time, now time.Time) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if ordType.IsPriced() && price.IsZero() {
		return fmt.Errorf("%w: type=%s", ErrPriceRequired, ordType)
	}
	if !ordType.IsPriced() && !price.IsZero() {
		return fmt.Errorf("%w: type=%s", ErrPriceNotAllowed, ordType)
	}
	if tif == enums.TimeInForceGTD {
		if expireTime == nil {
			return ErrExpireTimeRequired
		}
		if !expireTime.After(now) {
			return fmt.Errorf("%w: expire=%s now=%s", ErrExpireTimeInPast, expireTime.UTC(), now.UTC())
		}
	}
	return nil
}
