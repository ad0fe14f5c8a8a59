package event

import (
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/identity"
)

// PositionEvent 关联到某个仓位的事件。
type PositionEvent interface {
	Event
	GetPositionID() identity.PositionID
	GetStrategyID() identity.StrategyID
}

// positionBase 仓位事件的公共字段。
type positionBase struct {
	Base
	PositionID identity.PositionID
	StrategyID identity.StrategyID
}

func (e positionBase) GetPositionID() identity.PositionID { return e.PositionID }
func (e positionBase) GetStrategyID() identity.StrategyID { return e.StrategyID }

// PositionOpened 首笔成交建仓。
type PositionOpened struct {
	positionBase
	Symbol        identity.Symbol
	Direction     enums.MarketPosition
	Quantity      int64
	AvgEntryPrice decimal.Decimal
}

func (PositionOpened) GetType() Type { return TypePositionOpened }

// NewPositionOpened 构造 PositionOpened 事件。
func NewPositionOpened(positionID identity.PositionID, strategyID identity.StrategyID, symbol identity.Symbol, direction enums.MarketPosition, quantity int64, avgEntry decimal.Decimal, ts time.Time) PositionOpened {
	return PositionOpened{
		positionBase:  positionBase{Base: NewBase(ts), PositionID: positionID, StrategyID: strategyID},
		Symbol:        symbol,
		Direction:     direction,
		Quantity:      quantity,
		AvgEntryPrice: avgEntry,
	}
}

// PositionModified 后续成交调整仓位但未平仓。
type PositionModified struct {
	positionBase
	Symbol        identity.Symbol
	Direction     enums.MarketPosition
	Quantity      int64
	AvgEntryPrice decimal.Decimal
}

func (PositionModified) GetType() Type { return TypePositionModified }

// NewPositionModified 构造 PositionModified 事件。
func NewPositionModified(positionID identity.PositionID, strategyID identity.StrategyID, symbol identity.Symbol, direction enums.MarketPosition, quantity int64, avgEntry decimal.Decimal, ts time.Time) PositionModified {
	return PositionModified{
		positionBase:  positionBase{Base: NewBase(ts), PositionID: positionID, StrategyID: strategyID},
		Symbol:        symbol,
		Direction:     direction,
		Quantity:      quantity,
		AvgEntryPrice: avgEntry,
	}
}

// PositionClosed 净仓位归零平仓，携带已实现收益率。
type PositionClosed struct {
	positionBase
	Symbol         identity.Symbol
	ReturnRealized decimal.Decimal
}

func (PositionClosed) GetType() Type { return TypePositionClosed }

// NewPositionClosed 构造 PositionClosed 事件。
func NewPositionClosed(positionID identity.PositionID, strategyID identity.StrategyID, symbol identity.Symbol, returnRealized decimal.Decimal, ts time.Time) PositionClosed {
	return PositionClosed{
		positionBase:   positionBase{Base: NewBase(ts), PositionID: positionID, StrategyID: strategyID},
		Symbol:         symbol,
		ReturnRealized: returnRealized,
	}
}
