// Package event 定义执行核心的事件分类：订单事件、仓位事件、账户事件与定时事件。
// 引擎对事件类型做穷尽分派，新增事件必须同时扩展 Type 与引擎的处理分支。
package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/identity"
)

// Type 事件类型标签
type Type uint16

const (
	TypeOrderInitialized Type = iota + 1
	TypeOrderInvalid
	TypeOrderDenied
	TypeOrderSubmitted
	TypeOrderAccepted
	TypeOrderRejected
	TypeOrderWorking
	TypeOrderModified
	TypeOrderCancelled
	TypeOrderCancelReject
	TypeOrderExpired
	TypeOrderFilled
	TypePositionOpened
	TypePositionModified
	TypePositionClosed
	TypeAccountState
	TypeTime
)

func (t Type) String() string {
	switch t {
	case TypeOrderInitialized:
		return "OrderInitialized"
	case TypeOrderInvalid:
		return "OrderInvalid"
	case TypeOrderDenied:
		return "OrderDenied"
	case TypeOrderSubmitted:
		return "OrderSubmitted"
	case TypeOrderAccepted:
		return "OrderAccepted"
	case TypeOrderRejected:
		return "OrderRejected"
	case TypeOrderWorking:
		return "OrderWorking"
	case TypeOrderModified:
		return "OrderModified"
	case TypeOrderCancelled:
		return "OrderCancelled"
	case TypeOrderCancelReject:
		return "OrderCancelReject"
	case TypeOrderExpired:
		return "OrderExpired"
	case TypeOrderFilled:
		return "OrderFilled"
	case TypePositionOpened:
		return "PositionOpened"
	case TypePositionModified:
		return "PositionModified"
	case TypePositionClosed:
		return "PositionClosed"
	case TypeAccountState:
		return "AccountState"
	case TypeTime:
		return "TimeEvent"
	default:
		return "UNKNOWN"
	}
}

// Event 所有事件的公共接口。
type Event interface {
	GetID() uuid.UUID
	GetTs() time.Time
	GetType() Type
}

// Base 所有事件的公共字段。
type Base struct {
	ID uuid.UUID
	Ts time.Time
}

func (e Base) GetID() uuid.UUID { return e.ID }
func (e Base) GetTs() time.Time { return e.Ts }

// NewBase 生成带新 GUID 的事件基础字段。
func NewBase(ts time.Time) Base {
	return Base{ID: identity.NewGUID(), Ts: ts}
}

// OrderEvent 关联到某个订单的事件。
type OrderEvent interface {
	Event
	GetOrderID() identity.OrderID
}

// orderBase 订单事件的公共字段。
type orderBase struct {
	Base
	OrderID identity.OrderID
}

func (e orderBase) GetOrderID() identity.OrderID { return e.OrderID }

// OrderInitialized 订单在工厂内构造完成。
type OrderInitialized struct {
	orderBase
	Symbol      identity.Symbol
	Side        enums.OrderSide
	OrdType     enums.OrderType
	Purpose     enums.OrderPurpose
	Quantity    int64
	Price       decimal.Decimal
	Label       identity.Label
	TimeInForce enums.TimeInForce
	ExpireTime  *time.Time
}

func (OrderInitialized) GetType() Type { return TypeOrderInitialized }

// NewOrderInitialized 构造 OrderInitialized 事件。
func NewOrderInitialized(
	orderID identity.OrderID,
	symbol identity.Symbol,
	side enums.OrderSide,
	ordType enums.OrderType,
	purpose enums.OrderPurpose,
	quantity int64,
	price decimal.Decimal,
	label identity.Label,
	tif enums.TimeInForce,
	expireTime *time.Time,
	ts time.Time,
) OrderInitialized {
	return OrderInitialized{
		orderBase:   orderBase{Base: NewBase(ts), OrderID: orderID},
		Symbol:      symbol,
		Side:        side,
		OrdType:     ordType,
		Purpose:     purpose,
		Quantity:    quantity,
		Price:       price,
		Label:       label,
		TimeInForce: tif,
		ExpireTime:  expireTime,
	}
}

// OrderInvalid 订单未通过本地校验。
type OrderInvalid struct {
	orderBase
	Reason string
}

func (OrderInvalid) GetType() Type { return TypeOrderInvalid }

// NewOrderInvalid 构造 OrderInvalid 事件。
func NewOrderInvalid(orderID identity.OrderID, reason string, ts time.Time) OrderInvalid {
	return OrderInvalid{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, Reason: reason}
}

// OrderDenied 订单被风控/前置检查拒绝。
type OrderDenied struct {
	orderBase
	Reason string
}

func (OrderDenied) GetType() Type { return TypeOrderDenied }

// NewOrderDenied 构造 OrderDenied 事件。
func NewOrderDenied(orderID identity.OrderID, reason string, ts time.Time) OrderDenied {
	return OrderDenied{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, Reason: reason}
}

// OrderSubmitted 订单已提交至券商。
type OrderSubmitted struct {
	orderBase
	AccountID identity.AccountID
}

func (OrderSubmitted) GetType() Type { return TypeOrderSubmitted }

// NewOrderSubmitted 构造 OrderSubmitted 事件。
func NewOrderSubmitted(orderID identity.OrderID, accountID identity.AccountID, ts time.Time) OrderSubmitted {
	return OrderSubmitted{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, AccountID: accountID}
}

// OrderAccepted 券商确认接受订单。
type OrderAccepted struct {
	orderBase
	AccountID identity.AccountID
}

func (OrderAccepted) GetType() Type { return TypeOrderAccepted }

// NewOrderAccepted 构造 OrderAccepted 事件。
func NewOrderAccepted(orderID identity.OrderID, accountID identity.AccountID, ts time.Time) OrderAccepted {
	return OrderAccepted{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, AccountID: accountID}
}

// OrderRejected 券商拒绝订单。
type OrderRejected struct {
	orderBase
	AccountID identity.AccountID
	Reason    string
}

func (OrderRejected) GetType() Type { return TypeOrderRejected }

// NewOrderRejected 构造 OrderRejected 事件。
func NewOrderRejected(orderID identity.OrderID, accountID identity.AccountID, reason string, ts time.Time) OrderRejected {
	return OrderRejected{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, AccountID: accountID, Reason: reason}
}

// OrderWorking 订单已在交易所簿上生效，携带券商订单号。
type OrderWorking struct {
	orderBase
	AccountID     identity.AccountID
	BrokerOrderID string
	Symbol        identity.Symbol
	Side          enums.OrderSide
	OrdType       enums.OrderType
	Quantity      int64
	Price         decimal.Decimal
	TimeInForce   enums.TimeInForce
	ExpireTime    *time.Time
}

func (OrderWorking) GetType() Type { return TypeOrderWorking }

// NewOrderWorking 构造 OrderWorking 事件。
func NewOrderWorking(
	orderID identity.OrderID,
	accountID identity.AccountID,
	brokerOrderID string,
	symbol identity.Symbol,
	side enums.OrderSide,
	ordType enums.OrderType,
	quantity int64,
	price decimal.Decimal,
	tif enums.TimeInForce,
	expireTime *time.Time,
	ts time.Time,
) OrderWorking {
	return OrderWorking{
		orderBase:     orderBase{Base: NewBase(ts), OrderID: orderID},
		AccountID:     accountID,
		BrokerOrderID: brokerOrderID,
		Symbol:        symbol,
		Side:          side,
		OrdType:       ordType,
		Quantity:      quantity,
		Price:         price,
		TimeInForce:   tif,
		ExpireTime:    expireTime,
	}
}

// OrderModified 改单已在券商侧生效，携带新数量与价格。
type OrderModified struct {
	orderBase
	AccountID        identity.AccountID
	BrokerOrderID    string
	ModifiedQuantity int64
	ModifiedPrice    decimal.Decimal
}

func (OrderModified) GetType() Type { return TypeOrderModified }

// NewOrderModified 构造 OrderModified 事件。
func NewOrderModified(orderID identity.OrderID, accountID identity.AccountID, brokerOrderID string, quantity int64, price decimal.Decimal, ts time.Time) OrderModified {
	return OrderModified{
		orderBase:        orderBase{Base: NewBase(ts), OrderID: orderID},
		AccountID:        accountID,
		BrokerOrderID:    brokerOrderID,
		ModifiedQuantity: quantity,
		ModifiedPrice:    price,
	}
}

// OrderCancelled 撤单成功。
type OrderCancelled struct {
	orderBase
	AccountID identity.AccountID
}

func (OrderCancelled) GetType() Type { return TypeOrderCancelled }

// NewOrderCancelled 构造 OrderCancelled 事件。
func NewOrderCancelled(orderID identity.OrderID, accountID identity.AccountID, ts time.Time) OrderCancelled {
	return OrderCancelled{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, AccountID: accountID}
}

// OrderCancelReject 改单/撤单被拒绝；不改变订单状态，仅告警转发。
type OrderCancelReject struct {
	orderBase
	AccountID identity.AccountID
	Response  string
	Reason    string
}

func (OrderCancelReject) GetType() Type { return TypeOrderCancelReject }

// NewOrderCancelReject 构造 OrderCancelReject 事件。
func NewOrderCancelReject(orderID identity.OrderID, accountID identity.AccountID, response, reason string, ts time.Time) OrderCancelReject {
	return OrderCancelReject{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, AccountID: accountID, Response: response, Reason: reason}
}

// OrderExpired 订单到期（GTD 或交易所规则触发）。
type OrderExpired struct {
	orderBase
	AccountID identity.AccountID
}

func (OrderExpired) GetType() Type { return TypeOrderExpired }

// NewOrderExpired 构造 OrderExpired 事件。
func NewOrderExpired(orderID identity.OrderID, accountID identity.AccountID, ts time.Time) OrderExpired {
	return OrderExpired{orderBase: orderBase{Base: NewBase(ts), OrderID: orderID}, AccountID: accountID}
}

// OrderFilled 成交回报。FilledQty 为本笔成交数量，AvgPrice 为本笔成交价。
type OrderFilled struct {
	orderBase
	AccountID        identity.AccountID
	ExecutionID      identity.ExecutionID
	BrokerPositionID identity.PositionID
	Symbol           identity.Symbol
	Side             enums.OrderSide
	FilledQty        int64
	AvgPrice         decimal.Decimal
}

func (OrderFilled) GetType() Type { return TypeOrderFilled }

// NewOrderFilled 构造 OrderFilled 事件。
func NewOrderFilled(
	orderID identity.OrderID,
	accountID identity.AccountID,
	executionID identity.ExecutionID,
	brokerPositionID identity.PositionID,
	symbol identity.Symbol,
	side enums.OrderSide,
	filledQty int64,
	avgPrice decimal.Decimal,
	ts time.Time,
) OrderFilled {
	return OrderFilled{
		orderBase:        orderBase{Base: NewBase(ts), OrderID: orderID},
		AccountID:        accountID,
		ExecutionID:      executionID,
		BrokerPositionID: brokerPositionID,
		Symbol:           symbol,
		Side:             side,
		FilledQty:        filledQty,
		AvgPrice:         avgPrice,
	}
}
