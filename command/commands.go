// Package command 定义策略向执行引擎下发的命令。
package command

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exec-engine-go/identity"
	"exec-engine-go/order"
)

// Type 命令类型标签
type Type uint8

const (
	TypeAccountInquiry Type = iota + 1
	TypeSubmitOrder
	TypeSubmitAtomicOrder
	TypeModifyOrder
	TypeCancelOrder
)

func (t Type) String() string {
	switch t {
	case TypeAccountInquiry:
		return "AccountInquiry"
	case TypeSubmitOrder:
		return "SubmitOrder"
	case TypeSubmitAtomicOrder:
		return "SubmitAtomicOrder"
	case TypeModifyOrder:
		return "ModifyOrder"
	case TypeCancelOrder:
		return "CancelOrder"
	default:
		return "UNKNOWN"
	}
}

// Command 所有命令的公共接口。
type Command interface {
	GetID() uuid.UUID
	GetTs() time.Time
	GetType() Type
}

// Base 所有命令的公共字段。
type Base struct {
	ID uuid.UUID
	Ts time.Time
}

func (c Base) GetID() uuid.UUID { return c.ID }
func (c Base) GetTs() time.Time { return c.Ts }

// NewBase 生成带新 GUID 的命令基础字段。
func NewBase(ts time.Time) Base {
	return Base{ID: identity.NewGUID(), Ts: ts}
}

// AccountInquiry 查询账户状态。
type AccountInquiry struct {
	Base
	AccountID identity.AccountID
}

func (AccountInquiry) GetType() Type { return TypeAccountInquiry }

// SubmitOrder 提交单个订单。
type SubmitOrder struct {
	Base
	Order      *order.Order
	TraderID   identity.TraderID
	StrategyID identity.StrategyID
	PositionID identity.PositionID
}

func (SubmitOrder) GetType() Type { return TypeSubmitOrder }

// SubmitAtomicOrder 提交原子订单。
type SubmitAtomicOrder struct {
	Base
	AtomicOrder *order.AtomicOrder
	TraderID    identity.TraderID
	StrategyID  identity.StrategyID
	PositionID  identity.PositionID
}

func (SubmitAtomicOrder) GetType() Type { return TypeSubmitAtomicOrder }

// ModifyOrder 请求改单；数据库状态待 OrderModified 事件返回后才变更。
type ModifyOrder struct {
	Base
	OrderID          identity.OrderID
	ModifiedQuantity int64
	ModifiedPrice    decimal.Decimal
}

func (ModifyOrder) GetType() Type { return TypeModifyOrder }

// CancelOrder 请求撤单；数据库状态待 OrderCancelled 事件返回后才变更。
type CancelOrder struct {
	Base
	OrderID identity.OrderID
	Reason  string
}

func (CancelOrder) GetType() Type { return TypeCancelOrder }
