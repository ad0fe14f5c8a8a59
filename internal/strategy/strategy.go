// Package strategy 定义策略入站端口（Strategy）与引擎命令/查询面（ExecBus），并提供参考策略 Bracket。
// 策略只持有引擎的窄命令面句柄（ExecBus），引擎按注册表持有策略句柄，
// 双向引用通过标识符解析，不形成所有权环。
package strategy

import (
	"exec-engine-go/command"
	"exec-engine-go/event"
	"exec-engine-go/identity"
	"exec-engine-go/order"
	"exec-engine-go/position"
)

// ExecBus 引擎暴露给策略的命令与查询面。
type ExecBus interface {
	Execute(cmd command.Command) error

	Order(orderID identity.OrderID) (*order.Order, bool)
	Position(positionID identity.PositionID) (*position.Position, bool)
	WorkingOrdersFor(strategyID identity.StrategyID) map[identity.OrderID]*order.Order
	OpenPositionsFor(strategyID identity.StrategyID) map[identity.PositionID]*position.Position
	IsStrategyFlat(strategyID identity.StrategyID) bool
}

// Strategy 策略入站端口：引擎向已注册策略分发事件。
type Strategy interface {
	ID() identity.StrategyID
	RegisterExecBus(bus ExecBus)
	HandleEvent(e event.Event)
}
