// Package engine 实现执行引擎：向券商分发命令、接收并应用回报事件，
// 在订单、仓位、策略、账户之间维持引用完整性。
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"exec-engine-go/account"
	"exec-engine-go/clock"
	"exec-engine-go/command"
	"exec-engine-go/event"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
	"exec-engine-go/internal/store"
	"exec-engine-go/internal/strategy"
	"exec-engine-go/metrics"
	"exec-engine-go/order"
	"exec-engine-go/position"
)

// ExecClient 出站端口：引擎向券商网关推送命令。
// 任何方法都不得阻塞引擎；事件经 HandleEvent 回流。
type ExecClient interface {
	Connect() error
	Disconnect() error
	Dispose()
	Reset()
	AccountInquiry(cmd command.AccountInquiry) error
	SubmitOrder(cmd command.SubmitOrder) error
	SubmitAtomicOrder(cmd command.SubmitAtomicOrder) error
	ModifyOrder(cmd command.ModifyOrder) error
	CancelOrder(cmd command.CancelOrder) error
}

// PortfolioSink 组合分析器入口：接收已实现收益与账户流水。
type PortfolioSink interface {
	OnPositionClosed(e event.PositionClosed)
	OnAccountState(e event.AccountState)
}

// Config 引擎配置
type Config struct {
	TraderID identity.TraderID
}

// Components 引擎依赖组件
type Components struct {
	Logger    *logger.Logger
	Database  *store.ExecDatabase
	Portfolio PortfolioSink
	Clock     clock.Clock
}

var (
	// ErrNoClient 未注册执行客户端
	ErrNoClient = errors.New("no execution client registered")
	// ErrStrategyRegistered 策略重复注册
	ErrStrategyRegistered = errors.New("strategy already registered")
)

// ExecEngine 执行引擎。事件分派由 dispatchMu 串行化（单写者）；
// 策略在事件回调内同步下发命令不经过该互斥量，不会自锁。
type ExecEngine struct {
	cfg       Config
	log       *logger.Logger
	db        *store.ExecDatabase
	portfolio PortfolioSink
	clk       clock.Clock

	// dispatchMu 串行化事件路径：引擎是订单/仓位/账户状态的唯一写者
	dispatchMu sync.Mutex

	// regMu 保护策略注册表与客户端句柄
	regMu    sync.RWMutex
	client   ExecClient
	registry map[identity.StrategyID]strategy.Strategy

	account *account.Account

	commandCount atomic.Int64
	eventCount   atomic.Int64
}

// New 创建执行引擎
func New(cfg Config, components Components) (*ExecEngine, error) {
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	return &ExecEngine{
		cfg:       cfg,
		log:       components.Logger,
		db:        components.Database,
		portfolio: components.Portfolio,
		clk:       components.Clock,
		account:   account.New(),
		registry:  make(map[identity.StrategyID]strategy.Strategy),
	}, nil
}

// RegisterClient 注册执行客户端。
func (e *ExecEngine) RegisterClient(client ExecClient) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	e.client = client
}

// RegisterStrategy 注册策略并回注引擎命令面。
func (e *ExecEngine) RegisterStrategy(s strategy.Strategy) error {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	if _, dup := e.registry[s.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrStrategyRegistered, s.ID())
	}
	e.db.AddStrategy(s.ID())
	e.registry[s.ID()] = s
	s.RegisterExecBus(e)

	e.log.Info("strategy registered", zap.String("strategy_id", s.ID().String()))
	return nil
}

// DeregisterStrategy 注销策略。
func (e *ExecEngine) DeregisterStrategy(s strategy.Strategy) {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	e.db.DeleteStrategy(s.ID())
	delete(e.registry, s.ID())
	e.log.Info("strategy deregistered", zap.String("strategy_id", s.ID().String()))
}

// CommandCount 已接受命令数。
func (e *ExecEngine) CommandCount() int64 { return e.commandCount.Load() }

// EventCount 已接收事件数（含被丢弃的）。
func (e *ExecEngine) EventCount() int64 { return e.eventCount.Load() }

// Account 账户当前状态。
func (e *ExecEngine) Account() *account.Account { return e.account }

// Execute 处理策略命令：先登记意图再转发给客户端。
// 命令路径上的错误传播给调用方。
func (e *ExecEngine) Execute(cmd command.Command) error {
	e.regMu.RLock()
	client := e.client
	e.regMu.RUnlock()
	if client == nil {
		return ErrNoClient
	}

	e.commandCount.Add(1)
	metrics.CommandsTotal.WithLabelValues(cmd.GetType().String()).Inc()

	switch c := cmd.(type) {
	case command.AccountInquiry:
		return client.AccountInquiry(c)

	case command.SubmitOrder:
		e.db.AddOrder(c.Order, c.StrategyID, c.PositionID)
		e.log.Debug("order submitted to client",
			zap.String("order_id", c.Order.ID.String()),
			zap.String("strategy_id", c.StrategyID.String()),
			zap.String("position_id", c.PositionID.String()))
		return client.SubmitOrder(c)

	case command.SubmitAtomicOrder:
		e.db.AddOrder(c.AtomicOrder.Entry, c.StrategyID, c.PositionID)
		e.db.AddOrder(c.AtomicOrder.StopLoss, c.StrategyID, c.PositionID)
		if c.AtomicOrder.HasTakeProfit() {
			e.db.AddOrder(c.AtomicOrder.TakeProfit, c.StrategyID, c.PositionID)
		}
		e.log.Debug("atomic order submitted to client",
			zap.String("atomic_id", c.AtomicOrder.ID.String()),
			zap.String("strategy_id", c.StrategyID.String()))
		return client.SubmitAtomicOrder(c)

	case command.ModifyOrder:
		// 终态订单不可改；未登记的订单照常转发，由券商回 OrderCancelReject
		if o, ok := e.db.Order(c.OrderID); ok && !o.CanCancel() {
			return fmt.Errorf("cannot modify order %s in state %s", o.ID, o.Status)
		}
		return client.ModifyOrder(c)

	case command.CancelOrder:
		if o, ok := e.db.Order(c.OrderID); ok && !o.CanCancel() {
			return fmt.Errorf("cannot cancel order %s in state %s", o.ID, o.Status)
		}
		return client.CancelOrder(c)

	default:
		return fmt.Errorf("unhandled command type %s", cmd.GetType())
	}
}

// HandleEvent 处理回流事件。事件路径上的错误一律吸收：
// 单个畸形事件不得使引擎停摆。
func (e *ExecEngine) HandleEvent(ev event.Event) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	e.handleEventLocked(ev)
}

// handleEventLocked 事件分派。派生仓位事件经同一路径递归处理，
// 递归深度有界（成交 → 仓位事件 → 策略），不得改为无界队列。
func (e *ExecEngine) handleEventLocked(ev event.Event) {
	e.eventCount.Add(1)
	metrics.EventsTotal.WithLabelValues(ev.GetType().String()).Inc()

	switch typed := ev.(type) {
	case event.OrderEvent:
		e.handleOrderEvent(typed)
	case event.PositionOpened:
		e.handlePositionEvent(typed)
	case event.PositionModified:
		e.handlePositionEvent(typed)
	case event.PositionClosed:
		e.handlePositionEvent(typed)
		e.portfolio.OnPositionClosed(typed)
	case event.AccountState:
		e.handleAccountEvent(typed)
	default:
		e.log.Warn("unhandled event type", zap.String("type", ev.GetType().String()))
	}
}

// handleOrderEvent 订单事件：查单、应用、重分区、找策略、成交子协议、转发。
func (e *ExecEngine) handleOrderEvent(ev event.OrderEvent) {
	o, ok := e.db.Order(ev.GetOrderID())
	if !ok {
		e.log.Error("cannot find order for event",
			zap.String("order_id", ev.GetOrderID().String()),
			zap.String("event", ev.GetType().String()))
		metrics.EventsDropped.WithLabelValues("unknown_order").Inc()
		return
	}

	if err := o.ApplyEvent(ev); err != nil {
		e.log.Error("cannot apply event to order",
			zap.String("order_id", o.ID.String()),
			zap.String("event", ev.GetType().String()),
			zap.Error(err))
		metrics.EventsDropped.WithLabelValues("apply_failed").Inc()
		return
	}
	e.db.UpdateOrder(o)

	strategyID, ok := e.db.GetStrategyForOrder(o.ID)
	if !ok {
		e.log.Error("cannot find strategy for order",
			zap.String("order_id", o.ID.String()))
		metrics.EventsDropped.WithLabelValues("unknown_strategy").Inc()
		return
	}

	if fill, isFill := ev.(event.OrderFilled); isFill {
		metrics.FillsTotal.WithLabelValues(fill.Symbol.String()).Inc()
		e.handleFill(fill, strategyID)
		return
	}

	if _, isReject := ev.(event.OrderCancelReject); isReject {
		e.log.Warn("order cancel reject",
			zap.String("order_id", o.ID.String()))
	}

	e.forwardToStrategy(strategyID, ev)
}

// handleFill 成交子协议：解析仓位号，开仓或调仓，再按
// 成交先行、派生仓位事件随后的顺序转发。
func (e *ExecEngine) handleFill(fill event.OrderFilled, strategyID identity.StrategyID) {
	positionID, ok := e.db.GetPositionID(fill.OrderID)
	if !ok {
		e.log.Error("cannot find position id for order",
			zap.String("order_id", fill.OrderID.String()))
		metrics.EventsDropped.WithLabelValues("unknown_position").Inc()
		return
	}

	p, exists := e.db.Position(positionID)
	if !exists {
		p = position.New(positionID, strategyID, fill)
		e.db.AddPosition(p, strategyID)
		opened := event.NewPositionOpened(positionID, strategyID, p.Symbol, p.Direction,
			p.Quantity, p.AvgEntryPrice, e.clk.TimeNow())

		e.forwardToStrategy(strategyID, fill)
		e.handleEventLocked(opened)
		return
	}

	if err := p.Apply(fill); err != nil {
		e.log.Error("cannot apply fill to position",
			zap.String("position_id", positionID.String()),
			zap.Error(err))
		metrics.EventsDropped.WithLabelValues("apply_failed").Inc()
		return
	}
	e.db.UpdatePosition(p)

	var derived event.Event
	if p.IsClosed() {
		derived = event.NewPositionClosed(positionID, strategyID, p.Symbol,
			p.ReturnRealized(), e.clk.TimeNow())
	} else {
		derived = event.NewPositionModified(positionID, strategyID, p.Symbol, p.Direction,
			p.Quantity, p.AvgEntryPrice, e.clk.TimeNow())
	}

	e.forwardToStrategy(strategyID, fill)
	e.handleEventLocked(derived)
}

// handlePositionEvent 仓位事件转发给所属策略。
func (e *ExecEngine) handlePositionEvent(ev event.PositionEvent) {
	e.forwardToStrategy(ev.GetStrategyID(), ev)
}

// handleAccountEvent 账户事件：未初始化或账户号一致才应用，否则告警丢弃。
func (e *ExecEngine) handleAccountEvent(ev event.AccountState) {
	if e.account.Initialized() && ev.AccountID != e.account.ID {
		e.log.Warn("account state event for foreign account",
			zap.String("have", e.account.ID.String()),
			zap.String("got", ev.AccountID.String()))
		metrics.EventsDropped.WithLabelValues("account_mismatch").Inc()
		return
	}

	if err := e.account.Apply(ev); err != nil {
		e.log.Warn("cannot apply account state event", zap.Error(err))
		metrics.EventsDropped.WithLabelValues("apply_failed").Inc()
		return
	}
	e.db.UpdateAccount(e.account)
	e.portfolio.OnAccountState(ev)
	e.log.LogAccountEvent(ev.AccountID,
		zap.String("currency", ev.Currency),
		zap.String("cash_balance", ev.CashBalance.String()))
}

func (e *ExecEngine) forwardToStrategy(strategyID identity.StrategyID, ev event.Event) {
	e.regMu.RLock()
	s, ok := e.registry[strategyID]
	e.regMu.RUnlock()
	if !ok {
		e.log.Error("cannot find registered strategy",
			zap.String("strategy_id", strategyID.String()),
			zap.String("event", ev.GetType().String()))
		metrics.EventsDropped.WithLabelValues("unknown_strategy").Inc()
		return
	}
	s.HandleEvent(ev)
}

// ---- strategy.ExecBus 查询面 ----

// Order 按订单号查询。
func (e *ExecEngine) Order(orderID identity.OrderID) (*order.Order, bool) {
	return e.db.Order(orderID)
}

// Position 按仓位号查询。
func (e *ExecEngine) Position(positionID identity.PositionID) (*position.Position, bool) {
	return e.db.Position(positionID)
}

// WorkingOrdersFor 某策略的挂单。
func (e *ExecEngine) WorkingOrdersFor(strategyID identity.StrategyID) map[identity.OrderID]*order.Order {
	out := make(map[identity.OrderID]*order.Order)
	for oid, o := range e.db.OrdersForStrategy(strategyID) {
		if o.IsWorking() {
			out[oid] = o
		}
	}
	return out
}

// OpenPositionsFor 某策略的未平仓位。
func (e *ExecEngine) OpenPositionsFor(strategyID identity.StrategyID) map[identity.PositionID]*position.Position {
	out := make(map[identity.PositionID]*position.Position)
	for pid, p := range e.db.PositionsForStrategy(strategyID) {
		if !p.IsClosed() {
			out[pid] = p
		}
	}
	return out
}

// IsStrategyFlat 策略是否无未平仓位。
func (e *ExecEngine) IsStrategyFlat(strategyID identity.StrategyID) bool {
	return e.db.IsStrategyFlat(strategyID)
}

// CheckResiduals 停机前检查残留状态；只记录。
func (e *ExecEngine) CheckResiduals() {
	e.db.CheckResiduals()
}

// Reset 归零计数器与账户；数据库清空后保持可用。
func (e *ExecEngine) Reset() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.commandCount.Store(0)
	e.eventCount.Store(0)
	e.account.Reset()
	e.db.Reset()

	e.regMu.RLock()
	client := e.client
	e.regMu.RUnlock()
	if client != nil {
		client.Reset()
	}
	e.log.Info("execution engine reset")
}

// validateComponents 验证组件
func validateComponents(comp Components) error {
	if comp.Logger == nil {
		return errors.New("logger is required")
	}
	if comp.Database == nil {
		return errors.New("database is required")
	}
	if comp.Portfolio == nil {
		return errors.New("portfolio is required")
	}
	if comp.Clock == nil {
		return errors.New("clock is required")
	}
	return nil
}
