package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"exec-engine-go/clock"
	"exec-engine-go/command"
	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
	"exec-engine-go/order"
)

// BracketConfig 括号策略配置
type BracketConfig struct {
	Symbol        identity.Symbol
	Quantity      int64
	StopLossPct   decimal.Decimal // 相对入场价的止损比例
	TakeProfitPct decimal.Decimal // 相对入场价的止盈比例
	FlatCheckSec  int             // 平仓检查定时器周期（秒），0 关闭
}

// Bracket 参考策略：按市价入场并携带止损/止盈子单。
// 演示工厂、时钟定时器与引擎命令面的标准用法。
type Bracket struct {
	mu sync.Mutex

	id      identity.StrategyID
	cfg     BracketConfig
	log     *logger.Logger
	clk     clock.Clock
	factory *order.Factory
	bus     ExecBus

	positionSeq int64
	entryPrice  decimal.Decimal
	inFlight    bool
}

// NewBracket 创建括号策略。
func NewBracket(id identity.StrategyID, cfg BracketConfig, trader identity.TraderID, idTag string, clk clock.Clock, log *logger.Logger) *Bracket {
	return &Bracket{
		id:      id,
		cfg:     cfg,
		log:     log,
		clk:     clk,
		factory: order.NewFactory(idTag, trader, id, clk),
	}
}

// ID 策略标识。
func (s *Bracket) ID() identity.StrategyID { return s.id }

// RegisterExecBus 引擎注册时回注命令面。
func (s *Bracket) RegisterExecBus(bus ExecBus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus = bus
}

// Start 启动平仓检查定时器。
func (s *Bracket) Start() error {
	if s.cfg.FlatCheckSec <= 0 {
		return nil
	}
	label := identity.Label(fmt.Sprintf("%s_FLAT_CHECK", s.id))
	interval := time.Duration(s.cfg.FlatCheckSec) * time.Second
	return s.clk.SetTimer(label, interval, nil, nil, s.onFlatCheck)
}

// Stop 撤销定时器。
func (s *Bracket) Stop() {
	s.clk.CancelTimer(identity.Label(fmt.Sprintf("%s_FLAT_CHECK", s.id)))
}

// EnterLong 以市价买入并挂括号单。
func (s *Bracket) EnterLong(entryPrice decimal.Decimal) error {
	return s.enter(enums.OrderSideBuy, entryPrice)
}

// EnterShort 以市价卖出并挂括号单。
func (s *Bracket) EnterShort(entryPrice decimal.Decimal) error {
	return s.enter(enums.OrderSideSell, entryPrice)
}

func (s *Bracket) enter(side enums.OrderSide, entryPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus == nil {
		return fmt.Errorf("strategy %s not registered with engine", s.id)
	}
	if s.inFlight {
		return fmt.Errorf("strategy %s already has an entry in flight", s.id)
	}

	one := decimal.NewFromInt(1)
	var stopLoss, takeProfit decimal.Decimal
	if side == enums.OrderSideBuy {
		stopLoss = entryPrice.Mul(one.Sub(s.cfg.StopLossPct))
		takeProfit = entryPrice.Mul(one.Add(s.cfg.TakeProfitPct))
	} else {
		stopLoss = entryPrice.Mul(one.Add(s.cfg.StopLossPct))
		takeProfit = entryPrice.Mul(one.Sub(s.cfg.TakeProfitPct))
	}

	label := identity.Label(fmt.Sprintf("%s_BRACKET_%d", s.id, s.positionSeq+1))
	atomic, err := s.factory.AtomicMarket(s.cfg.Symbol, side, s.cfg.Quantity, label, stopLoss, &takeProfit)
	if err != nil {
		return fmt.Errorf("build atomic order: %w", err)
	}

	s.positionSeq++
	positionID := identity.PositionID(fmt.Sprintf("P-%s-%d", s.id, s.positionSeq))

	cmd := command.SubmitAtomicOrder{
		Base:        command.NewBase(s.clk.TimeNow()),
		AtomicOrder: atomic,
		StrategyID:  s.id,
		PositionID:  positionID,
	}
	if err := s.bus.Execute(cmd); err != nil {
		return fmt.Errorf("submit atomic order: %w", err)
	}

	s.entryPrice = entryPrice
	s.inFlight = true
	s.log.Info("bracket entry submitted",
		zap.String("strategy_id", s.id.String()),
		zap.String("atomic_id", atomic.ID.String()),
		zap.String("position_id", positionID.String()),
		zap.String("side", side.String()))
	return nil
}

// HandleEvent 引擎分发的事件入口。
func (s *Bracket) HandleEvent(e event.Event) {
	switch ev := e.(type) {
	case event.OrderFilled:
		s.log.Debug("fill received",
			zap.String("strategy_id", s.id.String()),
			zap.String("order_id", ev.OrderID.String()),
			zap.Int64("filled_qty", ev.FilledQty),
			zap.String("avg_price", ev.AvgPrice.String()))

	case event.PositionOpened:
		s.log.Info("position opened",
			zap.String("strategy_id", s.id.String()),
			zap.String("position_id", ev.PositionID.String()),
			zap.String("direction", ev.Direction.String()))

	case event.PositionClosed:
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		s.log.Info("position closed",
			zap.String("strategy_id", s.id.String()),
			zap.String("position_id", ev.PositionID.String()),
			zap.String("return_realized", ev.ReturnRealized.String()))
		s.cancelResidualOrders()

	case event.OrderRejected:
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		s.log.Warn("order rejected",
			zap.String("strategy_id", s.id.String()),
			zap.String("order_id", ev.OrderID.String()),
			zap.String("reason", ev.Reason))

	case event.OrderCancelReject:
		s.log.Warn("cancel rejected",
			zap.String("strategy_id", s.id.String()),
			zap.String("order_id", ev.OrderID.String()),
			zap.String("reason", ev.Reason))
	}
}

// cancelResidualOrders 平仓后撤掉尚在工作的另一条腿。
func (s *Bracket) cancelResidualOrders() {
	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()
	if bus == nil {
		return
	}

	for oid := range bus.WorkingOrdersFor(s.id) {
		cmd := command.CancelOrder{
			Base:    command.NewBase(s.clk.TimeNow()),
			OrderID: oid,
			Reason:  "POSITION_CLOSED",
		}
		if err := bus.Execute(cmd); err != nil {
			s.log.Error("cancel residual order failed",
				zap.String("order_id", oid.String()),
				zap.Error(err))
		}
	}
}

// onFlatCheck 周期性记录策略平/非平状态。
func (s *Bracket) onFlatCheck(e event.TimeEvent) {
	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()
	if bus == nil {
		return
	}
	s.log.Debug("flat check",
		zap.String("strategy_id", s.id.String()),
		zap.Time("fired_at", e.Ts),
		zap.Bool("flat", bus.IsStrategyFlat(s.id)))
}
