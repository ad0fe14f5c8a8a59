package gateway

import (
	"fmt"
	"sync"

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

// SimConfig 模拟客户端配置
type SimConfig struct {
	AccountID       identity.AccountID
	Brokerage       identity.Brokerage
	Currency        string
	StartingBalance decimal.Decimal
}

// SimClient 确定性模拟执行客户端。命令只入队回报事件，不直接回调引擎；
// 由驱动方在调用栈展开后通过 Flush 逐个投递，保证回测可重放且不与
// 引擎的分派互斥量自锁。
type SimClient struct {
	mu sync.Mutex

	cfg  SimConfig
	clk  clock.Clock
	log  *logger.Logger
	sink EventSink

	connected bool
	working   map[identity.OrderID]*order.Order
	filled    map[identity.OrderID]int64
	market    map[identity.Symbol]decimal.Decimal
	queue     []event.Event

	brokerSeq int64
	execSeq   int64
}

// NewSimClient 创建模拟客户端。
func NewSimClient(cfg SimConfig, clk clock.Clock, log *logger.Logger, sink EventSink) *SimClient {
	return &SimClient{
		cfg:     cfg,
		clk:     clk,
		log:     log,
		sink:    sink,
		working: make(map[identity.OrderID]*order.Order),
		filled:  make(map[identity.OrderID]int64),
		market:  make(map[identity.Symbol]decimal.Decimal),
	}
}

// Connect 标记连接建立。
func (c *SimClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.log.Info("sim execution client connected")
	return nil
}

// Disconnect 标记连接断开。
func (c *SimClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.log.Info("sim execution client disconnected")
	return nil
}

// Dispose 释放资源；模拟实现无事可做。
func (c *SimClient) Dispose() {}

// Reset 清空挂单、行情与事件队列。
func (c *SimClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.working = make(map[identity.OrderID]*order.Order)
	c.filled = make(map[identity.OrderID]int64)
	c.market = make(map[identity.Symbol]decimal.Decimal)
	c.queue = nil
	c.brokerSeq = 0
	c.execSeq = 0
}

// SetMarket 设定标的现价，市价单按该价格成交。
func (c *SimClient) SetMarket(symbol identity.Symbol, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.market[symbol] = price
}

// AccountInquiry 入队一条账户状态回报。
func (c *SimClient) AccountInquiry(cmd command.AccountInquiry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}

	now := c.clk.TimeNow()
	c.queue = append(c.queue, event.NewAccountState(
		c.cfg.AccountID, c.cfg.Brokerage, c.cfg.Currency,
		c.cfg.StartingBalance, c.cfg.StartingBalance, decimal.Decimal{},
		decimal.Decimal{}, decimal.Decimal{}, "NONE", now))
	return nil
}

// SubmitOrder 入队订单生命周期回报；市价单立即按现价成交。
func (c *SimClient) SubmitOrder(cmd command.SubmitOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.acceptLocked(cmd.Order)
	return nil
}

// SubmitAtomicOrder 入场单先行，子单随后登记为挂单。
func (c *SimClient) SubmitAtomicOrder(cmd command.SubmitAtomicOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	for _, o := range cmd.AtomicOrder.Orders() {
		c.acceptLocked(o)
	}
	return nil
}

// ModifyOrder 入队改单回报；未知订单入队 OrderCancelReject。
func (c *SimClient) ModifyOrder(cmd command.ModifyOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}

	now := c.clk.TimeNow()
	o, ok := c.working[cmd.OrderID]
	if !ok {
		c.queue = append(c.queue, event.NewOrderCancelReject(
			cmd.OrderID, c.cfg.AccountID, "REJECT_MODIFY_ORDER", "order not found", now))
		return nil
	}
	c.queue = append(c.queue, event.NewOrderModified(
		o.ID, c.cfg.AccountID, o.BrokerOrderID, cmd.ModifiedQuantity, cmd.ModifiedPrice, now))
	return nil
}

// CancelOrder 入队撤单回报；未知订单入队 OrderCancelReject。
func (c *SimClient) CancelOrder(cmd command.CancelOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}

	now := c.clk.TimeNow()
	o, ok := c.working[cmd.OrderID]
	if !ok {
		c.queue = append(c.queue, event.NewOrderCancelReject(
			cmd.OrderID, c.cfg.AccountID, "REJECT_CANCEL_ORDER", "order not found", now))
		return nil
	}
	delete(c.working, o.ID)
	c.queue = append(c.queue, event.NewOrderCancelled(o.ID, c.cfg.AccountID, now))
	return nil
}

// FillOrder 手工触发成交（限价/止损单的回测钩子）。
func (c *SimClient) FillOrder(orderID identity.OrderID, quantity int64, price decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.working[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	c.fillLocked(o, quantity, price)
	return nil
}

// Flush 逐个投递已入队的事件，直到队列排空。
// 投递过程中策略若继续下单，新产生的回报同样会被本次排空。
// 只能在引擎调用栈之外调用。
func (c *SimClient) Flush() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.sink.HandleEvent(ev)
	}
}

// QueuedEvents 尚未投递的事件数。
func (c *SimClient) QueuedEvents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// acceptLocked 入队 submitted/accepted/working 序列；市价单随即成交。
func (c *SimClient) acceptLocked(o *order.Order) {
	now := c.clk.TimeNow()
	c.brokerSeq++
	brokerID := fmt.Sprintf("B-%d", c.brokerSeq)

	c.queue = append(c.queue,
		event.NewOrderSubmitted(o.ID, c.cfg.AccountID, now),
		event.NewOrderAccepted(o.ID, c.cfg.AccountID, now),
		event.NewOrderWorking(o.ID, c.cfg.AccountID, brokerID, o.Symbol, o.Side, o.Type,
			o.Quantity, o.Price, o.TimeInForce, o.ExpireTime, now))
	c.working[o.ID] = o

	if o.Type == enums.OrderTypeMarket {
		price, ok := c.market[o.Symbol]
		if !ok {
			c.log.Warn("no market price for symbol, market order left working",
				zap.String("symbol", o.Symbol.String()),
				zap.String("order_id", o.ID.String()))
			return
		}
		c.fillLocked(o, o.Quantity, price)
	}
}

func (c *SimClient) fillLocked(o *order.Order, quantity int64, price decimal.Decimal) {
	now := c.clk.TimeNow()
	c.execSeq++
	execID := identity.ExecutionID(fmt.Sprintf("E-%d", c.execSeq))

	c.queue = append(c.queue, event.NewOrderFilled(
		o.ID, c.cfg.AccountID, execID, "", o.Symbol, o.Side, quantity, price, now))

	c.filled[o.ID] += quantity
	if c.filled[o.ID] >= o.Quantity {
		delete(c.working, o.ID)
	}
}
