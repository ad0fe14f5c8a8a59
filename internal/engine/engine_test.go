package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"exec-engine-go/clock"
	"exec-engine-go/command"
	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
	"exec-engine-go/internal/portfolio"
	"exec-engine-go/internal/store"
	"exec-engine-go/internal/strategy"
	"exec-engine-go/order"
)

// mockClient 记录转发的命令
type mockClient struct {
	submitted   []command.SubmitOrder
	atomics     []command.SubmitAtomicOrder
	modifies    []command.ModifyOrder
	cancels     []command.CancelOrder
	inquiries   []command.AccountInquiry
	resetCalled bool
}

func (m *mockClient) Connect() error    { return nil }
func (m *mockClient) Disconnect() error { return nil }
func (m *mockClient) Dispose()          {}
func (m *mockClient) Reset()            { m.resetCalled = true }
func (m *mockClient) AccountInquiry(c command.AccountInquiry) error {
	m.inquiries = append(m.inquiries, c)
	return nil
}
func (m *mockClient) SubmitOrder(c command.SubmitOrder) error {
	m.submitted = append(m.submitted, c)
	return nil
}
func (m *mockClient) SubmitAtomicOrder(c command.SubmitAtomicOrder) error {
	m.atomics = append(m.atomics, c)
	return nil
}
func (m *mockClient) ModifyOrder(c command.ModifyOrder) error {
	m.modifies = append(m.modifies, c)
	return nil
}
func (m *mockClient) CancelOrder(c command.CancelOrder) error {
	m.cancels = append(m.cancels, c)
	return nil
}

// mockStrategy 记录收到的事件
type mockStrategy struct {
	id     identity.StrategyID
	bus    strategy.ExecBus
	events []event.Event
}

func (m *mockStrategy) ID() identity.StrategyID            { return m.id }
func (m *mockStrategy) RegisterExecBus(bus strategy.ExecBus) { m.bus = bus }
func (m *mockStrategy) HandleEvent(e event.Event)          { m.events = append(m.events, e) }

func (m *mockStrategy) eventTypes() []event.Type {
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.GetType()
	}
	return out
}

type harness struct {
	clk      *clock.TestClock
	db       *store.ExecDatabase
	analyzer *portfolio.Analyzer
	eng      *ExecEngine
	client   *mockClient
	strat    *mockStrategy
	factory  *order.Factory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	clk := clock.NewTestClock()
	db := store.New(log)
	analyzer := portfolio.NewAnalyzer(log)

	eng, err := New(Config{TraderID: "TRADER-001"}, Components{
		Logger:    log,
		Database:  db,
		Portfolio: analyzer,
		Clock:     clk,
	})
	if err != nil {
		t.Fatalf("init engine: %v", err)
	}

	client := &mockClient{}
	eng.RegisterClient(client)

	strat := &mockStrategy{id: "S1"}
	if err := eng.RegisterStrategy(strat); err != nil {
		t.Fatalf("register strategy: %v", err)
	}

	return &harness{
		clk:      clk,
		db:       db,
		analyzer: analyzer,
		eng:      eng,
		client:   client,
		strat:    strat,
		factory:  order.NewFactory("001", "TRADER-001", "S1", clk),
	}
}

func (h *harness) submitMarket(t *testing.T, symbol identity.Symbol, side enums.OrderSide, qty int64, positionID identity.PositionID) *order.Order {
	t.Helper()
	o, err := h.factory.Market(symbol, side, qty, "TEST")
	if err != nil {
		t.Fatalf("build order: %v", err)
	}
	cmd := command.SubmitOrder{
		Base:       command.NewBase(h.clk.TimeNow()),
		Order:      o,
		TraderID:   "TRADER-001",
		StrategyID: "S1",
		PositionID: positionID,
	}
	if err := h.eng.Execute(cmd); err != nil {
		t.Fatalf("execute submit: %v", err)
	}
	return o
}

func (h *harness) deliverLifecycle(o *order.Order) {
	now := h.clk.TimeNow()
	h.eng.HandleEvent(event.NewOrderSubmitted(o.ID, "ACC1", now))
	h.eng.HandleEvent(event.NewOrderAccepted(o.ID, "ACC1", now))
}

func (h *harness) deliverFill(o *order.Order, execID identity.ExecutionID, qty int64, price float64) {
	h.eng.HandleEvent(event.NewOrderFilled(o.ID, "ACC1", execID, "", o.Symbol, o.Side,
		qty, decimal.NewFromFloat(price), h.clk.TimeNow()))
}

// TestScenarioSimpleMarketBuyFill 市价买单成交：订单终态、开仓、策略收到成交与开仓事件
func TestScenarioSimpleMarketBuyFill(t *testing.T) {
	h := newHarness(t)

	o := h.submitMarket(t, "AAPL", enums.OrderSideBuy, 100, "P1")
	if len(h.client.submitted) != 1 {
		t.Fatalf("expected command forwarded, got %d", len(h.client.submitted))
	}
	if !h.db.OrderExists(o.ID) {
		t.Fatal("order must be indexed before transport")
	}

	h.deliverLifecycle(o)
	h.deliverFill(o, "E-1", 100, 150.00)

	if o.Status != order.StatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status)
	}
	if !o.IsCompleted() {
		t.Fatal("order must be completed")
	}

	p, ok := h.db.Position("P1")
	if !ok {
		t.Fatal("position P1 must be created")
	}
	if p.IsClosed() {
		t.Fatal("position must be open")
	}
	if h.db.PositionsOpenCount() != 1 {
		t.Fatalf("expected 1 open position, got %d", h.db.PositionsOpenCount())
	}

	types := h.strat.eventTypes()
	wantTail := []event.Type{event.TypeOrderFilled, event.TypePositionOpened}
	if len(types) < 2 {
		t.Fatalf("expected fill + position opened, got %v", types)
	}
	got := types[len(types)-2:]
	for i := range wantTail {
		if got[i] != wantTail[i] {
			t.Fatalf("expected tail %v, got %v", wantTail, got)
		}
	}
}

// TestScenarioAtomicOrderClose 原子订单入场后止损平仓，已实现收益只上报一次
func TestScenarioAtomicOrderClose(t *testing.T) {
	h := newHarness(t)

	tp := decimal.NewFromFloat(101.00)
	atomic, err := h.factory.AtomicMarket("AAPL", enums.OrderSideBuy, 10, "BRACKET",
		decimal.NewFromFloat(99.00), &tp)
	if err != nil {
		t.Fatalf("build atomic: %v", err)
	}
	cmd := command.SubmitAtomicOrder{
		Base:        command.NewBase(h.clk.TimeNow()),
		AtomicOrder: atomic,
		TraderID:    "TRADER-001",
		StrategyID:  "S1",
		PositionID:  "P2",
	}
	if err := h.eng.Execute(cmd); err != nil {
		t.Fatalf("execute atomic: %v", err)
	}

	// 三条腿全部登记在同一仓位下
	if h.db.OrdersTotalCount() != 3 {
		t.Fatalf("expected 3 orders indexed, got %d", h.db.OrdersTotalCount())
	}
	for _, o := range atomic.Orders() {
		if pid, ok := h.db.GetPositionID(o.ID); !ok || pid != "P2" {
			t.Fatalf("leg %s not mapped to P2", o.ID)
		}
	}

	// 入场 @100 开仓
	h.deliverLifecycle(atomic.Entry)
	h.deliverFill(atomic.Entry, "E-1", 10, 100.00)

	p, ok := h.db.Position("P2")
	if !ok || p.IsClosed() {
		t.Fatal("expected open position P2")
	}

	// 止损 @99 平仓
	h.deliverLifecycle(atomic.StopLoss)
	h.deliverFill(atomic.StopLoss, "E-2", 10, 99.00)

	if !p.IsClosed() {
		t.Fatal("expected position closed after stop loss fill")
	}
	if h.db.PositionsClosedCount() != 1 {
		t.Fatalf("expected 1 closed position, got %d", h.db.PositionsClosedCount())
	}

	// 已实现收益 -0.01，只上报一次
	returns := h.analyzer.RealizedReturns()
	if len(returns) != 1 {
		t.Fatalf("expected exactly one realized return, got %d", len(returns))
	}
	if !returns["P2"].Equal(decimal.NewFromFloat(-0.01)) {
		t.Fatalf("expected return -0.01, got %s", returns["P2"])
	}

	// 策略看到 PositionClosed
	sawClosed := false
	for _, typ := range h.strat.eventTypes() {
		if typ == event.TypePositionClosed {
			sawClosed = true
		}
	}
	if !sawClosed {
		t.Fatal("strategy must receive PositionClosed")
	}
}

// TestScenarioUnknownOrderDropped 未知订单的成交：记错误、不建幻影、事件计数仍增
func TestScenarioUnknownOrderDropped(t *testing.T) {
	h := newHarness(t)

	before := h.eng.EventCount()
	h.eng.HandleEvent(event.NewOrderFilled("O-PHANTOM", "ACC1", "E-1", "", "AAPL",
		enums.OrderSideBuy, 100, decimal.NewFromFloat(150.00), h.clk.TimeNow()))

	if h.eng.EventCount() != before+1 {
		t.Fatalf("event count must include dropped events: %d", h.eng.EventCount())
	}
	if h.db.OrdersTotalCount() != 0 {
		t.Fatal("no phantom order may be created")
	}
	if h.db.PositionsTotalCount() != 0 {
		t.Fatal("no phantom position may be created")
	}
	if len(h.strat.events) != 0 {
		t.Fatal("nothing may be forwarded for unknown order")
	}
}

// TestScenarioAccountMismatch 账户不符的状态事件被丢弃且不通知组合
func TestScenarioAccountMismatch(t *testing.T) {
	h := newHarness(t)
	now := h.clk.TimeNow()

	first := event.NewAccountState("ACC1", "SIM", "USD",
		decimal.NewFromInt(100000), decimal.NewFromInt(100000), decimal.Decimal{},
		decimal.Decimal{}, decimal.Decimal{}, "NONE", now)
	h.eng.HandleEvent(first)

	if !h.eng.Account().Initialized() || h.eng.Account().ID != "ACC1" {
		t.Fatal("account must initialize from first event")
	}
	if h.analyzer.AccountEventCount() != 1 {
		t.Fatalf("portfolio must see first account event: %d", h.analyzer.AccountEventCount())
	}

	foreign := event.NewAccountState("ACC2", "SIM", "USD",
		decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.Decimal{},
		decimal.Decimal{}, decimal.Decimal{}, "NONE", now)
	h.eng.HandleEvent(foreign)

	if h.eng.Account().ID != "ACC1" {
		t.Fatal("foreign account event must not mutate account")
	}
	if !h.eng.Account().CashBalance.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("balance mutated: %s", h.eng.Account().CashBalance)
	}
	if h.analyzer.AccountEventCount() != 1 {
		t.Fatal("portfolio must not be notified of dropped account event")
	}
}

func TestPartialFillKeepsPositionModified(t *testing.T) {
	h := newHarness(t)

	o := h.submitMarket(t, "AAPL", enums.OrderSideBuy, 100, "P1")
	h.deliverLifecycle(o)

	h.deliverFill(o, "E-1", 40, 150.10)
	if o.Status != order.StatusPartiallyFilled {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", o.Status)
	}
	if h.db.OrdersWorkingCount() != 1 {
		t.Fatal("partially filled order must be in working partition")
	}

	h.deliverFill(o, "E-2", 60, 150.20)
	if o.Status != order.StatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status)
	}
	if h.db.OrdersWorkingCount() != 0 || h.db.OrdersCompletedCount() != 1 {
		t.Fatal("filled order must move to completed partition")
	}

	// 第二笔成交仍在同一仓位上调仓
	p, _ := h.db.Position("P1")
	if p.Quantity != 100 {
		t.Fatalf("expected net 100, got %d", p.Quantity)
	}

	// 事件顺序：成交在前，派生仓位事件在后
	types := h.strat.eventTypes()
	for i, typ := range types {
		if typ == event.TypePositionOpened || typ == event.TypePositionModified {
			if i == 0 || types[i-1] != event.TypeOrderFilled {
				t.Fatalf("position event must follow its fill, got %v", types)
			}
		}
	}
}

func TestCancelRoundTrip(t *testing.T) {
	h := newHarness(t)

	o := h.submitMarket(t, "AAPL", enums.OrderSideBuy, 100, "P1")
	h.deliverLifecycle(o)
	h.eng.HandleEvent(event.NewOrderWorking(o.ID, "ACC1", "B-1", o.Symbol, o.Side, o.Type,
		o.Quantity, o.Price, o.TimeInForce, nil, h.clk.TimeNow()))

	cancelCmd := command.CancelOrder{
		Base:    command.NewBase(h.clk.TimeNow()),
		OrderID: o.ID,
		Reason:  "TEST",
	}
	if err := h.eng.Execute(cancelCmd); err != nil {
		t.Fatalf("execute cancel: %v", err)
	}
	if len(h.client.cancels) != 1 {
		t.Fatal("cancel must be forwarded unchanged")
	}
	// 命令路径不改数据库状态
	if !o.IsWorking() {
		t.Fatal("order state must not change until event returns")
	}

	h.eng.HandleEvent(event.NewOrderCancelled(o.ID, "ACC1", h.clk.TimeNow()))
	if !o.IsCompleted() {
		t.Fatal("expected completed after OrderCancelled")
	}
	if h.db.OrdersWorkingCount() != 0 || h.db.OrdersCompletedCount() != 1 {
		t.Fatal("cancelled order must be re-partitioned")
	}
}

// TestCancelCompletedOrderRejected 终态订单的撤单/改单在命令路径上被拒
func TestCancelCompletedOrderRejected(t *testing.T) {
	h := newHarness(t)

	o := h.submitMarket(t, "AAPL", enums.OrderSideBuy, 100, "P1")
	h.deliverLifecycle(o)
	h.deliverFill(o, "E-1", 100, 150.00)
	if !o.IsCompleted() {
		t.Fatal("expected completed order")
	}

	cancelCmd := command.CancelOrder{
		Base:    command.NewBase(h.clk.TimeNow()),
		OrderID: o.ID,
		Reason:  "TEST",
	}
	if err := h.eng.Execute(cancelCmd); err == nil {
		t.Fatal("expected cancel of filled order rejected")
	}
	if len(h.client.cancels) != 0 {
		t.Fatal("rejected cancel must not reach the client")
	}

	modifyCmd := command.ModifyOrder{
		Base:             command.NewBase(h.clk.TimeNow()),
		OrderID:          o.ID,
		ModifiedQuantity: 50,
		ModifiedPrice:    decimal.NewFromFloat(149.00),
	}
	if err := h.eng.Execute(modifyCmd); err == nil {
		t.Fatal("expected modify of filled order rejected")
	}
	if len(h.client.modifies) != 0 {
		t.Fatal("rejected modify must not reach the client")
	}

	// 未登记订单的撤单照常转发，由券商侧裁决
	unknown := command.CancelOrder{
		Base:    command.NewBase(h.clk.TimeNow()),
		OrderID: "O-UNKNOWN",
		Reason:  "TEST",
	}
	if err := h.eng.Execute(unknown); err != nil {
		t.Fatalf("unknown-order cancel must be forwarded: %v", err)
	}
	if len(h.client.cancels) != 1 {
		t.Fatal("unknown-order cancel must reach the client")
	}
}

func TestCommandAndEventCounts(t *testing.T) {
	h := newHarness(t)

	o := h.submitMarket(t, "AAPL", enums.OrderSideBuy, 100, "P1")
	inquiry := command.AccountInquiry{Base: command.NewBase(h.clk.TimeNow()), AccountID: "ACC1"}
	if err := h.eng.Execute(inquiry); err != nil {
		t.Fatalf("execute inquiry: %v", err)
	}
	if h.eng.CommandCount() != 2 {
		t.Fatalf("expected 2 commands, got %d", h.eng.CommandCount())
	}

	h.deliverLifecycle(o) // 2 个事件
	h.deliverFill(o, "E-1", 100, 150.00)
	// 成交 + 派生 PositionOpened 都计入
	if h.eng.EventCount() != 4 {
		t.Fatalf("expected 4 events (2 lifecycle + fill + derived), got %d", h.eng.EventCount())
	}
}

func TestEngineResetReplaysIdentically(t *testing.T) {
	h := newHarness(t)

	run := func(f *order.Factory) (int64, int) {
		o, err := f.Market("AAPL", enums.OrderSideBuy, 100, "TEST")
		if err != nil {
			t.Fatalf("build order: %v", err)
		}
		cmd := command.SubmitOrder{
			Base:       command.NewBase(h.clk.TimeNow()),
			Order:      o,
			TraderID:   "TRADER-001",
			StrategyID: "S1",
			PositionID: "P1",
		}
		if err := h.eng.Execute(cmd); err != nil {
			t.Fatalf("execute: %v", err)
		}
		h.deliverLifecycle(o)
		h.deliverFill(o, "E-1", 100, 150.00)
		return h.eng.EventCount(), h.db.OrdersTotalCount()
	}

	ev1, n1 := run(h.factory)

	h.eng.Reset()
	if !h.client.resetCalled {
		t.Fatal("reset must propagate to client")
	}
	if h.eng.EventCount() != 0 || h.db.OrdersTotalCount() != 0 {
		t.Fatal("reset must clear counters and database")
	}
	// 数据库连同策略集合一并清空，引擎注册表仍保留 S1；重放前归零工厂计数，使订单号与首轮相同
	h.factory.Reset()

	ev2, n2 := run(h.factory)
	if ev1 != ev2 || n1 != n2 {
		t.Fatalf("replay diverged: (%d,%d) vs (%d,%d)", ev1, n1, ev2, n2)
	}
}

func TestDeregisteredStrategyEventsDropped(t *testing.T) {
	h := newHarness(t)

	o := h.submitMarket(t, "AAPL", enums.OrderSideBuy, 100, "P1")
	h.eng.DeregisterStrategy(h.strat)

	h.deliverLifecycle(o)
	// order->strategy 索引仍在，但注册表已无该策略：吸收不崩溃
	if len(h.strat.events) != 0 {
		t.Fatal("deregistered strategy must not receive events")
	}
	if h.eng.EventCount() != 2 {
		t.Fatalf("events still counted, got %d", h.eng.EventCount())
	}
}
