package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
)

type fixedTime struct{ t time.Time }

func (f fixedTime) TimeNow() time.Time { return f.t }

var testNow = time.Date(2020, 1, 2, 9, 30, 0, 0, time.UTC)

func newTestFactory() *Factory {
	return NewFactory("001", "TRADER-001", "S1", fixedTime{testNow})
}

func mustMarket(t *testing.T, f *Factory) *Order {
	t.Helper()
	o, err := f.Market("AAPL", enums.OrderSideBuy, 100, "TEST_ORDER")
	if err != nil {
		t.Fatalf("build market order: %v", err)
	}
	return o
}

func submitAccept(t *testing.T, o *Order) {
	t.Helper()
	if err := o.ApplyEvent(event.NewOrderSubmitted(o.ID, "ACC1", testNow)); err != nil {
		t.Fatalf("apply submitted: %v", err)
	}
	if err := o.ApplyEvent(event.NewOrderAccepted(o.ID, "ACC1", testNow)); err != nil {
		t.Fatalf("apply accepted: %v", err)
	}
	if err := o.ApplyEvent(event.NewOrderWorking(o.ID, "ACC1", "B-1", o.Symbol, o.Side, o.Type,
		o.Quantity, o.Price, o.TimeInForce, o.ExpireTime, testNow)); err != nil {
		t.Fatalf("apply working: %v", err)
	}
}

func TestOrderLifecycleToFilled(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)

	if o.Status != StatusInitialized {
		t.Fatalf("expected INITIALIZED, got %s", o.Status)
	}
	if o.EventCount() != 1 {
		t.Fatalf("expected init event in log, got %d", o.EventCount())
	}

	submitAccept(t, o)
	if !o.IsWorking() {
		t.Fatal("expected working after OrderWorking")
	}
	if o.BrokerOrderID != "B-1" {
		t.Fatalf("expected broker order id assigned, got %q", o.BrokerOrderID)
	}

	fill := event.NewOrderFilled(o.ID, "ACC1", "E-1", "BP-1", o.Symbol, o.Side,
		100, decimal.NewFromFloat(150.00), testNow)
	if err := o.ApplyEvent(fill); err != nil {
		t.Fatalf("apply fill: %v", err)
	}

	if o.Status != StatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status)
	}
	if !o.IsCompleted() || o.IsWorking() {
		t.Fatal("filled order must be completed, not working")
	}
	if o.FilledQty != 100 {
		t.Fatalf("expected filled qty 100, got %d", o.FilledQty)
	}
	if !o.AvgPrice.Equal(decimal.NewFromFloat(150.00)) {
		t.Fatalf("expected avg 150.00, got %s", o.AvgPrice)
	}
	if got := o.BrokerPositionID; got != "BP-1" {
		t.Fatalf("expected broker position id assigned, got %q", got)
	}
}

// TestPartialFillsVolumeWeighted 部分成交的量加权均价与滑点
func TestPartialFillsVolumeWeighted(t *testing.T) {
	f := newTestFactory()
	o, err := f.Limit("AAPL", enums.OrderSideSell, 100, decimal.NewFromFloat(150.00), "SELL_LIMIT",
		enums.TimeInForceGTC, nil)
	if err != nil {
		t.Fatalf("build limit order: %v", err)
	}
	submitAccept(t, o)

	if err := o.ApplyEvent(event.NewOrderFilled(o.ID, "ACC1", "E-1", "", o.Symbol, o.Side,
		40, decimal.NewFromFloat(150.10), testNow)); err != nil {
		t.Fatalf("apply first fill: %v", err)
	}
	if o.Status != StatusPartiallyFilled {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", o.Status)
	}
	if !o.IsWorking() {
		t.Fatal("partially filled order must still be working")
	}

	if err := o.ApplyEvent(event.NewOrderFilled(o.ID, "ACC1", "E-2", "", o.Symbol, o.Side,
		60, decimal.NewFromFloat(150.20), testNow)); err != nil {
		t.Fatalf("apply second fill: %v", err)
	}
	if o.Status != StatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status)
	}
	if !o.AvgPrice.Equal(decimal.NewFromFloat(150.16)) {
		t.Fatalf("expected volume weighted avg 150.16, got %s", o.AvgPrice)
	}
	// 卖单滑点 = 挂价 - 均价 = -0.16... 符号约定是卖单为 order_price - avg
	if !o.Slippage.Equal(decimal.NewFromFloat(-0.16)) {
		t.Fatalf("expected slippage -0.16, got %s", o.Slippage)
	}
}

// TestSingleVsSplitFillSameOutcome 一笔成交与拆分成交的终态一致
func TestSingleVsSplitFillSameOutcome(t *testing.T) {
	f := newTestFactory()

	single := mustMarket(t, f)
	submitAccept(t, single)
	if err := single.ApplyEvent(event.NewOrderFilled(single.ID, "ACC1", "E-1", "", single.Symbol,
		single.Side, 100, decimal.NewFromFloat(150.00), testNow)); err != nil {
		t.Fatalf("apply fill: %v", err)
	}

	split := mustMarket(t, f)
	submitAccept(t, split)
	for i, qty := range []int64{30, 30, 40} {
		execID := identity.ExecutionID([]string{"E-2", "E-3", "E-4"}[i])
		if err := split.ApplyEvent(event.NewOrderFilled(split.ID, "ACC1", execID, "", split.Symbol,
			split.Side, qty, decimal.NewFromFloat(150.00), testNow)); err != nil {
			t.Fatalf("apply split fill %d: %v", i, err)
		}
	}

	if single.Status != split.Status {
		t.Fatalf("status mismatch: %s vs %s", single.Status, split.Status)
	}
	if !single.AvgPrice.Equal(split.AvgPrice) {
		t.Fatalf("avg price mismatch: %s vs %s", single.AvgPrice, split.AvgPrice)
	}
}

func TestDuplicateExecutionIDAbsorbed(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)
	submitAccept(t, o)

	fill := event.NewOrderFilled(o.ID, "ACC1", "E-1", "", o.Symbol, o.Side,
		40, decimal.NewFromFloat(150.00), testNow)
	if err := o.ApplyEvent(fill); err != nil {
		t.Fatalf("apply fill: %v", err)
	}
	// 同一成交编号重复投递：集合语义，不重复累积
	if err := o.ApplyEvent(fill); err != nil {
		t.Fatalf("apply duplicate fill: %v", err)
	}

	if o.FilledQty != 40 {
		t.Fatalf("duplicate execution id double counted: %d", o.FilledQty)
	}
	if got := len(o.ExecutionIDs()); got != 1 {
		t.Fatalf("expected single execution id, got %d", got)
	}
}

func TestModifyBelowFilledBecomesOverFilled(t *testing.T) {
	f := newTestFactory()
	o, err := f.Limit("AAPL", enums.OrderSideBuy, 100, decimal.NewFromFloat(150.00), "BUY_LIMIT",
		enums.TimeInForceGTC, nil)
	if err != nil {
		t.Fatalf("build limit order: %v", err)
	}
	submitAccept(t, o)

	if err := o.ApplyEvent(event.NewOrderFilled(o.ID, "ACC1", "E-1", "", o.Symbol, o.Side,
		60, decimal.NewFromFloat(150.00), testNow)); err != nil {
		t.Fatalf("apply fill: %v", err)
	}

	// 改单把数量压到已成交量之下
	if err := o.ApplyEvent(event.NewOrderModified(o.ID, "ACC1", "B-1", 50,
		decimal.NewFromFloat(149.50), testNow)); err != nil {
		t.Fatalf("apply modify: %v", err)
	}

	if o.Status != StatusOverFilled {
		t.Fatalf("expected OVER_FILLED, got %s", o.Status)
	}
	if !o.IsCompleted() {
		t.Fatal("over filled order must be completed")
	}
	if o.Quantity != 50 {
		t.Fatalf("expected quantity rewritten to 50, got %d", o.Quantity)
	}
	if o.FilledQty != 60 {
		t.Fatalf("filled quantity must be untouched by modify, got %d", o.FilledQty)
	}
	if !o.Price.Equal(decimal.NewFromFloat(149.50)) {
		t.Fatalf("expected price rewritten, got %s", o.Price)
	}
}

func TestCancelledOrderIsCompleted(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)
	submitAccept(t, o)

	if err := o.ApplyEvent(event.NewOrderCancelled(o.ID, "ACC1", testNow)); err != nil {
		t.Fatalf("apply cancelled: %v", err)
	}
	if !o.IsCompleted() || o.IsWorking() {
		t.Fatal("cancelled order must be completed and not working")
	}
}

func TestCancelRejectDoesNotChangeState(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)
	submitAccept(t, o)

	before := o.Status
	if err := o.ApplyEvent(event.NewOrderCancelReject(o.ID, "ACC1", "REJECT_CANCEL_ORDER",
		"too late", testNow)); err != nil {
		t.Fatalf("apply cancel reject: %v", err)
	}
	if o.Status != before {
		t.Fatalf("cancel reject changed state: %s -> %s", before, o.Status)
	}
	if o.EventCount() != 5 {
		t.Fatalf("cancel reject must still be logged, got %d events", o.EventCount())
	}
}

func TestApplyEventOrderIDMismatch(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)

	err := o.ApplyEvent(event.NewOrderSubmitted("O-OTHER", "ACC1", testNow))
	if err == nil {
		t.Fatal("expected order id mismatch error")
	}
	if o.EventCount() != 1 {
		t.Fatal("mismatched event must not be appended")
	}
}

func TestApplyEventAccountIDMismatch(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)
	submitAccept(t, o)

	err := o.ApplyEvent(event.NewOrderCancelled(o.ID, "ACC2", testNow))
	if err == nil {
		t.Fatal("expected account id mismatch error")
	}
	if o.Status == StatusCancelled {
		t.Fatal("mismatched event must not mutate state")
	}
}

func TestEventLogAppendOnlyAndLastEvent(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)
	submitAccept(t, o)

	events := o.Events()
	if len(events) != o.EventCount() {
		t.Fatalf("events copy length mismatch: %d vs %d", len(events), o.EventCount())
	}
	if o.LastEvent().GetType() != event.TypeOrderWorking {
		t.Fatalf("expected last event OrderWorking, got %s", o.LastEvent().GetType())
	}

	// 时间戳单调不减
	for i := 1; i < len(events); i++ {
		if events[i].GetTs().Before(events[i-1].GetTs()) {
			t.Fatalf("event log timestamps not monotonic at %d", i)
		}
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	f := newTestFactory()
	o := mustMarket(t, f)
	submitAccept(t, o)

	if err := o.ApplyEvent(event.NewOrderCancelled(o.ID, "ACC1", testNow)); err != nil {
		t.Fatalf("apply cancelled: %v", err)
	}
	// 终态后不允许再被接受
	if err := o.ApplyEvent(event.NewOrderAccepted(o.ID, "ACC1", testNow)); err == nil {
		t.Fatal("expected illegal transition error from CANCELLED")
	}
}
