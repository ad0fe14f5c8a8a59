package position

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/enums"
	"exec-engine-go/event"
	"exec-engine-go/identity"
)

var testNow = time.Date(2020, 1, 2, 9, 30, 0, 0, time.UTC)

func fill(orderID identity.OrderID, side enums.OrderSide, qty int64, price float64, execID identity.ExecutionID) event.OrderFilled {
	return event.NewOrderFilled(orderID, "ACC1", execID, "", "AAPL", side, qty,
		decimal.NewFromFloat(price), testNow)
}

func TestPositionOpenModifyClose(t *testing.T) {
	p := New("P1", "S1", fill("O-1", enums.OrderSideBuy, 100, 150.00, "E-1"))

	if p.IsClosed() {
		t.Fatal("fresh position must be open")
	}
	if !p.IsLong() || p.Quantity != 100 {
		t.Fatalf("expected long 100, got %d", p.Quantity)
	}
	if !p.AvgEntryPrice.Equal(decimal.NewFromFloat(150.00)) {
		t.Fatalf("expected entry 150.00, got %s", p.AvgEntryPrice)
	}

	// 加仓：入场均价量加权
	if err := p.Apply(fill("O-2", enums.OrderSideBuy, 100, 151.00, "E-2")); err != nil {
		t.Fatalf("apply add: %v", err)
	}
	if p.Quantity != 200 {
		t.Fatalf("expected 200 after add, got %d", p.Quantity)
	}
	if !p.AvgEntryPrice.Equal(decimal.NewFromFloat(150.50)) {
		t.Fatalf("expected entry avg 150.50, got %s", p.AvgEntryPrice)
	}

	// 全平
	if err := p.Apply(fill("O-3", enums.OrderSideSell, 200, 152.00, "E-3")); err != nil {
		t.Fatalf("apply close: %v", err)
	}
	if !p.IsClosed() || !p.IsFlat() {
		t.Fatal("expected closed flat position")
	}
	if p.Direction != enums.MarketPositionFlat {
		t.Fatalf("expected FLAT, got %s", p.Direction)
	}
	if p.ClosedTime == nil {
		t.Fatal("closed time must be set")
	}

	// (152 - 150.5) / 150.5
	want := decimal.NewFromFloat(1.5).Div(decimal.NewFromFloat(150.5))
	if !p.ReturnRealized().Equal(want) {
		t.Fatalf("expected return %s, got %s", want, p.ReturnRealized())
	}
}

func TestShortPositionRealizedReturn(t *testing.T) {
	p := New("P2", "S1", fill("O-1", enums.OrderSideSell, 10, 100.00, "E-1"))

	if !p.IsShort() {
		t.Fatal("expected short position")
	}
	if err := p.Apply(fill("O-2", enums.OrderSideBuy, 10, 99.00, "E-2")); err != nil {
		t.Fatalf("apply cover: %v", err)
	}

	if !p.IsClosed() {
		t.Fatal("expected closed")
	}
	// 空头在 99 回补 100 的卖出：收益 +0.01
	if !p.ReturnRealized().Equal(decimal.NewFromFloat(0.01)) {
		t.Fatalf("expected +0.01, got %s", p.ReturnRealized())
	}
}

func TestLongStopLossNegativeReturn(t *testing.T) {
	p := New("P3", "S1", fill("O-1", enums.OrderSideBuy, 10, 100.00, "E-1"))
	if err := p.Apply(fill("O-2", enums.OrderSideSell, 10, 99.00, "E-2")); err != nil {
		t.Fatalf("apply stop: %v", err)
	}
	if !p.ReturnRealized().Equal(decimal.NewFromFloat(-0.01)) {
		t.Fatalf("expected -0.01, got %s", p.ReturnRealized())
	}
}

func TestClosedPositionRejectsFills(t *testing.T) {
	p := New("P4", "S1", fill("O-1", enums.OrderSideBuy, 10, 100.00, "E-1"))
	if err := p.Apply(fill("O-2", enums.OrderSideSell, 10, 100.00, "E-2")); err != nil {
		t.Fatalf("apply close: %v", err)
	}
	if err := p.Apply(fill("O-3", enums.OrderSideBuy, 10, 100.00, "E-3")); err == nil {
		t.Fatal("expected error applying fill to closed position")
	}
}

func TestPositionTracksOrdersAndPeak(t *testing.T) {
	p := New("P5", "S1", fill("O-1", enums.OrderSideBuy, 100, 10.00, "E-1"))
	_ = p.Apply(fill("O-2", enums.OrderSideBuy, 50, 10.00, "E-2"))
	_ = p.Apply(fill("O-3", enums.OrderSideSell, 150, 10.00, "E-3"))

	if p.PeakQuantity != 150 {
		t.Fatalf("expected peak 150, got %d", p.PeakQuantity)
	}
	if got := len(p.OrderIDs()); got != 3 {
		t.Fatalf("expected 3 orders, got %d", got)
	}
	if p.EventCount() != 3 {
		t.Fatalf("expected 3 events, got %d", p.EventCount())
	}
}
