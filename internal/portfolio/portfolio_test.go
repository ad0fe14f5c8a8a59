package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/event"
	"exec-engine-go/infrastructure/logger"
)

var testNow = time.Date(2020, 1, 2, 9, 30, 0, 0, time.UTC)

func TestRealizedReturnRecordedOnce(t *testing.T) {
	a := NewAnalyzer(logger.Nop())

	closed := event.NewPositionClosed("P1", "S1", "AAPL", decimal.NewFromFloat(0.02), testNow)
	a.OnPositionClosed(closed)

	// 重复上报被拒，保持首个值
	dup := event.NewPositionClosed("P1", "S1", "AAPL", decimal.NewFromFloat(0.99), testNow)
	a.OnPositionClosed(dup)

	returns := a.RealizedReturns()
	if len(returns) != 1 {
		t.Fatalf("expected 1 return, got %d", len(returns))
	}
	if !returns["P1"].Equal(decimal.NewFromFloat(0.02)) {
		t.Fatalf("expected first value kept, got %s", returns["P1"])
	}
}

func TestTotalReturnAggregates(t *testing.T) {
	a := NewAnalyzer(logger.Nop())
	a.OnPositionClosed(event.NewPositionClosed("P1", "S1", "AAPL", decimal.NewFromFloat(0.02), testNow))
	a.OnPositionClosed(event.NewPositionClosed("P2", "S1", "AAPL", decimal.NewFromFloat(-0.01), testNow))

	if !a.TotalReturn().Equal(decimal.NewFromFloat(0.01)) {
		t.Fatalf("expected total 0.01, got %s", a.TotalReturn())
	}
}

func TestAccountStatsAndReset(t *testing.T) {
	a := NewAnalyzer(logger.Nop())
	state := event.NewAccountState("ACC1", "SIM", "USD",
		decimal.NewFromInt(1000), decimal.NewFromInt(1000), decimal.Decimal{},
		decimal.Decimal{}, decimal.Decimal{}, "NONE", testNow)
	a.OnAccountState(state)

	if a.AccountEventCount() != 1 {
		t.Fatalf("expected 1 account event, got %d", a.AccountEventCount())
	}

	a.Reset()
	if a.AccountEventCount() != 0 || len(a.RealizedReturns()) != 0 {
		t.Fatal("reset must clear stats")
	}
}
