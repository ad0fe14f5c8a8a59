package account

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/event"
	"exec-engine-go/identity"
)

var testNow = time.Date(2020, 1, 2, 9, 30, 0, 0, time.UTC)

func stateEvent(accountID string, balance float64, ts time.Time) event.AccountState {
	return event.NewAccountState(
		identity.AccountID(accountID), "FXCM", "USD",
		decimal.NewFromFloat(balance), decimal.NewFromFloat(balance), decimal.Decimal{},
		decimal.NewFromFloat(1000), decimal.NewFromFloat(0.1), "NONE", ts,
	)
}

func TestAccountInitializesOnFirstEvent(t *testing.T) {
	a := New()
	if a.Initialized() {
		t.Fatal("fresh account must not be initialized")
	}

	if err := a.Apply(stateEvent("ACC1", 100000, testNow)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if !a.Initialized() {
		t.Fatal("expected initialized after first event")
	}
	if a.ID != "ACC1" || a.Currency != "USD" {
		t.Fatalf("unexpected identity: %s %s", a.ID, a.Currency)
	}
	if !a.CashBalance.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("unexpected balance %s", a.CashBalance)
	}
	if !a.LastUpdated.Equal(testNow) {
		t.Fatalf("unexpected last updated %s", a.LastUpdated)
	}
	if a.EventCount() != 1 {
		t.Fatalf("expected 1 event, got %d", a.EventCount())
	}
}

func TestAccountRejectsForeignID(t *testing.T) {
	a := New()
	if err := a.Apply(stateEvent("ACC1", 100000, testNow)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	foreign := event.NewAccountState(
		"ACC2", "FXCM", "USD",
		decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.Decimal{},
		decimal.Decimal{}, decimal.Decimal{}, "NONE", testNow.Add(time.Minute))
	if err := a.Apply(foreign); err == nil {
		t.Fatal("expected mismatch error")
	}

	// 状态未被污染
	if !a.CashBalance.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("balance mutated by rejected event: %s", a.CashBalance)
	}
	if a.EventCount() != 1 {
		t.Fatalf("rejected event appended to log: %d", a.EventCount())
	}
}

func TestAccountLastEventAndFreeEquity(t *testing.T) {
	a := New()
	_ = a.Apply(stateEvent("ACC1", 50000, testNow))
	later := stateEvent("ACC1", 52000, testNow.Add(time.Hour))
	_ = a.Apply(later)

	last, ok := a.LastEvent()
	if !ok || !last.CashBalance.Equal(decimal.NewFromInt(52000)) {
		t.Fatalf("unexpected last event")
	}
	// 52000 - 1000 保证金占用
	if !a.FreeEquity().Equal(decimal.NewFromInt(51000)) {
		t.Fatalf("unexpected free equity %s", a.FreeEquity())
	}

	a.Reset()
	if a.Initialized() || a.EventCount() != 0 {
		t.Fatal("reset must clear state")
	}
}
