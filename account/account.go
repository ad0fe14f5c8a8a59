// Package account 维护券商账户的最近已知状态。
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/event"
	"exec-engine-go/identity"
)

// ErrAccountIDMismatch 事件账户号与已初始化账户不符
var ErrAccountIDMismatch = errors.New("account state event id does not match account")

// Account 账户状态。首个事件完成初始化，此后事件必须携带同一账户号。
type Account struct {
	ID               identity.AccountID
	Brokerage        identity.Brokerage
	Currency         string
	CashBalance      decimal.Decimal
	CashStartDay     decimal.Decimal
	CashActivityDay  decimal.Decimal
	MarginUsed       decimal.Decimal
	MarginRatio      decimal.Decimal
	MarginCallStatus string
	LastUpdated      time.Time

	initialized bool
	events      []event.AccountState
}

// New 创建未初始化账户。
func New() *Account {
	return &Account{}
}

// Initialized 是否已应用过账户事件。
func (a *Account) Initialized() bool { return a.initialized }

// EventCount 已应用事件数。
func (a *Account) EventCount() int { return len(a.events) }

// LastEvent 最近一次应用的事件；未初始化返回零值与 false。
func (a *Account) LastEvent() (event.AccountState, bool) {
	if len(a.events) == 0 {
		return event.AccountState{}, false
	}
	return a.events[len(a.events)-1], true
}

// Apply 应用账户状态事件。
func (a *Account) Apply(e event.AccountState) error {
	if a.initialized && e.AccountID != a.ID {
		return fmt.Errorf("%w: have=%s got=%s", ErrAccountIDMismatch, a.ID, e.AccountID)
	}

	a.ID = e.AccountID
	a.Brokerage = e.Brokerage
	a.Currency = e.Currency
	a.CashBalance = e.CashBalance
	a.CashStartDay = e.CashStartDay
	a.CashActivityDay = e.CashActivityDay
	a.MarginUsed = e.MarginUsed
	a.MarginRatio = e.MarginRatio
	a.MarginCallStatus = e.MarginCallStatus
	a.LastUpdated = e.Ts
	a.initialized = true
	a.events = append(a.events, e)
	return nil
}

// FreeEquity 现金余额减已用保证金。
func (a *Account) FreeEquity() decimal.Decimal {
	return a.CashBalance.Sub(a.MarginUsed)
}

// Reset 清空账户状态（回测重放用）。
func (a *Account) Reset() {
	*a = Account{}
}
