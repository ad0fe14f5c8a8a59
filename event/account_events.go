package event

import (
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/identity"
)

// AccountState 账户状态快照事件。
type AccountState struct {
	Base
	AccountID        identity.AccountID
	Brokerage        identity.Brokerage
	Currency         string
	CashBalance      decimal.Decimal
	CashStartDay     decimal.Decimal
	CashActivityDay  decimal.Decimal
	MarginUsed       decimal.Decimal
	MarginRatio      decimal.Decimal
	MarginCallStatus string
}

func (AccountState) GetType() Type { return TypeAccountState }

// NewAccountState 构造 AccountState 事件。
func NewAccountState(
	accountID identity.AccountID,
	brokerage identity.Brokerage,
	currency string,
	cashBalance, cashStartDay, cashActivityDay decimal.Decimal,
	marginUsed, marginRatio decimal.Decimal,
	marginCallStatus string,
	ts time.Time,
) AccountState {
	return AccountState{
		Base:             NewBase(ts),
		AccountID:        accountID,
		Brokerage:        brokerage,
		Currency:         currency,
		CashBalance:      cashBalance,
		CashStartDay:     cashStartDay,
		CashActivityDay:  cashActivityDay,
		MarginUsed:       marginUsed,
		MarginRatio:      marginRatio,
		MarginCallStatus: marginCallStatus,
	}
}
