// Package portfolio 收集已实现收益与账户流水，供停机报表使用。
package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"exec-engine-go/event"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
)

// Analyzer 组合分析器。每个仓位的已实现收益只在 PositionClosed 时记录一次。
type Analyzer struct {
	mu  sync.RWMutex
	log *logger.Logger

	returns      map[identity.PositionID]decimal.Decimal
	accountStats []event.AccountState
}

// NewAnalyzer 创建组合分析器。
func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{
		log:     log,
		returns: make(map[identity.PositionID]decimal.Decimal),
	}
}

// OnPositionClosed 记录平仓收益；同一仓位重复上报视为上游缺陷并告警。
func (a *Analyzer) OnPositionClosed(e event.PositionClosed) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.returns[e.PositionID]; dup {
		a.log.Warn("duplicate realized return for position",
			zap.String("position_id", e.PositionID.String()))
		return
	}
	a.returns[e.PositionID] = e.ReturnRealized
	a.log.Info("realized return recorded",
		zap.String("position_id", e.PositionID.String()),
		zap.String("return", e.ReturnRealized.String()))
}

// OnAccountState 记录账户流水。
func (a *Analyzer) OnAccountState(e event.AccountState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accountStats = append(a.accountStats, e)
}

// RealizedReturns 已实现收益快照（只读副本）。
func (a *Analyzer) RealizedReturns() map[identity.PositionID]decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[identity.PositionID]decimal.Decimal, len(a.returns))
	for k, v := range a.returns {
		out[k] = v
	}
	return out
}

// TotalReturn 已实现收益合计。
func (a *Analyzer) TotalReturn() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	total := decimal.Decimal{}
	for _, r := range a.returns {
		total = total.Add(r)
	}
	return total
}

// AccountEventCount 已记录账户流水条数。
func (a *Analyzer) AccountEventCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.accountStats)
}

// Reset 清空统计。
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.returns = make(map[identity.PositionID]decimal.Decimal)
	a.accountStats = nil
}
