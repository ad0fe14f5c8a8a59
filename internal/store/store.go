// Package store 实现执行数据库：订单与仓位的唯一属主存储及全部索引。
// 纯索引存储，不包含业务副作用；只有执行引擎会写入。
package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"exec-engine-go/account"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
	"exec-engine-go/metrics"
	"exec-engine-go/order"
	"exec-engine-go/position"
)

// ExecDatabase 维护订单/仓位属主存储与索引视图。
// 重复插入与索引不一致属编程错误，直接 panic；
// 查询缺失返回 (零值, false)，由调用方决定如何降级。
type ExecDatabase struct {
	mu  sync.RWMutex
	log *logger.Logger

	orders     map[identity.OrderID]*order.Order
	positions  map[identity.PositionID]*position.Position
	strategies map[identity.StrategyID]struct{}

	indexOrderStrategy     map[identity.OrderID]identity.StrategyID
	indexOrderPosition     map[identity.OrderID]identity.PositionID
	indexPositionStrategy  map[identity.PositionID]identity.StrategyID
	indexPositionOrders    map[identity.PositionID]map[identity.OrderID]struct{}
	indexStrategyOrders    map[identity.StrategyID]map[identity.OrderID]struct{}
	indexStrategyPositions map[identity.StrategyID]map[identity.PositionID]struct{}

	ordersWorking   map[identity.OrderID]struct{}
	ordersCompleted map[identity.OrderID]struct{}
	positionsOpen   map[identity.PositionID]struct{}
	positionsClosed map[identity.PositionID]struct{}
}

// New 创建空的执行数据库。
func New(log *logger.Logger) *ExecDatabase {
	db := &ExecDatabase{log: log}
	db.initLocked()
	return db
}

func (db *ExecDatabase) initLocked() {
	db.orders = make(map[identity.OrderID]*order.Order)
	db.positions = make(map[identity.PositionID]*position.Position)
	db.strategies = make(map[identity.StrategyID]struct{})
	db.indexOrderStrategy = make(map[identity.OrderID]identity.StrategyID)
	db.indexOrderPosition = make(map[identity.OrderID]identity.PositionID)
	db.indexPositionStrategy = make(map[identity.PositionID]identity.StrategyID)
	db.indexPositionOrders = make(map[identity.PositionID]map[identity.OrderID]struct{})
	db.indexStrategyOrders = make(map[identity.StrategyID]map[identity.OrderID]struct{})
	db.indexStrategyPositions = make(map[identity.StrategyID]map[identity.PositionID]struct{})
	db.ordersWorking = make(map[identity.OrderID]struct{})
	db.ordersCompleted = make(map[identity.OrderID]struct{})
	db.positionsOpen = make(map[identity.PositionID]struct{})
	db.positionsClosed = make(map[identity.PositionID]struct{})
}

// AddStrategy 注册策略。重复注册属编程错误。
func (db *ExecDatabase) AddStrategy(strategyID identity.StrategyID) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, dup := db.strategies[strategyID]; dup {
		panic(fmt.Sprintf("store: strategy %s already registered", strategyID))
	}
	db.strategies[strategyID] = struct{}{}
	if _, ok := db.indexStrategyOrders[strategyID]; !ok {
		db.indexStrategyOrders[strategyID] = make(map[identity.OrderID]struct{})
	}
	if _, ok := db.indexStrategyPositions[strategyID]; !ok {
		db.indexStrategyPositions[strategyID] = make(map[identity.PositionID]struct{})
	}
}

// DeleteStrategy 注销策略：摘除策略维度的索引集合，不删除订单与仓位。
func (db *ExecDatabase) DeleteStrategy(strategyID identity.StrategyID) {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.strategies, strategyID)
	delete(db.indexStrategyOrders, strategyID)
	delete(db.indexStrategyPositions, strategyID)
}

// AddOrder 登记新订单及其 策略/仓位 归属。
// 订单号已存在于任一索引、或与既有 position→strategy 映射冲突均属编程错误。
func (db *ExecDatabase) AddOrder(o *order.Order, strategyID identity.StrategyID, positionID identity.PositionID) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, dup := db.orders[o.ID]; dup {
		panic(fmt.Sprintf("store: order %s already exists", o.ID))
	}
	if _, dup := db.indexOrderStrategy[o.ID]; dup {
		panic(fmt.Sprintf("store: order %s already in order->strategy index", o.ID))
	}
	if _, dup := db.indexOrderPosition[o.ID]; dup {
		panic(fmt.Sprintf("store: order %s already in order->position index", o.ID))
	}
	if existing, ok := db.indexPositionStrategy[positionID]; ok && existing != strategyID {
		panic(fmt.Sprintf("store: position %s belongs to strategy %s, not %s", positionID, existing, strategyID))
	}

	db.orders[o.ID] = o
	db.indexOrderStrategy[o.ID] = strategyID
	db.indexOrderPosition[o.ID] = positionID
	db.indexPositionStrategy[positionID] = strategyID

	if _, ok := db.indexPositionOrders[positionID]; !ok {
		db.indexPositionOrders[positionID] = make(map[identity.OrderID]struct{})
	}
	db.indexPositionOrders[positionID][o.ID] = struct{}{}

	if _, ok := db.indexStrategyOrders[strategyID]; !ok {
		db.indexStrategyOrders[strategyID] = make(map[identity.OrderID]struct{})
	}
	db.indexStrategyOrders[strategyID][o.ID] = struct{}{}

	if _, ok := db.indexStrategyPositions[strategyID]; !ok {
		db.indexStrategyPositions[strategyID] = make(map[identity.PositionID]struct{})
	}
	db.indexStrategyPositions[strategyID][positionID] = struct{}{}
}

// AddPosition 登记新仓位并标记为未平仓。
func (db *ExecDatabase) AddPosition(p *position.Position, strategyID identity.StrategyID) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, dup := db.positions[p.ID]; dup {
		panic(fmt.Sprintf("store: position %s already exists", p.ID))
	}
	if existing, ok := db.indexPositionStrategy[p.ID]; ok && existing != strategyID {
		panic(fmt.Sprintf("store: position %s belongs to strategy %s, not %s", p.ID, existing, strategyID))
	}

	db.positions[p.ID] = p
	db.positionsOpen[p.ID] = struct{}{}
	db.indexPositionStrategy[p.ID] = strategyID

	if _, ok := db.indexStrategyPositions[strategyID]; !ok {
		db.indexStrategyPositions[strategyID] = make(map[identity.PositionID]struct{})
	}
	db.indexStrategyPositions[strategyID][p.ID] = struct{}{}

	metrics.OpenPositions.Set(float64(len(db.positionsOpen)))
}

// UpdateOrder 按订单自身标志在 working/completed 分区间迁移。
func (db *ExecDatabase) UpdateOrder(o *order.Order) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch {
	case o.IsWorking():
		db.ordersWorking[o.ID] = struct{}{}
		delete(db.ordersCompleted, o.ID)
	case o.IsCompleted():
		db.ordersCompleted[o.ID] = struct{}{}
		delete(db.ordersWorking, o.ID)
	default:
		// 提交前状态不属于任一分区
		delete(db.ordersWorking, o.ID)
		delete(db.ordersCompleted, o.ID)
	}

	metrics.WorkingOrders.Set(float64(len(db.ordersWorking)))
}

// UpdatePosition 仓位平仓后迁入 closed 分区。
func (db *ExecDatabase) UpdatePosition(p *position.Position) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.IsClosed() {
		db.positionsClosed[p.ID] = struct{}{}
		delete(db.positionsOpen, p.ID)
	}

	metrics.OpenPositions.Set(float64(len(db.positionsOpen)))
}

// UpdateAccount 内存实现为空操作；持久化实现在此落盘。
func (db *ExecDatabase) UpdateAccount(a *account.Account) {
	_ = a
}

// ---- 查询 ----

// StrategyExists 策略是否已注册。
func (db *ExecDatabase) StrategyExists(strategyID identity.StrategyID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.strategies[strategyID]
	return ok
}

// OrderExists 订单是否存在。
func (db *ExecDatabase) OrderExists(orderID identity.OrderID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.orders[orderID]
	return ok
}

// PositionExists 仓位是否存在。
func (db *ExecDatabase) PositionExists(positionID identity.PositionID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.positions[positionID]
	return ok
}

// Order 按订单号查询。
func (db *ExecDatabase) Order(orderID identity.OrderID) (*order.Order, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	o, ok := db.orders[orderID]
	return o, ok
}

// Position 按仓位号查询。
func (db *ExecDatabase) Position(positionID identity.PositionID) (*position.Position, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.positions[positionID]
	return p, ok
}

// PositionForOrder 订单成交所属的仓位。
func (db *ExecDatabase) PositionForOrder(orderID identity.OrderID) (*position.Position, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	pid, ok := db.indexOrderPosition[orderID]
	if !ok {
		return nil, false
	}
	p, ok := db.positions[pid]
	return p, ok
}

// GetPositionID 订单登记时关联的仓位号。
func (db *ExecDatabase) GetPositionID(orderID identity.OrderID) (identity.PositionID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	pid, ok := db.indexOrderPosition[orderID]
	return pid, ok
}

// GetStrategyForOrder 订单所属策略。
func (db *ExecDatabase) GetStrategyForOrder(orderID identity.OrderID) (identity.StrategyID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	sid, ok := db.indexOrderStrategy[orderID]
	return sid, ok
}

// GetStrategyForPosition 仓位所属策略。
func (db *ExecDatabase) GetStrategyForPosition(positionID identity.PositionID) (identity.StrategyID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	sid, ok := db.indexPositionStrategy[positionID]
	return sid, ok
}

// StrategyIDs 已注册策略集合（只读副本）。
func (db *ExecDatabase) StrategyIDs() []identity.StrategyID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]identity.StrategyID, 0, len(db.strategies))
	for sid := range db.strategies {
		out = append(out, sid)
	}
	return out
}

// Orders 全部订单（只读副本）。
func (db *ExecDatabase) Orders() map[identity.OrderID]*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return copyOrderMap(db.orders)
}

// OrdersForStrategy 某策略名下全部订单（只读副本）。
func (db *ExecDatabase) OrdersForStrategy(strategyID identity.StrategyID) map[identity.OrderID]*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[identity.OrderID]*order.Order, len(db.indexStrategyOrders[strategyID]))
	for oid := range db.indexStrategyOrders[strategyID] {
		if o, ok := db.orders[oid]; ok {
			out[oid] = o
		}
	}
	return out
}

// WorkingOrders 挂单分区（只读副本）。
func (db *ExecDatabase) WorkingOrders() map[identity.OrderID]*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.partitionOrdersLocked(db.ordersWorking)
}

// CompletedOrders 完成分区（只读副本）。
func (db *ExecDatabase) CompletedOrders() map[identity.OrderID]*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.partitionOrdersLocked(db.ordersCompleted)
}

// Positions 全部仓位（只读副本）。
func (db *ExecDatabase) Positions() map[identity.PositionID]*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return copyPositionMap(db.positions)
}

// PositionsForStrategy 某策略名下全部仓位（只读副本）。
func (db *ExecDatabase) PositionsForStrategy(strategyID identity.StrategyID) map[identity.PositionID]*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[identity.PositionID]*position.Position, len(db.indexStrategyPositions[strategyID]))
	for pid := range db.indexStrategyPositions[strategyID] {
		if p, ok := db.positions[pid]; ok {
			out[pid] = p
		}
	}
	return out
}

// OpenPositions 未平仓分区（只读副本）。
func (db *ExecDatabase) OpenPositions() map[identity.PositionID]*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.partitionPositionsLocked(db.positionsOpen)
}

// ClosedPositions 已平仓分区（只读副本）。
func (db *ExecDatabase) ClosedPositions() map[identity.PositionID]*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.partitionPositionsLocked(db.positionsClosed)
}

// OrdersForPosition 某仓位名下订单号集合（只读副本）。
func (db *ExecDatabase) OrdersForPosition(positionID identity.PositionID) []identity.OrderID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]identity.OrderID, 0, len(db.indexPositionOrders[positionID]))
	for oid := range db.indexPositionOrders[positionID] {
		out = append(out, oid)
	}
	return out
}

// IsStrategyFlat 策略是否无未平仓位。
func (db *ExecDatabase) IsStrategyFlat(strategyID identity.StrategyID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for pid := range db.indexStrategyPositions[strategyID] {
		if _, open := db.positionsOpen[pid]; open {
			return false
		}
	}
	return true
}

// IsFlat 全部策略是否都无未平仓位。
func (db *ExecDatabase) IsFlat() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.positionsOpen) == 0
}

// ---- 计数 ----

// OrdersTotalCount 订单总数。
func (db *ExecDatabase) OrdersTotalCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.orders)
}

// OrdersWorkingCount 挂单数。
func (db *ExecDatabase) OrdersWorkingCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.ordersWorking)
}

// OrdersCompletedCount 完成订单数。
func (db *ExecDatabase) OrdersCompletedCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.ordersCompleted)
}

// PositionsTotalCount 仓位总数。
func (db *ExecDatabase) PositionsTotalCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.positions)
}

// PositionsOpenCount 未平仓位数。
func (db *ExecDatabase) PositionsOpenCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.positionsOpen)
}

// PositionsClosedCount 已平仓位数。
func (db *ExecDatabase) PositionsClosedCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.positionsClosed)
}

// CheckResiduals 记录仍在挂的订单与未平的仓位；只记录，不变更。
func (db *ExecDatabase) CheckResiduals() {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for oid := range db.ordersWorking {
		db.log.Warn("residual working order",
			zap.String("order_id", oid.String()),
			zap.String("status", string(db.orders[oid].Status)))
	}
	for pid := range db.positionsOpen {
		p := db.positions[pid]
		db.log.Warn("residual open position",
			zap.String("position_id", pid.String()),
			zap.Int64("quantity", p.Quantity),
			zap.String("direction", p.Direction.String()))
	}
}

// Reset 清空全部存储与索引；数据库保持可用。
func (db *ExecDatabase) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.initLocked()
	metrics.WorkingOrders.Set(0)
	metrics.OpenPositions.Set(0)
	db.log.Info("execution database reset")
}

func (db *ExecDatabase) partitionOrdersLocked(part map[identity.OrderID]struct{}) map[identity.OrderID]*order.Order {
	out := make(map[identity.OrderID]*order.Order, len(part))
	for oid := range part {
		if o, ok := db.orders[oid]; ok {
			out[oid] = o
		}
	}
	return out
}

func (db *ExecDatabase) partitionPositionsLocked(part map[identity.PositionID]struct{}) map[identity.PositionID]*position.Position {
	out := make(map[identity.PositionID]*position.Position, len(part))
	for pid := range part {
		if p, ok := db.positions[pid]; ok {
			out[pid] = p
		}
	}
	return out
}

func copyOrderMap(in map[identity.OrderID]*order.Order) map[identity.OrderID]*order.Order {
	out := make(map[identity.OrderID]*order.Order, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyPositionMap(in map[identity.PositionID]*position.Position) map[identity.PositionID]*position.Position {
	out := make(map[identity.PositionID]*position.Position, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
