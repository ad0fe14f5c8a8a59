package order

import "fmt"

// StateMachine 订单状态机。转换表在构造时建好，之后只读。
type StateMachine struct {
	next map[Status]map[Status]struct{}
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	// 按源状态列出全部合法目标状态；不在表中的源状态即终态
	table := map[Status][]Status{
		StatusInitialized: {StatusInvalid, StatusDenied, StatusSubmitted},
		StatusSubmitted:   {StatusRejected, StatusAccepted, StatusWorking, StatusPartiallyFilled, StatusFilled},
		StatusAccepted:    {StatusWorking, StatusCancelled, StatusPartiallyFilled, StatusFilled},
		StatusWorking:     {StatusCancelled, StatusExpired, StatusPartiallyFilled, StatusFilled, StatusOverFilled},
		// 部分成交可反复出现，直到撤销/到期/成交完毕/过量
		StatusPartiallyFilled: {StatusPartiallyFilled, StatusCancelled, StatusExpired, StatusFilled, StatusOverFilled},
		// 已成交之后回报仍可能继续累积为过量成交
		StatusFilled: {StatusOverFilled},
	}

	sm := &StateMachine{next: make(map[Status]map[Status]struct{}, len(table))}
	for from, targets := range table {
		set := make(map[Status]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		sm.next[from] = set
	}
	return sm
}

// ValidateTransition 验证状态转换是否合法；同状态视为幂等重放。
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	targets, ok := sm.next[from]
	if !ok {
		return fmt.Errorf("illegal state transition: %s is terminal, cannot reach %s", from, to)
	}
	if _, ok := targets[to]; !ok {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func (sm *StateMachine) IsFinalState(status Status) bool {
	switch status {
	case StatusInvalid, StatusDenied, StatusRejected, StatusCancelled,
		StatusExpired, StatusFilled, StatusOverFilled:
		return true
	default:
		return false
	}
}

// IsWorkingState 判断是否是挂单状态（仍可能产生成交）
func (sm *StateMachine) IsWorkingState(status Status) bool {
	switch status {
	case StatusWorking, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// CanCancel 判断当前状态下是否可以撤单/改单
func (sm *StateMachine) CanCancel(status Status) bool {
	switch status {
	case StatusSubmitted, StatusAccepted, StatusWorking, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}
