package event

import (
	"time"

	"exec-engine-go/identity"
)

// TimeEvent 定时器/闹钟触发事件。
type TimeEvent struct {
	Base
	Label identity.Label
}

func (TimeEvent) GetType() Type { return TypeTime }

// NewTimeEvent 构造 TimeEvent，Ts 为计划触发时间。
func NewTimeEvent(label identity.Label, ts time.Time) TimeEvent {
	return TimeEvent{Base: NewBase(ts), Label: label}
}
