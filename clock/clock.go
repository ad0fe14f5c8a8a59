// Package clock 提供执行核心的时间源与定时器：回测用离散推进的 TestClock，
// 实盘用墙钟驱动的 LiveClock。两个变体共用同一能力接口，按值分派。
package clock

import (
	"errors"
	"fmt"
	"time"

	"exec-engine-go/event"
	"exec-engine-go/identity"
)

var (
	// ErrDuplicateLabel 同一时钟内标签必须唯一
	ErrDuplicateLabel = errors.New("label already registered on clock")
	// ErrAlertInPast 闹钟时间不得早于当前时间
	ErrAlertInPast = errors.New("alert time is earlier than clock time")
	// ErrInvalidInterval 定时器间隔必须为正
	ErrInvalidInterval = errors.New("timer interval must be positive")
	// ErrStopBeforeFirstFire stop 早于首次触发时间
	ErrStopBeforeFirstFire = errors.New("timer stop time is before first fire")
	// ErrNoHandler 没有可用的处理器（未注册默认处理器且未单独指定）
	ErrNoHandler = errors.New("no handler registered for schedule")
)

// Handler 定时事件处理器。
type Handler func(e event.TimeEvent)

// Clock 时钟能力接口。
type Clock interface {
	// TimeNow 返回 UTC 当前时间（纳秒精度）。
	TimeNow() time.Time
	// SetDefaultHandler 注册时钟级默认处理器；单个调度可覆盖。
	SetDefaultHandler(h Handler)
	// SetTimeAlert 注册一次性闹钟；handler 为 nil 时使用默认处理器。
	SetTimeAlert(label identity.Label, alertTime time.Time, handler Handler) error
	// SetTimer 注册重复定时器：从 start 起每 interval 触发一次，直到超过 stop。
	// start 为 nil 时取当前时间；stop 为 nil 表示无限。
	SetTimer(label identity.Label, interval time.Duration, start, stop *time.Time, handler Handler) error
	// CancelTimer 撤销调度；幂等，未注册的标签不报错。
	CancelTimer(label identity.Label)
	// NextEventTime 所有活动调度中最近的触发时间。
	NextEventTime() (time.Time, bool)
	// TimerCount 活动调度数。
	TimerCount() int
}

// schedule 单个调度的簿记。interval 为零表示一次性闹钟。
type schedule struct {
	label    identity.Label
	nextTime time.Time
	interval time.Duration
	stopTime *time.Time
	handler  Handler
	seq      uint64
}

func (s *schedule) isAlert() bool { return s.interval == 0 }

// validateTimer 定时器参数共用校验。
func validateTimer(interval time.Duration, start time.Time, stop *time.Time) error {
	if interval <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidInterval, interval)
	}
	if stop != nil && start.Add(interval).After(*stop) {
		return fmt.Errorf("%w: first=%s stop=%s", ErrStopBeforeFirstFire, start.Add(interval).UTC(), stop.UTC())
	}
	return nil
}
