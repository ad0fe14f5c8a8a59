package clock

import (
	"fmt"
	"sort"
	"time"

	"exec-engine-go/event"
	"exec-engine-go/identity"
)

// TimeEventPair AdvanceTime 返回的 (事件, 处理器) 对。
// TestClock 不自行调用处理器，是否触发由调用方决定，保证回测可重排。
type TimeEventPair struct {
	Event   event.TimeEvent
	Handler Handler
}

var _ Clock = (*TestClock)(nil)

// TestClock 离散时钟。时间只在 AdvanceTime / SetTime 时前进。
type TestClock struct {
	now            time.Time
	defaultHandler Handler
	schedules      map[identity.Label]*schedule
	seq            uint64
}

// UnixEpoch 回测默认起点。
var UnixEpoch = time.Unix(0, 0).UTC()

// NewTestClock 创建起点为 Unix 纪元的离散时钟。
func NewTestClock() *TestClock {
	return NewTestClockAt(UnixEpoch)
}

// NewTestClockAt 创建指定起点的离散时钟。
func NewTestClockAt(start time.Time) *TestClock {
	return &TestClock{
		now:       start.UTC(),
		schedules: make(map[identity.Label]*schedule),
	}
}

// TimeNow 当前模拟时间。
func (c *TestClock) TimeNow() time.Time { return c.now }

// SetDefaultHandler 注册默认处理器。
func (c *TestClock) SetDefaultHandler(h Handler) { c.defaultHandler = h }

// SetTime 直接设定当前时间，不触发任何调度（装载历史数据用）。
func (c *TestClock) SetTime(t time.Time) { c.now = t.UTC() }

// SetTimeAlert 注册一次性闹钟。
func (c *TestClock) SetTimeAlert(label identity.Label, alertTime time.Time, handler Handler) error {
	if _, dup := c.schedules[label]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
	}
	if alertTime.Before(c.now) {
		return fmt.Errorf("%w: alert=%s now=%s", ErrAlertInPast, alertTime.UTC(), c.now)
	}
	h := handler
	if h == nil {
		h = c.defaultHandler
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, label)
	}
	c.seq++
	c.schedules[label] = &schedule{
		label:    label,
		nextTime: alertTime.UTC(),
		handler:  h,
		seq:      c.seq,
	}
	return nil
}

// SetTimer 注册重复定时器。
func (c *TestClock) SetTimer(label identity.Label, interval time.Duration, start, stop *time.Time, handler Handler) error {
	if _, dup := c.schedules[label]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
	}
	startAt := c.now
	if start != nil {
		startAt = start.UTC()
	}
	if err := validateTimer(interval, startAt, stop); err != nil {
		return err
	}
	h := handler
	if h == nil {
		h = c.defaultHandler
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, label)
	}
	c.seq++
	c.schedules[label] = &schedule{
		label:    label,
		nextTime: startAt.Add(interval),
		interval: interval,
		stopTime: stop,
		handler:  h,
		seq:      c.seq,
	}
	return nil
}

// CancelTimer 幂等撤销。
func (c *TestClock) CancelTimer(label identity.Label) {
	delete(c.schedules, label)
}

// NextEventTime 最近触发时间。
func (c *TestClock) NextEventTime() (time.Time, bool) {
	var min time.Time
	found := false
	for _, s := range c.schedules {
		if !found || s.nextTime.Before(min) {
			min = s.nextTime
			found = true
		}
	}
	return min, found
}

// TimerCount 活动调度数。
func (c *TestClock) TimerCount() int { return len(c.schedules) }

// AdvanceTime 推进时间至 t，返回触发时间不晚于 t 的全部到期 (事件, 处理器) 对
// （含恰在当前时刻到期者），按触发时间排序；消耗到期的闹钟与越过 stop 的定时器。
// 不调用任何处理器。
func (c *TestClock) AdvanceTime(t time.Time) ([]TimeEventPair, error) {
	target := t.UTC()
	if target.Before(c.now) {
		return nil, fmt.Errorf("cannot advance backwards: now=%s target=%s", c.now, target)
	}

	// 先按注册顺序取出调度，保证同一时刻的触发顺序可重放
	ordered := make([]*schedule, 0, len(c.schedules))
	for _, s := range c.schedules {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	var fired []TimeEventPair
	for _, s := range ordered {
		label := s.label
		if s.isAlert() {
			if !s.nextTime.After(target) {
				fired = append(fired, TimeEventPair{
					Event:   event.NewTimeEvent(s.label, s.nextTime),
					Handler: s.handler,
				})
				delete(c.schedules, label)
			}
			continue
		}
		for !s.nextTime.After(target) && (s.stopTime == nil || !s.nextTime.After(*s.stopTime)) {
			fired = append(fired, TimeEventPair{
				Event:   event.NewTimeEvent(s.label, s.nextTime),
				Handler: s.handler,
			})
			s.nextTime = s.nextTime.Add(s.interval)
		}
		if s.stopTime != nil && s.nextTime.After(*s.stopTime) {
			delete(c.schedules, label)
		}
	}

	// 按触发时间排序；稳定排序保留同一时刻的注册顺序
	sort.SliceStable(fired, func(i, j int) bool {
		return fired[i].Event.Ts.Before(fired[j].Event.Ts)
	})

	c.now = target
	return fired, nil
}
