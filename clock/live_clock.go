package clock

import (
	"fmt"
	"sync"
	"time"

	"exec-engine-go/event"
	"exec-engine-go/identity"
	"exec-engine-go/metrics"
)

var _ Clock = (*LiveClock)(nil)

// LiveClock 墙钟时钟。每个调度由独立 goroutine 驱动，到点构造 TimeEvent
// 并在该 goroutine 内同步调用处理器，随后重新武装或移除。
type LiveClock struct {
	mu             sync.RWMutex
	defaultHandler Handler
	schedules      map[identity.Label]*liveSchedule
	seq            uint64
}

type liveSchedule struct {
	schedule
	cancel chan struct{}
}

// NewLiveClock 创建墙钟时钟。
func NewLiveClock() *LiveClock {
	return &LiveClock{
		schedules: make(map[identity.Label]*liveSchedule),
	}
}

// TimeNow UTC 当前时间。
func (c *LiveClock) TimeNow() time.Time { return time.Now().UTC() }

// SetDefaultHandler 注册默认处理器。
func (c *LiveClock) SetDefaultHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHandler = h
}

// SetTimeAlert 注册一次性闹钟。
func (c *LiveClock) SetTimeAlert(label identity.Label, alertTime time.Time, handler Handler) error {
	now := c.TimeNow()
	if alertTime.Before(now) {
		return fmt.Errorf("%w: alert=%s now=%s", ErrAlertInPast, alertTime.UTC(), now)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.schedules[label]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
	}
	h := handler
	if h == nil {
		h = c.defaultHandler
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, label)
	}

	c.seq++
	s := &liveSchedule{
		schedule: schedule{
			label:    label,
			nextTime: alertTime.UTC(),
			handler:  h,
			seq:      c.seq,
		},
		cancel: make(chan struct{}),
	}
	c.schedules[label] = s
	metrics.ActiveTimers.Set(float64(len(c.schedules)))
	go c.runAlert(s)
	return nil
}

// SetTimer 注册重复定时器。
func (c *LiveClock) SetTimer(label identity.Label, interval time.Duration, start, stop *time.Time, handler Handler) error {
	now := c.TimeNow()
	startAt := now
	if start != nil {
		startAt = start.UTC()
	}
	if err := validateTimer(interval, startAt, stop); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.schedules[label]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
	}
	h := handler
	if h == nil {
		h = c.defaultHandler
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, label)
	}

	c.seq++
	s := &liveSchedule{
		schedule: schedule{
			label:    label,
			nextTime: startAt.Add(interval),
			interval: interval,
			stopTime: stop,
			handler:  h,
			seq:      c.seq,
		},
		cancel: make(chan struct{}),
	}
	c.schedules[label] = s
	metrics.ActiveTimers.Set(float64(len(c.schedules)))
	go c.runTimer(s)
	return nil
}

// CancelTimer 幂等撤销；已在途的回调不会被打断。
func (c *LiveClock) CancelTimer(label identity.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.schedules[label]; ok {
		close(s.cancel)
		delete(c.schedules, label)
		metrics.ActiveTimers.Set(float64(len(c.schedules)))
	}
}

// NextEventTime 所有活动调度中最近的触发时间。
func (c *LiveClock) NextEventTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
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
func (c *LiveClock) TimerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schedules)
}

// runAlert 单次闹钟的调度循环。
func (c *LiveClock) runAlert(s *liveSchedule) {
	timer := time.NewTimer(time.Until(s.nextTime))
	defer timer.Stop()

	select {
	case <-s.cancel:
		return
	case <-timer.C:
	}

	s.handler(event.NewTimeEvent(s.label, s.nextTime))

	c.mu.Lock()
	delete(c.schedules, s.label)
	metrics.ActiveTimers.Set(float64(len(c.schedules)))
	c.mu.Unlock()
}

// runTimer 重复定时器的调度循环：触发后 next_time += interval，越过 stop 即移除。
func (c *LiveClock) runTimer(s *liveSchedule) {
	for {
		timer := time.NewTimer(time.Until(s.nextTime))
		select {
		case <-s.cancel:
			timer.Stop()
			return
		case <-timer.C:
		}

		fireTime := s.nextTime
		s.handler(event.NewTimeEvent(s.label, fireTime))

		next := fireTime.Add(s.interval)
		if s.stopTime != nil && next.After(*s.stopTime) {
			c.mu.Lock()
			delete(c.schedules, s.label)
			metrics.ActiveTimers.Set(float64(len(c.schedules)))
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		s.nextTime = next
		c.mu.Unlock()
	}
}
