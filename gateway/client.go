// Package gateway 实现执行客户端：回测用确定性 SimClient，
// 实盘用 websocket 传输的 LiveClient。两者都实现引擎的出站端口。
package gateway

import (
	"errors"

	"exec-engine-go/event"
)

// EventSink 事件回流入口；由执行引擎实现。
type EventSink interface {
	HandleEvent(ev event.Event)
}

var (
	// ErrNotConnected 客户端未连接
	ErrNotConnected = errors.New("execution client not connected")
	// ErrUnknownOrder 客户端未登记该订单
	ErrUnknownOrder = errors.New("unknown order")
)
