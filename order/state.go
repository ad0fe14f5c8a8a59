// Package order 实现订单实体、订单状态机、订单工厂与原子订单。
// 订单只能通过 ApplyEvent 变更，事件日志只追加。
package order

// Status represents order lifecycle.
type Status string

const (
	StatusInitialized     Status = "INITIALIZED"
	StatusInvalid         Status = "INVALID"
	StatusDenied          Status = "DENIED"
	StatusSubmitted       Status = "SUBMITTED"
	StatusRejected        Status = "REJECTED"
	StatusAccepted        Status = "ACCEPTED"
	StatusWorking         Status = "WORKING"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusOverFilled      Status = "OVER_FILLED"
)
