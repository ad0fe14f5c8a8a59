package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"exec-engine-go/command"
	"exec-engine-go/infrastructure/logger"
)

// LiveConfig 实盘客户端配置
type LiveConfig struct {
	Endpoint  string // wss://...
	SendDepth int    // 发送队列深度，0 取默认
}

// LiveClient websocket 执行客户端。提交命令只入发送队列，不阻塞引擎；
// 读协程将网关回报解码后交给引擎。
type LiveClient struct {
	cfg  LiveConfig
	log  *logger.Logger
	sink EventSink

	Dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	sendCh    chan []byte
	closeCh   chan struct{}
	connected bool
}

// NewLiveClient 创建实盘客户端。
func NewLiveClient(cfg LiveConfig, log *logger.Logger, sink EventSink) *LiveClient {
	if cfg.SendDepth <= 0 {
		cfg.SendDepth = 256
	}
	return &LiveClient{
		cfg:    cfg,
		log:    log,
		sink:   sink,
		Dialer: websocket.DefaultDialer,
	}
}

// Connect 建立连接并启动读写协程。
func (c *LiveClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if c.cfg.Endpoint == "" {
		return fmt.Errorf("gateway endpoint required")
	}

	conn, _, err := c.Dialer.Dial(c.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	c.conn = conn
	c.sendCh = make(chan []byte, c.cfg.SendDepth)
	c.closeCh = make(chan struct{})
	c.connected = true

	go c.readLoop(conn, c.closeCh)
	go c.writeLoop(conn, c.sendCh, c.closeCh)

	c.log.Info("live execution client connected", zap.String("endpoint", c.cfg.Endpoint))
	return nil
}

// Disconnect 关闭连接；读写协程随之退出。
func (c *LiveClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	close(c.closeCh)
	err := c.conn.Close()
	c.conn = nil
	c.connected = false
	c.log.Info("live execution client disconnected")
	return err
}

// Dispose 释放资源。
func (c *LiveClient) Dispose() {
	_ = c.Disconnect()
}

// Reset 实盘客户端无本地状态可重置。
func (c *LiveClient) Reset() {}

// AccountInquiry 发送账户查询命令。
func (c *LiveClient) AccountInquiry(cmd command.AccountInquiry) error {
	return c.send(cmd)
}

// SubmitOrder 发送下单命令。
func (c *LiveClient) SubmitOrder(cmd command.SubmitOrder) error {
	return c.send(cmd)
}

// SubmitAtomicOrder 发送原子订单命令。
func (c *LiveClient) SubmitAtomicOrder(cmd command.SubmitAtomicOrder) error {
	return c.send(cmd)
}

// ModifyOrder 发送改单命令。
func (c *LiveClient) ModifyOrder(cmd command.ModifyOrder) error {
	return c.send(cmd)
}

// CancelOrder 发送撤单命令。
func (c *LiveClient) CancelOrder(cmd command.CancelOrder) error {
	return c.send(cmd)
}

// send 序列化命令并非阻塞入队；队列满视为背压错误返回调用方。
func (c *LiveClient) send(cmd command.Command) error {
	c.mu.Lock()
	connected := c.connected
	sendCh := c.sendCh
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	data, err := EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	select {
	case sendCh <- data:
		return nil
	default:
		return fmt.Errorf("send queue full, command %s dropped", cmd.GetType())
	}
}

// readLoop 读取网关回报，解码并交给引擎。
func (c *LiveClient) readLoop(conn *websocket.Conn, closeCh chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-closeCh:
				return
			default:
				c.log.Error("gateway read failed", zap.Error(err))
				return
			}
		}

		ev, err := ParseEvent(message)
		if err != nil {
			c.log.Error("cannot parse gateway message", zap.Error(err))
			continue
		}
		c.sink.HandleEvent(ev)
	}
}

// writeLoop 将队列中的命令写入连接。
func (c *LiveClient) writeLoop(conn *websocket.Conn, sendCh chan []byte, closeCh chan struct{}) {
	for {
		select {
		case <-closeCh:
			return
		case data := <-sendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error("gateway write failed", zap.Error(err))
				return
			}
		}
	}
}
