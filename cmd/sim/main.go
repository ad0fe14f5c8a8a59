package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"exec-engine-go/clock"
	"exec-engine-go/enums"
	"exec-engine-go/gateway"
	"exec-engine-go/identity"
	"exec-engine-go/infrastructure/logger"
	"exec-engine-go/internal/engine"
	"exec-engine-go/internal/portfolio"
	"exec-engine-go/internal/store"
	"exec-engine-go/internal/strategy"
)

// 最小确定性回测：测试时钟 + 模拟执行客户端 + 括号策略。
// 入场后行情走到止损价，验证平仓与已实现收益的整条链路。
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "交易标的")
	qty := flag.Int64("qty", 10, "下单数量")
	flag.Parse()

	zlog, err := logger.New(logger.Config{Level: "info", Outputs: []string{"stdout"}, Format: "console"})
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer zlog.Close()

	clk := clock.NewTestClock()
	db := store.New(zlog)
	analyzer := portfolio.NewAnalyzer(zlog)

	eng, err := engine.New(engine.Config{
		TraderID: "TRADER-000",
	}, engine.Components{
		Logger:    zlog,
		Database:  db,
		Portfolio: analyzer,
		Clock:     clk,
	})
	if err != nil {
		log.Fatalf("init engine failed: %v", err)
	}

	client := gateway.NewSimClient(gateway.SimConfig{
		AccountID:       "SIM-ACCOUNT",
		Brokerage:       "SIM",
		Currency:        "USDT",
		StartingBalance: decimal.NewFromInt(1_000_000),
	}, clk, zlog, eng)
	eng.RegisterClient(client)
	if err := client.Connect(); err != nil {
		log.Fatalf("connect sim client failed: %v", err)
	}

	strat := strategy.NewBracket("S-BRACKET-1", strategy.BracketConfig{
		Symbol:        identity.Symbol(*symbol),
		Quantity:      *qty,
		StopLossPct:   decimal.NewFromFloat(0.01),
		TakeProfitPct: decimal.NewFromFloat(0.02),
	}, "TRADER-000", "000", clk, zlog)
	if err := eng.RegisterStrategy(strat); err != nil {
		log.Fatalf("register strategy failed: %v", err)
	}

	// 行情就位后入场
	entryPrice := decimal.NewFromInt(100)
	client.SetMarket(identity.Symbol(*symbol), entryPrice)
	if err := strat.EnterLong(entryPrice); err != nil {
		log.Fatalf("enter long failed: %v", err)
	}
	client.Flush()

	// 推进 1 分钟后行情触及止损价，止损腿成交
	if _, err := clk.AdvanceTime(clk.TimeNow().Add(time.Minute)); err != nil {
		log.Fatalf("advance time failed: %v", err)
	}
	stopPrice := entryPrice.Mul(decimal.NewFromFloat(0.99))
	for oid := range eng.WorkingOrdersFor(strat.ID()) {
		if o, ok := eng.Order(oid); ok && o.Purpose == enums.OrderPurposeStopLoss {
			if err := client.FillOrder(oid, o.Quantity, stopPrice); err != nil {
				log.Fatalf("fill stop loss failed: %v", err)
			}
		}
	}
	client.Flush()

	fmt.Printf("commands=%d events=%d orders=%d positions_closed=%d total_return=%s\n",
		eng.CommandCount(), eng.EventCount(),
		db.OrdersTotalCount(), db.PositionsClosedCount(),
		analyzer.TotalReturn().StringFixed(4))

	eng.CheckResiduals()
}
