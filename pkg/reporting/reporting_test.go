package reporting

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/engine"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
)

var reportTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleStatus() engine.Status {
	return engine.Status{
		State:          engine.StateStopped,
		Symbols:        []string{"BTCUSDT"},
		Cycles:         42,
		LastCycle:      reportTime,
		LastHaltReason: "daily loss limit exceeded",
		TradesLastHour: 2,
		TotalTrades:    7,
		ErrorCount:     3,
		StrategyWeights: map[string]float64{
			"momentum":       1.12,
			"mean_reversion": 0.85,
		},
		Positions: []exchange.Position{
			{Symbol: "BTCUSDT", Quantity: 0.05, AvgPrice: 64000, CurrentPrice: 65000, UnrealizedPnL: 50, Strategy: "momentum"},
		},
		Risk:     risk.Metrics{PortfolioValue: 10050, DailyPnL: -510, Limits: risk.DefaultLimits()},
		Settings: config.Default().RuntimeSettings(),
		RecentEvents: []engine.Event{
			{Type: engine.EventHalt, Message: "daily loss limit exceeded", Timestamp: reportTime},
		},
	}
}

// TestPrintStatus tests that every section is rendered
func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintStatus(&buf, sampleStatus())

	out := buf.String()
	for _, want := range []string{"TRADING ENGINE", "STOPPED", "daily loss limit exceeded", "RISK", "10050.00", "POSITIONS", "BTCUSDT", "STRATEGY WEIGHTS", "mean_reversion", "RECENT EVENTS", "2 / 6", "Errors"} {
		assert.Contains(t, out, want)
	}
}

// TestPrintStatus_Empty tests that optional sections are skipped
func TestPrintStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintStatus(&buf, engine.Status{State: engine.StateRunning})

	out := buf.String()
	assert.Contains(t, out, "never")
	assert.NotContains(t, out, "POSITIONS")
	assert.NotContains(t, out, "RECENT EVENTS")
}

// TestExportTradeJournal tests the workbook contents
func TestExportTradeJournal(t *testing.T) {
	path := JournalPath(filepath.Join(t.TempDir(), "reports"), reportTime)
	assert.Equal(t, "trade_journal_20240301_120000.xlsx", filepath.Base(path))

	journal := Journal{
		Trades: []exchange.TradeResult{
			{TradeID: "a", Symbol: "BTCUSDT", Side: exchange.SideBuy, Quantity: 0.1, Price: 60000, Notional: 6000, Strategy: "momentum", ExecutedAt: reportTime},
			{TradeID: "b", Symbol: "BTCUSDT", Side: exchange.SideSell, Quantity: 0.1, Price: 57000, Notional: 5700, RealizedPnL: -300, Strategy: "risk_exit", OpenedBy: "momentum", ExecutedAt: reportTime.Add(time.Hour)},
		},
		Events: []engine.Event{
			{Type: engine.EventExit, Symbol: "BTCUSDT", Message: "stop-loss hit", Timestamp: reportTime.Add(time.Hour)},
			{Type: engine.EventTrade, Symbol: "BTCUSDT", Message: "BUY", Timestamp: reportTime},
		},
		Risk: risk.Metrics{
			PortfolioValue: 9700,
			Concentrations: map[string]float64{"ETHUSDT": 0.1},
		},
		GeneratedAt: reportTime,
	}
	require.NoError(t, ExportTradeJournal(path, journal))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{tradesSheet, eventsSheet, riskSheet}, fx.GetSheetList())

	side, err := fx.GetCellValue(tradesSheet, "D3")
	require.NoError(t, err)
	assert.Equal(t, "SELL", side)
	openedBy, _ := fx.GetCellValue(tradesSheet, "K3")
	assert.Equal(t, "momentum", openedBy)

	first, _ := fx.GetCellValue(eventsSheet, "E2")
	assert.Equal(t, "BUY", first)

	rows, err := fx.GetRows(riskSheet)
	require.NoError(t, err)
	assert.Equal(t, "Concentration ETHUSDT", rows[len(rows)-1][0])
}
