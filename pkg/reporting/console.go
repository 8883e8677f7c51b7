package reporting

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-trading-bot/internal/engine"
)

// maxConsoleEvents bounds the recent events printed with a status report
const maxConsoleEvents = 10

// PrintStatus renders the engine status as console tables
func PrintStatus(w io.Writer, status engine.Status) {
	printEngineTable(w, status)
	printRiskTable(w, status)
	if len(status.Positions) > 0 {
		printPositionsTable(w, status)
	}
	if len(status.StrategyWeights) > 0 {
		printWeightsTable(w, status)
	}
	if len(status.RecentEvents) > 0 {
		printEventsTable(w, status.RecentEvents)
	}
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func printEngineTable(w io.Writer, status engine.Status) {
	t := newTable(w, "TRADING ENGINE")

	lastCycle := "never"
	if !status.LastCycle.IsZero() {
		lastCycle = status.LastCycle.UTC().Format(time.RFC3339)
	}

	t.AppendRows([]table.Row{
		{"🚦 State", status.State.String()},
		{"📊 Symbols", fmt.Sprintf("%v", status.Symbols)},
		{"🔄 Cycles", status.Cycles},
		{"⏰ Last Cycle", lastCycle},
		{"📈 Trades (1h)", fmt.Sprintf("%d / %d", status.TradesLastHour, status.Settings.Signals.MaxTradesPerHour)},
		{"📒 Trades", status.TotalTrades},
		{"❗ Errors", status.ErrorCount},
	})
	if status.NextTradeSlot != nil {
		t.AppendRow(table.Row{"⏳ Next Slot", status.NextTradeSlot.UTC().Format(time.RFC3339)})
	}
	if status.LastError != "" || status.LastHaltReason != "" {
		t.AppendSeparator()
		if status.LastHaltReason != "" {
			t.AppendRow(table.Row{"🚨 Halted", status.LastHaltReason})
		}
		if status.LastError != "" {
			t.AppendRow(table.Row{"⚠️ Last Error", status.LastError})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

func printRiskTable(w io.Writer, status engine.Status) {
	m := status.Risk
	t := newTable(w, "RISK")

	t.AppendRows([]table.Row{
		{"💰 Portfolio", fmt.Sprintf("$%.2f", m.PortfolioValue)},
		{"💵 Cash", fmt.Sprintf("$%.2f", m.CashBalance)},
		{"📉 Drawdown", fmt.Sprintf("%.2f%% (max %.2f%%)", m.CurrentDrawdown*100, m.Limits.MaxDrawdownPct*100)},
		{"📅 Daily P&L", fmt.Sprintf("$%.2f (limit -$%.2f)", m.DailyPnL, m.DailyLossLimit)},
		{"🔢 Daily Trades", fmt.Sprintf("%d / %d", m.DailyTrades, m.Limits.MaxDailyTrades)},
		{"🎯 VaR 95%", fmt.Sprintf("$%.2f", m.VaR95)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignRight},
	})
	t.Render()
}

func printPositionsTable(w io.Writer, status engine.Status) {
	t := newTable(w, "POSITIONS")
	t.AppendHeader(table.Row{"Symbol", "Qty", "Avg", "Price", "Unrealized", "SL", "TP", "Strategy"})

	for _, p := range status.Positions {
		t.AppendRow(table.Row{
			p.Symbol,
			fmt.Sprintf("%.6f", p.Quantity),
			fmt.Sprintf("%.4f", p.AvgPrice),
			fmt.Sprintf("%.4f", p.CurrentPrice),
			fmt.Sprintf("%.2f", p.UnrealizedPnL),
			fmt.Sprintf("%.4f", p.StopLoss),
			fmt.Sprintf("%.4f", p.TakeProfit),
			p.Strategy,
		})
	}
	t.Render()
}

func printWeightsTable(w io.Writer, status engine.Status) {
	names := make([]string, 0, len(status.StrategyWeights))
	for name := range status.StrategyWeights {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w, "STRATEGY WEIGHTS")
	for _, name := range names {
		t.AppendRow(table.Row{name, fmt.Sprintf("%.2f", status.StrategyWeights[name])})
	}
	t.Render()
}

func printEventsTable(w io.Writer, events []engine.Event) {
	if len(events) > maxConsoleEvents {
		events = events[:maxConsoleEvents]
	}

	t := newTable(w, "RECENT EVENTS")
	t.AppendHeader(table.Row{"Time", "Type", "Symbol", "Strategy", "Message"})
	for _, ev := range events {
		t.AppendRow(table.Row{ev.Timestamp.UTC().Format("15:04:05"), string(ev.Type), ev.Symbol, ev.Strategy, ev.Message})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})
	t.Render()
}
