package reporting

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-trading-bot/internal/engine"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
)

const (
	tradesSheet = "Trades"
	eventsSheet = "Events"
	riskSheet   = "Risk Summary"
)

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	BaseStyle     int
	LossStyle     int
	ProfitStyle   int
}

// Journal is the session data written to the workbook
type Journal struct {
	Trades      []exchange.TradeResult
	Events      []engine.Event
	Risk        risk.Metrics
	GeneratedAt time.Time
}

// ExportTradeJournal writes trades, recent events and the risk summary to an xlsx workbook
func ExportTradeJournal(path string, journal Journal) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	if journal.GeneratedAt.IsZero() {
		journal.GeneratedAt = time.Now()
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), tradesSheet); err != nil {
		return err
	}
	for _, sheet := range []string{eventsSheet, riskSheet} {
		if _, err := fx.NewSheet(sheet); err != nil {
			return err
		}
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeTradesSheet(fx, journal.Trades, styles); err != nil {
		return err
	}
	if err := writeEventsSheet(fx, journal.Events, styles); err != nil {
		return err
	}
	if err := writeRiskSheet(fx, journal, styles); err != nil {
		return err
	}

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Dark slate header with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return styles, err
	}

	styles.LossStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "FF0000"},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	styles.ProfitStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "008000"},
		Border: border,
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := fx.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", last, styles.HeaderStyle); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeTradesSheet(fx *excelize.File, trades []exchange.TradeResult, styles ExcelStyles) error {
	headers := []string{"Executed At", "Trade ID", "Symbol", "Side", "Quantity", "Price", "Notional", "Fee", "Realized P&L", "Strategy", "Opened By", "Reason"}
	if err := writeHeader(fx, tradesSheet, headers, styles); err != nil {
		return err
	}

	for i, tr := range trades {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			tr.ExecutedAt.UTC().Format("2006-01-02 15:04:05"),
			tr.TradeID,
			tr.Symbol,
			string(tr.Side),
			tr.Quantity,
			tr.Price,
			tr.Notional,
			tr.Fee,
			tr.RealizedPnL,
			tr.Strategy,
			tr.OpenedBy,
			tr.Reason,
		}
		if err := fx.SetSheetRow(tradesSheet, cell, &values); err != nil {
			return err
		}

		last, _ := excelize.CoordinatesToCellName(len(headers), row)
		if err := fx.SetCellStyle(tradesSheet, cell, last, styles.BaseStyle); err != nil {
			return err
		}
		for _, col := range []int{6, 7, 8} {
			c, _ := excelize.CoordinatesToCellName(col, row)
			if err := fx.SetCellStyle(tradesSheet, c, c, styles.CurrencyStyle); err != nil {
				return err
			}
		}
		pnlStyle := styles.CurrencyStyle
		switch {
		case tr.RealizedPnL > 0:
			pnlStyle = styles.ProfitStyle
		case tr.RealizedPnL < 0:
			pnlStyle = styles.LossStyle
		}
		pnlCell, _ := excelize.CoordinatesToCellName(9, row)
		if err := fx.SetCellStyle(tradesSheet, pnlCell, pnlCell, pnlStyle); err != nil {
			return err
		}
	}

	if err := fx.SetColWidth(tradesSheet, "A", "B", 22); err != nil {
		return err
	}
	return fx.SetColWidth(tradesSheet, "C", "L", 14)
}

func writeEventsSheet(fx *excelize.File, events []engine.Event, styles ExcelStyles) error {
	headers := []string{"Time", "Type", "Symbol", "Strategy", "Message"}
	if err := writeHeader(fx, eventsSheet, headers, styles); err != nil {
		return err
	}

	// oldest first reads naturally in a spreadsheet
	for i := range events {
		ev := events[len(events)-1-i]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			ev.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			string(ev.Type),
			ev.Symbol,
			ev.Strategy,
			ev.Message,
		}
		if err := fx.SetSheetRow(eventsSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := fx.SetColWidth(eventsSheet, "A", "D", 20); err != nil {
		return err
	}
	return fx.SetColWidth(eventsSheet, "E", "E", 80)
}

func writeRiskSheet(fx *excelize.File, journal Journal, styles ExcelStyles) error {
	m := journal.Risk
	if err := writeHeader(fx, riskSheet, []string{"Metric", "Value"}, styles); err != nil {
		return err
	}

	type metricRow struct {
		label string
		value interface{}
		style int
	}
	rows := []metricRow{
		{"Generated At", journal.GeneratedAt.UTC().Format("2006-01-02 15:04:05"), styles.BaseStyle},
		{"Portfolio Value", m.PortfolioValue, styles.CurrencyStyle},
		{"Cash Balance", m.CashBalance, styles.CurrencyStyle},
		{"Peak Value", m.PeakValue, styles.CurrencyStyle},
		{"Current Drawdown", m.CurrentDrawdown, styles.PercentStyle},
		{"Daily P&L", m.DailyPnL, styles.CurrencyStyle},
		{"Daily Loss Limit", m.DailyLossLimit, styles.CurrencyStyle},
		{"Daily Trades", m.DailyTrades, styles.BaseStyle},
		{"VaR 95%", m.VaR95, styles.CurrencyStyle},
		{"Open Positions", m.OpenPositions, styles.BaseStyle},
		{"Journal Trades", len(journal.Trades), styles.BaseStyle},
	}
	for _, symbol := range sortedKeys(m.Concentrations) {
		rows = append(rows, metricRow{"Concentration " + symbol, m.Concentrations[symbol], styles.PercentStyle})
	}
	for _, pair := range sortedKeys(m.Correlations) {
		rows = append(rows, metricRow{"Correlation " + pair, m.Correlations[pair], styles.BaseStyle})
	}

	for i, r := range rows {
		row := i + 2
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := fx.SetCellValue(riskSheet, labelCell, r.label); err != nil {
			return err
		}
		if err := fx.SetCellValue(riskSheet, valueCell, r.value); err != nil {
			return err
		}
		if err := fx.SetCellStyle(riskSheet, valueCell, valueCell, r.style); err != nil {
			return err
		}
	}

	return fx.SetColWidth(riskSheet, "A", "B", 28)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
