package renderer

import (
	"bytes"
	"fmt"
	"strconv"

	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
)

// HoldingsMarkdown renders the lots as a table, in the given order.
//
// Lots whose last revaluation failed are marked with an asterisk.
func HoldingsMarkdown(lots []mfm.Lot) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Holdings")

	if len(lots) == 0 {
		doc.PlainText("No holdings.")
		return doc.String()
	}

	table := md.TableSet{
		Header: []string{"Lot", "Date", "Amount", "Unit Cost", "Cost", "Value (USD)", "Value (ILS)", "Profit (ILS)", "Profit"},
		Rows:   [][]string{},
	}
	stale := false
	mvILS, profitILS := decimal.Zero, decimal.Zero
	for _, l := range lots {
		v := l.Valuation
		key := l.Key().String()
		if ref := l.FundRef(); ref != "" {
			key = fmt.Sprintf("%s (%s)", key, ref)
		}
		if v.Stale {
			key += "*"
			stale = true
		}
		row := []string{key, l.Date.String(), strconv.Itoa(l.Amount), l.UnitCost.String(), money(l.Cost(), l.Currency())}
		if v.IsZero() {
			row = append(row, "-", "-", "-", "-")
		} else {
			row = append(row,
				money(v.MarketValueUSD, mfm.USD),
				money(v.MarketValueILS, mfm.ILS),
				signed(v.ProfitILS, mfm.ILS),
				percent(v.ProfitPercent, v.PercentDefined),
			)
		}
		table.Rows = append(table.Rows, row)
		mvILS = mvILS.Add(v.MarketValueILS)
		profitILS = profitILS.Add(v.ProfitILS)
	}
	table.Rows = append(table.Rows, []string{md.Bold("Total"), "", "", "", "", "", md.Bold(money(mvILS, mfm.ILS)), md.Bold(signed(profitILS, mfm.ILS)), ""})
	doc.Table(table)

	if stale {
		doc.PlainText("\\* price unavailable on the last update, values are from an earlier one.")
	}
	return doc.String()
}
