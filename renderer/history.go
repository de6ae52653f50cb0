package renderer

import (
	"bytes"

	md "github.com/nao1215/markdown"

	"github.com/etnz/mfm"
)

// HistoryMarkdown renders the snapshots, in the given order.
func HistoryMarkdown(snapshots []mfm.Snapshot) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("History")

	table := md.TableSet{
		Header: []string{"Date", "Portfolio (ILS)", "Portfolio (USD)", "Profit (ILS)", "Profit", "Foreign (ILS)", "Bank", "Trader", "Total (ILS)", "Total (USD)"},
		Rows:   [][]string{},
	}
	for _, s := range snapshots {
		table.Rows = append(table.Rows, []string{
			s.Date.String(),
			money(s.Portfolio.ILS, mfm.ILS),
			money(s.Portfolio.USD, mfm.USD),
			signed(s.ProfitILS, mfm.ILS),
			percent(s.ProfitPercent.Decimal, s.ProfitPercent.Valid),
			money(s.ForeignCurrencies, mfm.ILS),
			money(s.BankCashFlow, mfm.ILS),
			money(s.TraderCashFlow, mfm.ILS),
			money(s.TotalAssets.ILS, mfm.ILS),
			money(s.TotalAssets.USD, mfm.USD),
		})
	}
	doc.Table(table)
	return doc.String()
}
