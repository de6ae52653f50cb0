package renderer

import (
	"bytes"
	"io"
	"sort"
	"time"

	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
)

// Assets is the overview shown by the assets command.
type Assets struct {
	ILS     decimal.Decimal
	USD     decimal.Decimal
	Profit  mfm.Profit
	Bank    decimal.Decimal
	Trader  decimal.Decimal
	Foreign []mfm.ForeignBalance
}

// AssetsMarkdown renders the total assets, the profit and the cash.
func AssetsMarkdown(a Assets) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Total Assets")
	doc.Table(md.TableSet{
		Header: []string{md.Bold("Total"), md.Bold(money(a.ILS, mfm.ILS)), md.Bold(money(a.USD, mfm.USD))},
		Rows: [][]string{
			{"Profit", signed(a.Profit.ILS, mfm.ILS), percent(a.Profit.Percent, a.Profit.Defined)},
			{"Bank cash flow", money(a.Bank, mfm.ILS), ""},
			{"Trader cash flow", money(a.Trader, mfm.ILS), ""},
		},
	})
	var out bytes.Buffer
	out.WriteString(doc.String())
	ConditionalBlock(&out, func(w io.Writer) bool {
		if len(a.Foreign) == 0 {
			return false
		}
		io.WriteString(w, "\n")
		io.WriteString(w, ForeignMarkdown(a.Foreign))
		return true
	})
	return out.String()
}

// ForeignMarkdown renders the foreign currency balances.
func ForeignMarkdown(list []mfm.ForeignBalance) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H2("Foreign Currencies")
	table := md.TableSet{
		Header: []string{"Currency", "Account", "Amount", "Value (ILS)", "Updated"},
		Rows:   [][]string{},
	}
	for _, b := range list {
		table.Rows = append(table.Rows, []string{
			string(b.Currency),
			string(b.Account),
			money(b.Amount, b.Currency),
			money(b.ILS, mfm.ILS),
			b.Updated.Format(time.DateTime),
		})
	}
	doc.Table(table)
	return doc.String()
}

// StatusMarkdown renders the last modified markers.
func StatusMarkdown(m mfm.LastModified) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Last Modified")

	markers := make([]string, 0, len(m))
	for k := range m {
		markers = append(markers, string(k))
	}
	sort.Strings(markers)
	table := md.TableSet{Header: []string{"Data", "Modified"}, Rows: [][]string{}}
	for _, k := range markers {
		table.Rows = append(table.Rows, []string{k, m[mfm.Marker(k)].Local().Format(time.DateTime)})
	}
	doc.Table(table)
	return doc.String()
}
