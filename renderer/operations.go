package renderer

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	md "github.com/nao1215/markdown"

	"github.com/etnz/mfm"
)

// DivestmentMarkdown renders what a sale did to each lot.
func DivestmentMarkdown(p mfm.DivestmentPlan, cur mfm.Currency) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1(fmt.Sprintf("Sold %d %s", p.Amount, p.Symbol))
	table := md.TableSet{Header: []string{"Lot", "Taken", "Left", "Cost"}, Rows: [][]string{}}
	for _, st := range p.Steps {
		table.Rows = append(table.Rows, []string{st.Lot.String(), strconv.Itoa(st.Taken), strconv.Itoa(st.Left), money(st.Cost, cur)})
	}
	table.Rows = append(table.Rows, []string{md.Bold("Total"), strconv.Itoa(p.Amount), "", md.Bold(money(p.Cost, cur))})
	doc.Table(table)
	if p.Closed {
		doc.PlainText(fmt.Sprintf("%s is no longer held.", p.Symbol))
	}
	return doc.String()
}

// RevalueMarkdown renders the outcome of a price update.
func RevalueMarkdown(r mfm.RevalueReport) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Price Update")
	doc.PlainText(fmt.Sprintf("%d symbols updated, %d failed (cycle %s).", len(r.Updated), len(r.Failed), r.Cycle))
	if len(r.Failed) == 0 {
		return doc.String()
	}
	symbols := make([]string, 0, len(r.Failed))
	for s := range r.Failed {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	table := md.TableSet{Header: []string{"Symbol", "Error"}, Rows: [][]string{}}
	for _, s := range symbols {
		table.Rows = append(table.Rows, []string{s, r.Failed[s].Error()})
	}
	doc.Table(table)
	return doc.String()
}
