package renderer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// tables parses markdown and returns, for each table, its number of body rows.
func tables(t *testing.T, src string) []int {
	t.Helper()
	doc := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser().Parse(text.NewReader([]byte(src)))
	var rows []int
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case extast.KindTable:
			rows = append(rows, 0)
		case extast.KindTableRow:
			rows[len(rows)-1]++
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return rows
}

func assertContains(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output does not contain %q:\n%s", w, got)
		}
	}
}

var jan1 = date.New(2025, time.January, 1)

func TestHoldingsMarkdown(t *testing.T) {
	lots := []mfm.Lot{
		{
			Symbol: "AAPL", Sequence: 1, Date: jan1, Amount: 50, UnitCost: dec("150"), Instrument: mfm.EquityLot{},
			Valuation: mfm.Valuation{
				Cost: dec("7500"), MarketValueUSD: dec("8250"), MarketValueILS: dec("33000"),
				ProfitUSD: dec("750"), ProfitILS: dec("3000"), ProfitPercent: dec("10"), PercentDefined: true,
				At: time.Now(),
			},
		},
		{
			Symbol: "TEVA", Sequence: 1, Date: jan1, Amount: 1, UnitCost: dec("19500"), Instrument: mfm.FundLot{Ref: "5109889"},
			Valuation: mfm.Valuation{Cost: dec("195"), MarketValueILS: dec("195"), Stale: true, At: time.Now()},
		},
		{Symbol: "MSFT", Sequence: 1, Date: jan1, Amount: 1, UnitCost: dec("300"), Instrument: mfm.EquityLot{}},
	}
	got := HoldingsMarkdown(lots)

	if rows := tables(t, got); len(rows) != 1 || rows[0] != 4 {
		t.Errorf("want one table with 3 lots and a total, got %v:\n%s", rows, got)
	}
	assertContains(t, got, "# Holdings", "AAPL#1", "TEVA#1 (5109889)*", "$8,250.00", "+10.00%", "price unavailable")
}

func TestHoldingsMarkdown_Empty(t *testing.T) {
	got := HoldingsMarkdown(nil)
	if rows := tables(t, got); len(rows) != 0 {
		t.Errorf("want no table, got %v", rows)
	}
	assertContains(t, got, "No holdings.")
}

func TestHistoryMarkdown(t *testing.T) {
	snaps := []mfm.Snapshot{
		{Date: jan1.Add(1), ProfitILS: dec("-12.5"), ProfitPercent: decimal.NewNullDecimal(dec("-1.25"))},
		{Date: jan1},
	}
	got := HistoryMarkdown(snaps)
	if rows := tables(t, got); len(rows) != 1 || rows[0] != 2 {
		t.Errorf("want one table with 2 rows, got %v:\n%s", rows, got)
	}
	assertContains(t, got, "2025-01-02", "2025-01-01", "-1.25%")
}

func TestAssetsMarkdown(t *testing.T) {
	a := Assets{
		ILS:    dec("14785"),
		USD:    dec("3696.25"),
		Profit: mfm.Profit{ILS: dec("1200"), Percent: dec("9.09"), Defined: true},
		Bank:   dec("1000"),
	}
	got := AssetsMarkdown(a)
	if rows := tables(t, got); len(rows) != 1 {
		t.Errorf("want only the totals table without foreign cash, got %v", rows)
	}
	assertContains(t, got, "# Total Assets", "$3,696.25", "+9.09%")

	a.Foreign = []mfm.ForeignBalance{{Currency: "EUR", Account: mfm.Trader, Amount: dec("100"), ILS: dec("390"), Updated: time.Now()}}
	got = AssetsMarkdown(a)
	if rows := tables(t, got); len(rows) != 2 || rows[1] != 1 {
		t.Errorf("want a foreign currencies table, got %v:\n%s", rows, got)
	}
	assertContains(t, got, "## Foreign Currencies", "trader")
}

func TestDivestmentMarkdown(t *testing.T) {
	p := mfm.DivestmentPlan{
		Symbol: "AAPL", Amount: 60, Cost: dec("9000"),
		Steps: []mfm.DivestmentStep{
			{Lot: mfm.LotKey{Symbol: "AAPL", Sequence: 1}, Taken: 50, Left: 0, Cost: dec("7500")},
			{Lot: mfm.LotKey{Symbol: "AAPL", Sequence: 2}, Taken: 10, Left: 20, Cost: dec("1500")},
		},
	}
	got := DivestmentMarkdown(p, mfm.USD)
	if rows := tables(t, got); len(rows) != 1 || rows[0] != 3 {
		t.Errorf("want 2 steps and a total, got %v:\n%s", rows, got)
	}
	assertContains(t, got, "# Sold 60 AAPL", "AAPL#2", "$9,000.00")
	if strings.Contains(got, "no longer held") {
		t.Error("plan is not closed")
	}
}

func TestRevalueMarkdown(t *testing.T) {
	r := mfm.RevalueReport{
		Cycle:   uuid.New(),
		Updated: []string{"AAPL"},
		Failed:  map[string]error{"MSFT": errors.New("price unavailable")},
	}
	got := RevalueMarkdown(r)
	if rows := tables(t, got); len(rows) != 1 || rows[0] != 1 {
		t.Errorf("want one failure row, got %v:\n%s", rows, got)
	}
	assertContains(t, got, "1 symbols updated, 1 failed", "MSFT")
}

func TestStatusMarkdown(t *testing.T) {
	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	got := StatusMarkdown(mfm.LastModified{mfm.MarkerStocks: at, mfm.MarkerBank: at})
	if rows := tables(t, got); len(rows) != 1 || rows[0] != 2 {
		t.Errorf("want 2 markers, got %v:\n%s", rows, got)
	}
	if strings.Index(got, "bank") > strings.Index(got, "stocks") {
		t.Error("markers are not sorted")
	}
}
