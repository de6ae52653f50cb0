package mfm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestStore_AddLot(t *testing.T) {
	s := NewStore()

	l1, err := s.AddLot(" aapl ", 50, dec("150"), USD, jan1, "")
	if err != nil {
		t.Fatalf("AddLot() error = %v", err)
	}
	l2, err := s.AddLot("AAPL", 30, dec("160"), USD, jan2, "")
	if err != nil {
		t.Fatalf("AddLot() error = %v", err)
	}
	f1, err := s.AddLot("TEVA", 10, dec("19500"), ILS, jan1, "5109889")
	if err != nil {
		t.Fatalf("AddLot() error = %v", err)
	}

	if l1.Key() != (LotKey{"AAPL", 1}) || l2.Key() != (LotKey{"AAPL", 2}) || f1.Key() != (LotKey{"TEVA", 1}) {
		t.Errorf("keys = %v, %v, %v want AAPL#1, AAPL#2, TEVA#1", l1.Key(), l2.Key(), f1.Key())
	}
	if _, ok := l1.Instrument.(EquityLot); !ok {
		t.Errorf("USD lot instrument = %T, want EquityLot", l1.Instrument)
	}
	if got := f1.FundRef(); got != "5109889" {
		t.Errorf("FundRef() = %q, want %q", got, "5109889")
	}
	if !l1.Valuation.IsZero() {
		t.Errorf("a new lot must not be valued, got %+v", l1.Valuation)
	}

	if got, want := s.Symbols(), []string{"AAPL", "TEVA"}; !cmp.Equal(got, want) {
		t.Errorf("Symbols() = %v, want %v", got, want)
	}
	if got := s.Held("aapl"); got != 80 {
		t.Errorf("Held(aapl) = %d, want 80", got)
	}
	if got := len(s.All()); got != 3 {
		t.Errorf("len(All()) = %d, want 3", got)
	}
}

func TestStore_AddLot_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		amount   int
		unitCost decimal.Decimal
		cur      Currency
		ref      FundRef
	}{
		{"USD with fund", "AAPL", 1, dec("1"), USD, "5109889"},
		{"ILS without fund", "TEVA", 1, dec("1"), ILS, ""},
		{"zero amount", "AAPL", 0, dec("1"), USD, ""},
		{"negative amount", "AAPL", -5, dec("1"), USD, ""},
		{"negative cost", "AAPL", 1, dec("-1"), USD, ""},
		{"other currency", "SAP", 1, dec("1"), "EUR", ""},
		{"empty symbol", "  ", 1, dec("1"), USD, ""},
		{"currency change", "MSFT", 1, dec("1"), ILS, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			must(s.AddLot("MSFT", 10, dec("300"), USD, jan1, ""))
			before := s.All()

			_, err := s.AddLot(tt.symbol, tt.amount, tt.unitCost, tt.cur, jan2, tt.ref)
			if !errors.Is(err, ErrInvalidStockDefinition) {
				t.Fatalf("AddLot() error = %v, want ErrInvalidStockDefinition", err)
			}
			if diff := cmp.Diff(before, s.All(), cmpOpts); diff != "" {
				t.Errorf("store changed on error (-before +after):\n%s", diff)
			}
		})
	}
}

func TestStore_LotsIsACopy(t *testing.T) {
	s := NewStore()
	must(s.AddLot("AAPL", 50, dec("150"), USD, jan1, ""))

	lots := s.Lots("AAPL")
	lots[0].Amount = 1

	if got := s.Lots("AAPL")[0].Amount; got != 50 {
		t.Errorf("Lots() leaked internal state, amount = %d want 50", got)
	}
	if got := s.Lots("NONE"); len(got) != 0 {
		t.Errorf("Lots(NONE) = %v want empty", got)
	}
}

func TestStore_Load(t *testing.T) {
	s := NewStore()
	lots := []Lot{
		{Symbol: "AAPL", Sequence: 2, Date: jan2, Amount: 30, UnitCost: dec("160"), Instrument: EquityLot{}},
		{Symbol: "AAPL", Sequence: 1, Date: jan1, Amount: 50, UnitCost: dec("150"), Instrument: EquityLot{}},
	}
	if err := s.Load(lots); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := s.Lots("AAPL")
	if len(got) != 2 || got[0].Sequence != 1 || got[1].Sequence != 2 {
		t.Errorf("Load() did not order lots by sequence: %v", got)
	}
	// next sequence follows the loaded ones
	l := must(s.AddLot("AAPL", 1, dec("1"), USD, jan2, ""))
	if l.Sequence != 3 {
		t.Errorf("AddLot() after Load sequence = %d want 3", l.Sequence)
	}

	dup := append(lots, lots[0])
	if err := s.Load(dup); !errors.Is(err, ErrInvalidStockDefinition) {
		t.Errorf("Load(duplicate) error = %v want ErrInvalidStockDefinition", err)
	}
	bad := []Lot{{Symbol: "AAPL", Sequence: 1, Date: jan1, Amount: 0, UnitCost: dec("1"), Instrument: EquityLot{}}}
	if err := s.Load(bad); !errors.Is(err, ErrInvalidStockDefinition) {
		t.Errorf("Load(zero amount) error = %v want ErrInvalidStockDefinition", err)
	}
	if got := s.Held("AAPL"); got != 81 {
		t.Errorf("failed Load changed the store, held = %d want 81", got)
	}
}
