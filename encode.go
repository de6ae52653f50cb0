package mfm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/mfm/date"
	"github.com/shopspring/decimal"
)

// This file contains the JSONL encoding of the state: one object per line,
// with a stable field order so that files are diff friendly.

// MarshalJSON writes the lot with its instrument flattened into "currency" and "fund".
func (l Lot) MarshalJSON() ([]byte, error) {
	if l.Instrument == nil {
		return nil, fmt.Errorf("lot %s has no instrument", l.Key())
	}
	var w orderedObject
	w.Set("symbol", l.Symbol)
	w.Set("lot", l.Sequence)
	w.Set("date", l.Date)
	w.Set("amount", l.Amount)
	w.Set("unitCost", l.UnitCost)
	w.Set("currency", l.Currency())
	w.SetNonZero("fund", l.FundRef())
	if !l.Valuation.IsZero() {
		w.Set("valuation", l.Valuation)
	}
	return w.MarshalJSON()
}

// jlot is the object read from a lot line.
type jlot struct {
	Symbol    string          `json:"symbol"`
	Lot       int             `json:"lot"`
	Date      date.Date       `json:"date"`
	Amount    int             `json:"amount"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Currency  string          `json:"currency"`
	Fund      FundRef         `json:"fund"`
	Valuation *Valuation      `json:"valuation"`
}

// UnmarshalJSON reads a lot written by MarshalJSON.
func (l *Lot) UnmarshalJSON(data []byte) error {
	var j jlot
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	inst, err := NewInstrument(Currency(strings.ToUpper(j.Currency)), j.Fund)
	if err != nil {
		return err
	}
	*l = Lot{
		Symbol:     j.Symbol,
		Sequence:   j.Lot,
		Date:       j.Date,
		Amount:     j.Amount,
		UnitCost:   j.UnitCost,
		Instrument: inst,
	}
	if j.Valuation != nil {
		l.Valuation = *j.Valuation
	}
	return nil
}

// encodeLines writes each item as a JSON line.
func encodeLines[T any](w io.Writer, items []T) error {
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return err
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// decodeLines reads a JSONL stream, skipping empty lines.
// filename is for error messages only.
func decodeLines[T any](filename string, r io.Reader) ([]T, error) {
	var items []T
	scanner := bufio.NewScanner(r)
	i := 0
	for scanner.Scan() {
		i++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("parse error %s:%d: %w", filename, i, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error %s: %w", filename, err)
	}
	return items, nil
}
