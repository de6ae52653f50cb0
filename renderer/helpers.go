package renderer

import (
	"bytes"
	"io"

	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
)

// ConditionalBlock let you fully write a block and decide at the end to print it or not.
// If the block function returns true, the content is printed to w, otherwise it is discarded.
func ConditionalBlock(w io.Writer, block func(io.Writer) bool) {
	bw := &bytes.Buffer{}
	if block(bw) {
		io.Copy(w, bw)
	}
}

func money(v decimal.Decimal, cur mfm.Currency) string { return mfm.M(v, cur).String() }

func signed(v decimal.Decimal, cur mfm.Currency) string { return mfm.M(v, cur).SignedString() }

// percent formats a percentage with its sign, or "-" if it is undefined.
func percent(v decimal.Decimal, defined bool) string {
	if !defined {
		return "-"
	}
	if v.IsPositive() {
		return "+" + v.StringFixed(2) + "%"
	}
	return v.StringFixed(2) + "%"
}
