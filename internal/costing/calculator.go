// Package costing derives quotation and invoice amounts. All money values are
// exact decimals rounded to two places; GST is levied on the base amount only.
package costing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown holds the derived amounts for a base cost.
type Breakdown struct {
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	ServiceTax  decimal.Decimal `json:"serviceTax"`
	GSTAmount   decimal.Decimal `json:"gstAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// GST computes the GST levied on the base amount at the given percentage
// rate, rounded to two decimal places. Service tax is never part of the
// GST base.
func GST(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred).Round(2)
}

// Calculate derives the full breakdown for a base amount, flat service tax
// and GST percentage rate.
func Calculate(base, serviceTax, rate decimal.Decimal) Breakdown {
	base = base.Round(2)
	serviceTax = serviceTax.Round(2)
	gst := GST(base, rate)
	return Breakdown{
		BaseAmount:  base,
		ServiceTax:  serviceTax,
		GSTAmount:   gst,
		TotalAmount: base.Add(serviceTax).Add(gst).Round(2),
	}
}

// ValidateInputs checks a base amount and service tax for plausibility and
// returns one message per violation. An empty slice means the inputs are valid.
func ValidateInputs(base, serviceTax decimal.Decimal) []string {
	var problems []string
	if base.LessThanOrEqual(decimal.Zero) {
		problems = append(problems, "base amount must be greater than zero")
	}
	if serviceTax.IsNegative() {
		problems = append(problems, "service tax cannot be negative")
	}
	return problems
}
