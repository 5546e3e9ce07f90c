package usage

import (
	"github.com/shopspring/decimal"

	"aichat/internal/models"
)

var perMillion = decimal.NewFromInt(1_000_000)

// Counters holds input and output token counts.
type Counters struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Accountant tracks token usage for a single turn.
//
// Some vendors report running totals on every chunk instead of deltas; for
// those the accountant replaces its counters rather than summing them.
type Accountant struct {
	accumulate bool
	totals     Counters
}

// NewAccountant returns an accountant. accumulate selects last-value-wins
// semantics for vendors that report cumulative counts.
func NewAccountant(accumulate bool) *Accountant {
	return &Accountant{accumulate: accumulate}
}

// Update applies the token counts carried by frame.
func (a *Accountant) Update(frame models.Frame) {
	if a.accumulate {
		a.totals.Input = 0
		a.totals.Output = 0
	}
	a.totals.Input += frame.InputTokens
	a.totals.Output += frame.OutputTokens
}

// Totals returns the running counters for the turn.
func (a *Accountant) Totals() Counters {
	return a.totals
}

// Reset clears the running counters.
func (a *Accountant) Reset() {
	a.totals = Counters{}
}

// Pricing is the price of one million tokens.
type Pricing struct {
	Input  decimal.Decimal `json:"input"`
	Output decimal.Decimal `json:"output"`
}

// NewPricing builds a Pricing from per-million prices.
func NewPricing(input, output float64) *Pricing {
	return &Pricing{
		Input:  decimal.NewFromFloat(input),
		Output: decimal.NewFromFloat(output),
	}
}

// Cost returns the price of the given counters.
func (p *Pricing) Cost(c Counters) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	in := p.Input.Mul(decimal.NewFromInt(int64(c.Input))).Div(perMillion)
	out := p.Output.Mul(decimal.NewFromInt(int64(c.Output))).Div(perMillion)
	return in.Add(out)
}

// Info is the cumulative usage of a session.
type Info struct {
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
}

// Add folds a finished turn into the session totals. It always sums,
// whatever policy the turn's accountant used.
func (i *Info) Add(c Counters, pricing *Pricing) {
	i.InputTokens += c.Input
	i.OutputTokens += c.Output
	i.Cost = i.Cost.Add(pricing.Cost(c))
}
