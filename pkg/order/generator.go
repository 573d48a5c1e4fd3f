package order

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Generator creates random orders for load testing. It is not safe for
// concurrent use; the whole sequence is built before dispatch starts.
type Generator struct {
	symbols []string
	rng     *rand.Rand
}

// NewGenerator creates a new order generator. A nil rng is seeded from the
// wall clock; empty symbols fall back to DefaultSymbols.
func NewGenerator(rng *rand.Rand, symbols []string) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	return &Generator{
		symbols: append([]string(nil), symbols...),
		rng:     rng,
	}
}

// NewSeededGenerator returns a generator whose sequence is reproducible.
// Seed 0 means "seed from the clock".
func NewSeededGenerator(seed int64) *Generator {
	if seed == 0 {
		return NewGenerator(nil, nil)
	}
	return NewGenerator(rand.New(rand.NewSource(seed)), nil)
}

// Generate draws every field independently and uniformly.
func (g *Generator) Generate() Order {
	return Order{
		Symbol:   g.symbols[g.rng.Intn(len(g.symbols))],
		Side:     Sides[g.rng.Intn(len(Sides))],
		Type:     Types[g.rng.Intn(len(Types))],
		Quantity: g.uniform(MinQuantity, MaxQuantity),
		Price:    g.uniform(MinPrice, MaxPrice),
	}
}

// GenerateBatch materializes n orders up front.
func (g *Generator) GenerateBatch(n int) []Order {
	if n <= 0 {
		return []Order{}
	}
	batch := make([]Order, n)
	for i := range batch {
		batch[i] = g.Generate()
	}
	return batch
}

var step = decimal.New(1, -Decimals)

// uniform draws from [lo, hi) and rounds to Decimals places. A draw that
// rounds up onto hi is pulled back one step.
func (g *Generator) uniform(lo, hi decimal.Decimal) decimal.Decimal {
	span := hi.Sub(lo).InexactFloat64()
	v := decimal.NewFromFloat(g.rng.Float64()*span + lo.InexactFloat64()).Round(Decimals)
	if v.GreaterThanOrEqual(hi) {
		v = hi.Sub(step)
	}
	if v.LessThan(lo) {
		v = lo
	}
	return v
}
