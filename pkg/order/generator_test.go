package order

import (
	"encoding/json"
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
)

func TestGenerateBatch_Count(t *testing.T) {
	g := NewSeededGenerator(7)
	for _, n := range []int{-3, 0, 1, 17, 1000} {
		got := g.GenerateBatch(n)
		want := n
		if want < 0 {
			want = 0
		}
		if len(got) != want {
			t.Errorf("GenerateBatch(%d) returned %d orders, want %d", n, len(got), want)
		}
	}
}

func TestGenerate_DomainConstraints(t *testing.T) {
	g := NewSeededGenerator(42)
	for i, o := range g.GenerateBatch(5000) {
		if err := o.Validate(); err != nil {
			t.Fatalf("order %d invalid: %v (%s)", i, err, o)
		}
		if !slices.Contains(DefaultSymbols, o.Symbol) {
			t.Fatalf("order %d: unexpected symbol %q", i, o.Symbol)
		}
		if o.Quantity.Exponent() < -Decimals || o.Price.Exponent() < -Decimals {
			t.Fatalf("order %d: more than %d decimals: %s", i, Decimals, o)
		}
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a := NewSeededGenerator(99).GenerateBatch(200)
	b := NewSeededGenerator(99).GenerateBatch(200)
	for i := range a {
		if a[i].Symbol != b[i].Symbol || a[i].Side != b[i].Side || a[i].Type != b[i].Type ||
			!a[i].Quantity.Equal(b[i].Quantity) || !a[i].Price.Equal(b[i].Price) {
			t.Fatalf("order %d differs across equal seeds: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestGenerate_CoversEnumerations(t *testing.T) {
	g := NewSeededGenerator(3)
	symbols := map[string]bool{}
	sides := map[Side]bool{}
	types := map[Type]bool{}
	for _, o := range g.GenerateBatch(2000) {
		symbols[o.Symbol] = true
		sides[o.Side] = true
		types[o.Type] = true
	}
	if len(symbols) != len(DefaultSymbols) || len(sides) != len(Sides) || len(types) != len(Types) {
		t.Errorf("coverage symbols=%d sides=%d types=%d", len(symbols), len(sides), len(types))
	}
}

func TestGenerator_CustomSymbols(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(1)), []string{"DOGE-USDT"})
	for _, o := range g.GenerateBatch(50) {
		if o.Symbol != "DOGE-USDT" {
			t.Fatalf("got symbol %q", o.Symbol)
		}
	}
}

// upperRand makes Float64 return the largest value below 1.
type upperRand struct{}

func (upperRand) Int63() int64 { return 1<<63 - 1024 }
func (upperRand) Seed(int64)   {}

func TestUniform_ClampsUpperBound(t *testing.T) {
	g := NewGenerator(rand.New(upperRand{}), []string{"BTC-USDT"})
	o := g.Generate()
	if !o.Quantity.LessThan(MaxQuantity) {
		t.Errorf("quantity %s reached upper bound", o.Quantity)
	}
	if !o.Price.LessThan(MaxPrice) {
		t.Errorf("price %s reached upper bound", o.Price)
	}
}

func TestOrder_MarshalJSON(t *testing.T) {
	o := Order{
		Symbol:   "BTC-USDT",
		Side:     SideBuy,
		Type:     TypeLimit,
		Quantity: decimal.RequireFromString("12.5"),
		Price:    decimal.RequireFromString("50123.45"),
	}
	b, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"symbol":"BTC-USDT","side":"buy","order_type":"limit","quantity":12.5,"price":50123.45}`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}

	var back Order
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Quantity.Equal(o.Quantity) || !back.Price.Equal(o.Price) || back.Type != o.Type {
		t.Errorf("decoded %s, want %s", back, o)
	}
}

func TestOrder_Validate(t *testing.T) {
	base := Order{
		Symbol:   "ETH-USDT",
		Side:     SideSell,
		Type:     TypeIOC,
		Quantity: decimal.RequireFromString("1"),
		Price:    decimal.RequireFromString("10"),
	}
	tests := []struct {
		name  string
		mut   func(o Order) Order
		valid bool
	}{
		{"lower bounds", func(o Order) Order { return o }, true},
		{"upper bounds exclusive", func(o Order) Order {
			o.Quantity = decimal.RequireFromString("1001")
			return o
		}, false},
		{"just below upper", func(o Order) Order {
			o.Quantity = decimal.RequireFromString("1000.99")
			o.Price = decimal.RequireFromString("100009.99")
			return o
		}, true},
		{"three decimals", func(o Order) Order {
			o.Price = decimal.RequireFromString("10.001")
			return o
		}, false},
		{"bad side", func(o Order) Order { o.Side = "hold"; return o }, false},
		{"bad type", func(o Order) Order { o.Type = "gtc"; return o }, false},
		{"empty symbol", func(o Order) Order { o.Symbol = ""; return o }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mut(base).Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}
}
