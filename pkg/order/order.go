package order

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Type string

const (
	TypeMarket Type = "market"
	TypeLimit  Type = "limit"
	TypeIOC    Type = "ioc"
	TypeFOK    Type = "fok"
)

var (
	Sides = []Side{SideBuy, SideSell}
	Types = []Type{TypeMarket, TypeLimit, TypeIOC, TypeFOK}

	// DefaultSymbols are the trading pairs the ingestion endpoint lists.
	DefaultSymbols = []string{"BTC-USDT", "ETH-USDT", "SOL-USDT", "XRP-USDT", "ADA-USDT"}
)

// Half-open ranges [min, max) for generated decimals.
var (
	MinQuantity = decimal.NewFromInt(1)
	MaxQuantity = decimal.NewFromInt(1001)
	MinPrice    = decimal.NewFromInt(10)
	MaxPrice    = decimal.NewFromInt(100010)
)

// Decimals is the number of fractional digits kept on quantity and price.
const Decimals = 2

var ErrInvalidOrder = errors.New("invalid order")

// Order is a synthetic trade instruction. It is passed by value and never
// mutated after the generator returns it.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Type     Type            `json:"order_type"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// wireOrder keeps quantity and price as JSON numbers; decimal.Decimal
// quotes itself by default.
type wireOrder struct {
	Symbol   string      `json:"symbol"`
	Side     Side        `json:"side"`
	Type     Type        `json:"order_type"`
	Quantity json.Number `json:"quantity"`
	Price    json.Number `json:"price"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireOrder{
		Symbol:   o.Symbol,
		Side:     o.Side,
		Type:     o.Type,
		Quantity: json.Number(o.Quantity.String()),
		Price:    json.Number(o.Price.String()),
	})
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

func (t Type) Valid() bool {
	switch t {
	case TypeMarket, TypeLimit, TypeIOC, TypeFOK:
		return true
	}
	return false
}

// Validate checks the domain constraints every generated order satisfies.
func (o Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("%w: order_type %q", ErrInvalidOrder, o.Type)
	}
	if err := checkRange("quantity", o.Quantity, MinQuantity, MaxQuantity); err != nil {
		return err
	}
	return checkRange("price", o.Price, MinPrice, MaxPrice)
}

func checkRange(field string, v, lo, hi decimal.Decimal) error {
	if v.LessThan(lo) || v.GreaterThanOrEqual(hi) {
		return fmt.Errorf("%w: %s %s outside [%s, %s)", ErrInvalidOrder, field, v, lo, hi)
	}
	if !v.Equal(v.Round(Decimals)) {
		return fmt.Errorf("%w: %s %s has more than %d decimals", ErrInvalidOrder, field, v, Decimals)
	}
	return nil
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s qty=%s px=%s", o.Symbol, o.Side, o.Type, o.Quantity, o.Price)
}
