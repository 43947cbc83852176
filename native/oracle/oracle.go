package oracle

import (
	"errors"
	"math/big"
	"strings"
	"sync"
)

var (
	// ErrStalePrice indicates the freshest quote for a symbol is older than
	// the configured staleness bound.
	ErrStalePrice = errors.New("oracle: stale price")
	// ErrPriceNotFound indicates no quote has ever been posted for a symbol.
	ErrPriceNotFound = errors.New("oracle: price not found")
)

// DefaultMaxQuoteAgeMillis is the staleness bound applied when none is
// configured explicitly.
const DefaultMaxQuoteAgeMillis uint64 = 60_000

// Quote captures a posted price for a collateral asset. Price is denominated
// in base-asset units per whole token; Confidence carries the publisher's
// reported uncertainty in the same units.
type Quote struct {
	Symbol     string
	Price      *big.Int
	Confidence *big.Int
	UpdatedAt  uint64 // unix milliseconds
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q Quote) Clone() Quote {
	clone := Quote{Symbol: q.Symbol, UpdatedAt: q.UpdatedAt}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	if q.Confidence != nil {
		clone.Confidence = new(big.Int).Set(q.Confidence)
	}
	return clone
}

// PriceOracle resolves a fresh quote for the provided asset symbol. The caller
// supplies its notion of now (unix milliseconds) so staleness is judged against
// the same clock that drives interest accrual.
type PriceOracle interface {
	GetPrice(symbol string, nowMillis uint64) (Quote, error)
}

// ManualOracle serves quotes posted by trusted feeders. Quotes older than the
// configured maximum age are rejected rather than served.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	maxAge uint64 // milliseconds
}

// NewManualOracle constructs an oracle with the supplied staleness bound in
// milliseconds. A zero bound falls back to DefaultMaxQuoteAgeMillis.
func NewManualOracle(maxAgeMillis uint64) *ManualOracle {
	if maxAgeMillis == 0 {
		maxAgeMillis = DefaultMaxQuoteAgeMillis
	}
	return &ManualOracle{
		quotes: make(map[string]Quote),
		maxAge: maxAgeMillis,
	}
}

// SetMaxAge updates the freshness window used when serving quotes.
func (o *ManualOracle) SetMaxAge(maxAgeMillis uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if maxAgeMillis == 0 {
		maxAgeMillis = DefaultMaxQuoteAgeMillis
	}
	o.maxAge = maxAgeMillis
}

// MaxAge returns the current freshness window in milliseconds.
func (o *ManualOracle) MaxAge() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.maxAge
}

// SetPrice records a quote for the symbol, replacing any previous observation.
func (o *ManualOracle) SetPrice(symbol string, price, confidence *big.Int, atMillis uint64) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || price == nil {
		return
	}
	quote := Quote{
		Symbol:    symbol,
		Price:     new(big.Int).Set(price),
		UpdatedAt: atMillis,
	}
	if confidence != nil {
		quote.Confidence = new(big.Int).Set(confidence)
	} else {
		quote.Confidence = big.NewInt(0)
	}
	o.mu.Lock()
	o.quotes[symbol] = quote
	o.mu.Unlock()
}

// GetPrice implements PriceOracle.
func (o *ManualOracle) GetPrice(symbol string, nowMillis uint64) (Quote, error) {
	symbol = strings.TrimSpace(symbol)
	o.mu.RLock()
	quote, ok := o.quotes[symbol]
	maxAge := o.maxAge
	o.mu.RUnlock()
	if !ok {
		return Quote{}, ErrPriceNotFound
	}
	if nowMillis > quote.UpdatedAt && nowMillis-quote.UpdatedAt > maxAge {
		return Quote{}, ErrStalePrice
	}
	return quote.Clone(), nil
}
