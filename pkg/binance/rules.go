package binance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"nakula/pkg/core"
)

// decCtx is the decimal context for filter arithmetic. Exchange filters use
// at most eight fractional digits, so 34 digits of precision is exact for
// every quantity and price the API accepts.
var decCtx = apd.BaseContext.WithPrecision(34)

// LotSizeFilter constrains order quantity to [MinQuantity, MaxQuantity] in
// multiples of StepSize.
type LotSizeFilter struct {
	MinQuantity apd.Decimal
	MaxQuantity apd.Decimal
	StepSize    apd.Decimal
}

// PriceFilter constrains order price to [MinPrice, MaxPrice] aligned to
// TickSize.
type PriceFilter struct {
	MinPrice apd.Decimal
	MaxPrice apd.Decimal
	TickSize apd.Decimal
}

// SymbolRules holds the trading filters published by the exchange for one
// symbol. A nil filter means the exchange does not enforce that constraint.
// Rules are immutable once built; a refresh replaces the whole snapshot.
type SymbolRules struct {
	Symbol        string
	OrderTypes    []core.OrderType
	LotSize       *LotSizeFilter
	MarketLotSize *LotSizeFilter
	Price         *PriceFilter
	MinNotional   *apd.Decimal
}

// AllowsOrderType reports whether the symbol accepts the given order type.
func (r *SymbolRules) AllowsOrderType(t core.OrderType) bool {
	for _, allowed := range r.OrderTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// InfoSnapshot is one generation of exchange metadata: every symbol's rules
// plus the capture time. Snapshots are replaced wholesale, never merged, so
// filters from two fetches can never mix.
type InfoSnapshot struct {
	Symbols   map[string]SymbolRules
	FetchedAt time.Time
}

// Rules returns the rules for a symbol, matching case-insensitively.
func (s *InfoSnapshot) Rules(symbol string) (SymbolRules, bool) {
	r, ok := s.Symbols[strings.ToUpper(symbol)]
	return r, ok
}

// infoCache owns the current snapshot behind a read-write lock.
type infoCache struct {
	mu       sync.RWMutex
	snapshot *InfoSnapshot
}

func (c *infoCache) get() *InfoSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *infoCache) replace(s *InfoSnapshot) {
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}

// snapshotFetch fetches a fresh snapshot from the exchange.
type snapshotFetch func(ctx context.Context) (*InfoSnapshot, error)

// Outcome is the result of a passed trade-rule check: the quantity and price
// to actually submit. Price is nil when the order carries no price.
type Outcome struct {
	Quantity apd.Decimal
	Price    *apd.Decimal
}

// ruleValidator checks order quantity and price against the cached exchange
// trading rules before submission.
type ruleValidator struct {
	behaviour core.TradeRulesBehaviour
	interval  time.Duration
	fetch     snapshotFetch
	cache     infoCache
	logger    zerolog.Logger
}

func newRuleValidator(behaviour core.TradeRulesBehaviour, interval time.Duration, fetch snapshotFetch, logger zerolog.Logger) *ruleValidator {
	return &ruleValidator{
		behaviour: behaviour,
		interval:  interval,
		fetch:     fetch,
		logger:    logger,
	}
}

// snapshot returns a fresh-enough snapshot, refreshing it when missing or
// stale. Two concurrent callers may both refresh; the last write wins, which
// is harmless because each fetch is internally consistent.
func (v *ruleValidator) snapshot(ctx context.Context) (*InfoSnapshot, error) {
	if s := v.cache.get(); s != nil && time.Since(s.FetchedAt) < v.interval {
		return s, nil
	}

	s, err := v.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil || len(s.Symbols) == 0 {
		return nil, core.ErrRulesUnavailable
	}

	v.cache.replace(s)
	v.logger.Debug().Int("symbols", len(s.Symbols)).Msg("trading rules refreshed")
	return s, nil
}

// Validate checks and normalizes an order's quantity and optional price
// against the symbol's trading filters. It returns the values to submit, or
// a ValidationError when the order cannot comply.
func (v *ruleValidator) Validate(ctx context.Context, symbol string, orderType core.OrderType, quantity apd.Decimal, price *apd.Decimal) (*Outcome, error) {
	if v.behaviour == core.TradeRulesNone {
		return &Outcome{Quantity: quantity, Price: price}, nil
	}

	snap, err := v.snapshot(ctx)
	if err != nil {
		return nil, core.NewValidationError("trading rules unavailable: %v", err)
	}

	rules, ok := snap.Rules(symbol)
	if !ok {
		return nil, core.NewValidationError("symbol %s not found in trading rules", symbol)
	}

	if !rules.AllowsOrderType(orderType) {
		return nil, core.NewValidationError("order type %s not allowed for %s", orderType, symbol)
	}

	outQty := quantity
	lot := rules.LotSize
	if orderType == core.TypeMarket && rules.MarketLotSize != nil {
		lot = rules.MarketLotSize
	}
	if lot != nil && !lot.MinQuantity.IsZero() {
		clamped, err := ClampQuantity(&lot.MinQuantity, &lot.MaxQuantity, &lot.StepSize, &quantity)
		if err != nil {
			return nil, core.NewValidationError("quantity check failed for %s: %v", symbol, err)
		}
		if clamped.Cmp(&quantity) != 0 {
			if v.behaviour == core.TradeRulesThrowError {
				return nil, core.NewValidationError(
					"quantity %s for %s violates the lot size filter, closest allowed is %s",
					quantity.String(), symbol, clamped.String())
			}
			v.logger.Debug().
				Str("symbol", symbol).
				Str("from", quantity.String()).
				Str("to", clamped.String()).
				Msg("quantity clamped to lot size filter")
			outQty = *clamped
		}
	}

	if price == nil {
		return &Outcome{Quantity: outQty}, nil
	}

	outPrice := *price
	if pf := rules.Price; pf != nil {
		if !pf.MinPrice.IsZero() && !pf.MaxPrice.IsZero() {
			clamped := ClampPrice(&pf.MinPrice, &pf.MaxPrice, &outPrice)
			if clamped.Cmp(&outPrice) != 0 {
				if v.behaviour == core.TradeRulesThrowError {
					return nil, core.NewValidationError(
						"price %s for %s is outside the price filter range, closest allowed is %s",
						outPrice.String(), symbol, clamped.String())
				}
				v.logger.Debug().
					Str("symbol", symbol).
					Str("from", outPrice.String()).
					Str("to", clamped.String()).
					Msg("price clamped to filter range")
				outPrice = *clamped
			}
		}

		if !pf.TickSize.IsZero() {
			floored, err := FloorPrice(&pf.TickSize, &outPrice)
			if err != nil {
				return nil, core.NewValidationError("price check failed for %s: %v", symbol, err)
			}
			if floored.Cmp(&outPrice) != 0 {
				if v.behaviour == core.TradeRulesThrowError {
					return nil, core.NewValidationError(
						"price %s for %s does not align to tick size, closest allowed is %s",
						outPrice.String(), symbol, floored.String())
				}
				v.logger.Debug().
					Str("symbol", symbol).
					Str("from", outPrice.String()).
					Str("to", floored.String()).
					Msg("price floored to tick size")
				outPrice = *floored
			}
		}
	}

	if rules.MinNotional != nil && !rules.MinNotional.IsZero() {
		var notional apd.Decimal
		if _, err := decCtx.Mul(&notional, &outQty, &outPrice); err != nil {
			return nil, core.NewValidationError("notional check failed for %s: %v", symbol, err)
		}
		// No clamp path here: there is no sensible automatic correction for
		// an order whose total value is too small.
		if notional.Cmp(rules.MinNotional) < 0 {
			return nil, core.NewValidationError(
				"order notional %s for %s is below the minimum of %s",
				notional.String(), symbol, rules.MinNotional.String())
		}
	}

	return &Outcome{Quantity: outQty, Price: &outPrice}, nil
}

// ClampQuantity floors the quantity to a multiple of step and clamps the
// result into [min, max]. Flooring never rounds up past max; when the
// floored value falls below min, min itself is returned (bounds win over
// step alignment).
func ClampQuantity(min, max, step, quantity *apd.Decimal) (*apd.Decimal, error) {
	out := quantity
	if !step.IsZero() {
		floored, err := floorToStep(quantity, step)
		if err != nil {
			return nil, err
		}
		out = floored
	}
	if !max.IsZero() && out.Cmp(max) > 0 {
		if step.IsZero() {
			return max, nil
		}
		return floorToStep(max, step)
	}
	if out.Cmp(min) < 0 {
		return min, nil
	}
	return out, nil
}

// ClampPrice clamps the price into [min, max].
func ClampPrice(min, max, price *apd.Decimal) *apd.Decimal {
	if price.Cmp(min) < 0 {
		return min
	}
	if price.Cmp(max) > 0 {
		return max
	}
	return price
}

// FloorPrice floors the price to the nearest multiple of tick at or below it.
func FloorPrice(tick, price *apd.Decimal) (*apd.Decimal, error) {
	if tick.IsZero() {
		return price, nil
	}
	return floorToStep(price, tick)
}

// floorToStep returns trunc(value/step)*step: the largest multiple of step
// at or below value. Multiples are absolute, not offset from a filter
// minimum.
func floorToStep(value, step *apd.Decimal) (*apd.Decimal, error) {
	var steps apd.Decimal
	if _, err := decCtx.QuoInteger(&steps, value, step); err != nil {
		return nil, err
	}
	var out apd.Decimal
	if _, err := decCtx.Mul(&out, &steps, step); err != nil {
		return nil, err
	}
	return &out, nil
}
