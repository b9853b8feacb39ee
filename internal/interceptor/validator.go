package interceptor

import "github.com/lattice-trading/hft-gateway/internal/wire"

// Validator rejects structurally or semantically invalid messages before
// they reach any later interceptor, so throttling quota and log volume
// are never spent on garbage.
type Validator struct{}

// NewValidator returns a Validator. It holds no state and is safe to
// share across contexts.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Name() string { return "validator" }

func (v *Validator) Intercept(ctx *Context) bool {
	m := ctx.Message
	if m == nil {
		ctx.Set("error", "Message is absent")
		return false
	}
	if m.Sequence == 0 {
		ctx.Set("error", "Invalid sequence number")
		return false
	}
	if m.TimestampUs == 0 {
		ctx.Set("error", "Invalid timestamp")
		return false
	}

	if err := validateBody(m); err != "" {
		ctx.Set("error", err)
		return false
	}

	ctx.Set("validation", "passed")
	return true
}

func validateBody(m *wire.Message) string {
	switch {
	case isOrderPlacement(m.Kind):
		return validateOrder(m.Order)
	case m.Kind == wire.KindMarketData:
		return validateMarketData(m.MarketData)
	default:
		return ""
	}
}

// isOrderPlacement reports whether k is one of the order-placement kinds
// the order_id/price/quantity invariants apply to. Deliberately narrower
// than Kind.IsOrder: a fill confirmation reports what already matched,
// not a new order, so it isn't held to the same placement invariants.
func isOrderPlacement(k wire.Kind) bool {
	switch k {
	case wire.KindOrderNew, wire.KindOrderCancel, wire.KindOrderReplace:
		return true
	default:
		return false
	}
}

func validateOrder(o *wire.OrderBody) string {
	if o == nil {
		return "Order body is absent"
	}
	if o.OrderID == 0 {
		return "Order ID must not be zero"
	}
	if o.Symbol == "" {
		return "Symbol must not be empty"
	}
	if o.Price <= 0 {
		return "Price must be positive"
	}
	if o.Quantity == 0 {
		return "Quantity must be positive"
	}
	return ""
}

func validateMarketData(md *wire.MarketDataBody) string {
	if md == nil {
		return "Market data body is absent"
	}
	if md.Bid < 0 || md.Ask < 0 {
		return "Bid and Ask must be non-negative"
	}
	if md.Bid >= md.Ask {
		return "Bid >= Ask"
	}
	return ""
}
