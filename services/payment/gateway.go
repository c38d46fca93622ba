package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes the two kinds of payable entities
type ItemKind string

const (
	ItemCourse ItemKind = "course"
	ItemLesson ItemKind = "lesson"
)

// Item is a resolved course or lesson together with its price
type Item struct {
	Kind      ItemKind
	ID        uint
	Name      string
	Price     decimal.Decimal
	ProductID string // memoized remote product id, empty until registered
}

// Session is the provider's view of a checkout session
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
}

// SessionPaid is the remote payment status that settles a payment
const SessionPaid = "paid"

// Gateway is a hosted-checkout provider.
type Gateway interface {
	// CreateOrReuseProduct returns the item's remote product id, registering
	// and memoizing it on first use.
	CreateOrReuseProduct(ctx context.Context, item *Item) (string, error)
	CreatePrice(ctx context.Context, productID string, amount decimal.Decimal) (string, error)
	CreateSession(ctx context.Context, priceID string) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// ProductMemo persists remote product ids on the payable entity
type ProductMemo interface {
	// LoadProductID returns the currently memoized id, or "" when none.
	LoadProductID(ctx context.Context, item *Item) (string, error)
	// SaveProductID stores productID unless another id was stored first, and
	// returns whichever id won.
	SaveProductID(ctx context.Context, item *Item, productID string) (string, error)
}

// Locker serializes first-time product registration across instances
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// MinorUnits converts an amount to provider minor units.
// Fractions of a minor unit are truncated, so 19.999 becomes 1999.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}
