package payment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	// DefaultGatewayTimeout bounds every call to the provider
	DefaultGatewayTimeout = 10 * time.Second
	DefaultCurrency       = "rub"

	productLockTTL  = 30 * time.Second
	productWaitStep = 200 * time.Millisecond
	productWaitMax  = 10
)

// StripeConfig configures the Stripe-backed gateway
type StripeConfig struct {
	APIKey     string
	SuccessURL string
	Currency   string
	Timeout    time.Duration
	// BackendURL overrides https://api.stripe.com, used against stubs.
	BackendURL        string
	MaxNetworkRetries int64
}

// StripeGateway implements Gateway on top of Stripe Checkout
type StripeGateway struct {
	api        *client.API
	successURL string
	currency   string
	memo       ProductMemo
	locks      Locker
	logger     *slog.Logger
}

// NewStripeGateway creates a gateway. locks may be nil, in which case the
// memo's compare-and-swap alone arbitrates concurrent registrations.
func NewStripeGateway(cfg StripeConfig, memo ProductMemo, locks Locker, logger *slog.Logger) *StripeGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGatewayTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BackendURL != "" {
		backendConfig.URL = stripe.String(cfg.BackendURL)
	}

	api := &client.API{}
	api.Init(cfg.APIKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	})

	return &StripeGateway{
		api:        api,
		successURL: cfg.SuccessURL,
		currency:   cfg.Currency,
		memo:       memo,
		locks:      locks,
		logger:     logger.With("component", "stripe_gateway"),
	}
}

// CreateOrReuseProduct implements Gateway
func (g *StripeGateway) CreateOrReuseProduct(ctx context.Context, item *Item) (string, error) {
	if item.ProductID != "" {
		return item.ProductID, nil
	}

	if g.locks != nil {
		key := fmt.Sprintf("stripe:product:%s:%d", item.Kind, item.ID)
		acquired, err := g.locks.SetNX(ctx, key, "1", productLockTTL)
		switch {
		case err != nil:
			g.logger.Warn("product lock unavailable", "key", key, "error", err)
		case acquired:
			defer g.locks.Delete(context.WithoutCancel(ctx), key)
		default:
			if id := g.awaitProduct(ctx, item); id != "" {
				item.ProductID = id
				return id, nil
			}
		}
	}

	params := &stripe.ProductParams{Name: stripe.String(item.Name)}
	params.Context = ctx
	product, err := g.api.Products.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create product", Err: err}
	}

	winner, err := g.memo.SaveProductID(ctx, item, product.ID)
	if err != nil {
		return "", fmt.Errorf("memoize product id: %w", err)
	}
	if winner != product.ID {
		g.logger.Warn("product registered concurrently, reusing stored id",
			"item_kind", item.Kind, "item_id", item.ID,
			"product_id", winner, "orphaned_product_id", product.ID)
	}
	item.ProductID = winner
	return winner, nil
}

// awaitProduct polls the memo while another request holds the registration lock
func (g *StripeGateway) awaitProduct(ctx context.Context, item *Item) string {
	ticker := time.NewTicker(productWaitStep)
	defer ticker.Stop()

	for i := 0; i < productWaitMax; i++ {
		select {
		case <-ctx.Done():
			return ""
		case <-ticker.C:
		}
		id, err := g.memo.LoadProductID(ctx, item)
		if err == nil && id != "" {
			return id
		}
	}
	return ""
}

// CreatePrice implements Gateway
func (g *StripeGateway) CreatePrice(ctx context.Context, productID string, amount decimal.Decimal) (string, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(g.currency),
		UnitAmount: stripe.Int64(MinorUnits(amount)),
		Product:    stripe.String(productID),
	}
	params.Context = ctx
	price, err := g.api.Prices.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create price", Err: err}
	}
	return price.ID, nil
}

// CreateSession implements Gateway
func (g *StripeGateway) CreateSession(ctx context.Context, priceID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(g.successURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create session", Err: err}
	}
	g.logger.Info("checkout session created", "session_id", s.ID, "price_id", priceID)
	return toSession(s), nil
}

// RetrieveSession implements Gateway
func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, &GatewayError{Op: "retrieve session", Err: err}
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *Session {
	return &Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
	}
}
