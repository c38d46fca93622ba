package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// stripeStub answers the subset of the Stripe API the gateway uses
type stripeStub struct {
	products atomic.Int32
	status   string
	fail     bool

	mu       sync.Mutex
	lastForm map[string]string
}

func (s *stripeStub) form(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm[key]
}

func (s *stripeStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.fail {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"error":{"type":"api_error","message":"upstream unavailable"}}`)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		s.mu.Lock()
		s.lastForm = map[string]string{}
		for k := range r.PostForm {
			s.lastForm[k] = r.PostForm.Get(k)
		}
		s.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/products":
			n := s.products.Add(1)
			fmt.Fprintf(w, `{"id":"prod_%d","object":"product","name":%q}`, n, r.PostForm.Get("name"))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/prices":
			fmt.Fprint(w, `{"id":"price_1","object":"price","currency":"rub"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
			fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","payment_status":"unpaid"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/checkout/sessions/cs_test_1":
			fmt.Fprintf(w, `{"id":"cs_test_1","object":"checkout.session","payment_status":%q}`, s.status)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"unknown route"}}`)
		}
	})
}

func newStubGateway(t *testing.T, stub *stripeStub, memo ProductMemo, locks Locker) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	return NewStripeGateway(StripeConfig{
		APIKey:     "sk_test_123",
		SuccessURL: "https://courses.example/",
		Timeout:    2 * time.Second,
		BackendURL: srv.URL,
	}, memo, locks, nil)
}

func TestStripeGatewayCheckoutFlow(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourse(t, db, "Stripe course", price(1000))
	stub := &stripeStub{status: "paid"}
	gw := newStubGateway(t, stub, NewCatalog(db), nil)
	ctx := context.Background()

	item := &Item{Kind: ItemCourse, ID: course.ID, Name: course.Name}
	productID, err := gw.CreateOrReuseProduct(ctx, item)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if productID != "prod_1" || item.ProductID != "prod_1" {
		t.Fatalf("unexpected product id %q", productID)
	}

	// A fresh item resolved from the database must reuse the memoized id.
	again, err := NewCatalog(db).Resolve(ctx, &course.ID, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id, err := gw.CreateOrReuseProduct(ctx, again); err != nil || id != "prod_1" {
		t.Fatalf("expected memoized prod_1, got %q %v", id, err)
	}
	if stub.products.Load() != 1 {
		t.Fatalf("expected one remote product, got %d", stub.products.Load())
	}

	priceID, err := gw.CreatePrice(ctx, productID, decimal.RequireFromString("19.999"))
	if err != nil {
		t.Fatalf("create price: %v", err)
	}
	if priceID != "price_1" {
		t.Fatalf("unexpected price id %q", priceID)
	}
	if stub.form("unit_amount") != "1999" || stub.form("currency") != "rub" || stub.form("product") != "prod_1" {
		t.Fatalf("unexpected price params: unit_amount=%s currency=%s", stub.form("unit_amount"), stub.form("currency"))
	}

	session, err := gw.CreateSession(ctx, priceID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "cs_test_1" || session.URL == "" {
		t.Fatalf("unexpected session %+v", session)
	}
	if stub.form("line_items[0][price]") != "price_1" || stub.form("line_items[0][quantity]") != "1" ||
		stub.form("mode") != "payment" || stub.form("success_url") != "https://courses.example/" {
		t.Fatalf("unexpected session params: mode=%s success_url=%s", stub.form("mode"), stub.form("success_url"))
	}

	remote, err := gw.RetrieveSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("retrieve session: %v", err)
	}
	if remote.PaymentStatus != SessionPaid {
		t.Fatalf("expected paid got %q", remote.PaymentStatus)
	}
}

func TestStripeGatewayErrorsAreWrapped(t *testing.T) {
	stub := &stripeStub{fail: true}
	gw := newStubGateway(t, stub, nil, nil)

	_, err := gw.CreatePrice(context.Background(), "prod_1", decimal.NewFromInt(5))
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError got %v", err)
	}
	if gerr.Op != "create price" {
		t.Fatalf("unexpected op %q", gerr.Op)
	}

	if _, err := gw.RetrieveSession(context.Background(), "cs_test_1"); !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError got %v", err)
	}
}

type heldLock struct{}

func (heldLock) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return false, nil
}

func (heldLock) Delete(context.Context, ...string) error { return nil }

// slowMemo reports no product until the lock holder has stored one
type slowMemo struct {
	loads atomic.Int32
}

func (m *slowMemo) LoadProductID(context.Context, *Item) (string, error) {
	if m.loads.Add(1) < 3 {
		return "", nil
	}
	return "prod_other", nil
}

func (m *slowMemo) SaveProductID(_ context.Context, _ *Item, id string) (string, error) {
	return id, nil
}

func TestStripeGatewayWaitsForConcurrentRegistration(t *testing.T) {
	stub := &stripeStub{}
	gw := newStubGateway(t, stub, &slowMemo{}, heldLock{})

	item := &Item{Kind: ItemCourse, ID: 1, Name: "Locked"}
	id, err := gw.CreateOrReuseProduct(context.Background(), item)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if id != "prod_other" || item.ProductID != "prod_other" {
		t.Fatalf("expected the concurrent registration to be reused, got %q", id)
	}
	if stub.products.Load() != 0 {
		t.Fatal("no remote product should be created while another holds the lock")
	}
}
