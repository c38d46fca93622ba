package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Course{}, &model.Lesson{}, &model.Payment{}, &model.Transfer{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", Role: role, IsActive: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return u
}

func seedCourse(t *testing.T, db *gorm.DB, name string, price decimal.NullDecimal) *model.Course {
	t.Helper()
	c := &model.Course{Name: name, Price: price}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("course: %v", err)
	}
	return c
}

func price(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

type fakeGateway struct {
	mu            sync.Mutex
	productID     string
	priceID       string
	session       Session
	createErr     error
	remote        Session
	retrieveErr   error
	productCalls  int
	retrieveCalls int
	amounts       []decimal.Decimal
}

func (f *fakeGateway) CreateOrReuseProduct(_ context.Context, item *Item) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCalls++
	if item.ProductID == "" {
		item.ProductID = f.productID
	}
	return item.ProductID, nil
}

func (f *fakeGateway) CreatePrice(_ context.Context, _ string, amount decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amounts = append(f.amounts, amount)
	return f.priceID, nil
}

func (f *fakeGateway) CreateSession(context.Context, string) (*Session, error) {
	if f.createErr != nil {
		return nil, &GatewayError{Op: "create session", Err: f.createErr}
	}
	s := f.session
	return &s, nil
}

func (f *fakeGateway) RetrieveSession(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieveCalls++
	if f.retrieveErr != nil {
		return nil, &GatewayError{Op: "retrieve session", Err: f.retrieveErr}
	}
	s := f.remote
	s.ID = id
	return &s, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(db *gorm.DB, gw Gateway, pub EventPublisher) *Service {
	return NewService(db, NewCatalog(db), gw, pub, nil)
}

func sampleGateway() *fakeGateway {
	return &fakeGateway{
		productID: "prod_new_456",
		priceID:   "price_456",
		session:   Session{ID: "sess_456", URL: "https://checkout.example/sess_456"},
	}
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateCashPayment(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "cash@test", model.RoleStudent)
	course := seedCourse(t, db, "Go basics", price(1000))
	gw := sampleGateway()

	svc := newTestService(db, gw, nil)
	p, err := svc.Create(context.Background(), user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodCash})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected amount 1000 got %s", p.Amount)
	}
	if p.Status != model.PaymentStatusCreated {
		t.Fatalf("expected CREATED got %s", p.Status)
	}
	if p.Transfer != nil {
		t.Fatal("cash payment must not carry a transfer")
	}
	if n := countRows(t, db, &model.Transfer{}); n != 0 {
		t.Fatalf("expected no transfer rows got %d", n)
	}
	if gw.productCalls != 0 {
		t.Fatal("cash payment must not call the gateway")
	}
}

func TestCreateTransferPayment(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "transfer@test", model.RoleStudent)
	course := seedCourse(t, db, "Go advanced", price(1000))
	gw := sampleGateway()
	pub := &recordingPublisher{}

	svc := newTestService(db, gw, pub)
	p, err := svc.Create(context.Background(), user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodTransfer})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Transfer == nil {
		t.Fatal("expected transfer")
	}
	tr := p.Transfer
	if tr.Link != "https://checkout.example/sess_456" || tr.SessionID != "sess_456" || tr.PriceID != "price_456" || tr.ProductID != "prod_new_456" {
		t.Fatalf("unexpected transfer: %+v", tr)
	}

	var stored []model.Transfer
	if err := db.Where("payment_id = ?", p.ID).Find(&stored).Error; err != nil {
		t.Fatalf("load transfers: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected exactly one transfer row got %d", len(stored))
	}
	if len(gw.amounts) != 1 || !gw.amounts[0].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("price not created from course price: %v", gw.amounts)
	}
	if got := pub.types(); len(got) != 1 || got[0] != EventPaymentCreated {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestCreateTransferGatewayFailureIsSwallowed(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "down@test", model.RoleStudent)
	course := seedCourse(t, db, "Offline course", price(500))
	gw := sampleGateway()
	gw.createErr = errors.New("connection refused")

	svc := newTestService(db, gw, nil)
	p, err := svc.Create(context.Background(), user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodTransfer})
	if err != nil {
		t.Fatalf("gateway failure must not fail creation: %v", err)
	}
	if p.ID == 0 || p.Status != model.PaymentStatusCreated {
		t.Fatalf("payment not persisted: %+v", p)
	}
	if p.Transfer != nil {
		t.Fatal("expected nil transfer")
	}
	if n := countRows(t, db, &model.Transfer{}); n != 0 {
		t.Fatalf("expected no transfer rows got %d", n)
	}
	if svc.TransferFailures() != 1 {
		t.Fatalf("expected failure counter 1 got %d", svc.TransferFailures())
	}
}

func TestCreateRejectsInvalidTargets(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "targets@test", model.RoleStudent)
	course := seedCourse(t, db, "Targets", price(100))
	lesson := &model.Lesson{Name: "Intro", Price: price(50)}
	if err := db.Create(lesson).Error; err != nil {
		t.Fatalf("lesson: %v", err)
	}
	svc := newTestService(db, sampleGateway(), nil)

	inputs := []CreateInput{
		{Method: model.PaymentMethodCash},
		{PaidCourseID: &course.ID, PaidLessonID: &lesson.ID, Method: model.PaymentMethodCash},
		{PaidCourseID: &course.ID, Method: "CRYPTO"},
	}
	for i, in := range inputs {
		_, err := svc.Create(context.Background(), user, in)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("input %d: expected validation error got %v", i, err)
		}
	}
	if n := countRows(t, db, &model.Payment{}); n != 0 {
		t.Fatalf("expected no payments got %d", n)
	}
}

func TestCreateRejectsFreeItem(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "free@test", model.RoleStudent)
	noPrice := seedCourse(t, db, "No price", decimal.NullDecimal{})
	zero := seedCourse(t, db, "Zero price", price(0))
	svc := newTestService(db, sampleGateway(), nil)

	for _, c := range []*model.Course{noPrice, zero} {
		_, err := svc.Create(context.Background(), user, CreateInput{PaidCourseID: &c.ID, Method: model.PaymentMethodCash})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Message != "Данный курс бесплатный" {
			t.Fatalf("course %q: expected free-course error got %v", c.Name, err)
		}
	}
	if n := countRows(t, db, &model.Payment{}); n != 0 {
		t.Fatalf("expected no payments got %d", n)
	}
}

func TestCreateUnknownTarget(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "missing@test", model.RoleStudent)
	svc := newTestService(db, sampleGateway(), nil)

	missing := uint(999)
	_, err := svc.Create(context.Background(), user, CreateInput{PaidLessonID: &missing, Method: model.PaymentMethodCash})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestCreateLessonPayment(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "lesson@test", model.RoleStudent)
	lesson := &model.Lesson{Name: "Channels", Price: decimal.NewNullDecimal(decimal.RequireFromString("19.99"))}
	if err := db.Create(lesson).Error; err != nil {
		t.Fatalf("lesson: %v", err)
	}
	svc := newTestService(db, sampleGateway(), nil)

	p, err := svc.Create(context.Background(), user, CreateInput{PaidLessonID: &lesson.ID, Method: model.PaymentMethodCash})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PaidCourseID != nil || p.PaidLessonID == nil || *p.PaidLessonID != lesson.ID {
		t.Fatalf("unexpected target: %+v", p)
	}
	if !p.Amount.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("expected 19.99 got %s", p.Amount)
	}
}

func TestRetrieveReconcilesOnce(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "paid@test", model.RoleStudent)
	course := seedCourse(t, db, "Reconcile", price(1000))
	gw := sampleGateway()
	gw.remote = Session{PaymentStatus: SessionPaid}
	pub := &recordingPublisher{}
	svc := newTestService(db, gw, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodTransfer})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.Retrieve(ctx, created.ID, user)
	if err != nil {
		t.Fatalf("first retrieve: %v", err)
	}
	if first.Status != model.PaymentStatusPaid || first.PaymentDate == nil {
		t.Fatalf("expected PAID with date got %+v", first)
	}

	second, err := svc.Retrieve(ctx, created.ID, user)
	if err != nil {
		t.Fatalf("second retrieve: %v", err)
	}
	if second.Status != model.PaymentStatusPaid {
		t.Fatalf("expected PAID got %s", second.Status)
	}
	if !second.PaymentDate.Equal(*first.PaymentDate) {
		t.Fatalf("payment_date changed: %v -> %v", first.PaymentDate, second.PaymentDate)
	}
	if gw.retrieveCalls != 1 {
		t.Fatalf("settled payment must not be reconciled again, calls=%d", gw.retrieveCalls)
	}
	if got := pub.types(); len(got) != 2 || got[1] != EventPaymentPaid {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestReconcileIsIdempotentOnStaleCopy(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "race@test", model.RoleStudent)
	course := seedCourse(t, db, "Race", price(300))
	gw := sampleGateway()
	gw.remote = Session{PaymentStatus: SessionPaid}
	svc := newTestService(db, gw, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodTransfer})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// two readers loaded the same pending row
	a, _ := svc.Get(ctx, created.ID)
	b, _ := svc.Get(ctx, created.ID)

	if err := svc.Reconcile(ctx, a); err != nil {
		t.Fatalf("reconcile a: %v", err)
	}
	if err := svc.Reconcile(ctx, b); err != nil {
		t.Fatalf("reconcile b: %v", err)
	}
	if b.Status != model.PaymentStatusPaid || b.PaymentDate == nil || !b.PaymentDate.Equal(*a.PaymentDate) {
		t.Fatalf("stale copy not refreshed: a=%v b=%v", a.PaymentDate, b.PaymentDate)
	}
}

func TestReconcileGatewayErrorLeavesStatus(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "flaky@test", model.RoleStudent)
	course := seedCourse(t, db, "Flaky", price(700))
	gw := sampleGateway()
	gw.retrieveErr = errors.New("timeout")
	svc := newTestService(db, gw, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodTransfer})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := svc.Retrieve(ctx, created.ID, user)
	if err != nil {
		t.Fatalf("retrieve must not fail on gateway error: %v", err)
	}
	if p.Status != model.PaymentStatusCreated || p.PaymentDate != nil {
		t.Fatalf("status must stay CREATED, got %+v", p)
	}
}

func TestReconcileUnpaidSessionKeepsCreated(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "unpaid@test", model.RoleStudent)
	course := seedCourse(t, db, "Unpaid", price(700))
	gw := sampleGateway()
	gw.remote = Session{PaymentStatus: "unpaid"}
	svc := newTestService(db, gw, nil)
	ctx := context.Background()

	created, _ := svc.Create(ctx, user, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodTransfer})
	p, err := svc.Retrieve(ctx, created.ID, user)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if p.Status != model.PaymentStatusCreated {
		t.Fatalf("expected CREATED got %s", p.Status)
	}
}

func TestRetrievePermissions(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "owner@test", model.RoleStudent)
	stranger := seedUser(t, db, "stranger@test", model.RoleStudent)
	moderator := seedUser(t, db, "mod@test", model.RoleModerator)
	course := seedCourse(t, db, "Private", price(100))
	svc := newTestService(db, sampleGateway(), nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, CreateInput{PaidCourseID: &course.ID, Method: model.PaymentMethodCash})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Retrieve(ctx, p.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
	if _, err := svc.Retrieve(ctx, p.ID, moderator); err != nil {
		t.Fatalf("moderator retrieve: %v", err)
	}
	if _, err := svc.Retrieve(ctx, 12345, owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestListFiltersAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "list@test", model.RoleStudent)
	c1 := seedCourse(t, db, "First", price(100))
	c2 := seedCourse(t, db, "Second", price(200))
	gw := sampleGateway()
	gw.remote = Session{PaymentStatus: SessionPaid}
	svc := newTestService(db, gw, nil)
	ctx := context.Background()

	cash, _ := svc.Create(ctx, user, CreateInput{PaidCourseID: &c1.ID, Method: model.PaymentMethodCash})
	transfer, _ := svc.Create(ctx, user, CreateInput{PaidCourseID: &c2.ID, Method: model.PaymentMethodTransfer})
	if _, err := svc.Retrieve(ctx, transfer.ID, user); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	byCourse, total, err := svc.List(ctx, ListFilter{PaidCourseID: &c1.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(byCourse) != 1 || byCourse[0].ID != cash.ID {
		t.Fatalf("course filter returned %d/%d", len(byCourse), total)
	}

	byMethod, _, err := svc.List(ctx, ListFilter{Method: model.PaymentMethodTransfer})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byMethod) != 1 || byMethod[0].Transfer == nil {
		t.Fatalf("method filter should return the transfer payment with its transfer")
	}

	ordered, _, err := svc.List(ctx, ListFilter{Ordering: "-payment_date"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ordered) != 2 {
		t.Fatalf("expected 2 payments got %d", len(ordered))
	}
}
