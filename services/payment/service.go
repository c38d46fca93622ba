package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/utils/permission"
	"gorm.io/gorm"
)

// Service orchestrates payment creation, checkout and reconciliation
type Service struct {
	db      *gorm.DB
	catalog *Catalog
	gateway Gateway
	events  EventPublisher
	logger  *slog.Logger

	transferFailures atomic.Int64
}

// NewService creates a payment service. events may be nil.
func NewService(db *gorm.DB, catalog *Catalog, gateway Gateway, events EventPublisher, logger *slog.Logger) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:      db,
		catalog: catalog,
		gateway: gateway,
		events:  events,
		logger:  logger.With("component", "payment_service"),
	}
}

// CreateInput is a validated-by-shape payment request
type CreateInput struct {
	PaidCourseID *uint
	PaidLessonID *uint
	Method       model.PaymentMethod
}

// Create records a payment for owner. For TRANSFER payments it also opens a
// checkout session; a gateway failure is logged and the payment is returned
// without a transfer.
func (s *Service) Create(ctx context.Context, owner *model.User, in CreateInput) (*model.Payment, error) {
	if owner == nil {
		return nil, ErrForbidden
	}
	if !in.Method.Valid() {
		return nil, validationError(MsgUnknownMethod)
	}

	item, err := s.catalog.Resolve(ctx, in.PaidCourseID, in.PaidLessonID)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		OwnerID:       owner.ID,
		PaidCourseID:  in.PaidCourseID,
		PaidLessonID:  in.PaidLessonID,
		Amount:        item.Price,
		PaymentMethod: in.Method,
		Status:        model.PaymentStatusCreated,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	s.logger.Info("payment created", "payment_id", p.ID, "owner_id", p.OwnerID, "method", p.PaymentMethod, "amount", p.Amount.String())
	s.publish(ctx, EventPaymentCreated, p)

	if p.PaymentMethod != model.PaymentMethodTransfer {
		return p, nil
	}

	transfer, err := s.startCheckout(ctx, p, item)
	if err != nil {
		s.transferFailures.Add(1)
		s.logger.Error("transfer creation failed",
			"payment_id", p.ID,
			"item_kind", item.Kind,
			"item_id", item.ID,
			"product_id", item.ProductID,
			"error", err)
		return p, nil
	}
	p.Transfer = transfer
	return p, nil
}

func (s *Service) startCheckout(ctx context.Context, p *model.Payment, item *Item) (*model.Transfer, error) {
	productID, err := s.gateway.CreateOrReuseProduct(ctx, item)
	if err != nil {
		return nil, err
	}
	priceID, err := s.gateway.CreatePrice(ctx, productID, item.Price)
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateSession(ctx, priceID)
	if err != nil {
		return nil, err
	}

	transfer := &model.Transfer{
		PaymentID: p.ID,
		Link:      session.URL,
		SessionID: session.ID,
		PriceID:   priceID,
		ProductID: productID,
	}
	if err := s.db.WithContext(ctx).Create(transfer).Error; err != nil {
		return nil, fmt.Errorf("store transfer for session %s: %w", session.ID, err)
	}
	s.logger.Info("transfer created", "payment_id", p.ID, "session_id", session.ID, "product_id", productID)
	return transfer, nil
}

// Get loads a payment and its transfer
func (s *Service) Get(ctx context.Context, id uint) (*model.Payment, error) {
	var p model.Payment
	if err := s.db.WithContext(ctx).Preload("Transfer").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// Retrieve returns a payment visible to viewer, reconciled with the gateway
func (s *Service) Retrieve(ctx context.Context, id uint, viewer *model.User) (*model.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanRetrievePayment(viewer, p) {
		return nil, ErrForbidden
	}
	if err := s.Reconcile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Reconcile marks a pending TRANSFER payment as PAID when the remote session
// reports it paid. Gateway errors leave the payment untouched. Applying it
// twice is a no-op: payment_date is only ever written once.
func (s *Service) Reconcile(ctx context.Context, p *model.Payment) error {
	if p.Status != model.PaymentStatusCreated || p.PaymentMethod != model.PaymentMethodTransfer || p.Transfer == nil {
		return nil
	}

	session, err := s.gateway.RetrieveSession(ctx, p.Transfer.SessionID)
	if err != nil {
		s.logger.Warn("reconciliation skipped", "payment_id", p.ID, "session_id", p.Transfer.SessionID, "error", err)
		return nil
	}
	if session.PaymentStatus != SessionPaid {
		return nil
	}

	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(p).
		Where("payment_status = ?", model.PaymentStatusCreated).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusPaid,
			"payment_date":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("mark payment %d paid: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		// settled by a concurrent read
		return s.db.WithContext(ctx).Preload("Transfer").First(p, p.ID).Error
	}

	p.Status = model.PaymentStatusPaid
	p.PaymentDate = &now
	s.logger.Info("payment reconciled", "payment_id", p.ID, "session_id", session.ID)
	s.publish(ctx, EventPaymentPaid, p)
	return nil
}

// ListFilter narrows the moderator payment listing
type ListFilter struct {
	PaidCourseID *uint
	PaidLessonID *uint
	Method       model.PaymentMethod
	Ordering     string // payment_date or -payment_date
	Page         int
	Limit        int
}

// List returns one page of payments and the total match count
func (s *Service) List(ctx context.Context, f ListFilter) ([]model.Payment, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Payment{})
	if f.PaidCourseID != nil {
		query = query.Where("paid_course_id = ?", *f.PaidCourseID)
	}
	if f.PaidLessonID != nil {
		query = query.Where("paid_lesson_id = ?", *f.PaidLessonID)
	}
	if f.Method != "" {
		query = query.Where("payment_method = ?", f.Method)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.Ordering {
	case "payment_date":
		query = query.Order("payment_date ASC")
	case "-payment_date":
		query = query.Order("payment_date DESC")
	default:
		query = query.Order("id DESC")
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}

	var payments []model.Payment
	err := query.Preload("Transfer").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&payments).Error
	return payments, total, err
}

// ListForOwner returns the payment history of a user, newest first
func (s *Service) ListForOwner(ctx context.Context, ownerID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := s.db.WithContext(ctx).
		Preload("Transfer").
		Where("owner_id = ?", ownerID).
		Order("created_date DESC").
		Find(&payments).Error
	return payments, err
}

// TransferFailures counts swallowed gateway failures since start
func (s *Service) TransferFailures() int64 {
	return s.transferFailures.Load()
}

func (s *Service) publish(ctx context.Context, eventType string, p *model.Payment) {
	if err := s.events.Publish(ctx, newEvent(eventType, p)); err != nil {
		s.logger.Warn("payment event not published", "type", eventType, "payment_id", p.ID, "error", err)
	}
}
