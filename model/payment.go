package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod is how the payer settles a payment
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
)

// Valid reports whether m is one of the known methods
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodTransfer
}

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusCreated PaymentStatus = "CREATED"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

var (
	ErrPaymentTargetMissing = errors.New("Должен быть заполнен либо 'paid_course', либо 'paid_lesson'.")
	ErrPaymentTargetBoth    = errors.New("Заполните только одно из полей: 'paid_course' или 'paid_lesson'.")
)

// Payment records an attempt to pay for exactly one course or lesson
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OwnerID       uint            `gorm:"not null;index" json:"owner"`
	PaidCourseID  *uint           `gorm:"index" json:"paid_course"`
	PaidLessonID  *uint           `gorm:"index" json:"paid_lesson"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(8);not null" json:"payment_method"`
	Status        PaymentStatus   `gorm:"column:payment_status;type:varchar(8);not null;default:'CREATED'" json:"status"`
	CreatedDate   time.Time       `gorm:"autoCreateTime" json:"created_date"`
	PaymentDate   *time.Time      `gorm:"index" json:"payment_date"`

	// Relationships
	Owner      *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	PaidCourse *Course   `gorm:"foreignKey:PaidCourseID;constraint:OnDelete:CASCADE" json:"-"`
	PaidLesson *Lesson   `gorm:"foreignKey:PaidLessonID;constraint:OnDelete:CASCADE" json:"-"`
	Transfer   *Transfer `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"transfer"`
}

// ValidateTarget enforces that exactly one of paid_course and paid_lesson is set
func (p *Payment) ValidateTarget() error {
	switch {
	case p.PaidCourseID == nil && p.PaidLessonID == nil:
		return ErrPaymentTargetMissing
	case p.PaidCourseID != nil && p.PaidLessonID != nil:
		return ErrPaymentTargetBoth
	}
	return nil
}

// BeforeSave runs on create and update so no write can break the target invariant
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	return p.ValidateTarget()
}

// OwnerUserID implements the ownership lookup used by permission checks
func (p *Payment) OwnerUserID() (uint, bool) {
	if p == nil {
		return 0, false
	}
	return p.OwnerID, true
}

// Transfer holds the remote checkout session created for a TRANSFER payment
type Transfer struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"-"`
	PaymentID uint      `gorm:"not null;uniqueIndex" json:"-"`
	Link      string    `gorm:"type:text;not null" json:"link"`
	SessionID string    `gorm:"type:varchar(255);not null" json:"session_id"`
	PriceID   string    `gorm:"type:varchar(255);not null" json:"price_id"`
	ProductID string    `gorm:"type:varchar(255);not null" json:"product_id"`
}
