package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is a paid or free collection of lessons authored by a user
type Course struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Name            string              `gorm:"type:varchar(150);uniqueIndex;not null" json:"name"`
	Description     string              `gorm:"type:text" json:"description"`
	Preview         string              `gorm:"type:varchar(512)" json:"preview"`
	VideoURL        string              `gorm:"type:varchar(512)" json:"video_url"`
	Price           decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	OwnerID         *uint               `gorm:"index" json:"owner"`
	StripeProductID string              `gorm:"type:varchar(255);not null;default:''" json:"-"`

	// Relationships
	Owner         *User          `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL" json:"-"`
	Lessons       []Lesson       `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Payments      []Payment      `gorm:"foreignKey:PaidCourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// Lesson is a single unit of a course; it can also be bought on its own
type Lesson struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Name            string              `gorm:"type:varchar(150);not null" json:"name"`
	Description     string              `gorm:"type:text" json:"description"`
	Preview         string              `gorm:"type:varchar(512)" json:"preview"`
	VideoURL        string              `gorm:"type:varchar(512)" json:"video_url"`
	Price           decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	CourseID        *uint               `gorm:"index" json:"course"`
	OwnerID         *uint               `gorm:"index" json:"owner"`
	StripeProductID string              `gorm:"type:varchar(255);not null;default:''" json:"-"`

	// Relationships
	Owner    *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL" json:"-"`
	Payments []Payment `gorm:"foreignKey:PaidLessonID;constraint:OnDelete:CASCADE" json:"-"`
}

// OwnerUserID implements the ownership lookup used by permission checks
func (c *Course) OwnerUserID() (uint, bool) {
	if c == nil || c.OwnerID == nil {
		return 0, false
	}
	return *c.OwnerID, true
}

// OwnerUserID implements the ownership lookup used by permission checks
func (l *Lesson) OwnerUserID() (uint, bool) {
	if l == nil || l.OwnerID == nil {
		return 0, false
	}
	return *l.OwnerID, true
}
