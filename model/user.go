package model

import (
	"time"
)

// User roles. Moderators review content and payments but cannot author courses.
const (
	RoleStudent   = "student"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents a registered user of the platform
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string     `gorm:"type:varchar(150)" json:"name"`
	Phone        string     `gorm:"type:varchar(35)" json:"phone"`
	Country      string     `gorm:"type:varchar(50)" json:"country"`
	Avatar       string     `gorm:"type:varchar(512)" json:"avatar"`
	Role         string     `gorm:"type:varchar(20);default:'student'" json:"role"` // student, moderator, admin
	IsActive     bool       `gorm:"not null;default:false" json:"is_active"`
	VerifyToken  string     `gorm:"type:varchar(100);index" json:"-"`
	LastLogin    *time.Time `json:"last_login"`
	TokenVersion int        `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Payments       []Payment           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Subscriptions  []Subscription      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsModerator reports whether the user belongs to the moderators group.
// Admins are treated as moderators.
func (u *User) IsModerator() bool {
	return u != nil && (u.Role == RoleModerator || u.Role == RoleAdmin)
}
