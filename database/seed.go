package database

import (
	"fmt"
	"log"
	"os"

	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/utils/auth"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedStaffUser(model.RoleAdmin, "ADMIN_EMAIL", "ADMIN_PASSWORD", "System Administrator"); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedStaffUser(model.RoleModerator, "MODERATOR_EMAIL", "MODERATOR_PASSWORD", "Moderator"); err != nil {
		return fmt.Errorf("failed to seed moderator user: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedStaffUser creates an active account with role from the given env vars
func (s *Seeder) SeedStaffUser(role, emailEnv, passwordEnv, name string) error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", role).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Printf("⏭️  %s user already exists, skipping...\n", role)
		return nil
	}

	email := os.Getenv(emailEnv)
	password := os.Getenv(passwordEnv)

	if email == "" || password == "" {
		log.Printf("⚠️  %s and %s environment variables not set, skipping %s creation\n", emailEnv, passwordEnv, role)
		return nil
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		IsActive:     true,
	}

	if err := s.db.Create(user).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %s user: %s\n", role, user.Email)
	return nil
}

type seedLesson struct {
	name  string
	price int64
}

// SeedCourses creates demo courses with lessons, owned by the admin if present
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	var ownerID *uint
	var admin model.User
	if err := s.db.Where("role = ?", model.RoleAdmin).First(&admin).Error; err == nil {
		ownerID = &admin.ID
	}

	catalog := []struct {
		name        string
		description string
		price       int64
		lessons     []seedLesson
	}{
		{
			name:        "Go для начинающих",
			description: "Основы языка Go: типы, функции, интерфейсы и горутины.",
			price:       4990,
			lessons: []seedLesson{
				{name: "Установка и первая программа", price: 0},
				{name: "Срезы и отображения", price: 490},
				{name: "Горутины и каналы", price: 990},
			},
		},
		{
			name:        "Проектирование REST API",
			description: "Маршрутизация, валидация, аутентификация и пагинация.",
			price:       7990,
			lessons: []seedLesson{
				{name: "Ресурсы и маршруты", price: 690},
				{name: "JWT и обновление токенов", price: 890},
			},
		},
		{
			name:        "Открытый вебинар: карьера в разработке",
			description: "Бесплатная запись вебинара.",
			price:       0,
		},
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range catalog {
			course := model.Course{
				Name:        item.name,
				Description: item.description,
				OwnerID:     ownerID,
				Price:       nullPrice(item.price),
			}
			if err := tx.Create(&course).Error; err != nil {
				return err
			}

			for _, l := range item.lessons {
				lesson := model.Lesson{
					Name:     l.name,
					CourseID: &course.ID,
					OwnerID:  ownerID,
					Price:    nullPrice(l.price),
				}
				if err := tx.Create(&lesson).Error; err != nil {
					return err
				}
			}
			log.Printf("✅ Created course %q with %d lessons\n", course.Name, len(item.lessons))
		}
		return nil
	})
}

// nullPrice maps zero to an unset price, which makes the item free
func nullPrice(amount int64) decimal.NullDecimal {
	if amount == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromInt(amount))
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
