package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Catalog resolves payable items and memoizes their remote product ids
type Catalog struct {
	db *gorm.DB
}

// NewCatalog creates a catalog backed by the course and lesson tables
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Resolve looks up the single course or lesson a payment targets.
// It has no side effects.
func (c *Catalog) Resolve(ctx context.Context, courseID, lessonID *uint) (*Item, error) {
	switch {
	case courseID == nil && lessonID == nil:
		return nil, validationError(MsgTargetRequired)
	case courseID != nil && lessonID != nil:
		return nil, validationError(MsgTargetBoth)
	}

	var (
		item  *Item
		price decimal.NullDecimal
	)
	if courseID != nil {
		var course model.Course
		if err := c.db.WithContext(ctx).First(&course, *courseID).Error; err != nil {
			return nil, notFoundOr(err, "course", *courseID)
		}
		item = &Item{Kind: ItemCourse, ID: course.ID, Name: course.Name, ProductID: course.StripeProductID}
		price = course.Price
	} else {
		var lesson model.Lesson
		if err := c.db.WithContext(ctx).First(&lesson, *lessonID).Error; err != nil {
			return nil, notFoundOr(err, "lesson", *lessonID)
		}
		item = &Item{Kind: ItemLesson, ID: lesson.ID, Name: lesson.Name, ProductID: lesson.StripeProductID}
		price = lesson.Price
	}

	if !price.Valid || price.Decimal.Sign() <= 0 {
		return nil, validationError(MsgFreeItem)
	}
	item.Price = price.Decimal
	return item, nil
}

// LoadProductID implements ProductMemo
func (c *Catalog) LoadProductID(ctx context.Context, item *Item) (string, error) {
	var ids []string
	err := c.db.WithContext(ctx).
		Model(tableModel(item.Kind)).
		Where("id = ?", item.ID).
		Pluck("stripe_product_id", &ids).
		Error
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: %s %d", ErrNotFound, item.Kind, item.ID)
	}
	return ids[0], nil
}

// SaveProductID implements ProductMemo with a compare-and-swap on the empty
// value, so concurrent first payments for one item agree on a single product.
func (c *Catalog) SaveProductID(ctx context.Context, item *Item, productID string) (string, error) {
	res := c.db.WithContext(ctx).
		Model(tableModel(item.Kind)).
		Where("id = ? AND stripe_product_id = ?", item.ID, "").
		UpdateColumn("stripe_product_id", productID)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return productID, nil
	}

	return c.LoadProductID(ctx, item)
}

func tableModel(kind ItemKind) interface{} {
	if kind == ItemLesson {
		return &model.Lesson{}
	}
	return &model.Course{}
}

func notFoundOr(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	return err
}
