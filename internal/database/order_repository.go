package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/champaran-pos/internal/models"
)

// ErrOrderNotFound is returned for an unknown order number.
var ErrOrderNotFound = errors.New("intake order not found")

// OrderFilter narrows List results.
type OrderFilter struct {
	Status string
	Since  time.Time
	Limit  int
	Offset int
}

// OrderRepository stores orders received by the intake endpoint.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Save stores the order and its items in one transaction. created is false
// when an order with the same number already exists; nothing is written then.
func (r *OrderRepository) Save(ctx context.Context, rec *models.OrderRecord) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := rec.Items
		rec.Items = nil
		defer func() { rec.Items = items }()

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_number"}},
			DoNothing: true,
		}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		for i := range items {
			items[i].OrderID = rec.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "save intake order %s", rec.OrderNumber)
	}
	return created, nil
}

// List returns matching orders newest first, with the total before paging.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]models.OrderRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderRecord{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at >= ?", f.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count intake orders")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var orders []models.OrderRecord
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(limit).Offset(f.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list intake orders")
	}
	return orders, total, nil
}

// Get loads one order with its items.
func (r *OrderRepository) Get(ctx context.Context, orderNumber string) (models.OrderRecord, error) {
	var rec models.OrderRecord
	err := r.db.WithContext(ctx).Preload("Items").Where("order_number = ?", orderNumber).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrOrderNotFound
	}
	if err != nil {
		return rec, errors.Wrapf(err, "get intake order %s", orderNumber)
	}
	return rec, nil
}

// UpdateStatus moves an order to status and returns the updated order along
// with its previous status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderNumber, status string) (models.OrderRecord, string, error) {
	if !models.ValidStatus(status) {
		return models.OrderRecord{}, "", errors.Errorf("unknown order status %q", status)
	}

	var (
		rec      models.OrderRecord
		previous string
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_number = ?", orderNumber).First(&rec).Error; err != nil {
			return err
		}
		previous = rec.Status
		if err := tx.Model(&rec).Update("status", status).Error; err != nil {
			return err
		}
		return tx.Preload("Items").First(&rec, "id = ?", rec.ID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OrderRecord{}, "", ErrOrderNotFound
	}
	if err != nil {
		return models.OrderRecord{}, "", errors.Wrapf(err, "update status of %s", orderNumber)
	}
	return rec, previous, nil
}
