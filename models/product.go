package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// Product is a fuel type (diesel today). DefaultUnitCost is the last-resort
// price when FIFO lots and the weighted-average fallback are both unavailable.
type Product struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BusinessId      string    `gorm:"index;not null" json:"business_id"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku             string    `gorm:"size:50" json:"sku"`
	DefaultUnitCost float64   `gorm:"default:0" json:"default_unit_cost"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name            string  `json:"name" binding:"required"`
	Sku             string  `json:"sku"`
	DefaultUnitCost float64 `json:"default_unit_cost"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	product := Product{
		BusinessId:      businessId,
		Name:            input.Name,
		Sku:             input.Sku,
		DefaultUnitCost: input.DefaultUnitCost,
		IsActive:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Product](ctx, businessId, id)
}

func ListProducts(ctx context.Context) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Product
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("name").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DefaultUnitCosts returns the product_id -> fallback price table.
func DefaultUnitCosts(ctx context.Context, businessId string) (map[int]float64, error) {
	db := config.GetDB()
	var products []*Product
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Find(&products).Error; err != nil {
		return nil, err
	}
	table := make(map[int]float64, len(products))
	for _, p := range products {
		table[p.ID] = p.DefaultUnitCost
	}
	return table, nil
}
