package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// FuelWarehouse is one physical diesel storage point at a plant.
//
// CurrentInventory is a denormalized cache refreshed on every append/edit.
// It is advisory only: the ledger (fuel_transactions) is the source of truth,
// and the reconciliation diagnostic reports when this cache drifts.
type FuelWarehouse struct {
	ID               int       `gorm:"primary_key" json:"id"`
	BusinessId       string    `gorm:"index;not null" json:"business_id"`
	PlantId          int       `gorm:"index;not null" json:"plant_id"`
	ProductId        int       `gorm:"index;not null" json:"product_id"`
	Name             string    `gorm:"size:100;not null" json:"name" binding:"required"`
	HasMeter         *bool     `gorm:"not null;default:false" json:"has_meter"`
	CurrentInventory float64   `gorm:"default:0" json:"current_inventory"`
	IsActive         *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFuelWarehouse struct {
	PlantId   int    `json:"plant_id" binding:"required"`
	ProductId int    `json:"product_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	HasMeter  bool   `json:"has_meter"`
}

func (input *NewFuelWarehouse) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateResourceId[Plant](ctx, businessId, input.PlantId); err != nil {
		return errors.New("plant not found")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return errors.New("product not found")
	}
	return nil
}

func CreateFuelWarehouse(ctx context.Context, input *NewFuelWarehouse) (*FuelWarehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	warehouse := FuelWarehouse{
		BusinessId: businessId,
		PlantId:    input.PlantId,
		ProductId:  input.ProductId,
		Name:       input.Name,
		IsActive:   utils.NewTrue(),
	}
	if input.HasMeter {
		warehouse.HasMeter = utils.NewTrue()
	} else {
		warehouse.HasMeter = utils.NewFalse()
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func GetFuelWarehouse(ctx context.Context, id int) (*FuelWarehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[FuelWarehouse](ctx, businessId, id)
}

func ListFuelWarehouses(ctx context.Context, plantId *int) ([]*FuelWarehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if plantId != nil && *plantId > 0 {
		dbCtx = dbCtx.Where("plant_id = ?", *plantId)
	}
	var results []*FuelWarehouse
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FuelWarehouseBalanceCacheKey is the redis key for the latest-balance cache.
func FuelWarehouseBalanceCacheKey(businessId string, warehouseId int) string {
	return fmt.Sprintf("fuel:balance:%s:%d", businessId, warehouseId)
}

// PlantCodesByWarehouse maps each warehouse id to its owning plant code.
func PlantCodesByWarehouse(ctx context.Context, businessId string, warehouseIds []int) (map[int]string, error) {
	db := config.GetDB()
	type row struct {
		WarehouseId int
		Code        string
	}
	var rows []row
	err := db.WithContext(ctx).Raw(`
		SELECT fw.id AS warehouse_id, p.code AS code
		FROM fuel_warehouses fw
		JOIN plants p ON p.id = fw.plant_id AND p.business_id = fw.business_id
		WHERE fw.business_id = ? AND fw.id IN ?
	`, businessId, warehouseIds).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	codes := make(map[int]string, len(rows))
	for _, r := range rows {
		codes[r.WarehouseId] = r.Code
	}
	return codes, nil
}
