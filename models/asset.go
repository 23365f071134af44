package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// Asset is a piece of equipment diesel can be dispensed to.
type Asset struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	PlantId    int       `gorm:"index;not null" json:"plant_id"`
	Code       string    `gorm:"size:50;not null" json:"code" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAsset struct {
	PlantId int    `json:"plant_id" binding:"required"`
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
}

func CreateAsset(ctx context.Context, input *NewAsset) (*Asset, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Plant](ctx, businessId, input.PlantId); err != nil {
		return nil, errors.New("plant not found")
	}

	asset := Asset{
		BusinessId: businessId,
		PlantId:    input.PlantId,
		Code:       input.Code,
		Name:       input.Name,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func ListAssets(ctx context.Context, plantId *int) ([]*Asset, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if plantId != nil && *plantId > 0 {
		dbCtx = dbCtx.Where("plant_id = ?", *plantId)
	}
	var results []*Asset
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
