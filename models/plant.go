package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// Plant is a production site. Fuel costs are aggregated per plant code.
type Plant struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"index;not null" json:"business_id"`
	Code         string    `gorm:"size:20;not null" json:"code" binding:"required"`
	Name         string    `gorm:"size:100;not null" json:"name" binding:"required"`
	BusinessUnit string    `gorm:"size:100" json:"business_unit"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPlant struct {
	Code         string `json:"code" binding:"required"`
	Name         string `json:"name" binding:"required"`
	BusinessUnit string `json:"business_unit"`
}

func CreatePlant(ctx context.Context, input *NewPlant) (*Plant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	count, err := utils.ResourceCountWhere[Plant](ctx, businessId, "code = ?", input.Code)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("plant code already exists")
	}

	plant := Plant{
		BusinessId:   businessId,
		Code:         input.Code,
		Name:         input.Name,
		BusinessUnit: input.BusinessUnit,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&plant).Error; err != nil {
		return nil, err
	}
	return &plant, nil
}

func GetPlant(ctx context.Context, id int) (*Plant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Plant](ctx, businessId, id)
}

func ListPlants(ctx context.Context) ([]*Plant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Plant
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("code").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
