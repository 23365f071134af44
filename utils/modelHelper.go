package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
)

// FetchModel loads one row by id scoped to the business.
func FetchModel[T any](ctx context.Context, businessId string, id int) (*T, error) {
	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&result).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

func ResourceCountWhere[T any](ctx context.Context, businessId string, cond string, args ...interface{}) (int64, error) {
	db := config.GetDB()
	var v T
	var count int64
	err := db.WithContext(ctx).Model(&v).
		Where("business_id = ?", businessId).
		Where(cond, args...).
		Count(&count).Error
	return count, err
}

// ValidateResourceId checks the id exists for the ctx's business.
func ValidateResourceId[T any](ctx context.Context, businessId string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, businessId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
