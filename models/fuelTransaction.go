package models

import (
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"gorm.io/gorm"
)

const (
	// ChainBalanceTolerance is the float accumulation tolerance (liters) when
	// comparing a row's previous_balance with its predecessor's current_balance.
	ChainBalanceTolerance = 0.5

	// LotDrainTolerance is the float-noise threshold (liters) under which a
	// FIFO lot counts as fully drained.
	LotDrainTolerance = 0.01
)

// FuelTransaction is one row of a warehouse's append-only diesel ledger.
//
// Chain order is (transaction_date, insertion_order, id) ascending.
// TransactionDate is business-effective time and may be backdated;
// InsertionOrder is creation time and breaks ties deterministically.
// Never rely on storage order.
type FuelTransaction struct {
	ID                     int                 `gorm:"primary_key" json:"id"`
	BusinessId             string              `gorm:"index;not null" json:"business_id"`
	WarehouseId            int                 `gorm:"index:idx_fuel_chain,priority:1;not null" json:"warehouse_id"`
	ProductId              int                 `gorm:"index;not null" json:"product_id"`
	TxType                 FuelTransactionType `gorm:"type:enum('E','C');not null" json:"tx_type"`
	Qty                    float64             `gorm:"not null" json:"qty"`
	TransactionDate        time.Time           `gorm:"index:idx_fuel_chain,priority:2;not null" json:"transaction_date"`
	InsertionOrder         int64               `gorm:"index:idx_fuel_chain,priority:3;not null;default:0" json:"insertion_order"`
	UnitCost               *float64            `json:"unit_cost"`
	PreviousBalance        float64             `gorm:"default:0" json:"previous_balance"`
	CurrentBalance         float64             `gorm:"default:0" json:"current_balance"`
	MeterReading           *float64            `json:"meter_reading"`
	IsTransfer             *bool               `gorm:"not null;default:false" json:"is_transfer"`
	ReferenceTransactionId *int                `gorm:"index" json:"reference_transaction_id"`
	AssetId                *int                `gorm:"index" json:"asset_id"`
	Notes                  string              `gorm:"type:text" json:"notes"`
	CreatedAt              time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// SignedQty is +Qty for entries and -Qty for consumptions.
func (ft *FuelTransaction) SignedQty() float64 {
	return ft.TxType.Sign() * ft.Qty
}

// BeforeSave enforces internal invariants for the fuel ledger.
//
// InsertionOrder must never be zero: chain replay relies on it as the
// creation-time tiebreaker for same-date rows. IsTransfer is normalized so
// transfer queries never have to handle NULL.
func (ft *FuelTransaction) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if ft == nil {
		return nil
	}
	if ft.IsTransfer == nil {
		b := false
		ft.IsTransfer = &b
	}
	if ft.InsertionOrder == 0 {
		ft.InsertionOrder = time.Now().UnixNano()
	}
	return nil
}

// NewFuelTransaction is the append input.
type NewFuelTransaction struct {
	WarehouseId     int       `json:"warehouse_id" binding:"required"`
	TxType          string    `json:"tx_type" binding:"required,oneof=E C entry consumption"`
	Qty             float64   `json:"qty" binding:"required"`
	TransactionDate time.Time `json:"transaction_date" binding:"required"`
	UnitCost        *float64  `json:"unit_cost"`
	MeterReading    *float64  `json:"meter_reading"`
	AssetId         *int      `json:"asset_id"`
	Notes           string    `json:"notes"`
}

// GetFuelChain loads a warehouse's full ledger in chain order.
func GetFuelChain(tx *gorm.DB, businessId string, warehouseId int) ([]*FuelTransaction, error) {
	var chain []*FuelTransaction
	err := tx.
		Where("business_id = ? AND warehouse_id = ?", businessId, warehouseId).
		Order("transaction_date, insertion_order, id").
		Find(&chain).Error
	return chain, err
}

// GetLatestFuelTransaction returns the chain's last row, or nil when the
// ledger is empty.
func GetLatestFuelTransaction(tx *gorm.DB, businessId string, warehouseId int) (*FuelTransaction, error) {
	var latest FuelTransaction
	err := tx.
		Where("business_id = ? AND warehouse_id = ?", businessId, warehouseId).
		Order("transaction_date DESC, insertion_order DESC, id DESC").
		Limit(1).
		Take(&latest).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

func GetFuelTransaction(tx *gorm.DB, businessId string, id int) (*FuelTransaction, error) {
	var ft FuelTransaction
	err := tx.
		Where("business_id = ? AND id = ?", businessId, id).
		First(&ft).Error
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

// UpdateFuelWarehouseInventoryCache refreshes the warehouse's denormalized
// current_inventory column and drops the redis balance key. The cache is
// advisory; failures to invalidate redis are not fatal.
func UpdateFuelWarehouseInventoryCache(tx *gorm.DB, businessId string, warehouseId int, liters float64) error {
	err := tx.Model(&FuelWarehouse{}).
		Where("business_id = ? AND id = ?", businessId, warehouseId).
		Update("current_inventory", liters).Error
	if err != nil {
		return err
	}
	_ = config.DeleteRedisKey(FuelWarehouseBalanceCacheKey(businessId, warehouseId))
	return nil
}
