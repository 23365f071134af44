package models

import "time"

// FuelAuditReport persists one reconciliation run for one warehouse so
// nightly diagnostics stay inspectable after the fact.
type FuelAuditReport struct {
	ID                   int           `gorm:"primary_key" json:"id"`
	BusinessId           string        `gorm:"index;not null" json:"business_id"`
	WarehouseId          int           `gorm:"index;not null" json:"warehouse_id"`
	StoredInventory      float64       `json:"stored_inventory"`
	LatestBalance        float64       `json:"latest_balance"`
	RecomputedBalance    float64       `json:"recomputed_balance"`
	DriftStored          float64       `json:"drift_stored"`
	DriftLatest          float64       `json:"drift_latest"`
	ChainBreakCount      int           `json:"chain_break_count"`
	NegativeBalanceCount int           `json:"negative_balance_count"`
	Severity             AuditSeverity `gorm:"size:20;index" json:"severity"`
	Issues               string        `gorm:"type:text" json:"issues"`
	CreatedAt            time.Time     `gorm:"autoCreateTime" json:"created_at"`
}
