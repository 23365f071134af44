package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
)

func TestMeterEditAllowedOnlyForLatestRow(t *testing.T) {
	target := fuelRow(5, models.FuelTransactionTypeEntry, 10, day(5), nil)

	if err := meterEditAllowed(target, target); err != nil {
		t.Fatalf("editing the latest row must be allowed: %v", err)
	}

	newer := fuelRow(6, models.FuelTransactionTypeConsumption, 3, day(6), nil)
	err := meterEditAllowed(target, newer)
	if !errors.Is(err, models.ErrMeterEditRestrictedToLatest) {
		t.Fatalf("a newer row must block the edit, got %v", err)
	}

	// An empty chain means the target row was deleted underneath us.
	if err := meterEditAllowed(target, nil); !errors.Is(err, models.ErrMeterEditRestrictedToLatest) {
		t.Fatalf("nil latest must block the edit, got %v", err)
	}
}
