package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
)

func transferRows() (*models.FuelTransaction, *models.FuelTransaction) {
	consumption := fuelRow(10, models.FuelTransactionTypeConsumption, 200, day(4), nil)
	consumption.WarehouseId = 1
	entry := fuelRow(11, models.FuelTransactionTypeEntry, 200, day(4), nil)
	entry.WarehouseId = 2
	return consumption, entry
}

func TestValidateTransferPairAccepts(t *testing.T) {
	consumption, entry := transferRows()
	if err := validateTransferPair(consumption, entry); err != nil {
		t.Fatalf("valid pair rejected: %v", err)
	}
}

func TestValidateTransferPairToleratesTinyQtyNoise(t *testing.T) {
	consumption, entry := transferRows()
	entry.Qty = consumption.Qty + 0.005
	if err := validateTransferPair(consumption, entry); err != nil {
		t.Fatalf("sub-tolerance mismatch rejected: %v", err)
	}
}

func TestValidateTransferPairRejections(t *testing.T) {
	linked := 99

	cases := []struct {
		name   string
		mutate func(c, e *models.FuelTransaction)
		want   error
	}{
		{
			name:   "same warehouse",
			mutate: func(c, e *models.FuelTransaction) { e.WarehouseId = c.WarehouseId },
			want:   models.ErrSameWarehouse,
		},
		{
			name:   "product mismatch",
			mutate: func(c, e *models.FuelTransaction) { e.ProductId = 42 },
			want:   models.ErrProductMismatch,
		},
		{
			name:   "quantity mismatch",
			mutate: func(c, e *models.FuelTransaction) { e.Qty = c.Qty - 5 },
			want:   models.ErrQuantityMismatch,
		},
		{
			name:   "consumption already linked",
			mutate: func(c, e *models.FuelTransaction) { c.ReferenceTransactionId = &linked },
			want:   models.ErrAlreadyLinked,
		},
		{
			name:   "entry already linked",
			mutate: func(c, e *models.FuelTransaction) { e.ReferenceTransactionId = &linked },
			want:   models.ErrAlreadyLinked,
		},
	}
	for _, tc := range cases {
		consumption, entry := transferRows()
		tc.mutate(consumption, entry)
		err := validateTransferPair(consumption, entry)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidateTransferPairRequiresCorrectTypes(t *testing.T) {
	consumption, entry := transferRows()
	if err := validateTransferPair(entry, consumption); err == nil {
		t.Fatalf("swapped roles must be rejected")
	}
	if err := validateTransferPair(consumption, consumption); err == nil {
		t.Fatalf("consumption on the entry side must be rejected")
	}
}

func TestEntryNeedsTransferPrice(t *testing.T) {
	zero := 0.0
	_, entry := transferRows()

	entry.UnitCost = nil
	if !entryNeedsTransferPrice(entry) {
		t.Fatalf("nil unit cost must need a price")
	}
	entry.UnitCost = &zero
	if !entryNeedsTransferPrice(entry) {
		t.Fatalf("zero unit cost must need a price")
	}
	entry.UnitCost = price(4.00)
	if entryNeedsTransferPrice(entry) {
		t.Fatalf("priced entry must not be overwritten")
	}
}

func backfillPair(consumptionId, entryId int) *TransferPair {
	consumption, entry := transferRows()
	consumption.ID = consumptionId
	entry.ID = entryId
	return &TransferPair{Consumption: consumption, Entry: entry}
}

func TestPartitionTransferBackfillIsolatesFailures(t *testing.T) {
	pairs := []*TransferPair{backfillPair(10, 11), backfillPair(20, 21), backfillPair(30, 31)}

	noPriceSource := errors.New("no pricing source for consumption 20")
	result := partitionTransferBackfill(pairs, func(pair *TransferPair) error {
		if pair.Consumption.ID == 20 {
			return noPriceSource
		}
		return nil
	})

	if len(result.Fixed) != 2 || result.Fixed[0] != 10 || result.Fixed[1] != 30 {
		t.Fatalf("pairs around the failure must still be fixed, got %v", result.Fixed)
	}
	if len(result.Failed) != 1 || result.Failed[0].ConsumptionId != 20 {
		t.Fatalf("expected only pair 20 failed, got %+v", result.Failed)
	}
	if result.Failed[0].Reason != noPriceSource.Error() {
		t.Fatalf("failure reason wrong: %q", result.Failed[0].Reason)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("expected no skips, got %v", result.Skipped)
	}
}

func TestPartitionTransferBackfillSkipsPricedEntries(t *testing.T) {
	priced := backfillPair(20, 21)
	priced.Entry.UnitCost = price(4.00)
	pairs := []*TransferPair{backfillPair(10, 11), priced}

	calls := 0
	result := partitionTransferBackfill(pairs, func(*TransferPair) error {
		calls++
		return nil
	})

	if len(result.Skipped) != 1 || result.Skipped[0] != 20 {
		t.Fatalf("priced pair must be skipped, got %v", result.Skipped)
	}
	if calls != 1 {
		t.Fatalf("propagation must not run for skipped pairs, ran %d times", calls)
	}
	if len(result.Fixed) != 1 || result.Fixed[0] != 10 {
		t.Fatalf("unpriced pair must be fixed, got %v", result.Fixed)
	}
}

func TestQuantityMismatchErrorCarriesValues(t *testing.T) {
	consumption, entry := transferRows()
	entry.Qty = 150
	err := validateTransferPair(consumption, entry)
	var qmErr *models.QuantityMismatchError
	if !errors.As(err, &qmErr) {
		t.Fatalf("expected QuantityMismatchError, got %T", err)
	}
	if qmErr.Expected != 200 || qmErr.Actual != 150 {
		t.Fatalf("mismatch values wrong: %+v", qmErr)
	}
}
