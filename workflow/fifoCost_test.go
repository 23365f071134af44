package workflow

import (
	"math"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
)

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func fuelRow(id int, txType models.FuelTransactionType, qty float64, date time.Time, unitCost *float64) *models.FuelTransaction {
	return &models.FuelTransaction{
		ID:              id,
		BusinessId:      "biz-1",
		WarehouseId:     1,
		ProductId:       1,
		TxType:          txType,
		Qty:             qty,
		TransactionDate: date,
		InsertionOrder:  int64(id),
		UnitCost:        unitCost,
	}
}

func price(v float64) *float64 { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestFifoConsumptionSpansLots(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 10, day(1), price(3.00)),
		fuelRow(2, models.FuelTransactionTypeEntry, 10, day(2), price(4.00)),
		fuelRow(3, models.FuelTransactionTypeConsumption, 12, day(3), nil),
	}

	costs, unpriced := replayFifoWarehouse(chain, day(1), day(5), 0)
	if len(unpriced) != 0 {
		t.Fatalf("expected no unpriced consumptions, got %v", unpriced)
	}
	// 10 L from the 3.00 lot plus 2 L from the 4.00 lot.
	if !approxEqual(costs[3], 38.00) {
		t.Fatalf("expected cost 38.00, got %.4f", costs[3])
	}
}

func TestFifoDrainsOldestLotFirst(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 5, day(1), price(2.00)),
		fuelRow(2, models.FuelTransactionTypeEntry, 5, day(2), price(9.00)),
		fuelRow(3, models.FuelTransactionTypeConsumption, 4, day(3), nil),
		fuelRow(4, models.FuelTransactionTypeConsumption, 4, day(4), nil),
	}

	costs, _ := replayFifoWarehouse(chain, day(1), day(5), 0)
	if !approxEqual(costs[3], 8.00) {
		t.Fatalf("first consumption should drain the 2.00 lot: got %.4f", costs[3])
	}
	// 1 L left of the old lot, then 3 L of the 9.00 lot.
	if !approxEqual(costs[4], 1*2.00+3*9.00) {
		t.Fatalf("second consumption cost wrong: got %.4f", costs[4])
	}
}

func TestFifoSkipsLotsDatedAfterConsumption(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeConsumption, 5, day(3), nil),
		fuelRow(2, models.FuelTransactionTypeEntry, 10, day(5), price(2.00)),
		fuelRow(3, models.FuelTransactionTypeConsumption, 10, day(6), nil),
	}

	costs, _ := replayFifoWarehouse(chain, day(1), day(10), 0)
	// The day-3 consumption cannot touch the day-5 lot; it falls back to the
	// window average (2.00, the only priced entry).
	if !approxEqual(costs[1], 10.00) {
		t.Fatalf("backdated consumption should use fallback price: got %.4f", costs[1])
	}
	// The skipped lot must remain fully available for the day-6 consumption.
	if !approxEqual(costs[3], 20.00) {
		t.Fatalf("later consumption should drain the untouched lot: got %.4f", costs[3])
	}
}

func TestFifoSameDayEntryDrainsBeforeConsumption(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(2, models.FuelTransactionTypeConsumption, 8, day(1), nil),
		fuelRow(1, models.FuelTransactionTypeEntry, 8, day(1), price(5.00)),
	}

	costs, unpriced := replayFifoWarehouse(chain, day(1), day(1), 0)
	if len(unpriced) != 0 {
		t.Fatalf("same-day delivery should be drainable: unpriced=%v", unpriced)
	}
	if !approxEqual(costs[2], 40.00) {
		t.Fatalf("expected 40.00, got %.4f", costs[2])
	}
}

func TestFifoWeightedAverageFallback(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 10, day(1), price(2.00)),
		fuelRow(2, models.FuelTransactionTypeEntry, 30, day(2), price(4.00)),
		fuelRow(3, models.FuelTransactionTypeConsumption, 50, day(3), nil),
	}

	costs, _ := replayFifoWarehouse(chain, day(1), day(5), 0)
	// Lots cover 40 L at 10*2+30*4=140; the uncovered 10 L get the weighted
	// average (140/40 = 3.50).
	if !approxEqual(costs[3], 140.00+10*3.50) {
		t.Fatalf("expected weighted-average fallback, got %.4f", costs[3])
	}
}

func TestFifoDefaultPriceFallback(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeConsumption, 10, day(2), nil),
	}

	costs, unpriced := replayFifoWarehouse(chain, day(1), day(5), 1.75)
	if len(unpriced) != 0 {
		t.Fatalf("default price should cover the consumption: unpriced=%v", unpriced)
	}
	if !approxEqual(costs[1], 17.50) {
		t.Fatalf("expected 17.50 from default price, got %.4f", costs[1])
	}
}

func TestFifoUnpricedEntryDoesNotOccupyLotPosition(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 10, day(1), nil),
		fuelRow(2, models.FuelTransactionTypeEntry, 10, day(2), price(3.00)),
		fuelRow(3, models.FuelTransactionTypeEntry, 10, day(3), price(5.00)),
		fuelRow(4, models.FuelTransactionTypeConsumption, 10, day(4), nil),
		fuelRow(5, models.FuelTransactionTypeConsumption, 10, day(5), nil),
	}

	costs, unpriced := replayFifoWarehouse(chain, day(1), day(6), 0)
	if len(unpriced) != 0 {
		t.Fatalf("expected no unpriced consumptions, got %v", unpriced)
	}
	// The unpriced entry never becomes a lot, so the first consumption drains
	// the 3.00 lot and the second the 5.00 lot.
	if !approxEqual(costs[4], 30.00) {
		t.Fatalf("first consumption should drain the 3.00 lot: got %.4f", costs[4])
	}
	if !approxEqual(costs[5], 50.00) {
		t.Fatalf("second consumption should drain the 5.00 lot: got %.4f", costs[5])
	}
}

func TestFifoIgnoresZeroPricedEntriesAsLots(t *testing.T) {
	zero := 0.0
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 10, day(1), &zero),
		fuelRow(2, models.FuelTransactionTypeEntry, 10, day(2), price(4.00)),
		fuelRow(3, models.FuelTransactionTypeConsumption, 5, day(3), nil),
	}
	costs, _ := replayFifoWarehouse(chain, day(1), day(5), 0)
	if !approxEqual(costs[3], 20.00) {
		t.Fatalf("zero-priced entry must not form a lot: got %.4f", costs[3])
	}
}

func TestFifoUnpricedWhenNoFallbackExists(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 10, day(1), nil),
		fuelRow(2, models.FuelTransactionTypeConsumption, 5, day(2), nil),
	}

	costs, unpriced := replayFifoWarehouse(chain, day(1), day(5), 0)
	if len(costs) != 0 {
		t.Fatalf("nothing should be costed, got %v", costs)
	}
	if len(unpriced) != 1 || unpriced[0] != 2 {
		t.Fatalf("expected consumption 2 unpriced, got %v", unpriced)
	}
}

func TestFifoRecordsOnlyWindowConsumptions(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 100, day(1), price(3.00)),
		fuelRow(2, models.FuelTransactionTypeConsumption, 10, day(2), nil),
		fuelRow(3, models.FuelTransactionTypeConsumption, 10, day(8), nil),
	}

	costs, _ := replayFifoWarehouse(chain, day(7), day(9), 0)
	if _, ok := costs[2]; ok {
		t.Fatalf("pre-window consumption must not be reported")
	}
	// The pre-window consumption still drained its lots before the window.
	if !approxEqual(costs[3], 30.00) {
		t.Fatalf("expected 30.00, got %.4f", costs[3])
	}
}

func TestWindowAverageUnitCostIgnoresUnpricedEntries(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 10, day(1), price(2.00)),
		fuelRow(2, models.FuelTransactionTypeEntry, 99, day(2), nil),
		fuelRow(3, models.FuelTransactionTypeConsumption, 5, day(3), nil),
	}
	if avg := windowAverageUnitCost(chain); !approxEqual(avg, 2.00) {
		t.Fatalf("expected 2.00, got %.4f", avg)
	}
	if avg := windowAverageUnitCost(nil); avg != 0 {
		t.Fatalf("empty chain should average 0, got %.4f", avg)
	}
}
