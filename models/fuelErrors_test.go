package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestInvalidQuantityErrorMatchesSentinel(t *testing.T) {
	err := &InvalidQuantityError{Qty: -3}
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("InvalidQuantityError must unwrap to ErrInvalidQuantity")
	}
	if !strings.Contains(err.Error(), "-3") {
		t.Fatalf("message should carry the offending quantity: %q", err.Error())
	}
}

func TestQuantityMismatchErrorMatchesSentinel(t *testing.T) {
	err := &QuantityMismatchError{Expected: 200, Actual: 195}
	if !errors.Is(err, ErrQuantityMismatch) {
		t.Fatalf("QuantityMismatchError must unwrap to ErrQuantityMismatch")
	}
}

func TestWrappedSentinelsSurviveFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("%w: warehouse_id=7", ErrMeterNotSupported)
	if !errors.Is(wrapped, ErrMeterNotSupported) {
		t.Fatalf("wrapped sentinel lost")
	}
}

func TestParseFuelTransactionType(t *testing.T) {
	cases := map[string]FuelTransactionType{
		"E":           FuelTransactionTypeEntry,
		"entry":       FuelTransactionTypeEntry,
		"C":           FuelTransactionTypeConsumption,
		"consumption": FuelTransactionTypeConsumption,
	}
	for in, want := range cases {
		got, err := ParseFuelTransactionType(in)
		if err != nil || got != want {
			t.Errorf("parse %q: got %q err=%v", in, got, err)
		}
	}
	if _, err := ParseFuelTransactionType("X"); err == nil {
		t.Errorf("unknown type must fail")
	}
}

func TestSignedQty(t *testing.T) {
	entry := &FuelTransaction{TxType: FuelTransactionTypeEntry, Qty: 10}
	if entry.SignedQty() != 10 {
		t.Fatalf("entry sign wrong")
	}
	consumption := &FuelTransaction{TxType: FuelTransactionTypeConsumption, Qty: 10}
	if consumption.SignedQty() != -10 {
		t.Fatalf("consumption sign wrong")
	}
}
