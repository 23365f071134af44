package models

import "errors"

type FuelTransactionType string

const (
	FuelTransactionTypeEntry       FuelTransactionType = "E"
	FuelTransactionTypeConsumption FuelTransactionType = "C"
)

func (t FuelTransactionType) Valid() bool {
	return t == FuelTransactionTypeEntry || t == FuelTransactionTypeConsumption
}

// Sign is +1 for entries and -1 for consumptions.
func (t FuelTransactionType) Sign() float64 {
	if t == FuelTransactionTypeConsumption {
		return -1
	}
	return 1
}

func ParseFuelTransactionType(s string) (FuelTransactionType, error) {
	switch s {
	case "E", "entry", "Entry":
		return FuelTransactionTypeEntry, nil
	case "C", "consumption", "Consumption":
		return FuelTransactionTypeConsumption, nil
	default:
		return "", errors.New("invalid fuel transaction type")
	}
}

type AuditSeverity string

const (
	AuditSeverityOK       AuditSeverity = "OK"
	AuditSeverityMinor    AuditSeverity = "MINOR_ISSUE"
	AuditSeverityMajor    AuditSeverity = "MAJOR_ISSUE"
	AuditSeverityCritical AuditSeverity = "CRITICAL"
)

// MeterConflictResolution is the operator's decision when an imported meter
// reading disagrees with one already recorded later in the same warehouse.
type MeterConflictResolution string

const (
	MeterConflictUnresolved   MeterConflictResolution = ""
	MeterConflictUseImported  MeterConflictResolution = "use_imported"
	MeterConflictKeepExisting MeterConflictResolution = "keep_existing"
	MeterConflictSkip         MeterConflictResolution = "skip"
)

func (r MeterConflictResolution) Valid() bool {
	switch r {
	case MeterConflictUnresolved, MeterConflictUseImported, MeterConflictKeepExisting, MeterConflictSkip:
		return true
	default:
		return false
	}
}
