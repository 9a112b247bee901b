package domain

import (
	"fmt"
	"time"
)

// Thresholds at or above which a reading is flagged as elevated.
const (
	ElevatedSystolic  = 130
	ElevatedDiastolic = 80
)

// Reading is a single blood-pressure measurement.
type Reading struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Systolic  int       `json:"systolic"`
	Diastolic int       `json:"diastolic"`
	CreatedAt time.Time `json:"createdAt"`
}

// Classification is the outcome category of a saved reading.
type Classification string

const (
	Normal   Classification = "normal"
	Elevated Classification = "elevated"
)

// ClassifyReading flags a reading as elevated when either value reaches its
// threshold.
func ClassifyReading(systolic, diastolic int) Classification {
	if systolic >= ElevatedSystolic || diastolic >= ElevatedDiastolic {
		return Elevated
	}
	return Normal
}

// ReadingFields builds the document for a new reading.
func ReadingFields(ownerID string, systolic, diastolic int) map[string]any {
	return map[string]any{
		"userId":    ownerID,
		"systolic":  systolic,
		"diastolic": diastolic,
		"createdAt": ServerTimestamp,
	}
}

// DecodeReading maps a readings document.
func DecodeReading(d Document) (Reading, error) {
	sys, ok := d.Int("systolic")
	if !ok {
		return Reading{}, fmt.Errorf("reading %s: bad systolic", d.ID)
	}
	dia, ok := d.Int("diastolic")
	if !ok {
		return Reading{}, fmt.Errorf("reading %s: bad diastolic", d.ID)
	}
	created, _ := d.Time("createdAt")
	return Reading{
		ID:        d.ID,
		OwnerID:   d.String("userId"),
		Systolic:  sys,
		Diastolic: dia,
		CreatedAt: created,
	}, nil
}
