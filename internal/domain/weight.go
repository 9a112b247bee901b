package domain

import (
	"fmt"
	"time"
)

// WeightEntry is a single weight measurement in kilograms.
type WeightEntry struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"createdAt"`
}

// WeightFields builds the document for a new weight entry.
func WeightFields(ownerID string, kg float64) map[string]any {
	return map[string]any{
		"userId":    ownerID,
		"weight":    kg,
		"createdAt": ServerTimestamp,
	}
}

// DecodeWeightEntry maps a weight_log document.
func DecodeWeightEntry(d Document) (WeightEntry, error) {
	w, ok := d.Float("weight")
	if !ok {
		return WeightEntry{}, fmt.Errorf("weight %s: bad weight", d.ID)
	}
	created, _ := d.Time("createdAt")
	return WeightEntry{ID: d.ID, OwnerID: d.String("userId"), Weight: w, CreatedAt: created}, nil
}
