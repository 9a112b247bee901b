package domain

import (
	"fmt"
	"time"
)

// Medication is a drug a patient tracks.
type Medication struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	CreatedAt time.Time `json:"createdAt"`
}

// MedicationLogEntry records one "taken" action.
type MedicationLogEntry struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	MedicationID   string    `json:"medicationId"`
	MedicationName string    `json:"medicationName"`
	TakenAt        time.Time `json:"takenAt"`
}

// MedicationFields builds the document for a new medication.
func MedicationFields(ownerID, name, dosage string) map[string]any {
	return map[string]any{
		"userId":    ownerID,
		"name":      name,
		"dosage":    dosage,
		"createdAt": ServerTimestamp,
	}
}

// MedicationLogFields builds the document for a new log entry.
func MedicationLogFields(ownerID string, m Medication) map[string]any {
	return map[string]any{
		"userId":         ownerID,
		"medicationId":   m.ID,
		"medicationName": m.Name,
		"takenAt":        ServerTimestamp,
	}
}

// DecodeMedication maps a medications document.
func DecodeMedication(d Document) (Medication, error) {
	name := d.String("name")
	if name == "" {
		return Medication{}, fmt.Errorf("medication %s: missing name", d.ID)
	}
	created, _ := d.Time("createdAt")
	return Medication{
		ID:        d.ID,
		OwnerID:   d.String("userId"),
		Name:      name,
		Dosage:    d.String("dosage"),
		CreatedAt: created,
	}, nil
}

// DecodeMedicationLogEntry maps a medication_log document.
func DecodeMedicationLogEntry(d Document) (MedicationLogEntry, error) {
	medID := d.String("medicationId")
	if medID == "" {
		return MedicationLogEntry{}, fmt.Errorf("medication log %s: missing medicationId", d.ID)
	}
	taken, _ := d.Time("takenAt")
	return MedicationLogEntry{
		ID:             d.ID,
		OwnerID:        d.String("userId"),
		MedicationID:   medID,
		MedicationName: d.String("medicationName"),
		TakenAt:        taken,
	}, nil
}
