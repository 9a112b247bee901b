package domain

import (
	"fmt"
	"time"
)

// LifestyleTip is doctor-authored advice visible to every user.
type LifestyleTip struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recommendation is a doctor's note addressed to one patient.
type Recommendation struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patientId"`
	Text       string    `json:"text"`
	DoctorName string    `json:"doctorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DecodeTip maps a lifestyle_tips document.
func DecodeTip(d Document) (LifestyleTip, error) {
	title := d.String("title")
	if title == "" {
		return LifestyleTip{}, fmt.Errorf("tip %s: missing title", d.ID)
	}
	created, _ := d.Time("createdAt")
	return LifestyleTip{ID: d.ID, Title: title, Content: d.String("content"), CreatedAt: created}, nil
}

// DecodeRecommendation maps a recommendations document.
func DecodeRecommendation(d Document) (Recommendation, error) {
	text := d.String("text")
	if text == "" {
		return Recommendation{}, fmt.Errorf("recommendation %s: missing text", d.ID)
	}
	created, _ := d.Time("createdAt")
	return Recommendation{
		ID:         d.ID,
		PatientID:  d.String("patientId"),
		Text:       text,
		DoctorName: d.String("doctorName"),
		CreatedAt:  created,
	}, nil
}
