package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertEvent records one permitted alert dispatch for a device. It is what
// gets exported to the alert event stream for downstream consumers.
type AlertEvent struct {
	ID          string    `json:"id"`
	TagNumber   string    `json:"tagNumber"`
	Conditions  []string  `json:"conditions"`
	Reading     *Reading  `json:"reading"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

// NewAlertEvent builds an alert event for the given device and conditions
func NewAlertEvent(tagNumber string, conditions []string, reading *Reading) *AlertEvent {
	return &AlertEvent{
		ID:          uuid.New().String(),
		TagNumber:   tagNumber,
		Conditions:  conditions,
		Reading:     reading,
		TriggeredAt: time.Now().UTC(),
	}
}
