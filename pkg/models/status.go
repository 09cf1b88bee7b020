package models

import "time"

type StatusEventKind string

const (
	StatusEventRestaurant    StatusEventKind = "restaurant_status"
	StatusEventSettingsSaved StatusEventKind = "settings_saved"
)

type StatusEvent struct {
	Kind   StatusEventKind `json:"kind"`
	Open   *bool           `json:"open,omitempty"`
	At     time.Time       `json:"at"`
	Source string          `json:"source"`
}
