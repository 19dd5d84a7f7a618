package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadfieldResponse describes a leadfield registered with the service
type LeadfieldResponse struct {
	// The unique identifier of the leadfield.
	ID uuid.UUID `json:"id"`
	// Registry name, referenced from spec leadfield fields as "lf://<name>".
	Name string `json:"name"`
	// Subject identifier the leadfield was computed for.
	Subject string `json:"subject"`
	// Electrode montage the leadfield was computed with.
	Montage string `json:"montage"`
	// Number of electrodes in the montage.
	Electrodes int `json:"electrodes"`
	// Timestamp indicating when the leadfield was registered.
	CreatedAt time.Time `json:"created_at"`
}
