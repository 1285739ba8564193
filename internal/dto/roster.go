package dto

import "github.com/noah-isme/sma-registration-portal/internal/models"

// RosterMode distinguishes the open listing from the token-gated admin listing.
type RosterMode string

const (
	RosterOpen       RosterMode = "open"
	RosterTokenGated RosterMode = "token-gated"
)

// RosterView is a snapshot of a roster viewer.
type RosterView struct {
	Mode            RosterMode         `json:"mode"`
	Loading         bool               `json:"loading"`
	Loaded          bool               `json:"loaded"`
	Error           string             `json:"error,omitempty"`
	Authenticated   bool               `json:"authenticated"`
	Alert           string             `json:"alert,omitempty"`
	DeleteSupported bool               `json:"delete_supported"`
	Rows            []models.RosterRow `json:"rows"`
}

// IDs returns the ids of the rendered rows in order.
func (v RosterView) IDs() []string {
	ids := make([]string, 0, len(v.Rows))
	for _, row := range v.Rows {
		ids = append(ids, row.ID)
	}
	return ids
}
