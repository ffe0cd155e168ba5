package model

import "time"

// UserStats counts accounts for the admin overview.
type UserStats struct {
	Total     int `json:"total"`
	Admins    int `json:"admins"`
	Confirmed int `json:"confirmed"`
}

// LibraryTotals counts library rows across all users.
type LibraryTotals struct {
	Transcripts int `json:"transcripts"`
	Folders     int `json:"folders"`
}

// SnapshotSummary describes one provider's stored model snapshot.
type SnapshotSummary struct {
	Count       int        `json:"count"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Source      string     `json:"source,omitempty"`
}

// AdminStats is the admin overview payload.
type AdminStats struct {
	Users     UserStats                    `json:"users"`
	Library   LibraryTotals                `json:"library"`
	Contact   map[string]int               `json:"contact"`
	Snapshots map[Provider]SnapshotSummary `json:"snapshots"`
}
