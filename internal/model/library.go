package model

import "time"

// Folder groups transcripts in a user's library.
type Folder struct {
	ID              string    `json:"id"`
	UserID          string    `json:"-"`
	Name            string    `json:"name"`
	TranscriptCount int       `json:"transcriptCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Transcript is a processed transcript owned by a user.
type Transcript struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	FolderID     *string   `json:"folderId"`
	Folder       string    `json:"folder,omitempty"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	LastModified time.Time `json:"lastModified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TranscriptFilter narrows a transcript listing.
type TranscriptFilter struct {
	FolderID string
	Search   string
}

// TranscriptUpdate carries optional transcript fields for PATCH requests.
// An empty FolderID string moves the transcript out of its folder.
type TranscriptUpdate struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	FolderID *string `json:"folderId,omitempty"`
}

// DashboardStats summarizes a user's library.
type DashboardStats struct {
	Transcripts       int        `json:"transcripts"`
	Folders           int        `json:"folders"`
	RecentTranscripts int        `json:"recentTranscripts"`
	LastModified      *time.Time `json:"lastModified"`
}
