package domain

import "time"

// Document is one persisted legal text from the fixed corpus. UUID is the only
// reliable join key between the embedding store and full-text storage; Title
// may be empty or unreliable for older scans.
type Document struct {
	UUID         string     `json:"uuid"`
	Filename     string     `json:"filename"`
	RelativePath string     `json:"relative_path"`
	Title        string     `json:"title,omitempty"`
	ShortTitle   string     `json:"short_title,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Category     string     `json:"category,omitempty"`
}
