package models

import "time"

type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceMaintenance ResourceStatus = "maintenance"
)

func (s ResourceStatus) Valid() bool {
	return s == ResourceAvailable || s == ResourceMaintenance
}

// Resource is a physical device lent out for a time window.
type Resource struct {
	ID        int64          `json:"id" yaml:"id"`
	Label     string         `json:"label" yaml:"label"`
	Status    ResourceStatus `json:"status" yaml:"status"`
	DailyRate *int64         `json:"price_per_day" yaml:"price_per_day"`
	ImageURL  string         `json:"image_url,omitempty" yaml:"image_url"`
	CreatedAt time.Time      `json:"created_at" yaml:"-"`
}

// Rate returns the daily rate or 0 when none is set.
func (r *Resource) Rate() int64 {
	if r.DailyRate == nil {
		return 0
	}
	return *r.DailyRate
}

type Game struct {
	ID         int64  `json:"id"`
	ResourceID int64  `json:"console_id"`
	Title      string `json:"title"`
	ImageURL   string `json:"image_url,omitempty"`
}

// ResourceDetail is a catalogue entry with its bundled games.
type ResourceDetail struct {
	Resource
	Games []Game `json:"games"`
}

type CreateResourceRequest struct {
	Label     string
	DailyRate *int64
	ImageURL  string
	Status    ResourceStatus
}
