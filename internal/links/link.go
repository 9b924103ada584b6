package links

import "time"

// Status is the lifecycle state of a Link.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusRetired
}

// Link maps a short code to a target URL. Code, ID and Owner never change after
// creation; Visits only grows.
type Link struct {
	ID        string
	Code      string
	Target    string
	Visits    int64
	Owner     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l *Link) IsActive() bool {
	return l.Status == StatusActive
}

func (l *Link) IsRetired() bool {
	return l.Status == StatusRetired
}

// Page selects a window of a listing. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}
