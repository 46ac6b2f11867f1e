// Package audit provides the read side of the audit trail.
package audit

import "time"

// TimelineFilters narrows an audit timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  *int64
	Target   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit event as listed.
type TimelineRow struct {
	ID         string         `json:"id"`
	At         time.Time      `json:"at"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Details    map[string]any `json:"details,omitempty"`
}

// PagingInfo carries windowed paging metadata. HasNext comes from fetching
// one row past the window, not from a count query.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}
