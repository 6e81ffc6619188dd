// Package model defines the job listing entities shared by the cache, the
// gateways and the transport layers.
//
// Status lifecycle of a listing:
//
//	open ──► in-progress ──► completed
//	  │           │
//	  ├──► assigned ──────────┘
//	  └───────────┴──► cancelled
//
// completed and cancelled are terminal for display purposes; the store does
// not enforce the graph, updates may set any known status.
package model

import "fmt"

// Status values mirror the job_status enum in PostgreSQL.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusAssigned   Status = "assigned"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every known status in display order.
var Statuses = []Status{
	StatusOpen,
	StatusInProgress,
	StatusAssigned,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusOpen, StatusInProgress, StatusAssigned, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTerminal returns true for statuses that close a listing.
func IsTerminal(s Status) bool { return s == StatusCompleted || s == StatusCancelled }
