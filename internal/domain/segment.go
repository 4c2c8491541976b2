package domain

import "time"

type Status string

const (
	StatusReserved    Status = "reserved"
	StatusConfirmed   Status = "confirmed"
	StatusBooked      Status = "booked"
	StatusBlocked     Status = "blocked"
	StatusCleaning    Status = "cleaning"
	StatusMaintenance Status = "maintenance"
)

// LockKind is the strength of a segment. Hard locks are binding occupancy
// (confirmed reservations, imported busy ranges); soft locks are holds
// pending confirmation; none is informational only and never blocks dates.
type LockKind string

const (
	LockHard LockKind = "hard"
	LockSoft LockKind = "soft"
	LockNone LockKind = "none"
)

type SourceKind string

const (
	SourceICS      SourceKind = "ics"
	SourceDirect   SourceKind = "direct"
	SourceAdmin    SourceKind = "admin"
	SourceInternal SourceKind = "internal"
	SourceCleaning SourceKind = "cleaning"
	SourceExternal SourceKind = "external"
)

// Segment is one contiguous date range of occupancy for a unit.
type Segment struct {
	ID string `json:"id,omitempty"`
	DateRange
	Status      Status            `json:"status"`
	Lock        LockKind          `json:"lock"`
	Source      SourceKind        `json:"source"`
	Platform    string            `json:"platform,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	// ExpiresAt is set only on soft holds created with a TTL. A soft
	// segment without it never auto-expires.
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Precedence orders overlapping segments in the merge. Higher wins the
// overlapped span; the loser is truncated or split around the winner.
type Precedence int

const (
	PrecedenceNone Precedence = iota
	PrecedenceSoft
	PrecedenceAdminBlock
	PrecedenceHard
)

// SegmentPrecedence ranks a segment:
// hard reservations and imported busy ranges beat hard admin blocks,
// which beat any soft hold, which beat informational entries.
func SegmentPrecedence(s Segment) Precedence {
	switch s.Lock {
	case LockHard:
		if s.Source == SourceAdmin && s.Status == StatusBlocked {
			return PrecedenceAdminBlock
		}
		return PrecedenceHard
	case LockSoft:
		return PrecedenceSoft
	default:
		return PrecedenceNone
	}
}

// IsSoftHold reports whether the segment is a TTL-bearing soft hold, the
// only kind the expiry sweep may touch.
func (s Segment) IsSoftHold() bool {
	return s.Lock == LockSoft && s.ExpiresAt != nil
}

// ExpiredAt reports whether a soft hold's TTL has passed at the instant now.
func (s Segment) ExpiredAt(now time.Time) bool {
	return s.IsSoftHold() && s.ExpiresAt.Before(now)
}
