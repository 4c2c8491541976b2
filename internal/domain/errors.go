package domain

import "errors"

var (
	ErrInvalidRange      = errors.New("invalid date range")
	ErrRangeConflict     = errors.New("range conflicts with a hard lock")
	ErrSegmentNotFound   = errors.New("segment not found")
	ErrHoldExpired       = errors.New("hold expired before the operation completed")
	ErrStoreWrite        = errors.New("store write failed")
	ErrUnitRequired      = errors.New("unit is required")
	ErrReferenceRequired = errors.New("reference id is required")
	ErrUnitLockBusy      = errors.New("unit is locked by another writer")
)
