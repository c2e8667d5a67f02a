package models

import "time"

// SyncState is the singleton sync cursor record
type SyncState struct {
	LastSync      time.Time `json:"last_sync"`
	DeviceID      string    `json:"device_id"`
	LastLamportTS int64     `json:"last_lamport_ts"` // high-water mark, полученный от сервера
	IsOnline      bool      `json:"is_online"`
}

// SyncStatePatch is a partial update of SyncState. Nil fields are left untouched.
type SyncStatePatch struct {
	LastSync      *time.Time
	DeviceID      *string
	LastLamportTS *int64
	IsOnline      *bool
}

// Apply merges the patch into state
func (p SyncStatePatch) Apply(state *SyncState) {
	if p.LastSync != nil {
		state.LastSync = *p.LastSync
	}
	if p.DeviceID != nil {
		state.DeviceID = *p.DeviceID
	}
	if p.LastLamportTS != nil {
		state.LastLamportTS = *p.LastLamportTS
	}
	if p.IsOnline != nil {
		state.IsOnline = *p.IsOnline
	}
}

// IsEmpty reports whether the patch changes nothing
func (p SyncStatePatch) IsEmpty() bool {
	return p.LastSync == nil && p.DeviceID == nil && p.LastLamportTS == nil && p.IsOnline == nil
}
