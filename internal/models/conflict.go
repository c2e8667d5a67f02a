package models

import "time"

// ResolutionChoice is the outcome chosen for a conflict
type ResolutionChoice string

const (
	ResolutionLocal  ResolutionChoice = "LOCAL"  // повторно отправить локальные данные
	ResolutionRemote ResolutionChoice = "REMOTE" // принять серверную версию
	ResolutionMerged ResolutionChoice = "MERGED" // отправить объединенный payload
)

// Valid reports whether c is a known resolution
func (c ResolutionChoice) Valid() bool {
	switch c {
	case ResolutionLocal, ResolutionRemote, ResolutionMerged:
		return true
	}
	return false
}

// Conflict types reported by the server
const (
	ConflictVersionMismatch  = "version-mismatch"
	ConflictConcurrentDelete = "concurrent-delete"
)

// SyncConflict описывает операцию, отклоненную сервером
type SyncConflict struct {
	CreatedAt              time.Time        `json:"created_at"`
	ConflictID             string           `json:"conflict_id"`
	OperationID            string           `json:"operation_id"`             // локальная операция
	ConflictingOperationID string           `json:"conflicting_operation_id"` // конкурирующая серверная операция, если известна
	ConflictType           string           `json:"conflict_type"`
	ResolutionChoice       ResolutionChoice `json:"resolution_choice,omitempty"`
	ResolutionLevel        int              `json:"resolution_level"` // информационная важность
	Resolved               bool             `json:"resolved"`
	LocalOnly              bool             `json:"local_only,omitempty"` // сервер не прислал conflict_id, id выдан клиентом
}
