// Package api contains the JSON wire types shared by the sync client and server.
package api

import (
	"fmt"
	"net/url"

	"github.com/iudanet/agromarket/internal/models"
)

// Пути эндпоинтов синхронизации
const (
	PathPush    = "/sync/push"
	PathPull    = "/sync/pull"
	PathHealth  = "/health"
	pathResolve = "/sync/conflicts/%s/resolve"
)

// ResolvePath returns the resolve endpoint for a conflict
func ResolvePath(conflictID string) string {
	return fmt.Sprintf(pathResolve, url.PathEscape(conflictID))
}

// PushRequest представляет пакет операций, отправляемых на сервер
type PushRequest struct {
	DeviceID      string                 `json:"device_id"`
	ClientVersion string                 `json:"client_version"`
	Operations    []models.SyncOperation `json:"operations"`
}

// RejectedOperation описывает операцию, отклоненную сервером из-за конфликта
type RejectedOperation struct {
	OperationID            string `json:"operation_id"`
	ConflictID             string `json:"conflict_id"`
	ConflictingOperationID string `json:"conflicting_operation_id,omitempty"`
	ConflictType           string `json:"conflict_type"`
	ResolutionLevel        int    `json:"resolution_level"`
}

// PushResponse представляет вердикт сервера по пакету
type PushResponse struct {
	Accepted          []models.SyncOperation `json:"accepted"`           // операции с назначенным lamport_ts
	Rejected          []RejectedOperation    `json:"rejected"`           // операции в конфликте
	ConflictsDetected int                    `json:"conflicts_detected"` // количество конфликтов
	NewLamportTS      int64                  `json:"new_lamport_ts"`     // новый high-water mark
}

// PullRequest представляет запрос операций, которых клиент еще не видел
type PullRequest struct {
	SinceLamportTS int64 `json:"since_lamport_ts"`
	SinceVersion   int64 `json:"since_version"`
	Limit          int   `json:"limit"`
}

// PullResponse представляет ответ со списком удаленных операций
type PullResponse struct {
	Operations []models.SyncOperation `json:"operations"`
}

// ResolveConflictRequest передает выбранное разрешение конфликта
type ResolveConflictRequest struct {
	Resolution models.ResolutionChoice `json:"resolution"`
}
