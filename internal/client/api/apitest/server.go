// Package apitest provides an in-memory sync server for tests.
//
// The server assigns Lamport timestamps, accepts pushes idempotently by
// operation_id and can be told to reject entities, fail requests or go down.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/agromarket/internal/models"
	"github.com/iudanet/agromarket/pkg/api"
)

// Server is a fake sync server backed by httptest
type Server struct {
	*httptest.Server

	logger      *slog.Logger
	seen        map[string]int64  // operation_id -> назначенный lamport_ts
	rejected    map[string]string // entity_id -> conflict_type
	resolutions map[string]models.ResolutionChoice
	token       string
	accepted    []models.SyncOperation
	pushes      [][]models.SyncOperation
	lamport     int64
	failPush    int
	down        bool
	mu          sync.Mutex
}

// NewServer starts the fake server. Call Close when done.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		logger:      logger,
		seen:        make(map[string]int64),
		rejected:    make(map[string]string),
		resolutions: make(map[string]models.ResolutionChoice),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, s.handleHealth)
	mux.HandleFunc("POST "+api.PathPush, s.handlePush)
	mux.HandleFunc("POST "+api.PathPull, s.handlePull)
	mux.HandleFunc("POST /sync/conflicts/{id}/resolve", s.handleResolve)

	s.Server = httptest.NewServer(s.guard(mux))
	return s
}

// RejectEntity makes every new operation on entityID conflict
func (s *Server) RejectEntity(entityID, conflictType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[entityID] = conflictType
}

// AllowEntity removes a rejection rule
func (s *Server) AllowEntity(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rejected, entityID)
}

// FailNextPushes makes the next n push requests answer 503
func (s *Server) FailNextPushes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPush = n
}

// SetDown makes every endpoint, including health, answer 503
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// RequireToken makes every request require the bearer token
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Seed stores operations made by another device and assigns them Lamport timestamps
func (s *Server) Seed(ops ...models.SyncOperation) []models.SyncOperation {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.SyncOperation, 0, len(ops))
	for _, op := range ops {
		result = append(result, s.accept(op))
	}
	return result
}

// Accepted returns the operations committed by the server in Lamport order
func (s *Server) Accepted() []models.SyncOperation {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.SyncOperation, 0, len(s.accepted))
	for _, op := range s.accepted {
		result = append(result, *op.Clone())
	}
	return result
}

// Pushes returns the operation batches received by the push endpoint
func (s *Server) Pushes() [][]models.SyncOperation {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([][]models.SyncOperation, len(s.pushes))
	copy(result, s.pushes)
	return result
}

// Resolutions returns the resolutions reported by clients
func (s *Server) Resolutions() map[string]models.ResolutionChoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]models.ResolutionChoice, len(s.resolutions))
	for k, v := range s.resolutions {
		result[k] = v
	}
	return result
}

// LamportTS returns the server's current Lamport counter
func (s *Server) LamportTS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lamport
}

// guard проверяет доступность сервера и токен
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		down, token := s.down, s.token
		s.mu.Unlock()

		if down {
			writeError(w, http.StatusServiceUnavailable, "server is down")
			return
		}

		if token != "" && r.URL.Path != api.PathHealth {
			if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != token {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", Version: "apitest"})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushes = append(s.pushes, req.Operations)

	if s.failPush > 0 {
		s.failPush--
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	resp := api.PushResponse{
		Accepted: []models.SyncOperation{},
		Rejected: []api.RejectedOperation{},
	}

	for _, op := range req.Operations {
		// Повторная отправка принятой операции не создает дубликат
		if ts, ok := s.seen[op.OperationID]; ok {
			op.LamportTS = ts
			resp.Accepted = append(resp.Accepted, op)
			continue
		}

		if conflictType, ok := s.rejected[op.EntityID]; ok {
			resp.Rejected = append(resp.Rejected, api.RejectedOperation{
				OperationID:            op.OperationID,
				ConflictID:             uuid.New().String(),
				ConflictingOperationID: s.lastOperationFor(op.EntityID),
				ConflictType:           conflictType,
				ResolutionLevel:        1,
			})
			continue
		}

		resp.Accepted = append(resp.Accepted, s.accept(op))
	}

	resp.ConflictsDetected = len(resp.Rejected)
	resp.NewLamportTS = s.lamport

	s.logger.Debug("push handled",
		"device_id", req.DeviceID,
		"accepted", len(resp.Accepted),
		"rejected", len(resp.Rejected))

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req api.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]models.SyncOperation, 0)
	for _, op := range s.accepted {
		if op.LamportTS <= req.SinceLamportTS || op.Version <= req.SinceVersion {
			continue
		}
		ops = append(ops, *op.Clone())
		if req.Limit > 0 && len(ops) >= req.Limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, api.PullResponse{Operations: ops})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Resolution != models.ResolutionLocal && req.Resolution != models.ResolutionRemote {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported resolution %q", req.Resolution))
		return
	}

	s.mu.Lock()
	s.resolutions[r.PathValue("id")] = req.Resolution
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// accept назначает операции следующий lamport_ts; вызывается под мьютексом
func (s *Server) accept(op models.SyncOperation) models.SyncOperation {
	s.lamport++
	op.LamportTS = s.lamport
	if op.Version == 0 {
		op.Version = 1
	}

	s.seen[op.OperationID] = op.LamportTS
	s.accepted = append(s.accepted, *op.Clone())
	sort.SliceStable(s.accepted, func(i, j int) bool {
		return s.accepted[i].LamportTS < s.accepted[j].LamportTS
	})

	return op
}

func (s *Server) lastOperationFor(entityID string) string {
	for i := len(s.accepted) - 1; i >= 0; i-- {
		if s.accepted[i].EntityID == entityID {
			return s.accepted[i].OperationID
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: http.StatusText(status), Message: message})
}
