package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"mxfedl/cache"
	"mxfedl/core/auth"
	"mxfedl/logger"
	"mxfedl/model"
	"mxfedl/repository"
	"mxfedl/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Jobs accepts media files for background processing.
type Jobs interface {
	Submit(ctx context.Context, fileName, locator string) (*model.MediaFile, error)
	Start(ctx context.Context, id uint) error
}

// APIHandler 处理所有API请求
type APIHandler struct {
	db      *gorm.DB
	jobs    Jobs
	uploads storage.UploadStore
	events  cache.StatusPublisher
	auth    *auth.Authenticator
	metrics http.Handler
	log     *zap.Logger

	maxUploadMemory int64
}

// Options carries the optional collaborators of an APIHandler.
type Options struct {
	// Events feeds the status websocket; nil disables it.
	Events cache.StatusPublisher
	// Auth protects /api routes; nil leaves them open.
	Auth *auth.Authenticator
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(db *gorm.DB, jobs Jobs, uploads storage.UploadStore, opts Options, log *zap.Logger) *APIHandler {
	return &APIHandler{
		db:              db,
		jobs:            jobs,
		uploads:         uploads,
		events:          opts.Events,
		auth:            opts.Auth,
		metrics:         opts.Metrics,
		log:             logger.OrNop(log),
		maxUploadMemory: 32 << 20, // 32MB
	}
}

// store returns repositories bound to the request.
func (h *APIHandler) store(r *http.Request) *repository.Store {
	return repository.NewStore(h.db.WithContext(r.Context()))
}

// HealthHandler reports whether the database answers.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.Warn("health check failed", logger.ErrorField(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
