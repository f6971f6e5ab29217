package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mxfedl/logger"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires every endpoint onto a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	if h.metrics != nil {
		router.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	// 媒体文件与任务
	router.HandleFunc("/api/media", h.AuthMiddleware(h.UploadMediaHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/media", h.AuthMiddleware(h.ListMediaHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/media/{id}", h.AuthMiddleware(h.GetMediaHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/media/{id}/process", h.AuthMiddleware(h.ProcessMediaHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/jobs", h.AuthMiddleware(h.SubmitJobHandler)).Methods(http.MethodPost)

	// EDL
	router.HandleFunc("/api/edl/{id}", h.AuthMiddleware(h.GetEDLHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/edl/{id}/download", h.AuthMiddleware(h.DownloadEDLHandler)).Methods(http.MethodGet)

	router.HandleFunc("/ws/media/{id}/status", h.AuthMiddleware(h.StatusWebSocketHandler)).Methods(http.MethodGet)

	return router
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	log = logger.OrNop(log)

	// 设置服务器超时
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("HTTP server stopped")
	return nil
}
