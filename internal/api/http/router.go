// Package httpapi exposes the pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ragreader/internal/logger"
	"ragreader/internal/service"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	Pipeline    Pipeline
	UploadDir   string
	MaxUploadMB int
	CORSOrigins []string
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(dep.CORSOrigins))
	r.Use(RequestIDMiddleware())
	r.MaxMultipartMemory = int64(max(dep.MaxUploadMB, 1)) << 20

	NewHealthHandler(dep.ServiceName, dep.Version).RegisterRoutes(r)

	h := NewHandler(dep.Pipeline, dep.UploadDir, dep.MaxUploadMB)
	r.GET("/", h.Root)
	r.GET("/builds/:id", h.BuildStatus)

	sess := r.Group("/", SessionMiddleware(service.DefaultSession))
	sess.POST("/upload_file", h.UploadFile)
	sess.POST("/query_documents", h.QueryDocuments)
	sess.GET("/session", h.GetSession)
	sess.DELETE("/session", h.DeleteSession)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", sessionHeader, "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
