package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httpapi "ragreader/internal/api/http"
	"ragreader/internal/logger"
)

func NewServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document query HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST   /upload_file      upload a .txt or .pdf (multipart field "file")
  POST   /query_documents  {"query": "..."}
  GET    /builds/:id       status of a background build
  GET    /session          status of the caller's session
  DELETE /session          drop the caller's index and uploads

The session is taken from the X-Session-Id header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if addr != "" {
				a.Config.Server.Addr = addr
			}
			if !verbose && !a.Config.Log.Verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := httpapi.BuildRouter(httpapi.RouterDeps{
				ServiceName: "ragreader",
				Version:     versionInfo.Version,
				Pipeline:    a.Service,
				UploadDir:   a.Config.Server.UploadDir,
				MaxUploadMB: a.Config.Server.MaxUploadMB,
				CORSOrigins: a.Config.Server.CORSOrigins,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", a.Config.Server.Addr)
			serveErr := httpapi.Serve(ctx, a.Config.Server.Addr, router)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Close(shutdownCtx); err != nil {
				logger.Warn("shutdown: %v", err)
			}
			return serveErr
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
