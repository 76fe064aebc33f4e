package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"ragreader/internal/domain"
	"ragreader/internal/loader"
	"ragreader/internal/logger"
	"ragreader/internal/service"
)

// Pipeline is the part of the service the HTTP API drives.
type Pipeline interface {
	SubmitDocuments(session, dir string) (service.BuildHandle, error)
	Status(h service.BuildHandle) (service.BuildStatus, error)
	AnswerQuery(ctx context.Context, session, query string) (domain.QueryResult, error)
	Clear(session string) (bool, error)
	Session(session string) (service.SessionStatus, bool)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type uploadResponse struct {
	Message string              `json:"message"`
	BuildID service.BuildHandle `json:"build_id"`
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

type Handler struct {
	pipeline    Pipeline
	uploadDir   string
	maxUploadMB int
}

func NewHandler(p Pipeline, uploadDir string, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{pipeline: p, uploadDir: uploadDir, maxUploadMB: maxUploadMB}
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Document Query API!"})
}

// UploadFile stores a .txt or .pdf file in the session's upload directory and
// starts a background rebuild of that directory.
func (h *Handler) UploadFile(c *gin.Context) {
	session := c.GetString(sessionKey)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxUploadMB)<<20)

	file, err := c.FormFile("file")
	if err != nil {
		abortDetail(c, http.StatusBadRequest, "file is required")
		return
	}
	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) || !loader.Supported(name) {
		abortDetail(c, http.StatusBadRequest, fmt.Sprintf("unsupported file %q: only .txt and .pdf are accepted", file.Filename))
		return
	}
	if st, ok := h.pipeline.Session(session); ok && st.Building {
		abortDetail(c, http.StatusConflict, "A build is already in progress for this session.")
		return
	}

	dir := filepath.Join(h.uploadDir, session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		abortDetail(c, http.StatusInternalServerError, fmt.Sprintf("File upload failed: %v", err))
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		abortDetail(c, http.StatusInternalServerError, fmt.Sprintf("File upload failed: %v", err))
		return
	}

	handle, err := h.pipeline.SubmitDocuments(session, dir)
	if errors.Is(err, domain.ErrBuildInProgress) {
		abortDetail(c, http.StatusConflict, fmt.Sprintf("File '%s' saved, but a build is already in progress for this session.", name))
		return
	}
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, fmt.Sprintf("File upload failed: %v", err))
		return
	}
	c.JSON(http.StatusAccepted, uploadResponse{
		Message: fmt.Sprintf("File '%s' uploaded successfully and processing started.", name),
		BuildID: handle,
	})
}

func (h *Handler) QueryDocuments(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusBadRequest, "query is required")
		return
	}
	res, err := h.pipeline.AnswerQuery(c.Request.Context(), c.GetString(sessionKey), req.Query)
	if err != nil {
		status, detail := queryErrorStatus(err)
		if status >= 500 {
			logger.Error("request %s: query failed: %v", GetRequestID(c.Request.Context()), err)
		}
		abortDetail(c, status, detail)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNoIndex):
		return http.StatusNotFound, "No documents available to query."
	case errors.Is(err, domain.ErrIndexNotReady):
		return http.StatusServiceUnavailable, "Documents are still being processed. Try again shortly."
	case errors.Is(err, domain.ErrBuildFailed):
		return http.StatusUnprocessableEntity, fmt.Sprintf("Document processing failed: %v", err)
	case errors.Is(err, domain.ErrEmptyText):
		return http.StatusBadRequest, "query is required"
	case domain.IsKind(err, domain.KindEmbedding), domain.IsKind(err, domain.KindQuery):
		return http.StatusBadGateway, fmt.Sprintf("Error during query processing: %v", err)
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Error during query processing: %v", err)
	}
}

func (h *Handler) BuildStatus(c *gin.Context) {
	st, err := h.pipeline.Status(service.BuildHandle(c.Param("id")))
	if errors.Is(err, domain.ErrUnknownBuild) {
		abortDetail(c, http.StatusNotFound, "Unknown build.")
		return
	}
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) GetSession(c *gin.Context) {
	st, _ := h.pipeline.Session(c.GetString(sessionKey))
	c.JSON(http.StatusOK, st)
}

// DeleteSession clears the session index and its uploaded files.
func (h *Handler) DeleteSession(c *gin.Context) {
	session := c.GetString(sessionKey)
	removed, err := h.pipeline.Clear(session)
	if errors.Is(err, domain.ErrBuildInProgress) {
		abortDetail(c, http.StatusConflict, "A build is in progress for this session.")
		return
	}
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.RemoveAll(filepath.Join(h.uploadDir, session)); err != nil {
		logger.Warn("removing uploads for session %q: %v", session, err)
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "cleared": removed})
}
