package invoice

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billflow-erp/billflow/internal/platform/httpx"
)

// Enqueuer schedules asynchronous pipeline runs.
type Enqueuer interface {
	EnqueueGenerateFiles(ctx context.Context, tenantID int64) error
	EnqueueTransferFiles(ctx context.Context, tenantID int64) error
}

// FileQuery is the read-only surface over produced files.
type FileQuery interface {
	FindFilesCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]File, error)
}

// Handler exposes the pipeline trigger and file status endpoints.
type Handler struct {
	logger   *slog.Logger
	pipeline *Pipeline
	enqueue  Enqueuer
	files    FileQuery
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, pipeline *Pipeline, enqueue Enqueuer, files FileQuery) *Handler {
	return &Handler{
		logger:   logger,
		pipeline: pipeline,
		enqueue:  enqueue,
		files:    files,
		validate: validator.New(),
	}
}

// MountRoutes registers the invoice file routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tenants/{tenantID}/invoice-files/generate", h.generate)
	r.Post("/tenants/{tenantID}/invoice-files/transfer", h.transfer)
	r.Get("/tenants/{tenantID}/invoice-files", h.listMonth)
}

func tenantParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	return id, err == nil && id > 0
}

// generate triggers one file generation run. With ?sync=true the run executes
// inline; otherwise it is enqueued and the call returns immediately.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.pipeline.CreateFiles, h.enqueue.EnqueueGenerateFiles)
}

// transfer triggers one delivery run for pending files.
func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.pipeline.TransferFiles, h.enqueue.EnqueueTransferFiles)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, run func(context.Context, int64) error, enqueue func(context.Context, int64) error) {
	tenantID, ok := tenantParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}

	if r.URL.Query().Get("sync") == "true" {
		if err := run(r.Context(), tenantID); err != nil {
			h.logger.Error("synchronous pipeline run", slog.Int64("tenant", tenantID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "completed"})
		return
	}

	if err := enqueue(r.Context(), tenantID); err != nil {
		h.logger.Error("enqueue pipeline run", slog.Int64("tenant", tenantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type monthQuery struct {
	Year  int `validate:"required,gte=2000,lte=2100"`
	Month int `validate:"required,gte=1,lte=12"`
}

type fileSummary struct {
	ID       int64      `json:"id"`
	TenantID int64      `json:"tenant_id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Status   FileStatus `json:"status"`
	Created  time.Time  `json:"created"`
	Sent     *time.Time `json:"sent,omitempty"`
}

// listMonth returns all files created in the requested calendar month.
func (h *Handler) listMonth(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}

	q := monthQuery{}
	q.Year, _ = strconv.Atoi(r.URL.Query().Get("year"))
	q.Month, _ = strconv.Atoi(r.URL.Query().Get("month"))
	if err := h.validate.Struct(q); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year and month query parameters are required")
		return
	}

	start := time.Date(q.Year, time.Month(q.Month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	files, err := h.files.FindFilesCreatedBetween(r.Context(), tenantID, start, end)
	if err != nil {
		h.logger.Error("list invoice files", slog.Int64("tenant", tenantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	summaries := make([]fileSummary, 0, len(files))
	for _, f := range files {
		summaries = append(summaries, fileSummary{
			ID:       f.ID,
			TenantID: f.TenantID,
			Name:     f.Name,
			Type:     string(f.Type),
			Status:   f.Status,
			Created:  f.Created,
			Sent:     f.Sent,
		})
	}
	httpx.JSON(w, http.StatusOK, summaries)
}
