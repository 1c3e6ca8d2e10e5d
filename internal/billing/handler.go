package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/billflow-erp/billflow/internal/platform/httpx"
)

// RecordQuery is the read surface over billing records.
type RecordQuery interface {
	FindByStatus(ctx context.Context, tenantID int64, status RecordStatus) ([]Record, error)
}

// Handler exposes the read-only billing record surface. Record intake and
// approval live in the upstream services; this service only observes.
type Handler struct {
	logger  *slog.Logger
	records RecordQuery
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, records RecordQuery) *Handler {
	return &Handler{logger: logger, records: records}
}

// MountRoutes registers billing record routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tenants/{tenantID}/records", h.listRecords)
}

type recordSummary struct {
	ID       int64        `json:"id"`
	TenantID int64        `json:"tenant_id"`
	Type     RecordType   `json:"type"`
	Category string       `json:"category"`
	Status   RecordStatus `json:"status"`
	Amount   float64      `json:"amount"`
	DueAt    time.Time    `json:"due_at"`
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}

	status := RecordStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = StatusApproved
	}

	records, err := h.records.FindByStatus(r.Context(), tenantID, status)
	if err != nil {
		h.logger.Error("list billing records", slog.Int64("tenant", tenantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	summaries := make([]recordSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, recordSummary{
			ID:       rec.ID,
			TenantID: rec.TenantID,
			Type:     rec.Type,
			Category: rec.Category,
			Status:   rec.Status,
			Amount:   rec.Amount(),
			DueAt:    rec.DueAt,
		})
	}
	httpx.JSON(w, http.StatusOK, summaries)
}
