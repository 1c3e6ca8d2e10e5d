package invoice

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/billflow-erp/billflow/internal/billing"
	"github.com/billflow-erp/billflow/internal/shared"
	_ "github.com/billflow-erp/billflow/internal/testing/guard"
)

type fakeEnqueuer struct {
	generated   []int64
	transferred []int64
	err         error
}

func (e *fakeEnqueuer) EnqueueGenerateFiles(_ context.Context, tenantID int64) error {
	e.generated = append(e.generated, tenantID)
	return e.err
}

func (e *fakeEnqueuer) EnqueueTransferFiles(_ context.Context, tenantID int64) error {
	e.transferred = append(e.transferred, tenantID)
	return e.err
}

type fakeFileQuery struct {
	files []File
	start time.Time
	end   time.Time
}

func (q *fakeFileQuery) FindFilesCreatedBetween(_ context.Context, _ int64, start, end time.Time) ([]File, error) {
	q.start, q.end = start, end
	return q.files, nil
}

func handlerFixture(t *testing.T, store *memoryStore, locks Locker, enqueue *fakeEnqueuer, files *fakeFileQuery) http.Handler {
	t.Helper()
	if locks == nil {
		locks = &fakeLocker{}
	}
	pipeline := NewPipeline(store, NewBuilders([]FileConfig{waterConfig()}, testClock), []FileConfig{waterConfig()},
		&fakeDispatcher{}, &captureNotifier{}, locks, testClock, nil)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), pipeline, enqueue, files)

	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestGenerateSyncRunsInline(t *testing.T) {
	store := &memoryStore{records: []billing.Record{
		waterRecord(1, billing.InvoiceRow{Description: "Water usage", Quantity: 1, UnitCost: 100}),
	}}
	enqueue := &fakeEnqueuer{}
	router := handlerFixture(t, store, nil, enqueue, &fakeFileQuery{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tenants/1/invoice-files/generate?sync=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.saved, 1)
	require.Empty(t, enqueue.generated)
}

func TestGenerateEnqueuesByDefault(t *testing.T) {
	store := &memoryStore{}
	enqueue := &fakeEnqueuer{}
	router := handlerFixture(t, store, nil, enqueue, &fakeFileQuery{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tenants/1/invoice-files/generate", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []int64{1}, enqueue.generated)
	require.Empty(t, store.saved)
}

func TestTransferEnqueues(t *testing.T) {
	enqueue := &fakeEnqueuer{}
	router := handlerFixture(t, &memoryStore{}, nil, enqueue, &fakeFileQuery{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tenants/2/invoice-files/transfer", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []int64{2}, enqueue.transferred)
}

func TestGenerateSyncLockHeldIsConflict(t *testing.T) {
	router := handlerFixture(t, &memoryStore{}, &fakeLocker{err: shared.ErrRunInProgress}, &fakeEnqueuer{}, &fakeFileQuery{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tenants/1/invoice-files/generate?sync=true", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerateRejectsBadTenantID(t *testing.T) {
	router := handlerFixture(t, &memoryStore{}, nil, &fakeEnqueuer{}, &fakeFileQuery{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tenants/zero/invoice-files/generate", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMonthValidatesQuery(t *testing.T) {
	router := handlerFixture(t, &memoryStore{}, nil, &fakeEnqueuer{}, &fakeFileQuery{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenants/1/invoice-files?year=2024", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMonthQueriesCalendarMonth(t *testing.T) {
	files := &fakeFileQuery{files: []File{
		{ID: 1, TenantID: 1, Name: "INV_20240305.TXT", Type: billing.TypeExternal, Status: FileSendSuccessful, Created: testClock()},
	}}
	router := handlerFixture(t, &memoryStore{}, nil, &fakeEnqueuer{}, files)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenants/1/invoice-files?year=2024&month=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), files.start)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), files.end)
	require.Contains(t, rec.Body.String(), "INV_20240305.TXT")
	require.Contains(t, rec.Body.String(), "SEND_SUCCESSFUL")
}
