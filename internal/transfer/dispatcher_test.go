package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/billflow-erp/billflow/internal/invoice"
)

type statusUpdate struct {
	fileID int64
	status invoice.FileStatus
	sent   *time.Time
}

type fakeFileStore struct {
	updates []statusUpdate
	err     error
}

func (s *fakeFileStore) UpdateFileStatus(_ context.Context, fileID int64, status invoice.FileStatus, sent *time.Time) error {
	s.updates = append(s.updates, statusUpdate{fileID: fileID, status: status, sent: sent})
	return s.err
}

type fakeResolver struct {
	dest Destination
	err  error
}

func (r *fakeResolver) Destination(context.Context, int64) (Destination, error) {
	return r.dest, r.err
}

type fakeUploader struct {
	names []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, _ Destination, name string, _ []byte) error {
	u.names = append(u.names, name)
	return u.err
}

var dispatchClock = func() time.Time {
	return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
}

func pendingFile() *invoice.File {
	return &invoice.File{
		ID:       11,
		TenantID: 1,
		Name:     "INV_20240305.TXT",
		Content:  []byte("10"),
		Status:   invoice.FileGenerated,
	}
}

func TestDispatchSuccess(t *testing.T) {
	store := &fakeFileStore{}
	uploader := &fakeUploader{}
	d := NewDispatcher(store, &fakeResolver{dest: Destination{Kind: "sftp"}}, map[string]Uploader{"sftp": uploader}, dispatchClock, nil)

	file := pendingFile()
	require.NoError(t, d.Dispatch(context.Background(), file))

	require.Equal(t, []string{"INV_20240305.TXT"}, uploader.names)
	require.Equal(t, invoice.FileSendSuccessful, file.Status)
	require.NotNil(t, file.Sent)
	require.Equal(t, dispatchClock(), *file.Sent)

	require.Len(t, store.updates, 1)
	require.Equal(t, invoice.FileSendSuccessful, store.updates[0].status)
	require.NotNil(t, store.updates[0].sent)
}

func TestDispatchUploadFailureMarksSendFailed(t *testing.T) {
	store := &fakeFileStore{}
	uploader := &fakeUploader{err: errors.New("dial tcp: timeout")}
	d := NewDispatcher(store, &fakeResolver{dest: Destination{Kind: "sftp"}}, map[string]Uploader{"sftp": uploader}, dispatchClock, nil)

	file := pendingFile()
	err := d.Dispatch(context.Background(), file)
	require.Error(t, err)
	require.Equal(t, invoice.FileSendFailed, file.Status)

	require.Len(t, store.updates, 1)
	require.Equal(t, invoice.FileSendFailed, store.updates[0].status)
	require.Nil(t, store.updates[0].sent)
}

func TestDispatchUnknownDestinationKind(t *testing.T) {
	store := &fakeFileStore{}
	d := NewDispatcher(store, &fakeResolver{dest: Destination{Kind: "ftp"}}, map[string]Uploader{"sftp": &fakeUploader{}}, dispatchClock, nil)

	file := pendingFile()
	err := d.Dispatch(context.Background(), file)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"ftp"`)
	require.Equal(t, invoice.FileSendFailed, file.Status)
}

func TestDispatchResolverFailureMarksSendFailed(t *testing.T) {
	store := &fakeFileStore{}
	uploader := &fakeUploader{}
	d := NewDispatcher(store, &fakeResolver{err: errors.New("tenant gone")}, map[string]Uploader{"sftp": uploader}, dispatchClock, nil)

	file := pendingFile()
	err := d.Dispatch(context.Background(), file)
	require.Error(t, err)
	require.Empty(t, uploader.names)
	require.Equal(t, invoice.FileSendFailed, file.Status)
}
