package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoundIOPassesThroughResult(t *testing.T) {
	opErr := errors.New("create: permission denied")
	aborted := false

	err := boundIO(context.Background(), time.Second,
		func() error { return opErr },
		func() { aborted = true })

	require.ErrorIs(t, err, opErr)
	require.False(t, aborted)
}

func TestBoundIOAbortsStalledUpload(t *testing.T) {
	// The op blocks like a write against a hung remote and only returns
	// once abort tears the connection down.
	unblock := make(chan struct{})
	done := make(chan struct{})

	start := time.Now()
	err := boundIO(context.Background(), 20*time.Millisecond,
		func() error {
			defer close(done)
			<-unblock
			return errors.New("write: connection closed")
		},
		func() { close(unblock) })

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
	<-done
}

func TestBoundIOHonorsCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := boundIO(ctx, time.Hour,
		func() error {
			<-unblock
			return nil
		},
		func() { close(unblock) })

	require.ErrorIs(t, err, context.Canceled)
}

func TestNewSFTPUploaderDefaultsTimeouts(t *testing.T) {
	u := NewSFTPUploader(0, 0)
	require.Equal(t, 15*time.Second, u.connectTimeout)
	require.Equal(t, 2*time.Minute, u.ioTimeout)
}
