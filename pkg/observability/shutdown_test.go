package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(testLogger(t, &buf), nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
}

func TestShutdownManager_Shutdown(t *testing.T) {
	t.Run("runs every function", func(t *testing.T) {
		var buf bytes.Buffer
		sm := NewShutdownManager(testLogger(t, &buf), &http.Server{}, time.Second)

		var calls int32
		for i := 0; i < 3; i++ {
			sm.RegisterShutdownFunc(func(context.Context) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}

		assert.NoError(t, sm.Shutdown())
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("collects errors", func(t *testing.T) {
		var buf bytes.Buffer
		sm := NewShutdownManager(testLogger(t, &buf), nil, time.Second)
		closeErr := errors.New("close failed")
		sm.RegisterShutdownFunc(func(context.Context) error { return closeErr })
		sm.RegisterShutdownFunc(func(context.Context) error { return nil })

		err := sm.Shutdown()
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("recovers panics", func(t *testing.T) {
		var buf bytes.Buffer
		sm := NewShutdownManager(testLogger(t, &buf), nil, time.Second)
		sm.RegisterShutdownFunc(func(context.Context) error { panic("boom") })

		assert.NoError(t, sm.Shutdown())
		assert.Contains(t, buf.String(), "PANIC recovered")
	})

	t.Run("times out", func(t *testing.T) {
		var buf bytes.Buffer
		sm := NewShutdownManager(testLogger(t, &buf), nil, 20*time.Millisecond)
		release := make(chan struct{})
		defer close(release)
		sm.RegisterShutdownFunc(func(context.Context) error {
			<-release
			return nil
		})

		assert.EqualError(t, sm.Shutdown(), "shutdown timeout reached")
	})
}

func TestShutdownManager_Wait(t *testing.T) {
	t.Run("serve error shuts down and is returned", func(t *testing.T) {
		var buf bytes.Buffer
		sm := NewShutdownManager(testLogger(t, &buf), nil, time.Second)
		var calls int32
		sm.RegisterShutdownFunc(func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})

		serverErr := make(chan error, 1)
		serverErr <- errors.New("address already in use")

		err := sm.wait(make(chan os.Signal), serverErr)
		assert.ErrorContains(t, err, "address already in use")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Contains(t, buf.String(), "Server failed")
	})

	t.Run("closed error channel waits for a signal", func(t *testing.T) {
		var buf bytes.Buffer
		sm := NewShutdownManager(testLogger(t, &buf), nil, time.Second)

		serverErr := make(chan error)
		close(serverErr)
		sigChan := make(chan os.Signal, 1)
		sigChan <- syscall.SIGTERM

		assert.NoError(t, sm.wait(sigChan, serverErr))
		assert.Contains(t, buf.String(), "Received signal")
	})
}
