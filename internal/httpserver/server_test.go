package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestServerLifecycle(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	if srv.Addr() != ":0" {
		t.Fatalf("unexpected addr %s", srv.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Give ListenAndServe a moment to bind before shutting down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("expected ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
