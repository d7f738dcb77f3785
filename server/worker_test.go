package server

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorker_Do(t *testing.T) {
	w := NewWorker(2)
	defer w.Stop()

	v, err := w.Do(bg(), func() (any, error) { return 42, nil })
	if err != nil || v.(int) != 42 {
		t.Errorf("Do = %v, %v, want 42", v, err)
	}

	boom := errors.New("boom")
	if _, err := w.Do(bg(), func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestWorker_PanicRecovery(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	_, err := w.Do(bg(), func() (any, error) { panic("bad request") })
	if err == nil || !strings.Contains(err.Error(), "bad request") {
		t.Fatalf("err = %v, want recovered panic", err)
	}

	// The goroutine survives the panic.
	v, err := w.Do(bg(), func() (any, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorker_Concurrency(t *testing.T) {
	w := NewWorker(4)
	defer w.Stop()

	var count atomic.Int64
	errc := make(chan error, 20)
	for range 20 {
		go func() {
			_, err := w.Do(bg(), func() (any, error) {
				count.Add(1)
				return nil, nil
			})
			errc <- err
		}()
	}
	for range 20 {
		if err := <-errc; err != nil {
			t.Errorf("Do: %v", err)
		}
	}
	if count.Load() != 20 {
		t.Errorf("ran %d functions, want 20", count.Load())
	}
}

func TestWorker_ContextCanceled(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go w.Do(bg(), func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(bg(), 20*time.Millisecond)
	defer cancel()
	_, err := w.Do(ctx, func() (any, error) { return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestWorker_Stopped(t *testing.T) {
	w := NewWorker(1)
	w.Stop()
	w.Stop()

	if _, err := w.Do(bg(), func() (any, error) { return nil, nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}
