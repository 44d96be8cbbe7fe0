package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestInFlightTracker_Count(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()
	tracker.Increment()
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero_AlreadyIdle(t *testing.T) {
	var tracker InFlightTracker
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 0); err != nil {
		t.Errorf("WaitForZero() on idle tracker = %v, want nil even with a done context", err)
	}
}

func TestInFlightTracker_WaitForZero_Deadline(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tracker.WaitForZero(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero() = %v, want DeadlineExceeded", err)
	}
}

// TestWaitForInFlight_DrainsRoutedRequest holds a prediction-shaped request inside
// MetricsMiddleware and checks shutdown waits for it.
func TestWaitForInFlight_DrainsRoutedRequest(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}).Methods("POST")

	base := InFlightCount()
	served := make(chan struct{})
	go func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/predict", nil))
		close(served)
	}()
	<-entered

	if got := InFlightCount(); got != base+1 {
		t.Fatalf("InFlightCount() = %d, want %d", got, base+1)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(short, 5*time.Millisecond); err == nil && base == 0 {
		t.Fatal("WaitForInFlight() returned while a request was still running")
	}

	close(release)
	<-served

	if base != 0 {
		t.Skipf("other requests in flight (%d); drain to zero not observable", base)
	}
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := WaitForInFlight(ctx, 5*time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() after release = %v, want nil", err)
	}
}
