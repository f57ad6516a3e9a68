package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNotifySignsAndRetries(t *testing.T) {
	var attempts int32
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get(SignatureHeader) != Sign("s3cret", body) {
			t.Errorf("bad signature %q", r.Header.Get(SignatureHeader))
		}
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		received <- ev
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "s3cret")
	n.delays = []time.Duration{0, 10 * time.Millisecond}

	select {
	case <-n.Notify(NewEvent(EventBatchCompleted, "b-1", map[string]int{"processed": 3})):
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not finish")
	}

	select {
	case ev := <-received:
		if ev.Type != EventBatchCompleted || ev.BatchID != "b-1" {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("event not received")
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestNilNotifier(t *testing.T) {
	n := NewNotifier("", "")
	if n != nil {
		t.Fatal("expected nil notifier for empty url")
	}
	<-n.Notify(NewEvent(EventBatchCompleted, "b", nil))
}
