package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type stubSource struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestRetriever_FallsThroughToFirstSuccess(t *testing.T) {
	bad1 := &stubSource{name: "bad1", err: context.DeadlineExceeded}
	bad2 := &stubSource{name: "bad2", err: context.DeadlineExceeded}
	good := &stubSource{name: "good", text: "headline text"}
	after := &stubSource{name: "after", text: "should not be used"}

	r, err := NewRetrieverFromSources(bad1, bad2, good, after)
	if err != nil {
		t.Fatal(err)
	}

	text, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "headline text" {
		t.Fatalf("expected 'headline text', got '%s'", text)
	}
	if bad1.calls != 1 || bad2.calls != 1 || good.calls != 1 {
		t.Fatalf("expected one attempt per mirror up to success, got %d/%d/%d", bad1.calls, bad2.calls, good.calls)
	}
	if after.calls != 0 {
		t.Fatalf("expected mirror after success to be skipped, got %d calls", after.calls)
	}
}

func TestRetriever_FirstMirrorWins(t *testing.T) {
	first := &stubSource{name: "first", text: "a"}
	second := &stubSource{name: "second", text: "b"}

	r, _ := NewRetrieverFromSources(first, second)
	text, err := r.Fetch(context.Background())
	if err != nil || text != "a" {
		t.Fatalf("expected 'a', got %q (%v)", text, err)
	}
	if second.calls != 0 {
		t.Fatal("expected second mirror not to be called")
	}
}

func TestRetriever_AllFail(t *testing.T) {
	errA := errors.New("dial tcp: connection refused")
	errB := errors.New("unexpected status 502 Bad Gateway")
	r, _ := NewRetrieverFromSources(
		&stubSource{name: "a", err: errA},
		&stubSource{name: "b", err: errB},
	)

	text, err := r.Fetch(context.Background())
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty failure description")
	}
	if err.Error() != errB.Error() {
		t.Fatalf("expected last failure description, got %q", err.Error())
	}
	if len(fe.Failures) != 2 || fe.Failures[0].Source != "a" {
		t.Fatalf("expected all failures kept in order, got %+v", fe.Failures)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatal("expected every failure reachable via errors.Is")
	}
}

func TestRetriever_CancelledContext(t *testing.T) {
	src := &stubSource{name: "a", text: "x"}
	r, _ := NewRetrieverFromSources(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.calls != 0 {
		t.Fatal("expected no attempts after cancellation")
	}
}

func TestNewRetriever_RequiresMirror(t *testing.T) {
	if _, err := NewRetriever(nil); !errors.Is(err, ErrNoMirrors) {
		t.Fatalf("expected ErrNoMirrors, got %v", err)
	}
}

func TestRetriever_HTTPMirrors(t *testing.T) {
	var slowHits, goodHits, spareHits atomic.Int32

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slowHits.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodHits.Add(1)
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("expected User-Agent %q, got %q", userAgent, r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, "headline text")
	}))
	defer good.Close()
	spare := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		spareHits.Add(1)
	}))
	defer spare.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	r, err := NewRetriever(client, slow.URL, broken.URL, good.URL, spare.URL)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Sources(); len(got) != 4 || got[2] != good.URL {
		t.Fatalf("unexpected source order: %v", got)
	}

	text, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if text != "headline text" {
		t.Fatalf("expected 'headline text', got '%s'", text)
	}
	if slowHits.Load() != 1 || goodHits.Load() != 1 || spareHits.Load() != 0 {
		t.Fatalf("unexpected hits: slow=%d good=%d spare=%d", slowHits.Load(), goodHits.Load(), spareHits.Load())
	}
}

func TestMirrorSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewMirrorSource(srv.URL, srv.Client()).Fetch(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", se.StatusCode)
	}
	if !strings.Contains(err.Error(), srv.URL) {
		t.Fatalf("expected error to name the mirror, got %q", err.Error())
	}
}

type recordingObserver struct {
	seen []string
}

func (o *recordingObserver) ObserveFetch(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.seen = append(o.seen, source+":"+result)
}

func TestRetriever_Observer(t *testing.T) {
	r, _ := NewRetrieverFromSources(
		&stubSource{name: "a", err: errors.New("down")},
		&stubSource{name: "b", text: "x"},
		&stubSource{name: "c", text: "y"},
	)
	obs := &recordingObserver{}
	r.SetObserver(obs)

	if _, err := r.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(obs.seen, ","); got != "a:error,b:ok" {
		t.Fatalf("expected a:error,b:ok, got %s", got)
	}
}
