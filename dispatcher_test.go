package authgate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newDispatcherTest(t *testing.T, handler http.HandlerFunc) (*Manager, *Dispatcher) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	manager := newTestManager(t, newFakeAuthenticator(), func(cfg *Config) {
		cfg.Dispatch.BaseURL = server.URL
	})
	return manager, manager.Dispatcher()
}

func loginForTest(t *testing.T, manager *Manager) {
	t.Helper()
	if _, err := manager.Login(context.Background(), testEmail, testSecret); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestDispatcherFailsFastWithoutSession(t *testing.T) {
	var hits atomic.Int64
	_, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := dispatcher.Get(context.Background(), "/profile", nil)
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("unauthenticated request must never reach the network")
	}
}

func TestDispatcherSkipAuth(t *testing.T) {
	_, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("unexpected Authorization header")
		}
		w.Write([]byte(`{"ok":true}`))
	})

	resp, err := dispatcher.Get(context.Background(), "/health", &RequestConfig{SkipAuth: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var body struct {
		OK bool `json:"ok"`
	}
	if err := resp.Decode(&body); err != nil || !body.OK {
		t.Fatalf("unexpected body decode: %v %+v", err, body)
	}
}

func TestDispatcherAttachesSecurityHeaders(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Bearer at-") {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
			t.Errorf("unexpected X-Requested-With %q", got)
		}
		if got := r.Header.Get("X-CSRF-Token"); got != "csrf-123" {
			t.Errorf("unexpected X-CSRF-Token %q", got)
		}
		if got := r.Header.Get("X-Trace-Id"); got != "trace-7" {
			t.Errorf("unexpected X-Trace-Id %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected Content-Type %q", got)
		}
		w.WriteHeader(http.StatusCreated)
	})
	loginForTest(t, manager)

	ctx := WithCSRFToken(context.Background(), "csrf-123")
	resp, err := dispatcher.Post(ctx, "/items", map[string]string{"k": "v"}, &RequestConfig{
		Headers: map[string]string{"X-Trace-Id": "trace-7"},
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestDispatcherUnauthorizedDropsSession(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	loginForTest(t, manager)

	var notified atomic.Bool
	manager.Subscribe(func(identity *Identity, authenticated bool) {
		if identity == nil && !authenticated {
			notified.Store(true)
		}
	})

	_, err := dispatcher.Get(context.Background(), "/profile", nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if manager.IsAuthenticated() {
		t.Fatal("401 must drop the local session")
	}
	if !notified.Load() {
		t.Fatal("expected a logged-out notification")
	}
	if manager.MetricsSnapshot().Counters[MetricRequestUnauthorized] != 1 {
		t.Fatal("expected one unauthorized response counted")
	}
}

func TestDispatcherStripsMarkupFromErrors(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html><body><h1>boom</h1><script>alert(1)</script> try again</body></html>`))
	})
	loginForTest(t, manager)

	_, err := dispatcher.Get(context.Background(), "/profile", nil)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", reqErr.Status)
	}
	if strings.ContainsAny(reqErr.Message, "<>") {
		t.Fatalf("error message must not contain markup: %q", reqErr.Message)
	}
	if !strings.Contains(reqErr.Message, "boom") || !strings.Contains(reqErr.Message, "try again") {
		t.Fatalf("expected text content preserved, got %q", reqErr.Message)
	}
	if strings.Contains(reqErr.Message, "alert") {
		t.Fatalf("script payload must be removed, got %q", reqErr.Message)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	loginForTest(t, manager)

	_, err := dispatcher.Get(context.Background(), "/slow", &RequestConfig{
		Timeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if manager.MetricsSnapshot().Counters[MetricRequestTimeout] != 1 {
		t.Fatal("expected one timeout counted")
	}
}

func TestDispatcherCallerCancellation(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	loginForTest(t, manager)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := dispatcher.Get(ctx, "/slow", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancellation cause to be wrapped, got %v", err)
	}
	if manager.MetricsSnapshot().Counters[MetricRequestTimeout] != 1 {
		t.Fatal("expected one timeout counted")
	}
}

func TestDispatcherSanitizesEndpoint(t *testing.T) {
	var got atomic.Value
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.URL.Path)
	})
	loginForTest(t, manager)

	if _, err := dispatcher.Get(context.Background(), "../../etc/passwd", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if path, _ := got.Load().(string); path != "/etc/passwd" {
		t.Fatalf("unexpected request path %q", path)
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"profile", "/profile"},
		{"/a/b", "/a/b"},
		{"//a///b", "/a/b"},
		{"../../secret", "/secret"},
		{"/a/../b", "/a/b"},
		{"/a b<c>d\\e", "/abcde"},
		{"/tab\there", "/tabhere"},
		{"", "/"},
	}
	for _, tc := range cases {
		if got := sanitizeEndpoint(tc.in); got != tc.want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUploadFileRejectsOversizedPayload(t *testing.T) {
	var hits atomic.Int64
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	loginForTest(t, manager)

	_, err := dispatcher.UploadFile(context.Background(), "/upload", File{
		Name:        "huge.png",
		ContentType: "image/png",
		Size:        11 << 20,
		Reader:      strings.NewReader("payload"),
	}, nil)
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("oversized upload must be rejected before any network activity")
	}
	if manager.MetricsSnapshot().Counters[MetricUploadRejected] != 1 {
		t.Fatal("expected one rejected upload counted")
	}
}

func TestUploadFileRejectsDisallowedContentType(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {})
	loginForTest(t, manager)

	_, err := dispatcher.UploadFile(context.Background(), "/upload", File{
		Name:        "tool.exe",
		ContentType: "application/x-msdownload",
		Size:        128,
		Reader:      bytes.NewReader(make([]byte, 128)),
	}, nil)
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestUploadFileRejectsSizeMismatch(t *testing.T) {
	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {})
	loginForTest(t, manager)

	_, err := dispatcher.UploadFile(context.Background(), "/upload", File{
		Name:        "short.png",
		ContentType: "image/png",
		Size:        1024,
		Reader:      strings.NewReader("only a few bytes"),
	}, nil)
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestUploadFileSendsMultipart(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1024)

	manager, dispatcher := newDispatcherTest(t, func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("unexpected content type %q: %v", r.Header.Get("Content-Type"), err)
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		part, err := reader.NextPart()
		if err != nil {
			t.Errorf("NextPart failed: %v", err)
			return
		}
		if part.FormName() != "file" || part.FileName() != "avatar.png" {
			t.Errorf("unexpected part %q/%q", part.FormName(), part.FileName())
		}
		if got := part.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("unexpected part content type %q", got)
		}
		body, _ := io.ReadAll(part)
		if !bytes.Equal(body, payload) {
			t.Errorf("payload mismatch: %d bytes", len(body))
		}
		w.Write([]byte(`{"id":"f-1"}`))
	})
	loginForTest(t, manager)

	resp, err := dispatcher.UploadFile(context.Background(), "/upload", File{
		Name:        "uploads/avatar.png",
		ContentType: "image/png",
		Size:        int64(len(payload)),
		Reader:      bytes.NewReader(payload),
	}, nil)
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
