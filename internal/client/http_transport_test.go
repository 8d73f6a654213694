package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func newTestHTTPTransport(t *testing.T, handler http.Handler) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := NewHTTPTransport(&config.TransportConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	return tr
}

func TestHTTPUpload_Success(t *testing.T) {
	var received []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "File is required")
			return
		}
		defer f.Close()
		if hdr.Filename != "take.wav" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "bad filename "+hdr.Filename)
			return
		}
		received, _ = io.ReadAll(f)
		writeJSON(w, http.StatusOK, model.UploadResponse{Success: true, JobID: "job-1", Message: "ok"})
	})
	tr := newTestHTTPTransport(t, mux)

	payload := bytes.Repeat([]byte("x"), 64*1024)
	var (
		mu   sync.Mutex
		last float64
	)
	resp, err := tr.Upload(context.Background(), File{
		Name: "/tmp/take.wav",
		Size: int64(len(payload)),
		Body: bytes.NewReader(payload),
	}, func(f float64) {
		mu.Lock()
		defer mu.Unlock()
		if f < last {
			t.Errorf("progress went backwards: %v -> %v", last, f)
		}
		last = f
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if resp.JobID != "job-1" {
		t.Errorf("expected job-1, got %q", resp.JobID)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != 1 {
		t.Errorf("expected final progress 1, got %v", last)
	}
	if !bytes.Equal(received, payload) {
		t.Errorf("server received %d bytes, want %d", len(received), len(payload))
	}
}

func TestHTTPUpload_Rejected(t *testing.T) {
	tr := newTestHTTPTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unsupported file format")
	}))

	_, err := tr.Upload(context.Background(), File{Name: "a.txt", Body: strings.NewReader("x")}, nil)

	var uerr *UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UploadError, got %v", err)
	}
	if uerr.Error() != "unsupported file format" || uerr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected upload error: %+v", uerr)
	}
}

func TestHTTPPollStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.StatusResponse{
			JobID: "job-1", Status: model.JobStatusProcessing, Progress: 40, CurrentStep: "Transcribing notes",
		})
	})
	mux.HandleFunc("/api/status/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
	})
	tr := newTestHTTPTransport(t, mux)

	status, err := tr.PollStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if status.Progress != 40 || status.CurrentStep != "Transcribing notes" {
		t.Errorf("unexpected status: %+v", status)
	}

	_, err = tr.PollStatus(context.Background(), "nope")
	var terr *TransportError
	if !errors.As(err, &terr) || !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected TransportError wrapping ErrJobNotFound, got %v", err)
	}
}

func TestHTTPFetchResult_NotReady(t *testing.T) {
	tr := newTestHTTPTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "NOT_READY", "Job not completed yet")
	}))

	_, err := tr.FetchResult(context.Background(), "job-1")
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestHTTPDownload_ResolvesRelativeLocator(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/download/job-1/pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF"))
	})
	tr := newTestHTTPTransport(t, mux)

	var buf bytes.Buffer
	if err := tr.Download(context.Background(), "/api/download/job-1/pdf", &buf); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if buf.String() != "%PDF" {
		t.Errorf("unexpected body %q", buf.String())
	}

	err := tr.Download(context.Background(), "/api/download/job-1/midi", &buf)
	var derr *DownloadError
	if !errors.As(err, &derr) || derr.StatusCode != http.StatusNotFound {
		t.Errorf("expected DownloadError with 404, got %v", err)
	}
}

func TestHTTPHealth(t *testing.T) {
	tr := newTestHTTPTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	if err := tr.Health(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
}

func TestNewTransport_Modes(t *testing.T) {
	if tr, err := NewTransport(&config.TransportConfig{Mode: ModeSimulated}); err != nil {
		t.Errorf("simulated: %v", err)
	} else if _, ok := tr.(*SimulatedTransport); !ok {
		t.Errorf("expected *SimulatedTransport, got %T", tr)
	}

	if tr, err := NewTransport(&config.TransportConfig{Mode: ModeHTTP, BaseURL: "http://localhost:8000"}); err != nil {
		t.Errorf("http: %v", err)
	} else if _, ok := tr.(*HTTPTransport); !ok {
		t.Errorf("expected *HTTPTransport, got %T", tr)
	}

	if _, err := NewTransport(&config.TransportConfig{Mode: "carrier-pigeon"}); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}
