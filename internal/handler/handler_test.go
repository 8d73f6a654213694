package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/middleware"
	"github.com/scoreapp/score/internal/model"
	"github.com/scoreapp/score/internal/recommend"
	"github.com/scoreapp/score/internal/service"
	"github.com/scoreapp/score/internal/store"
	"github.com/scoreapp/score/pkg/response"
)

// holdDispatcher leaves accepted jobs queued.
type holdDispatcher struct{}

func (holdDispatcher) Dispatch(ctx context.Context, jobID string) error { return nil }

type testEnv struct {
	app      *fiber.App
	local    *service.LocalDispatcher
	pipeline *service.Pipeline
}

func newTestEnv(t *testing.T, run bool) *testEnv {
	t.Helper()

	storage := &config.StorageConfig{
		UploadDir:   t.TempDir(),
		OutputDir:   t.TempDir(),
		MaxUploadMB: 1,
	}
	st := store.NewMemoryStore(time.Hour)
	pipeline := service.NewPipeline(st, service.StubProcessor{}, storage.OutputDir)

	env := &testEnv{pipeline: pipeline}
	var dispatcher service.Dispatcher = holdDispatcher{}
	if run {
		env.local = service.NewLocalDispatcher(pipeline, nil)
		t.Cleanup(env.local.Close)
		dispatcher = env.local
	}

	lib, err := recommend.DefaultLibrary()
	if err != nil {
		t.Fatalf("failed to load library: %v", err)
	}
	recommender, err := recommend.NewService(lib)
	if err != nil {
		t.Fatalf("failed to build recommender: %v", err)
	}

	env.app = fiber.New()
	Register(env.app, Routes{
		Score:       NewScoreHandler(service.NewScoreService(st, dispatcher, storage, nil)),
		Recommend:   NewRecommendHandler(recommender, validator.New()),
		Auth:        middleware.NewAuthMiddleware(nil),
		RateLimiter: middleware.NewRateLimiter(nil, nil),
	})
	return env
}

func uploadRequest(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request, out interface{}) int {
	t.Helper()
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (env *testEnv) upload(t *testing.T) string {
	t.Helper()
	var resp model.UploadResponse
	if code := do(t, env.app, uploadRequest(t, "song.mp3", []byte("ID3")), &resp); code != fiber.StatusOK {
		t.Fatalf("upload: expected 200, got %d", code)
	}
	if !resp.Success || resp.JobID == "" {
		t.Fatalf("unexpected upload response %+v", resp)
	}
	return resp.JobID
}

func TestScoreHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t, true)
	jobID := env.upload(t)
	env.local.Wait()

	var status model.StatusResponse
	if code := do(t, env.app, httptest.NewRequest("GET", "/api/status/"+jobID, nil), &status); code != fiber.StatusOK {
		t.Fatalf("status: expected 200, got %d", code)
	}
	if status.Status != model.JobStatusCompleted || status.Progress != 100 {
		t.Errorf("unexpected status %+v", status)
	}

	var result model.ProcessingResult
	if code := do(t, env.app, httptest.NewRequest("GET", "/api/result/"+jobID, nil), &result); code != fiber.StatusOK {
		t.Fatalf("result: expected 200, got %d", code)
	}
	if result.JobID != jobID || result.Outputs.MIDI == nil {
		t.Errorf("unexpected result %+v", result)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", *result.Outputs.MIDI, nil))
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(data) != "MIDI placeholder" {
		t.Errorf("download: got %d %q", resp.StatusCode, data)
	}

	var errResp response.ErrorResponse
	if code := do(t, env.app, httptest.NewRequest("POST", "/api/cancel/"+jobID, nil), &errResp); code != fiber.StatusBadRequest {
		t.Errorf("cancel completed: expected 400, got %d", code)
	}
	if errResp.Error.Code != response.CodeJobFinished {
		t.Errorf("unexpected code %q", errResp.Error.Code)
	}
}

func TestScoreHandler_UploadValidation(t *testing.T) {
	env := newTestEnv(t, false)

	var errResp response.ErrorResponse
	if code := do(t, env.app, uploadRequest(t, "notes.txt", []byte("x")), &errResp); code != fiber.StatusBadRequest {
		t.Errorf("bad extension: expected 400, got %d", code)
	}
	if !strings.Contains(errResp.Error.Message, "unsupported file format") {
		t.Errorf("unexpected message %q", errResp.Error.Message)
	}

	req := httptest.NewRequest("POST", "/api/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if code := do(t, env.app, req, nil); code != fiber.StatusBadRequest {
		t.Errorf("missing file: expected 400, got %d", code)
	}

	big := bytes.Repeat([]byte{1}, 2<<20)
	if code := do(t, env.app, uploadRequest(t, "big.wav", big), &errResp); code != fiber.StatusRequestEntityTooLarge {
		t.Errorf("too large: expected 413, got %d", code)
	}
}

func TestScoreHandler_PendingJob(t *testing.T) {
	env := newTestEnv(t, false)
	jobID := env.upload(t)

	var errResp response.ErrorResponse
	if code := do(t, env.app, httptest.NewRequest("GET", "/api/result/"+jobID, nil), &errResp); code != fiber.StatusBadRequest {
		t.Errorf("result: expected 400, got %d", code)
	}
	if errResp.Error.Code != response.CodeNotReady {
		t.Errorf("expected NOT_READY, got %q", errResp.Error.Code)
	}

	if code := do(t, env.app, httptest.NewRequest("GET", "/api/download/"+jobID+"/pdf", nil), nil); code != fiber.StatusBadRequest {
		t.Errorf("download pending: expected 400, got %d", code)
	}
	if code := do(t, env.app, httptest.NewRequest("GET", "/api/download/"+jobID+"/score", nil), nil); code != fiber.StatusBadRequest {
		t.Errorf("download unknown kind: expected 400, got %d", code)
	}

	var cancel model.CancelResponse
	if code := do(t, env.app, httptest.NewRequest("POST", "/api/cancel/"+jobID, nil), &cancel); code != fiber.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", code)
	}

	var status model.StatusResponse
	do(t, env.app, httptest.NewRequest("GET", "/api/status/"+jobID, nil), &status)
	if status.Status != model.JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", status.Status)
	}
}

func TestScoreHandler_UnknownJob(t *testing.T) {
	env := newTestEnv(t, false)

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/api/status/missing", nil),
		httptest.NewRequest("GET", "/api/result/missing", nil),
		httptest.NewRequest("POST", "/api/cancel/missing", nil),
		httptest.NewRequest("GET", "/api/download/missing/midi", nil),
	} {
		var errResp response.ErrorResponse
		if code := do(t, env.app, req, &errResp); code != fiber.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", req.Method, req.URL.Path, code)
		}
		if errResp.Error.Code != response.CodeNotFound {
			t.Errorf("%s: unexpected code %q", req.URL.Path, errResp.Error.Code)
		}
	}
}

func recommendRequest(body string) *http.Request {
	req := httptest.NewRequest("POST", "/api/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRecommendHandler(t *testing.T) {
	env := newTestEnv(t, false)
	lib, _ := recommend.DefaultLibrary()
	first := lib.Track(0)

	body, _ := json.Marshal(map[string]interface{}{
		"features": first.Features.Map(),
		"k":        3,
	})

	var resp model.RecommendResponse
	if code := do(t, env.app, recommendRequest(string(body)), &resp); code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Title != first.Title || resp.Recommendations[0].SimilarityScore != 100 {
		t.Errorf("unexpected top recommendation %+v", resp.Recommendations[0])
	}

	body, _ = json.Marshal(map[string]interface{}{"features": first.Features.Map()})
	if code := do(t, env.app, recommendRequest(string(body)), &resp); code != fiber.StatusOK {
		t.Fatalf("default k: expected 200, got %d", code)
	}
	if len(resp.Recommendations) != recommend.DefaultK {
		t.Errorf("expected %d recommendations, got %d", recommend.DefaultK, len(resp.Recommendations))
	}
}

func TestRecommendHandler_Invalid(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"features":`},
		{"missing features", `{}`},
		{"too few", `{"features":{"bpm":120}}`},
		{"null value", `{"features":{"bpm":null,"average_pitch":60,"pitch_range":30,"key_stability":0.8,"mode_major":1,"note_density":2,"rhythm_variety":2}}`},
		{"unknown name", `{"features":{"tempo":120,"average_pitch":60,"pitch_range":30,"key_stability":0.8,"mode_major":1,"note_density":2,"rhythm_variety":2}}`},
		{"negative k", `{"features":{"bpm":120,"average_pitch":60,"pitch_range":30,"key_stability":0.8,"mode_major":1,"note_density":2,"rhythm_variety":2},"k":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp response.ErrorResponse
			if code := do(t, env.app, recommendRequest(tt.body), &errResp); code != fiber.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
			if errResp.Error.Code != response.CodeValidationError {
				t.Errorf("unexpected code %q", errResp.Error.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	var body map[string]string
	if code := do(t, env.app, httptest.NewRequest("GET", "/api/health", nil), &body); code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" || body["timestamp"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t, false)

	var doc struct {
		Swagger string                            `json:"swagger"`
		Paths   map[string]map[string]interface{} `json:"paths"`
	}
	if code := do(t, env.app, httptest.NewRequest("GET", "/swagger/doc.json", nil), &doc); code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if doc.Swagger != "2.0" {
		t.Errorf("unexpected swagger version %q", doc.Swagger)
	}

	routes := map[string]string{
		"/api/upload":                  "post",
		"/api/status/{jobId}":          "get",
		"/api/result/{jobId}":          "get",
		"/api/cancel/{jobId}":          "post",
		"/api/download/{jobId}/{kind}": "get",
		"/api/recommend":               "post",
		"/api/health":                  "get",
	}
	for path, method := range routes {
		if _, ok := doc.Paths[path][method]; !ok {
			t.Errorf("doc is missing %s %s", method, path)
		}
	}
}
