package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/model"
)

// HTTPTransport implements Transport against the processing service REST API.
type HTTPTransport struct {
	httpClient *http.Client
	baseURL    *url.URL
	timeout    time.Duration // per status, result, cancel and health request
}

// errorEnvelope matches the service's error body
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewHTTPTransport creates a transport for the service at cfg.BaseURL.
func NewHTTPTransport(cfg *config.TransportConfig) (*HTTPTransport, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", cfg.BaseURL)
	}

	return &HTTPTransport{
		// Timeout stays on the request context; a client-wide timeout would cut
		// off large uploads and downloads.
		httpClient: &http.Client{},
		baseURL:    base,
		timeout:    cfg.Timeout,
	}, nil
}

// Upload streams file as multipart form data.
func (t *HTTPTransport) Upload(ctx context.Context, file File, onProgress ProgressFunc) (*model.UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(file.Name))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		body := &progressReader{r: file.Body, total: file.Size, onProgress: onProgress}
		if _, err := io.Copy(part, body); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.resolve("api/upload"), pr)
	if err != nil {
		pr.Close()
		return nil, &UploadError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}

	var result model.UploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if !result.Success || result.JobID == "" {
		msg := result.Message
		if msg == "" {
			msg = "upload rejected"
		}
		return nil, &UploadError{StatusCode: resp.StatusCode, Message: msg}
	}

	if onProgress != nil {
		onProgress(1)
	}
	return &result, nil
}

func (t *HTTPTransport) PollStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	var result model.StatusResponse
	if err := t.doJSON(ctx, "status", http.MethodGet, jobID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) FetchResult(ctx context.Context, jobID string) (*model.ProcessingResult, error) {
	var result model.ProcessingResult
	if err := t.doJSON(ctx, "result", http.MethodGet, jobID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) Cancel(ctx context.Context, jobID string) error {
	return t.doJSON(ctx, "cancel", http.MethodPost, jobID, nil)
}

// Download fetches an absolute locator as is and resolves a relative one
// against the service base URL.
func (t *HTTPTransport) Download(ctx context.Context, locator string, w io.Writer) error {
	target, err := url.Parse(locator)
	if err != nil {
		return &DownloadError{Locator: locator, Err: err}
	}
	if !target.IsAbs() {
		target = t.baseURL.ResolveReference(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return &DownloadError{Locator: locator, Err: err}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &DownloadError{Locator: locator, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DownloadError{Locator: locator, StatusCode: resp.StatusCode}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &DownloadError{Locator: locator, Err: err}
	}
	return nil
}

func (t *HTTPTransport) Health(ctx context.Context) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.resolve("api/health"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// doJSON calls /api/{op}/{jobID} and decodes a JSON body into out when non-nil.
func (t *HTTPTransport) doJSON(ctx context.Context, op, method, jobID string, out interface{}) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	endpoint := t.resolve("api/" + op + "/" + jobID)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return &TransportError{Op: op, JobID: jobID, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, JobID: jobID, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &TransportError{
			Op:         op,
			JobID:      jobID,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			terr.Err = ErrJobNotFound
		case errorCode(body) == "NOT_READY":
			terr.Err = ErrNotReady
		}
		return terr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, JobID: jobID, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	return nil
}

func (t *HTTPTransport) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *HTTPTransport) resolve(path string) string {
	return t.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func errorMessage(status int, body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if len(body) > 0 {
		return strings.TrimSpace(string(body))
	}
	return http.StatusText(status)
}

func errorCode(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Error.Code
}

// progressReader reports the fraction of total read so far.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.onProgress != nil && p.total > 0 && n > 0 {
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.onProgress(frac)
	}
	return n, err
}
