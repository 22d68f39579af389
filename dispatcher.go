package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/dlanzer/authgate/validator"
)

const errorMessageMaxLength = 512

// RequestConfig defines a public type used by authgate APIs.
//
// The zero value requests the defaults: authentication required, the
// configured dispatch timeout, and no extra headers.
type RequestConfig struct {
	// SkipAuth sends the request without a session. Requests that do not
	// skip auth fail fast with [ErrAuthenticationRequired] before any
	// network activity when no live session exists.
	SkipAuth bool
	// Timeout overrides the configured per-request timeout when positive.
	Timeout time.Duration
	// Headers are added after the standard headers and may override them.
	Headers map[string]string
}

// Response defines a public type used by authgate APIs.
//
// Response instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body as JSON into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// File is the input for [Dispatcher.UploadFile]. Size must be the exact
// byte length the Reader will produce.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Dispatcher defines a public type used by authgate APIs.
//
// Dispatcher sends authenticated requests against the configured base URL,
// attaching session and anti-CSRF headers and normalizing failures into
// the package error taxonomy.
//
// Dispatcher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Dispatcher struct {
	manager *Manager
	client  *http.Client
	config  DispatchConfig
}

func newDispatcher(manager *Manager, client *http.Client, cfg DispatchConfig) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		manager: manager,
		client:  client,
		config:  cfg,
	}
}

// Dispatcher describes the dispatcher operation and its observable behavior.
//
// Dispatcher may return an error when input validation, dependency calls, or security checks fail.
// Dispatcher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Dispatcher() *Dispatcher {
	if m == nil {
		return nil
	}
	return m.dispatcher
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) Get(ctx context.Context, endpoint string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, http.MethodGet, endpoint, nil, cfg)
}

// Delete describes the delete operation and its observable behavior.
//
// Delete may return an error when input validation, dependency calls, or security checks fail.
// Delete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) Delete(ctx context.Context, endpoint string, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, http.MethodDelete, endpoint, nil, cfg)
}

// Post describes the post operation and its observable behavior.
//
// Post may return an error when input validation, dependency calls, or security checks fail.
// Post does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) Post(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, http.MethodPost, endpoint, body, cfg)
}

// Put describes the put operation and its observable behavior.
//
// Put may return an error when input validation, dependency calls, or security checks fail.
// Put does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) Put(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, http.MethodPut, endpoint, body, cfg)
}

// Patch describes the patch operation and its observable behavior.
//
// Patch may return an error when input validation, dependency calls, or security checks fail.
// Patch does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) Patch(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	return d.Do(ctx, http.MethodPatch, endpoint, body, cfg)
}

// Do describes the do operation and its observable behavior.
//
// Do may return an error when input validation, dependency calls, or security checks fail.
// Do does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) Do(ctx context.Context, method, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	if d == nil || d.manager == nil {
		return nil, ErrManagerNotReady
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	return d.send(ctx, method, endpoint, bodyReader, "application/json", cfg)
}

// UploadFile describes the uploadfile operation and its observable behavior.
//
// UploadFile may return an error when input validation, dependency calls, or security checks fail.
// UploadFile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Dispatcher) UploadFile(ctx context.Context, endpoint string, file File, cfg *RequestConfig) (*Response, error) {
	if d == nil || d.manager == nil {
		return nil, ErrManagerNotReady
	}

	// The file is rejected before any multipart assembly or network
	// activity, so an oversized payload costs nothing.
	if err := d.checkUpload(file); err != nil {
		d.manager.metricInc(MetricUploadRejected)
		d.manager.emitAudit(ctx, auditEventUploadRejected, false, "", "", ErrInvalidFile, func() map[string]string {
			return map[string]string{
				"content_type": file.ContentType,
			}
		})
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(file.Name)))
	header.Set("Content-Type", file.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	written, err := io.Copy(part, io.LimitReader(file.Reader, file.Size+1))
	if err != nil {
		return nil, fmt.Errorf("read upload payload: %w", err)
	}
	if written != file.Size {
		return nil, fmt.Errorf("%w: payload does not match declared size", ErrInvalidFile)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	return d.send(ctx, http.MethodPost, endpoint, &buf, writer.FormDataContentType(), cfg)
}

func (d *Dispatcher) checkUpload(file File) error {
	if file.Name == "" || file.Reader == nil {
		return fmt.Errorf("%w: missing name or payload", ErrInvalidFile)
	}
	if file.Size <= 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidFile)
	}
	if file.Size > d.config.MaxUploadBytes {
		return fmt.Errorf("%w: payload exceeds limit", ErrInvalidFile)
	}
	for _, allowed := range d.config.AllowedMIMETypes {
		if strings.EqualFold(file.ContentType, allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: content type not allowed", ErrInvalidFile)
}

func (d *Dispatcher) send(ctx context.Context, method, endpoint string, body io.Reader, contentType string, cfg *RequestConfig) (*Response, error) {
	if cfg == nil {
		cfg = &RequestConfig{}
	}

	var bearer string
	if !cfg.SkipAuth {
		token, ok := d.manager.bearerToken()
		if !ok {
			return nil, ErrAuthenticationRequired
		}
		bearer = token
	}

	timeout := d.config.Timeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(d.config.BaseURL, "/") + sanitizeEndpoint(endpoint)
	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if csrf := CSRFTokenFromContext(ctx); csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	for name, value := range cfg.Headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	d.manager.metricObserve(MetricRequestLatency, time.Since(start))
	if err != nil {
		if isCancellation(err) {
			d.manager.metricInc(MetricRequestTimeout)
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, endpoint, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, d.config.MaxResponseBytes))
	if err != nil {
		if isCancellation(err) {
			d.manager.metricInc(MetricRequestTimeout)
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, endpoint, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		d.manager.metricInc(MetricRequestUnauthorized)
		d.manager.emitAudit(ctx, auditEventRequestUnauthorized, false, "", "", ErrSessionExpired, func() map[string]string {
			return map[string]string{
				"method": method,
			}
		})
		// The provider no longer honors the session; local state follows.
		if logoutErr := d.manager.Logout(context.WithoutCancel(ctx)); logoutErr != nil {
			d.manager.warnf("authgate: logout after unauthorized response: %v", logoutErr)
		}
		return nil, ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: defangErrorMessage(payload),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}

// isCancellation reports whether a transport or read error was caused by
// the request deadline or by caller cancellation. Both surface as
// [ErrTimeout]: the call was cut short, not refused.
func isCancellation(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// defangErrorMessage turns a server error body into something safe to put
// in an error string: no markup, bounded length.
func defangErrorMessage(body []byte) string {
	message := validator.StripHTML(string(body))
	runes := []rune(message)
	if len(runes) > errorMessageMaxLength {
		message = string(runes[:errorMessageMaxLength])
	}
	return message
}

// sanitizeEndpoint normalizes a caller-supplied path: control characters,
// whitespace, angle brackets, and backslashes are dropped, traversal and
// duplicate separators collapse, and the result is always rooted.
func sanitizeEndpoint(endpoint string) string {
	var b strings.Builder
	for _, r := range endpoint {
		switch {
		case unicode.IsControl(r), unicode.IsSpace(r):
		case r == '<' || r == '>' || r == '\\':
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()

	for strings.Contains(s, "../") {
		s = strings.ReplaceAll(s, "../", "/")
	}
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}
