package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"TokenBridge/internal/models"
	"TokenBridge/internal/page"
	"TokenBridge/internal/token"
)

type stubTokens struct {
	payload string
	err     error
	emails  []string
}

func (s *stubTokens) GetToken(ctx context.Context, email string) (*models.TokenResponse, error) {
	s.emails = append(s.emails, email)
	if s.err != nil {
		return nil, s.err
	}
	return models.NewTokenResponse([]byte(s.payload))
}

type stubTemplates struct {
	text  string
	err   error
	calls int
}

func (s *stubTemplates) Get(ctx context.Context) (string, error) {
	s.calls++
	return s.text, s.err
}

const (
	testPayload  = `{"body":{"advertising_token":"tok123"}}`
	testTemplate = "x let EMAIL = null;\ny let UID2TOKEN = null;\nz UID2_TOKEN here"
)

func newHandler(t *testing.T, tokens TokenSource, templates TemplateSource) *Handler {
	return &Handler{
		Tokens:       tokens,
		Templates:    templates,
		DefaultEmail: "user@example.com",
		Log:          zaptest.NewLogger(t),
	}
}

func TestResolveEmail(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		body        string
		contentType string
		want        string
	}{
		{name: "default", want: "user@example.com"},
		{name: "query only", query: "a@b.com", want: "a@b.com"},
		{name: "json body only", body: `{"email_address":"c@d.com"}`, contentType: "application/json", want: "c@d.com"},
		{name: "json body wins", query: "a@b.com", body: `{"email_address":"c@d.com"}`, contentType: "application/json", want: "c@d.com"},
		{name: "form body wins", query: "a@b.com", body: "email_address=e%40f.com", contentType: "application/x-www-form-urlencoded", want: "e@f.com"},
		{name: "body without field", query: "a@b.com", body: `{"other":"x"}`, contentType: "application/json", want: "a@b.com"},
		{name: "unparseable body", query: "a@b.com", body: `not json`, contentType: "text/plain", want: "a@b.com"},
		{name: "non string field", body: `{"email_address":42}`, contentType: "application/json", want: "user@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?email_address=" + url.QueryEscape(tt.query)
			}

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, target, body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			tokens := &stubTokens{payload: testPayload}
			newHandler(t, tokens, &stubTemplates{text: testTemplate}).ServeToken(httptest.NewRecorder(), req)

			if len(tokens.emails) != 1 || tokens.emails[0] != tt.want {
				t.Errorf("token requested for %v, want %q", tokens.emails, tt.want)
			}
		})
	}
}

func TestServeTokenJSON(t *testing.T) {
	templates := &stubTemplates{text: testTemplate}
	h := newHandler(t, &stubTokens{payload: `{"body":{"advertising_token":"abc"}}`}, templates)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email_address":"a@b.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"body":{"advertising_token":"abc"}}` {
		t.Errorf("body = %s", got)
	}
	if templates.calls != 0 {
		t.Errorf("template fetched in json mode")
	}
}

func TestServeTokenJSONPassesThroughUnusualPayloads(t *testing.T) {
	for _, payload := range []string{
		`{"status":"success","body":{"advertising_token":12345}}`,
		`{"status":"client_error","message":"bad email"}`,
	} {
		h := newHandler(t, &stubTokens{payload: payload}, &stubTemplates{text: testTemplate})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		h.ServeToken(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d for %s", rec.Code, payload)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != payload {
			t.Errorf("body = %s, want %s", got, payload)
		}
	}
}

func TestServeTokenHTML(t *testing.T) {
	for _, ct := range []string{"", "text/html", "application/json; charset=utf-8", "application/x-www-form-urlencoded"} {
		t.Run(ct, func(t *testing.T) {
			h := newHandler(t, &stubTokens{payload: testPayload}, &stubTemplates{text: testTemplate})

			req := httptest.NewRequest(http.MethodGet, "/?email_address=a%40b.com", nil)
			if ct != "" {
				req.Header.Set("Content-Type", ct)
			}
			rec := httptest.NewRecorder()

			h.ServeToken(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			want := "x let EMAIL = \"a@b.com\";\ny let UID2TOKEN = \"tok123\";\nz tok123 here"
			if got := rec.Body.String(); got != want {
				t.Errorf("body =\n%q\nwant\n%q", got, want)
			}
		})
	}
}

func TestServeTokenTemplateFailure(t *testing.T) {
	h := newHandler(t, &stubTokens{payload: testPayload}, &stubTemplates{err: errors.New("template service returned 503")})

	rec := httptest.NewRecorder()
	h.ServeToken(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not json: %v", err)
	}
	if !strings.Contains(body["error"], "503") {
		t.Errorf("error body = %v", body)
	}
}

func TestServeTokenTokenFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "remote", err: models.ErrRemote},
		{name: "decode", err: models.ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			templates := &stubTemplates{text: testTemplate}
			h := newHandler(t, &stubTokens{err: tt.err}, templates)

			rec := httptest.NewRecorder()
			h.ServeToken(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != http.StatusBadGateway {
				t.Fatalf("status = %d", rec.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not json: %v", err)
			}
			if body["error"] != tt.err.Error() {
				t.Errorf("error body = %v", body)
			}
			if templates.calls != 0 {
				t.Errorf("template fetched after token failure")
			}
		})
	}
}

type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header         { return b.header }
func (b *brokenWriter) WriteHeader(status int)      { b.status = status }
func (b *brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("connection reset") }

func TestServeTokenLogsWriteFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		tokens      *stubTokens
		templates   *stubTemplates
		wantStatus  int
	}{
		{name: "json", contentType: "application/json", tokens: &stubTokens{payload: testPayload}, templates: &stubTemplates{}, wantStatus: http.StatusOK},
		{name: "html", tokens: &stubTokens{payload: testPayload}, templates: &stubTemplates{text: testTemplate}, wantStatus: http.StatusOK},
		{name: "error body", tokens: &stubTokens{err: models.ErrRemote}, templates: &stubTemplates{}, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := newHandler(t, tt.tokens, tt.templates)
			h.Log = zap.New(core)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := &brokenWriter{header: http.Header{}}

			h.ServeToken(w, req)

			if w.status != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.status, tt.wantStatus)
			}
			if logs.FilterMessage("response write failed").Len() != 1 {
				t.Errorf("expected one write failure log, got %d", logs.FilterMessage("response write failed").Len())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(requestIDHeader) != seen {
		t.Errorf("generated id = %q, header = %q", seen, rec.Header().Get(requestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("caller id not kept: %q", seen)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(time.Now().Add(-time.Minute)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Status string `json:"status"`
		Uptime int    `json:"uptime_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Uptime < 60 {
		t.Errorf("health = %+v", body)
	}
}

// End to end through the real token client, fetcher and cache.
func TestServeTokenEndToEnd(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(testPayload))
	}))
	defer tokenSrv.Close()

	templateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testTemplate))
	}))
	defer templateSrv.Close()

	fetcher := page.NewFetcher(templateSrv.URL, time.Second)
	h := &Handler{
		Tokens:       token.NewClient(tokenSrv.URL+"/?email=", "s3cr3t", time.Second, zap.NewNop()),
		Templates:    page.NewCache(fetcher.Fetch, page.RefreshPolicy{Threshold: time.Minute, RefreshWithin: true}, nil),
		DefaultEmail: "user@example.com",
		Log:          zaptest.NewLogger(t),
	}

	srv := httptest.NewServer(WithRequestID(http.HandlerFunc(h.ServeToken)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?email_address=a%40b.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Errorf("missing request id")
	}
	want := "x let EMAIL = \"a@b.com\";\ny let UID2TOKEN = \"tok123\";\nz tok123 here"
	if string(body) != want {
		t.Errorf("body =\n%q\nwant\n%q", body, want)
	}

	templateSrv.Close()
	resp, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status after template outage = %d, want 400", resp.StatusCode)
	}
}
