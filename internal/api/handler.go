package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"TokenBridge/internal/metrics"
	"TokenBridge/internal/models"
	"TokenBridge/internal/page"
)

const (
	emailField      = "email_address"
	requestIDHeader = "X-Request-ID"
	jsonContentType = "application/json"
)

type TokenSource interface {
	GetToken(ctx context.Context, email string) (*models.TokenResponse, error)
}

type TemplateSource interface {
	Get(ctx context.Context) (string, error)
}

type Handler struct {
	Tokens       TokenSource
	Templates    TemplateSource
	DefaultEmail string
	Log          *zap.Logger
}

// ServeToken exchanges the caller's email for a token and answers with the
// token JSON or the rendered demo page.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	log := h.Log.With(zap.String("request_id", w.Header().Get(requestIDHeader)))

	email := h.resolveEmail(r)
	log.Debug("token requested", zap.String("email", email))

	tok, err := h.Tokens.GetToken(r.Context(), email)
	if err != nil {
		log.Error("token request failed", zap.Error(err))
		metrics.PageResponses.WithLabelValues("error").Inc()
		writeError(w, log, http.StatusBadGateway, err)
		return
	}

	if r.Header.Get("Content-Type") == jsonContentType {
		metrics.PageResponses.WithLabelValues("json").Inc()
		w.Header().Set("Content-Type", jsonContentType)
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(tok); err != nil {
			log.Debug("response write failed", zap.Error(err))
		}
		return
	}

	tpl, err := h.Templates.Get(r.Context())
	if err != nil {
		err = fmt.Errorf("%w: %w", models.ErrRender, err)
		log.Error("page render failed", zap.Error(err))
		metrics.PageResponses.WithLabelValues("error").Inc()
		writeError(w, log, http.StatusBadRequest, err)
		return
	}

	metrics.PageResponses.WithLabelValues("html").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, page.Render(tpl, email, tok.AdvertisingToken())); err != nil {
		log.Debug("response write failed", zap.Error(err))
	}
}

// resolveEmail prefers the body field over the query parameter and falls
// back to the default address.
func (h *Handler) resolveEmail(r *http.Request) string {
	if email := bodyEmail(r); email != "" {
		return email
	}
	if email := r.URL.Query().Get(emailField); email != "" {
		return email
	}
	return h.DefaultEmail
}

func bodyEmail(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return ""
		}
		return r.PostForm.Get(emailField)
	default:
		var body map[string]interface{}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			return ""
		}
		email, _ := body[emailField].(string)
		return email
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, status int, err error) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if werr := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	}); werr != nil {
		log.Debug("response write failed", zap.Error(werr))
	}
}

// WithRequestID tags every request with an X-Request-ID, keeping one the
// caller already sent.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness and uptime.
func Health(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContentType)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": int(time.Since(started).Seconds()),
		})
	}
}
