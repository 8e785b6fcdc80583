package router

import (
	"context"
	"net/http"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user"
)

// Prefix is the path prefix of every credential route.
const Prefix = "/pitchfork-api-credential"

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// statusRecorder remembers what a credential handler answered so the access
// log can tell rejected logins (401) from server faults (5xx). Bodies are
// counted, never kept: they carry session tokens.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

// RequestIDMiddleware propagates the caller's X-Request-ID or mints a KSUID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = ksuid.New().String()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// RequestID returns the id set by RequestIDMiddleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingMiddleware logs requests at debug level, and 5xx responses at warn.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(sr, r)
			dur := time.Since(start)
			status := sr.code()
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"bytes", sr.bytes,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers. Responses are
// JSON only, so the CSP forbids everything and caching is disabled.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			// tokens and OTP responses must not be cached
			h.Set("Cache-Control", "no-store")

			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the credential endpoints on a stdlib http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h *user.Handler, signer *auth.TokenSigner) http.Handler {
	mux := http.NewServeMux()
	authn := auth.Authenticate(signer, logger)

	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST "+Prefix+"/register", h.Register)
	mux.HandleFunc("POST "+Prefix+"/login", h.Login)
	mux.HandleFunc("POST "+Prefix+"/forgotPassword", h.ForgotPassword)
	mux.HandleFunc("POST "+Prefix+"/verify-otp", h.VerifyOTP)
	mux.HandleFunc("POST "+Prefix+"/reset-password", h.ResetPassword)
	mux.Handle("POST "+Prefix+"/change-password", authn(http.HandlerFunc(h.ChangePassword)))
	mux.Handle("PATCH "+Prefix+"/switch-role", authn(http.HandlerFunc(h.SwitchRole)))

	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
