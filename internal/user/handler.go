package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
)

const maxBodyBytes = 1 << 20

// Handler exposes the credential endpoints over HTTP.
type Handler struct {
	svc      *UserService
	recovery *RecoveryService
	logger   *zap.SugaredLogger
}

func NewHandler(svc *UserService, recovery *RecoveryService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, recovery: recovery, logger: logger}
}

type RegisterResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, RegisterResponse{Message: "Registered successfully", Token: sess.Token})
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	h.writeJSON(w, http.StatusOK, TokenResponse{Token: sess.Token})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ForgotPasswordResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	ticket, err := h.recovery.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, r, "forgot password", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ForgotPasswordResponse{
		Message:   "Password reset email sent successfully",
		ExpiresAt: ticket.ExpiresAt,
	})
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.recovery.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		h.writeError(w, r, "verify otp", err)
		return
	}
	h.writeMessage(w, http.StatusOK, "OTP verified successfully!")
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.recovery.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
		h.writeError(w, r, "reset password", err)
		return
	}
	h.writeMessage(w, http.StatusOK, "Password changed successfully")
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword requires auth.Authenticate in front of it.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "change password", ErrUnauthorized)
		return
	}
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, "change password", err)
		return
	}
	h.writeMessage(w, http.StatusOK, "Password changed successfully")
}

type SwitchRoleResponse struct {
	Message string          `json:"message"`
	User    *entity.Summary `json:"user"`
}

// SwitchRole requires auth.Authenticate in front of it.
func (h *Handler) SwitchRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, "switch role", ErrUnauthorized)
		return
	}
	summary, err := h.svc.SwitchRole(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "switch role", err)
		return
	}
	h.writeJSON(w, http.StatusOK, SwitchRoleResponse{
		Message: fmt.Sprintf("Role switched to %s successfully", summary.Role),
		User:    summary,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return false
	}
	return true
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Warnw(op+" failed", "path", r.URL.Path, "err", err)
		msg = "internal server error"
	} else {
		h.logger.Debugw(op+" rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"message": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
