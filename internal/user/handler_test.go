package user

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
)

func newTestHandler(t *testing.T) (*Handler, *recoveryFixture) {
	t.Helper()
	rf := newRecoveryFixture(t, "987654")
	return NewHandler(rf.svc, rf.recovery, zap.NewNop().Sugar()), rf
}

func do(t *testing.T, fn http.HandlerFunc, method, body, userID string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	fn(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, out := do(t, h.Register, http.MethodPost,
		`{"role":"client","username":"ana","email":"ana@x.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Registered successfully", out["message"])
	assert.NotEmpty(t, out["token"])

	rec, out = do(t, h.Register, http.MethodPost,
		`{"role":"client","username":"ana2","email":"ana@x.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, out["error"], "already exists")

	rec, out = do(t, h.Login, http.MethodPost, `{"email":"ana@x.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, out["token"])

	rec, _ = do(t, h.Login, http.MethodPost, `{"email":"ana@x.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h.Login, http.MethodPost, `{"email":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.Register, http.MethodPost, `{"role":"admin","username":"r","email":"r@x.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_RecoveryFlow(t *testing.T) {
	h, rf := newTestHandler(t)
	rf.register(t, "ana", "ana@x.com")

	rec, out := do(t, h.ForgotPassword, http.MethodPost, `{"email":"ana@x.com"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password reset email sent successfully", out["message"])
	assert.NotEmpty(t, out["expires_at"])

	rec, _ = do(t, h.ForgotPassword, http.MethodPost, `{"email":"ghost@x.com"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h.ResetPassword, http.MethodPost, `{"email":"ana@x.com","password":"new"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.VerifyOTP, http.MethodPost, `{"email":"ana@x.com","otp":"000000"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out = do(t, h.VerifyOTP, http.MethodPost, `{"email":"ana@x.com","otp":"987654"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP verified successfully!", out["message"])

	rec, out = do(t, h.ResetPassword, http.MethodPost, `{"email":"ana@x.com","password":"new"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password changed successfully", out["message"])
}

func TestHandler_AuthenticatedRoutes(t *testing.T) {
	h, rf := newTestHandler(t)
	ana := rf.register(t, "ana", "ana@x.com")

	rec, _ := do(t, h.SwitchRole, http.MethodPatch, ``, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out := do(t, h.SwitchRole, http.MethodPatch, ``, ana.ID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Role switched to tasker successfully", out["message"])
	assert.Equal(t, map[string]any{"id": ana.ID, "username": "ana", "role": "tasker"}, out["user"])

	body := fmt.Sprintf(`{"currentPassword":%q,"newPassword":"next"}`, "wrong")
	rec, _ = do(t, h.ChangePassword, http.MethodPost, body, ana.ID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h.ChangePassword, http.MethodPost, `{"currentPassword":"pass-ana","newPassword":"next"}`, ana.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h.ChangePassword, http.MethodPost, `{"currentPassword":"next","newPassword":"x"}`, "missing-user")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		ErrInvalidInput: http.StatusBadRequest,
		ErrInvalidState: http.StatusBadRequest,
		ErrConflict:     http.StatusConflict,
		ErrNotFound:     http.StatusNotFound,
		ErrUnauthorized: http.StatusUnauthorized,
		ErrInvalidOTP:   http.StatusUnauthorized,
		ErrForbidden:    http.StatusForbidden,
		ErrInternal:     http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("wrapped: %w", ErrConflict)))
}
