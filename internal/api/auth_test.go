package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"gatekeeper/internal/config"
	"gatekeeper/internal/upstream"
)

func registerBody() map[string]any {
	return map[string]any{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"phone":     "0412 345 678",
		"password":  "secret",
		"role":      "USER",
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w, res := serve(t, e.r, mustRequest(t, http.MethodGet, "/health"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "OK: development", res.Message)
	assert.Equal(t, gjson.Null, gjson.GetBytes(w.Body.Bytes(), "data").Type)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestRegister(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		e := newEnv(t)
		w, res := postJSON(t, e.r, "/auth/register", registerBody())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "OK", res.Message)
		assert.Equal(t, "Please check your email for the verification code", gjson.GetBytes(res.Data, "message").String())

		assert.Equal(t, "ada@example.com", e.auth.signUp.Email)
		assert.Equal(t, "secret", e.auth.signUp.Password)
		assert.Equal(t, map[string]any{
			"firstName": "Ada",
			"lastName":  "Lovelace",
			"email":     "ada@example.com",
			"phone":     "+61412345678",
			"role":      "USER",
		}, e.auth.signUp.Data)
	})

	t.Run("required fields in order", func(t *testing.T) {
		e := newEnv(t)
		_, res := postJSON(t, e.r, "/auth/register", nil)
		assert.Equal(t, 400, res.Status)
		assert.Equal(t, "BAD_REQUEST", res.Message)
		assert.Equal(t, "field firstName is required", res.errMessage())

		body := registerBody()
		delete(body, "phone")
		delete(body, "role")
		_, res = postJSON(t, e.r, "/auth/register", body)
		assert.Equal(t, "field phone is required", res.errMessage())
		assert.Empty(t, e.auth.calls)
	})

	t.Run("invalid phone", func(t *testing.T) {
		e := newEnv(t)
		for _, p := range []string{"123", "not a phone"} {
			body := registerBody()
			body["phone"] = p
			w, res := postJSON(t, e.r, "/auth/register", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid phone number", res.errMessage(), p)
		}
		assert.Empty(t, e.auth.calls)
	})

	t.Run("existing user is not reported", func(t *testing.T) {
		e := newEnv(t)
		e.auth.errs["SignUp"] = &upstream.Error{Service: upstream.ServiceAuth, Status: 422, Code: upstream.CodeUserAlreadyExists, Message: "User already registered"}
		w, res := postJSON(t, e.r, "/auth/register", registerBody())
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Please check your email for the verification code", gjson.GetBytes(res.Data, "message").String())
	})

	t.Run("api error", func(t *testing.T) {
		e := newEnv(t)
		e.auth.errs["SignUp"] = &upstream.Error{Service: upstream.ServiceAuth, Status: 422, Code: "weak_password", Message: "Password should be at least 6 characters"}
		w, res := postJSON(t, e.r, "/auth/register", registerBody())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Password should be at least 6 characters", res.errMessage())
	})

	t.Run("transport error", func(t *testing.T) {
		e := newEnv(t)
		e.auth.errs["SignUp"] = &upstream.Error{
			Service:   upstream.ServiceAuth,
			Status:    502,
			Message:   "bad gateway",
			Body:      json.RawMessage(`{"msg":"bad gateway"}`),
			Transport: true,
		}
		w, res := postJSON(t, e.r, "/auth/register", registerBody())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", res.Message)
		assert.JSONEq(t, `{"msg":"bad gateway"}`, string(res.Errors))
	})
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/login", map[string]any{"password": "x"})
	assert.Equal(t, "Email is required", res.errMessage())
	_, res = postJSON(t, e.r, "/auth/login", map[string]any{"email": "ada@example.com"})
	assert.Equal(t, "Password is required", res.errMessage())

	w, res := postJSON(t, e.r, "/auth/login", map[string]any{"email": "ada@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "access-pw", gjson.GetBytes(res.Data, "access_token").String())
	assert.Equal(t, "refresh-1", gjson.GetBytes(res.Data, "refresh_token").String())
	assert.Equal(t, "u1", gjson.GetBytes(res.Data, "user.id").String())

	e.auth.errs["SignInWithPassword"] = &upstream.Error{Service: upstream.ServiceAuth, Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	w, res = postJSON(t, e.r, "/auth/login", map[string]any{"email": "ada@example.com", "password": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid login credentials", res.errMessage())
}

func TestInvalidJSON(t *testing.T) {
	e := newEnv(t)
	w, res := postJSON(t, e.r, "/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", res.errMessage())
}

func TestVerifyOTP(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/verify-otp-email", map[string]any{"email": "ada@example.com"})
	assert.Equal(t, "Code is required", res.errMessage())

	w, res := postJSON(t, e.r, "/auth/verify-otp-email", map[string]any{"email": "ada@example.com", "code": "123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, upstream.VerifyParams{Type: "email", Email: "ada@example.com", Token: "123456"}, e.auth.verify)
	assert.Equal(t, "access-1", gjson.GetBytes(res.Data, "access_token").String())

	require.Len(t, e.users.upserts, 1)
	assert.Equal(t, upstream.UserInput{
		ID:        "u1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "+61412345678",
		Role:      "USER",
	}, e.users.upserts[0])

	_, _ = postJSON(t, e.r, "/auth/verify-otp-email", map[string]any{"email": "ada@example.com", "code": "1", "type": "signup"})
	assert.Equal(t, "signup", e.auth.verify.Type)
}

func TestVerifyOTPUpsertFailure(t *testing.T) {
	e := newEnv(t)
	e.users.err = &upstream.Error{Service: upstream.ServiceGraphQL, Status: 200, Code: "constraint-violation", Message: "Uniqueness violation"}
	w, res := postJSON(t, e.r, "/auth/verify-otp-email", map[string]any{"email": "ada@example.com", "code": "123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Uniqueness violation", res.errMessage())
}

func TestResendOTP(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/resend-otp-email", map[string]any{})
	assert.Equal(t, "Email is required", res.errMessage())

	w, res := postJSON(t, e.r, "/auth/resend-otp-email", map[string]any{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"signup", "ada@example.com"}, e.auth.resend)
	assert.Equal(t, "Please check your email for the verification code", gjson.GetBytes(res.Data, "message").String())

	_, _ = postJSON(t, e.r, "/auth/resend-otp-email", map[string]any{"email": "ada@example.com", "type": "email_change"})
	assert.Equal(t, "email_change", e.auth.resend[0])
}

func TestRefreshToken(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/refresh-token", map[string]any{})
	assert.Equal(t, "refreshToken is required", res.errMessage())

	w, res := postJSON(t, e.r, "/auth/refresh-token", map[string]any{"refreshToken": "r0"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r0-next", gjson.GetBytes(res.Data, "refresh_token").String())
}

func TestChangeEmail(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/change-email", map[string]any{"accessToken": "a", "refreshToken": "r"})
	assert.Equal(t, "newEmail is required", res.errMessage())

	w, res := postJSON(t, e.r, "/auth/change-email", map[string]any{"accessToken": "a", "refreshToken": "r", "newEmail": "new@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"SetSession", "UpdateUser"}, e.auth.calls)
	assert.Equal(t, [][2]string{{"a", "r"}}, e.auth.setCalls)
	assert.Equal(t, []string{"session-token"}, e.auth.tokens)
	assert.Equal(t, []upstream.UserAttributes{{Email: "new@example.com"}}, e.auth.updates)
	assert.Equal(t, "Please check your email for the verification code", gjson.GetBytes(res.Data, "message").String())
}

func TestChangeEmailExpiredSession(t *testing.T) {
	e := newEnv(t)
	e.auth.errs["SetSession"] = &upstream.Error{Service: upstream.ServiceAuth, Status: 400, Code: "session_expired", Message: "Session expired"}
	w, res := postJSON(t, e.r, "/auth/change-email", map[string]any{"accessToken": "a", "refreshToken": "r", "newEmail": "n@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Session expired", res.errMessage())
	assert.Equal(t, []string{"SetSession"}, e.auth.calls)
}

func TestChangePhone(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/change-phone", map[string]any{"accessToken": "a", "refreshToken": "r"})
	assert.Equal(t, "phone is required", res.errMessage())

	_, res = postJSON(t, e.r, "/auth/change-phone", map[string]any{"accessToken": "a", "refreshToken": "r", "phone": "12"})
	assert.Equal(t, "Invalid phone number", res.errMessage())
	assert.Empty(t, e.auth.calls)

	w, res := postJSON(t, e.r, "/auth/change-phone", map[string]any{"accessToken": "a", "refreshToken": "r", "phone": "+61 400 000 001"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Phone number updated successfully", res.Message)
	assert.Equal(t, []string{"SetSession", "GetUser", "UpdateUser"}, e.auth.calls)
	assert.Equal(t, []string{"session-token", "session-token"}, e.auth.tokens)

	require.Len(t, e.auth.updates, 1)
	meta := e.auth.updates[0].Data
	assert.Equal(t, "+61400000001", meta["phone"])
	assert.Equal(t, "Ada", meta["firstName"])
	assert.Equal(t, "USER", meta["role"])
	// исходные метаданные сессии не меняются
	assert.Equal(t, "+61412345678", e.auth.session.User.UserMetadata["phone"])

	require.Len(t, e.users.upserts, 1)
	assert.Equal(t, "+61400000001", e.users.upserts[0].Phone)
	assert.Equal(t, "u1", e.users.upserts[0].ID)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)

	_, res := postJSON(t, e.r, "/auth/change-password", map[string]any{"email": "ada@example.com", "oldPassword": "old"})
	assert.Equal(t, "newPassword is required", res.errMessage())
	_, res = postJSON(t, e.r, "/auth/change-password", map[string]any{"oldPassword": "old", "newPassword": "new"})
	assert.Equal(t, "email is required", res.errMessage())

	w, res := postJSON(t, e.r, "/auth/change-password", map[string]any{"email": "ada@example.com", "oldPassword": "old", "newPassword": "new"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"SignInWithPassword", "UpdateUser", "SignInWithPassword"}, e.auth.calls)
	assert.Equal(t, [][2]string{{"ada@example.com", "old"}, {"ada@example.com", "new"}}, e.auth.signIns)
	assert.Equal(t, []string{"access-old"}, e.auth.tokens)
	assert.Equal(t, []upstream.UserAttributes{{Password: "new"}}, e.auth.updates)
	assert.Equal(t, "access-new", gjson.GetBytes(res.Data, "access_token").String())
}

func TestChangePasswordWrongOld(t *testing.T) {
	e := newEnv(t)
	e.auth.errs["SignInWithPassword"] = &upstream.Error{Service: upstream.ServiceAuth, Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	_, res := postJSON(t, e.r, "/auth/change-password", map[string]any{"email": "ada@example.com", "oldPassword": "x", "newPassword": "y"})
	assert.Equal(t, "Invalid login credentials", res.errMessage())
	assert.Empty(t, e.auth.updates)
}

func TestRecoveryEnvelope(t *testing.T) {
	e := newEnv(t)
	e.r.GET("/boom", func(*gin.Context) { panic("boom") })
	w, res := serve(t, e.r, mustRequest(t, http.MethodGet, "/boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", res.Message)
}

func TestBodyLimit(t *testing.T) {
	e := newEnv(t, func(c *config.Config) { c.BodyLimitBytes = 16 })
	w, res := postJSON(t, e.r, "/auth/login", map[string]any{"email": "ada@example.com", "password": "a-long-password"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "REQUEST_ENTITY_TOO_LARGE", res.Message)
	assert.Empty(t, e.auth.calls)
}
