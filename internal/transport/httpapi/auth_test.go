package httpapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Registration Tests
// =============================================================================

func TestAuth_Register(t *testing.T) {
	w := setup(t)

	rec := w.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     "dana@ferro.test",
		"password":  "correct-horse-battery",
		"full_name": "Dana Fixture",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.EqualValues(t, 900, body["expires_in"])

	userInfo, ok := body["user"].(map[string]interface{})
	require.True(t, ok, "response should include a user object")
	assert.Equal(t, "dana@ferro.test", userInfo["email"])
	assert.Equal(t, "Dana Fixture", userInfo["full_name"])
	assert.Equal(t, "not_started", userInfo["kyc_status"])
	assert.Equal(t, false, userInfo["is_admin"])

	accountInfo, ok := body["account"].(map[string]interface{})
	require.True(t, ok, "response should include the opened account")
	assert.NotEmpty(t, accountInfo["account_number"])
	assert.Equal(t, "primary", accountInfo["type"])
	assert.Equal(t, "USD", accountInfo["currency"])
	assert.Equal(t, "active", accountInfo["status"])

	// The issued token is immediately usable.
	rec = w.do(http.MethodGet, "/api/v1/balance", body["token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode(t, rec)
	assert.Equal(t, "0.00", balance["available"])
	assert.Equal(t, "0.00", balance["held"])
}

func TestAuth_Register_Validation(t *testing.T) {
	w := setup(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "correct-horse-battery", "full_name": "X Y"}},
		{"missing password", map[string]string{"email": "x@ferro.test", "full_name": "X Y"}},
		{"missing full name", map[string]string{"email": "x@ferro.test", "password": "correct-horse-battery"}},
		{"malformed email", map[string]string{"email": "not-an-email", "password": "correct-horse-battery", "full_name": "X Y"}},
		{"short password", map[string]string{"email": "x@ferro.test", "password": "short", "full_name": "X Y"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := w.do(http.MethodPost, "/api/v1/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION", decode(t, rec)["code"])
		})
	}
}

func TestAuth_Register_DuplicateEmail(t *testing.T) {
	w := setup(t)

	body := map[string]string{
		"email":     "dana@ferro.test",
		"password":  "correct-horse-battery",
		"full_name": "Dana Fixture",
	}
	rec := w.do(http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = w.do(http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_TAKEN", decode(t, rec)["code"])
}

// =============================================================================
// Login Tests
// =============================================================================

func TestAuth_Login(t *testing.T) {
	w := setup(t)

	rec := w.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     "dana@ferro.test",
		"password":  "correct-horse-battery",
		"full_name": "Dana Fixture",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = w.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "dana@ferro.test",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	userInfo, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "dana@ferro.test", userInfo["email"])

	rec = w.do(http.MethodGet, "/api/v1/balance", body["token"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_Login_BadCredentials(t *testing.T) {
	w := setup(t)

	rec := w.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     "dana@ferro.test",
		"password":  "correct-horse-battery",
		"full_name": "Dana Fixture",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("wrong password", func(t *testing.T) {
		rec := w.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email":    "dana@ferro.test",
			"password": "wrong-password-entirely",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := w.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email":    "nobody@ferro.test",
			"password": "correct-horse-battery",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
	})
}

func TestAuth_Login_DeactivatedUser(t *testing.T) {
	w := setup(t)
	ctx := context.Background()

	rec := w.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     "dana@ferro.test",
		"password":  "correct-horse-battery",
		"full_name": "Dana Fixture",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	dana, err := w.db.Users().GetByEmail(ctx, "dana@ferro.test")
	require.NoError(t, err)
	require.NoError(t, w.db.Users().SetActive(ctx, dana.ID, false))

	rec = w.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "dana@ferro.test",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACTOR_INACTIVE", decode(t, rec)["code"])
}
