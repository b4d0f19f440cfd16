package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/config"
)

func TestRequestIDPropagates(t *testing.T) {
	e := newEnv(t)
	req := mustRequest(t, http.MethodGet, "/health")
	req.Header.Set(headerRequestID, "trace-42")
	w, _ := serve(t, e.r, req)
	assert.Equal(t, "trace-42", w.Header().Get(headerRequestID))

	w, _ = serve(t, e.r, mustRequest(t, http.MethodGet, "/health"))
	assert.Len(t, w.Header().Get(headerRequestID), 26, "ULID")
}

func TestCORS(t *testing.T) {
	t.Run("any origin", func(t *testing.T) {
		e := newEnv(t)
		req := mustRequest(t, http.MethodOptions, "/auth/login")
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w, _ := serve(t, e.r, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origins", func(t *testing.T) {
		e := newEnv(t, func(c *config.Config) { c.CORSOrigins = []string{"https://app.example.com"} })

		req := mustRequest(t, http.MethodGet, "/health")
		req.Header.Set("Origin", "https://app.example.com")
		w, _ := serve(t, e.r, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

		req = mustRequest(t, http.MethodGet, "/health")
		req.Header.Set("Origin", "https://evil.example.com")
		w, _ = serve(t, e.r, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, region, want string
	}{
		{"0412 345 678", "AU", "+61412345678"},
		{"+61 412-345-678", "AU", "+61412345678"},
		{"(202) 555-0143", "us", "+12025550143"},
		{"+44 20 7946 0958", "AU", "+442079460958"},
	}
	for _, tc := range cases {
		got, err := normalizePhone(tc.in, tc.region)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "12", "phone", "+999 1"} {
		_, err := normalizePhone(bad, "AU")
		assert.EqualError(t, err, "Invalid phone number", bad)
	}
}

func TestStatusName(t *testing.T) {
	assert.Equal(t, "OK", statusName(http.StatusOK))
	assert.Equal(t, "BAD_REQUEST", statusName(http.StatusBadRequest))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", statusName(http.StatusInternalServerError))
	assert.Equal(t, "NOT_FOUND", statusName(http.StatusNotFound))
}
