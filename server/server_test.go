package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/store"
	"github.com/stretchr/testify/assert"
)

func newTestServer() *Server {
	return New(newFakeStudio(), Options{
		Port:      "0",
		Login:     "user",
		Password:  "secret",
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("metrics")) }),
		Recording: config.Defaults().Recording,
	})
}

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	handler := basicAuthWith("user", "secret")(ok)

	cases := []struct {
		name     string
		login    string
		password string
		set      bool
		want     int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "user", "guess", true, http.StatusUnauthorized},
		{"wrong login", "admin", "secret", true, http.StatusUnauthorized},
		{"valid", "user", "secret", true, http.StatusTeapot},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if c.set {
				req.SetBasicAuth(c.login, c.password)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, c.want, rec.Code)
		})
	}
}

func TestRouter(t *testing.T) {
	router := newTestServer().Router()

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "metrics", rec.Body.String())
	})

	t.Run("recordings need auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/test/recordings", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("recordings list", func(t *testing.T) {
		store.AddRecording(store.Recording{ID: "router-test", Name: "take", Path: "data/take.mp4"})
		defer store.RemoveRecording("router-test")

		req := httptest.NewRequest("GET", "/test/recordings", nil)
		req.SetBasicAuth("user", "secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "data/take.mp4")
	})
}
