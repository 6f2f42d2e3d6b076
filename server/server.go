// Package server exposes the studio over HTTP: websocket control, preview
// and stats endpoints, the recordings list, metrics and the control page
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/env"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/ducksouplab/framemixer/stats"
	"github.com/ducksouplab/framemixer/store"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		log.Debug().Str("context", "server").Str("origin", origin).Msg("ws_upgrade_requested")
		return helpers.Contains(env.AllowedWSOrigins, origin)
	},
}

type Options struct {
	Port     string
	Prefix   string
	Login    string
	Password string
	// Metrics is served on /metrics when set
	Metrics   http.Handler
	Recording config.RecordingConfig
	Cert      string
	Key       string
}

type Server struct {
	studio Studio
	opts   Options
	events *hub
	http   *http.Server
}

func New(st Studio, opts Options) *Server {
	s := &Server{
		studio: st,
		opts:   opts,
		events: newHub(),
	}
	st.OnEvent(s.events.broadcast)
	s.http = &http.Server{
		Handler:      s.Router(),
		Addr:         ":" + opts.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return s
}

// handle incoming websockets
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	// upgrade HTTP request to Websocket
	unsafeConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Str("context", "server").Err(err).Msg("ws_upgrade_failed")
		return
	}

	switch r.FormValue("type") {
	case "preview":
		RunPreviewServer(s.studio, unsafeConn) // blocking
	case "stats":
		stats.RunStatsServer(unsafeConn, func() interface{} { return s.studio.Stats() }) // blocking
	default:
		RunControlServer(s.studio, s.events, s.opts.Recording, unsafeConn) // blocking
	}
}

func recordingsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(store.ListRecordings()); err != nil {
		log.Error().Str("context", "server").Err(err).Msg("recordings_write_failed")
	}
}

func basicAuthWith(refLogin, refPassword string) mux.MiddlewareFunc {
	// source https://www.alexedwards.net/blog/basic-authentication-in-go
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			login, password, ok := r.BasicAuth()
			if ok {
				// Calculate SHA-256 hashes for the provided and expected usernames and passwords.
				loginHash := sha256.Sum256([]byte(login))
				passwordHash := sha256.Sum256([]byte(password))
				expectedLoginHash := sha256.Sum256([]byte(refLogin))
				expectedPasswordHash := sha256.Sum256([]byte(refPassword))

				loginMatch := (subtle.ConstantTimeCompare(loginHash[:], expectedLoginHash[:]) == 1)
				passwordMatch := (subtle.ConstantTimeCompare(passwordHash[:], expectedPasswordHash[:]) == 1)

				if loginMatch && passwordMatch {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func (s *Server) Router() *mux.Router {
	prefix := s.opts.Prefix
	router := mux.NewRouter()
	// websocket handler
	router.HandleFunc(prefix+"/ws", s.websocketHandler)
	if s.opts.Metrics != nil {
		router.Handle(prefix+"/metrics", s.opts.Metrics)
	}

	// assets without basic auth
	router.PathPrefix(prefix + "/assets/").Handler(http.StripPrefix(prefix+"/assets/", http.FileServer(http.Dir("./front/static/assets/"))))

	// control page and recordings with basic auth
	testRouter := router.PathPrefix(prefix + "/test").Subrouter()
	testRouter.Use(basicAuthWith(s.opts.Login, s.opts.Password))
	testRouter.HandleFunc("/recordings", recordingsHandler).Methods("GET")
	testRouter.PathPrefix("/control/").Handler(http.StripPrefix(prefix+"/test/control/", http.FileServer(http.Dir("./front/static/pages/control/"))))

	return router
}

// ListenAndServe blocks until ctx is done or the server fails
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.opts.Key != "" && s.opts.Cert != "" {
			log.Info().Str("context", "init").Str("port", s.opts.Port).Msg("https_listening")
			errCh <- s.http.ListenAndServeTLS(s.opts.Cert, s.opts.Key)
		} else {
			log.Info().Str("context", "init").Str("port", s.opts.Port).Msg("http_listening")
			errCh <- s.http.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
