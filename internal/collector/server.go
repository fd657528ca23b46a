package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pagebeacon/internal/beacon"
	"github.com/nao1215/pagebeacon/internal/database"
)

const (
	// SendPath receives beacon envelopes.
	SendPath = "/api/send"

	// HealthPath answers liveness probes.
	HealthPath = "/healthz"

	// MaxBodySize limits a single envelope.
	MaxBodySize = 1 << 20

	// DefaultShutdownTimeout bounds graceful shutdown in Run.
	DefaultShutdownTimeout = 10 * time.Second
)

// Store persists accepted events. *database.EventDB implements it.
type Store interface {
	InsertEvent(ctx context.Context, ev *database.Event) (int64, error)
}

// Server is the collection endpoint.
type Server struct {
	store       Store
	logger      *slog.Logger
	cacheHeader string
	now         func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheHeader sets the header carrying the session id.
func WithCacheHeader(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.cacheHeader = name
		}
	}
}

// WithClock sets the time source stamped on stored events.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Server storing events in store.
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:       store,
		logger:      slog.Default(),
		cacheHeader: beacon.DefaultCacheHeader,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the collector.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, s.handleHealthz)
	mux.HandleFunc(SendPath, s.handleSend)
	return mux
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) Run(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("collector listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("collector stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("collector forced to shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// envelope mirrors beacon.Envelope with the payload decoded.
type envelope struct {
	Type    string  `json:"type"`
	Payload payload `json:"payload"`
}

type payload struct {
	Website  string         `json:"website"`
	Hostname string         `json:"hostname"`
	Screen   string         `json:"screen"`
	Language string         `json:"language"`
	Title    string         `json:"title"`
	URL      string         `json:"url"`
	Referrer string         `json:"referrer"`
	Tag      string         `json:"tag"`
	Name     string         `json:"name"`
	Data     map[string]any `json:"data"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var env envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize)).Decode(&env); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if env.Type != string(beacon.KindEvent) && env.Type != string(beacon.KindIdentify) {
		http.Error(w, "type must be event or identify", http.StatusBadRequest)
		return
	}
	if env.Payload.Website == "" {
		http.Error(w, "payload.website is required", http.StatusBadRequest)
		return
	}

	session := s.sessionID(r)
	ev := &database.Event{
		Type:       env.Type,
		SessionID:  session,
		Website:    env.Payload.Website,
		Hostname:   env.Payload.Hostname,
		Screen:     env.Payload.Screen,
		Language:   env.Payload.Language,
		Title:      env.Payload.Title,
		URL:        env.Payload.URL,
		Referrer:   env.Payload.Referrer,
		Tag:        env.Payload.Tag,
		Name:       env.Payload.Name,
		Data:       env.Payload.Data,
		ReceivedAt: s.now(),
	}
	if _, err := s.store.InsertEvent(r.Context(), ev); err != nil {
		s.logger.Error("failed to store event", "website", ev.Website, "error", err)
		http.Error(w, "failed to store event", http.StatusInternalServerError)
		return
	}
	s.logger.Debug("event stored", "type", ev.Type, "website", ev.Website, "url", ev.URL, "name", ev.Name, "session", session)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, session)
}

// sessionID returns the session carried in the cache header when it is a
// valid UUID, or a fresh one.
func (s *Server) sessionID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(s.cacheHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, "+s.cacheHeader)
}
