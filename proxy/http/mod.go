// Package http implements the proxy with an HTTP server routed by gorilla/mux.
//
// Every request gets an identifier, taken from the X-Request-Id header when
// the client sets it, that is sent back in the response and added to the logs.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"golang.org/x/xerrors"
)

// RequestIDHeader is the header carrying the identifier of a request.
const RequestIDHeader = "X-Request-Id"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type ctxKey struct{}

var promRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "forecast_http_requests_total",
	Help: "requests served by the proxy per status code",
}, []string{"code"})

func init() {
	forecast.PromCollectors = append(forecast.PromCollectors, promRequests)
}

// HTTP is the proxy of a node.
//
// - implements proxy.Proxy
type HTTP struct {
	sync.Mutex

	addr    string
	router  *mux.Router
	logger  zerolog.Logger
	newID   func() string
	server  *http.Server
	ln      net.Listener
	serving sync.WaitGroup
}

// NewHTTP returns a proxy for the address. An empty address listens on a
// random port of the loopback interface.
func NewHTTP(addr string) *HTTP {
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	return &HTTP{
		addr:   addr,
		router: mux.NewRouter(),
		logger: forecast.Logger.With().Str("role", "http proxy").Logger(),
		newID:  func() string { return xid.New().String() },
	}
}

// Listen implements proxy.Proxy.
func (h *HTTP) Listen() error {
	h.Lock()
	defer h.Unlock()

	if h.ln != nil {
		return xerrors.Errorf("already listening on %s", h.ln.Addr())
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return xerrors.Errorf("failed to listen on '%s': %v", h.addr, err)
	}

	h.ln = ln
	h.server = &http.Server{
		Handler:           h.observe(h.router),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	h.serving.Add(1)

	go func(srv *http.Server) {
		defer h.serving.Done()

		err := srv.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			h.logger.Err(err).Msg("server stopped unexpectedly")
		}
	}(h.server)

	h.logger.Info().Msgf("listening on http://%s", ln.Addr())

	return nil
}

// Stop implements proxy.Proxy. It does nothing when the proxy is not
// listening.
func (h *HTTP) Stop() error {
	h.Lock()
	defer h.Unlock()

	if h.ln == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := h.server.Shutdown(ctx)

	h.serving.Wait()
	h.ln = nil

	if err != nil {
		return xerrors.Errorf("failed to shutdown: %v", err)
	}

	h.logger.Info().Msg("server stopped")

	return nil
}

// GetAddr implements proxy.Proxy.
func (h *HTTP) GetAddr() net.Addr {
	h.Lock()
	defer h.Unlock()

	if h.ln == nil {
		return nil
	}

	return h.ln.Addr()
}

// RegisterHandler implements proxy.Proxy.
func (h *HTTP) RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	h.router.HandleFunc(path, handler)
}

// RequestID returns the identifier of the request, or "unknown" outside of the
// proxy.
func RequestID(ctx context.Context) string {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok {
		return "unknown"
	}

	return id
}

// observe identifies the request, then logs and counts it with its status.
func (h *HTTP) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = h.newID()
		}

		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		promRequests.WithLabelValues(strconv.Itoa(rec.code)).Inc()

		h.logger.Info().
			Str("requestID", id).
			Str("method", r.Method).
			Str("url", r.URL.Path).
			Int("status", rec.code).
			Dur("elapsed", time.Since(start)).
			Str("remoteAddr", r.RemoteAddr).
			Msg("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter

	code int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}
