package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/metrics"
)

// maxK caps the neighbors a single HTTP query may ask for.
const maxK = 1000

// server answers HTTP queries against one open database.
type server struct {
	db      *gisdb.DB
	log     *gisdb.Logger
	metrics *metrics.Collector
	limiter *rate.Limiter // nil disables limiting
}

func newServer(db *gisdb.DB, log *gisdb.Logger, mc *metrics.Collector, qps float64, burst int) *server {
	s := &server{db: db, log: log, metrics: mc}
	if qps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
	return s
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /v1/items/{name}", s.handleItem)
	s.route(mux, "GET /v1/nearest", s.handleNearest)
	s.route(mux, "GET /v1/info", s.handleInfo)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// route registers h behind the rate limiter and the access log.
func (s *server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, s.limit(h)))
}

func (s *server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.RecordRateLimited()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (s *server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		d := time.Since(start)

		s.metrics.RecordHTTP(route, sw.status, d)
		s.log.DebugContext(r.Context(), "http access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration_ms", d.Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryError maps a database error to a response.
func (s *server) queryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gisdb.ErrCorrupt):
		s.log.ErrorContext(r.Context(), "query on corrupt database", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "database is corrupt")
	case errors.Is(err, gisdb.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) handleItem(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	it, ok, err := s.db.GetItem(name)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no item named "+strconv.Quote(name))
		return
	}
	writeJSON(w, http.StatusOK, newItemView(s.db, it))
}

func (s *server) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := parsePosition(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	k := 1
	if v := q.Get("k"); v != "" {
		k, err = strconv.Atoi(v)
		if err != nil || k < 1 || k > maxK {
			writeError(w, http.StatusBadRequest, "k must be between 1 and "+strconv.Itoa(maxK))
			return
		}
	}

	ns, err := s.db.NNearest(pos, k)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   pos,
		"results": neighborViews(s.db, ns),
	})
}

func (s *server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	kind, _ := aviation.KindOf(s.db.Schema())
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":  s.db.Schema().ID(),
		"kind":    kind,
		"items":   s.db.Size(),
		"strings": s.db.Strings(),
	})
}
