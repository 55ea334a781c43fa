package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const defaultAuditMax = 200

// auditEntry describes one answered write request.
type auditEntry struct {
	Time      time.Time `json:"time"`
	User      string    `json:"user,omitempty"`
	Role      string    `json:"role,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Route     string    `json:"route,omitempty"`
	Status    int       `json:"status"`
	LatencyMS int64     `json:"latency_ms"`
	Client    string    `json:"client,omitempty"`
}

// auditLog keeps the last N write requests in a ring and optionally mirrors
// them to a JSONL file.
type auditLog struct {
	mu   sync.Mutex
	ring []auditEntry
	next int
	size int
	file *auditFile
	log  *logger.Logger
}

func newAuditLog(capacity int, file *auditFile, log *logger.Logger) *auditLog {
	if capacity <= 0 {
		capacity = defaultAuditMax
	}
	return &auditLog{ring: make([]auditEntry, capacity), file: file, log: log}
}

func (a *auditLog) record(e auditEntry) {
	a.mu.Lock()
	a.ring[a.next] = e
	a.next = (a.next + 1) % len(a.ring)
	if a.size < len(a.ring) {
		a.size++
	}
	a.mu.Unlock()

	if err := a.file.append(e); err != nil {
		a.log.WithError(err).Warn("audit file write failed")
	}
}

// recent returns up to limit entries, oldest first. A non-positive limit
// returns everything retained.
func (a *auditLog) recent(limit int) []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > a.size {
		limit = a.size
	}
	out := make([]auditEntry, limit)
	start := a.next - limit
	if start < 0 {
		start += len(a.ring)
	}
	for i := range out {
		out[i] = a.ring[(start+i)%len(a.ring)]
	}
	return out
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func (a *auditLog) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isWrite(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		e := auditEntry{
			Time:      start.UTC(),
			User:      logger.GetUserID(r.Context()),
			Role:      logger.GetRole(r.Context()),
			TraceID:   logger.GetTraceID(r.Context()),
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    sw.code(),
			LatencyMS: time.Since(start).Milliseconds(),
			Client:    r.RemoteAddr,
		}
		if route := mux.CurrentRoute(r); route != nil {
			e.Route, _ = route.GetPathTemplate()
		}
		a.record(e)
	})
}

// statusWriter remembers the first status written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// auditFile appends entries to a file, one JSON document per line. A nil
// *auditFile discards.
type auditFile struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func openAuditFile(path string) (*auditFile, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &auditFile{f: f, enc: json.NewEncoder(f)}, nil
}

func (a *auditFile) append(e auditEntry) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enc.Encode(e)
}

func (a *auditFile) Close() error {
	if a == nil {
		return nil
	}
	return a.f.Close()
}
