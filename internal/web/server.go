// Package web serves the zone-monitor status page and per-zone data
// feeds over HTTP. Handlers read the status tracker and the view
// copies only; mutating endpoints hand their work to the poll loop
// through injected callbacks and wait for the answer.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/zone-monitor/internal/status"
)

// Ops are the mutating operations the daemon loop runs on behalf of
// the web layer. Each callback blocks until the loop has applied the
// change, so a response never races a half-applied mutation.
type Ops struct {
	// ClearTrace empties one zone's trace.
	ClearTrace func(zone int) error

	// LoadLog replaces the current log with the one at path and
	// re-ingests it from the start.
	LoadLog func(path string) error
}

// Server serves the status page, zone data, and control endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	views      *Views
	ops        Ops
}

// New creates a Server reading from tracker and views. Zero-valued Ops
// callbacks disable their endpoints with 503.
func New(addr string, tracker *status.Tracker, views *Views, ops Ops) *Server {
	s := &Server{tracker: tracker, views: views, ops: ops}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleStatusJSON).Methods(http.MethodGet)
	r.HandleFunc("/zones.json", s.handleZones).Methods(http.MethodGet)
	r.HandleFunc("/zones/{zone:[0-9]+}/series.json", s.handleSeries).Methods(http.MethodGet)
	r.HandleFunc("/zones/{zone:[0-9]+}/status.json", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/zones/{zone:[0-9]+}/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/load", s.handleLoad).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handlers.LoggingHandler(os.Stdout, r),
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// zoneVar reads the {zone} path variable. The route pattern already
// restricts it to digits.
func zoneVar(r *http.Request) int {
	z, _ := strconv.Atoi(mux.Vars(r)["zone"])
	return z
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.zoneRows())
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatZoneList(s.views))
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	zone := zoneVar(r)
	v, ok := s.views.Get(zone)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatSeries(zone, v.Series()))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	zone := zoneVar(r)
	v, ok := s.views.Get(zone)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatSnapshot(zone, v.Snapshot(), len(v.Series())))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.ops.ClearTrace == nil {
		http.Error(w, "clear not available", http.StatusServiceUnavailable)
		return
	}
	zone := zoneVar(r)
	if _, ok := s.views.Get(zone); !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.ops.ClearTrace(zone); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	seeOther(w, r)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.ops.LoadLog == nil {
		http.Error(w, "load not available", http.StatusServiceUnavailable)
		return
	}
	path := r.FormValue("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	if err := s.ops.LoadLog(path); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	seeOther(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

// seeOther sends browsers back to the index after a form post; API
// callers asking for JSON get a plain acknowledgement instead.
func seeOther(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}` + "\n"))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
