// Package restapi implements the REST/HTTP external interface: a thin
// JSON translation of the Target Service's operations, with hex-string
// address/data fields and a fixed set of HTTP status codes.
//
// An http.ServeMux with one route per resource and JSON schema structs,
// the same shape as a command-table dispatcher with string keys instead
// of command bytes.
package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/target"
	log "github.com/sirupsen/logrus"
)

// Server is the REST/HTTP task: it decodes JSON requests and dispatches
// them through the runtime's request channel, exactly like the binary
// wire protocol does.
type Server struct {
	rt       *runtime.Runtime
	ctx      context.Context
	serveMux *http.ServeMux
}

// NewServer builds a Server dispatching through rt. ctx bounds every
// request this server submits to the link task.
func NewServer(ctx context.Context, rt *runtime.Runtime) *Server {
	s := &Server{rt: rt, ctx: ctx, serveMux: http.NewServeMux()}
	s.addRoutes()
	return s
}

// ListenAndServe blocks serving HTTP on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("[REST] listening on %s", addr)
	return http.ListenAndServe(addr, s.serveMux)
}

// ServeHTTP makes Server an http.Handler directly, for tests and for
// embedding behind a custom listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.serveMux.ServeHTTP(w, r)
}

func (s *Server) addRoutes() {
	s.serveMux.HandleFunc("/api/v1/status", s.handleStatus)
	s.serveMux.HandleFunc("/api/v1/details", s.handleDetails)
	s.serveMux.HandleFunc("/api/v1/reset", s.handleReset)
	s.serveMux.HandleFunc("/api/v1/raw-reset", s.handleRawReset)
	s.serveMux.HandleFunc("/api/v1/memory/bulk", s.handleMemoryBulk)
	s.serveMux.HandleFunc("/api/v1/memory/", s.handleMemoryWord)
	s.serveMux.HandleFunc("/api/v1/flash/unlock", s.handleFlashUnlock)
	s.serveMux.HandleFunc("/api/v1/flash/lock", s.handleFlashLock)
	s.serveMux.HandleFunc("/api/v1/flash/erase-sector", s.handleFlashEraseSector)
	s.serveMux.HandleFunc("/api/v1/flash/erase-all", s.handleFlashEraseAll)
	s.serveMux.HandleFunc("/api/v1/flash/program-bulk", s.handleFlashProgramBulk)
	s.serveMux.HandleFunc("/api/v1/flash/program", s.handleFlashProgram)
	s.serveMux.HandleFunc("/api/v1/dp/", s.handleDP)
	s.serveMux.HandleFunc("/api/v1/ap/", s.handleAP)
	s.serveMux.HandleFunc("/api/v1/clock", s.handleClock)
	s.serveMux.HandleFunc("/api/v1/speed", s.handleSpeed)
	s.serveMux.HandleFunc("/api/v1/errors/clear", s.handleErrorsClear)
	s.serveMux.HandleFunc("/api/v1/errors", s.handleErrors)
}

// submit runs op on the link task and returns its error for the caller
// to translate into an HTTP status code via writeError.
func (s *Server) submit(op func(*target.Service) error) error {
	var opErr error
	s.rt.Submit(s.ctx, func(svc *target.Service) { opErr = op(svc) })
	return opErr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to an HTTP status: 400 bad
// request, 500 SWD/target failure, 503 target not connected.
func writeError(w http.ResponseWriter, err error) {
	apiErr := airfrog.WrapAPIError(err)
	status := http.StatusInternalServerError
	switch apiErr.Code {
	case airfrog.ErrAlignment, airfrog.ErrTooLarge, airfrog.ErrBadRequest, airfrog.ErrInvalidBody:
		status = http.StatusBadRequest
	case airfrog.ErrNotConnected:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: apiErr.Error()})
}

func pathTail(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.Path, prefix)
}
