package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"inclusiv/internal/domain"
	"inclusiv/internal/ports"
)

const maxBodyBytes = 64 << 10

type Deps struct {
	Scanner  ports.Scanner
	Leads    ports.Leads
	Outreach ports.Outreach
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health reports backing store reachability for /healthz.
	Health func(ctx context.Context) error
	Logger *zap.Logger
	Now    func() time.Time
}

type Server struct {
	scanner  ports.Scanner
	leads    ports.Leads
	outreach ports.Outreach
	metrics  http.Handler
	health   func(ctx context.Context) error
	log      *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{
		scanner:  d.Scanner,
		leads:    d.Leads,
		outreach: d.Outreach,
		metrics:  d.Metrics,
		health:   d.Health,
		log:      d.Logger.Named("http"),
		now:      d.Now,
	}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/scans", s.postScan)
	r.Get("/scans/{id}", s.getScan)

	r.Post("/leads", s.postLead)
	r.Post("/leads/{id}/convert", s.postLeadConvert)
	r.Get("/leads/{id}/emails", s.getLeadEmails)

	r.Post("/emails/{id}/reset", s.postEmailReset)
	r.Post("/sweep", s.postSweep)
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var wait bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		s.badRequest(w, "invalid wait parameter")
		return
	}
	var body scanRequest
	if !s.decode(w, r, &body) {
		return
	}

	if !wait {
		scan, err := s.scanner.Enqueue(r.Context(), body.URL)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, scanAccepted{ScanID: scan.ID, Status: scan.Status})
		return
	}

	scan, err := s.scanner.RunScan(r.Context(), body.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newScanResponse(scan))
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	scan, err := s.scanner.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newScanResponse(scan))
}

func (s *Server) postLead(w http.ResponseWriter, r *http.Request) {
	var body leadRequest
	if !s.decode(w, r, &body) {
		return
	}
	in := ports.CaptureInput{
		Email:    body.Email,
		URL:      body.URL,
		Source:   body.Source,
		Sequence: domain.SequenceType(body.Sequence),
	}
	if body.ScanID != "" {
		scan, err := s.scanner.Get(r.Context(), body.ScanID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if scan.Status == domain.ScanCompleted && scan.Score != nil {
			in.ScanSummary = &domain.LeadScanSummary{
				ScanID:         scan.ID,
				Score:          *scan.Score,
				TotalIssues:    scan.TotalIssues,
				CriticalIssues: scan.CriticalIssues,
				Platform:       scan.Platform,
			}
		}
		if in.URL == "" {
			in.URL = scan.URL
		}
	}

	lead, emails, err := s.leads.Capture(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, leadResponse{Lead: newLeadBody(lead), Emails: newEmailBodies(emails)})
}

func (s *Server) postLeadConvert(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, err := s.leads.Convert(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{LeadID: id, Cancelled: n})
}

func (s *Server) getLeadEmails(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	emails, err := s.outreach.Emails(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emailsResponse{Emails: newEmailBodies(emails)})
}

func (s *Server) postEmailReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	e, err := s.outreach.Reset(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEmailBody(e))
}

func (s *Server) postSweep(w http.ResponseWriter, r *http.Request) {
	rep, err := s.outreach.Sweep(r.Context(), s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Claimed: rep.Claimed, Sent: rep.Sent, Failed: rep.Failed, Released: rep.Released})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id == "" {
		s.badRequest(w, "invalid id")
		return "", false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.badRequest(w, "invalid request body")
		return false
	}
	return true
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrUnknownSequence):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrRetryExhausted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "retry limit reached"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflicting state"})
	default:
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
