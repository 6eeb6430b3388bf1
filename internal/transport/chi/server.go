package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/scope"
	"github.com/kailas-cloud/kbroute/internal/logger"
	healthuc "github.com/kailas-cloud/kbroute/internal/usecase/health"
	mappinguc "github.com/kailas-cloud/kbroute/internal/usecase/mapping"
	retrieveuc "github.com/kailas-cloud/kbroute/internal/usecase/retrieve"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Defaults are the request parameters used when a body leaves them out.
type Defaults struct {
	Mapping mappinguc.Options
	Search  request.Config
}

// Server serves the knowledge base routing API.
type Server struct {
	catalog       Catalog
	mapper        Mapper
	searcher      Searcher
	pipeline      Pipeline
	health        HealthChecker
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog Catalog,
	mapper Mapper,
	searcher Searcher,
	pipeline Pipeline,
	health HealthChecker,
	defaults Defaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:  catalog,
		mapper:   mapper,
		searcher: searcher,
		pipeline: pipeline,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrKBUnavailable, http.StatusNotFound, codeKBUnavailable),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, codeRetrievalFailed),
		sentinelHandler(domain.ErrScorerUnavailable, http.StatusBadGateway, codeScorerUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/kbs", s.ListKBs)
	r.Get("/kbs/{id}", s.GetKB)
	r.Post("/kbs/map", s.MapQuery)
	r.Post("/kbs/{id}/search", s.SearchKB)
	r.Post("/query", s.Query)
}

// ListKBs handles GET /kbs.
func (s *Server) ListKBs(w http.ResponseWriter, r *http.Request) {
	kbs, err := s.catalog.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]kbResponse, len(kbs))
	for i, d := range kbs {
		items[i] = kbToResponse(d)
	}
	writeJSON(w, http.StatusOK, kbListResponse{Items: items, Total: len(items)})
}

// GetKB handles GET /kbs/{id}.
func (s *Server) GetKB(w http.ResponseWriter, r *http.Request) {
	d, err := s.catalog.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kbToResponse(d))
}

// MapQuery handles POST /kbs/map.
func (s *Server) MapQuery(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts := s.defaults.Mapping
	if req.MinRelevance != nil {
		opts.MinRelevance = *req.MinRelevance
	}
	if req.MaxKBs != nil {
		opts.MaxKBs = *req.MaxKBs
	}

	mappings, err := s.mapper.Map(r.Context(), req.Query, opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if req.Language != "" {
		mappings, err = s.mapper.AdjustForLanguage(r.Context(), mappings, strings.ToLower(req.Language))
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, mapResponse{Items: mappingsToResponse(mappings)})
}

// SearchKB handles POST /kbs/{id}/search.
func (s *Server) SearchKB(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg, err := s.searchConfig(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	f, err := filterFromRequest(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	kbID := gochi.URLParam(r, "id")
	h, err := s.catalog.Resolve(r.Context(), kbID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	refs, err := s.searcher.Search(r.Context(), req.Query, h, f, &cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := referencesToResponse(refs)
	writeJSON(w, http.StatusOK, searchResponse{KBID: kbID, Items: items, Total: len(items)})
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sc, err := scope.New(req.KBIDs, req.DocIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	searchCfg := s.defaults.Search
	resp, err := s.pipeline.Process(r.Context(), req.Query, retrieveuc.Options{
		Scope:    sc,
		Language: strings.ToLower(req.Language),
		Mapping:  s.defaults.Mapping,
		Search:   &searchCfg,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, queryToResponse(resp))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// searchConfig overlays request fields on the default search config.
func (s *Server) searchConfig(req searchRequest) (request.Config, error) {
	d := s.defaults.Search
	m := d.Mode()
	if req.Mode != "" {
		m = mode.Mode(strings.ToLower(req.Mode))
	}
	minRel := d.MinRelevance()
	if req.MinRelevance != nil {
		minRel = *req.MinRelevance
	}
	maxSeg := d.MaxSegmentsPerDoc()
	if req.MaxSegmentsPerDoc != nil {
		maxSeg = *req.MaxSegmentsPerDoc
	}
	adaptive := d.AdaptiveRecall()
	if req.AdaptiveRecall != nil {
		adaptive = *req.AdaptiveRecall
	}
	return request.NewConfig(m, minRel, maxSeg, adaptive)
}

func filterFromRequest(f *filterRequest) (filter.Metadata, error) {
	if f == nil {
		return filter.Metadata{}, nil
	}
	return filter.New(f.Field, filter.Operator(f.Operator), f.Value)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client message without exposing internals. Validation
// errors carry their detail; other sentinels only their own text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrKBUnavailable,
		domain.ErrRetrieval,
		domain.ErrScorerUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// requestLogger prefers the request-scoped logger set by the wide event middleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l := logger.FromContext(r.Context()); l.Core().Enabled(zapcore.ErrorLevel) {
		return l
	}
	return s.logger
}
