// Package api exposes the extraction pipeline and terminology operations
// over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/carelens/emisx/dedupe"
	"github.com/carelens/emisx/lineage"
	"github.com/carelens/emisx/models/emis"
	"github.com/carelens/emisx/pipeline"
	"github.com/carelens/emisx/terminology"
)

// SessionHeader carries the caller's session id. Requests without one get
// a fresh session whose id is echoed back in the response.
const SessionHeader = "X-Session-ID"

// Router serves the pipeline and terminology endpoints.
type Router struct {
	pipeline *pipeline.Pipeline
	registry *terminology.Registry
	tracer   func(client terminology.Client) *lineage.Tracer
	log      zerolog.Logger
}

// NewRouter creates a Router. The registry supplies one terminology
// service per session.
func NewRouter(p *pipeline.Pipeline, registry *terminology.Registry, traceConfig lineage.Config, log zerolog.Logger) *Router {
	return &Router{
		pipeline: p,
		registry: registry,
		tracer: func(client terminology.Client) *lineage.Tracer {
			return lineage.NewTracer(client, traceConfig, log)
		},
		log: log,
	}
}

// Handler builds the route table.
func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/convert", rt.handleConvert).Methods(http.MethodPost)
	r.HandleFunc("/expand", rt.handleExpand).Methods(http.MethodPost)
	r.HandleFunc("/trace", rt.handleTrace).Methods(http.MethodPost)
	r.HandleFunc("/codes/{code}/children", rt.handleChildren).Methods(http.MethodGet)
	return r
}

func (rt *Router) session(w http.ResponseWriter, r *http.Request) *terminology.Service {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		var service *terminology.Service
		id, service = rt.registry.NewSession()
		w.Header().Set(SessionHeader, id)
		return service
	}
	w.Header().Set(SessionHeader, id)
	return rt.registry.Session(id)
}

func (rt *Router) handleConvert(w http.ResponseWriter, r *http.Request) {
	mode := dedupe.GlobalUnique
	if r.URL.Query().Get("mode") == "per-source" {
		mode = dedupe.PerSource
	}

	doc, err := emis.DecodeDocument(r.Body)
	if err != nil {
		rt.respondError(w, http.StatusBadRequest, err)
		return
	}

	report, err := rt.pipeline.Run(r.Context(), doc, mode)
	if err != nil {
		rt.respondError(w, http.StatusInternalServerError, err)
		return
	}
	rt.respondJSON(w, http.StatusOK, report)
}

type expandRequest struct {
	Codes           []string `json:"codes"`
	IncludeInactive bool     `json:"include_inactive"`
}

func (rt *Router) handleExpand(w http.ResponseWriter, r *http.Request) {
	service := rt.session(w, r)

	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.respondError(w, http.StatusBadRequest, err)
		return
	}

	results := service.ExpandBatch(r.Context(), req.Codes, req.IncludeInactive, nil)
	rt.respondJSON(w, http.StatusOK, results)
}

func (rt *Router) handleTrace(w http.ResponseWriter, r *http.Request) {
	service := rt.session(w, r)

	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.respondError(w, http.StatusBadRequest, err)
		return
	}

	expansions := service.ExpandBatch(r.Context(), req.Codes, req.IncludeInactive, nil)
	result := rt.tracer(service.Client()).TraceFullLineage(r.Context(), expansions, req.IncludeInactive)
	rt.respondJSON(w, http.StatusOK, result)
}

func (rt *Router) handleChildren(w http.ResponseWriter, r *http.Request) {
	service := rt.session(w, r)
	code := mux.Vars(r)["code"]
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	children, err := service.Client().GetDirectChildren(r.Context(), code, includeInactive)
	if err != nil {
		rt.respondError(w, http.StatusBadGateway, err)
		return
	}
	rt.respondJSON(w, http.StatusOK, map[string]any{
		"code":     code,
		"children": children,
		"total":    len(children),
	})
}

func (rt *Router) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rt.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (rt *Router) respondError(w http.ResponseWriter, status int, err error) {
	rt.log.Error().Err(err).Int("status", status).Msg("Request failed")
	rt.respondJSON(w, status, map[string]string{"error": err.Error()})
}
