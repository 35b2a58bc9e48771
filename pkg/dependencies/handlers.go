package dependencies

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/blastradius/pkg/export"
	"github.com/platinummonkey/blastradius/pkg/httputil"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
)

// Handlers provides HTTP handlers for dependency and usage analyses
type Handlers struct {
	analyzer *Analyzer
	defaults metadata.Options
	export   export.Options
	logger   logrus.FieldLogger
}

// HandlerOptions configures Handlers
type HandlerOptions struct {
	// Defaults are merged into every analysis
	Defaults metadata.Options

	// Export configures the export endpoint
	Export export.Options

	Logger logrus.FieldLogger
}

// NewHandlers creates new dependency handlers
func NewHandlers(analyzer *Analyzer, opts HandlerOptions) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = analyzer.logger
	}
	return &Handlers{
		analyzer: analyzer,
		defaults: opts.Defaults,
		export:   opts.Export,
		logger:   logger,
	}
}

// RegisterRoutes registers dependency routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/kinds", h.getKinds).Methods("GET")
	router.HandleFunc("/api/v1/components/{type}/{id}/dependencies", h.getDependencies).Methods("GET")
	router.HandleFunc("/api/v1/components/{type}/{id}/usage", h.getUsage).Methods("GET")
	router.HandleFunc("/api/v1/components/{type}/{id}/impact", h.getImpact).Methods("GET")
	router.HandleFunc("/api/v1/components/{type}/{id}/export", h.getExport).Methods("GET")

	vizHandlers := NewGraphVisualizationHandlers(h)
	vizHandlers.RegisterRoutes(router)
}

// getKinds handles GET /api/v1/kinds
func (h *Handlers) getKinds(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"registry": references.Kinds(),
	})
}

// getDependencies handles GET /api/v1/components/{type}/{id}/dependencies
func (h *Handlers) getDependencies(w http.ResponseWriter, r *http.Request) {
	result, ok := h.analyze(w, r, DirectionDependencies)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, result)
}

// getUsage handles GET /api/v1/components/{type}/{id}/usage
func (h *Handlers) getUsage(w http.ResponseWriter, r *http.Request) {
	result, ok := h.analyze(w, r, DirectionUsage)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, result)
}

// getImpact handles GET /api/v1/components/{type}/{id}/impact
func (h *Handlers) getImpact(w http.ResponseWriter, r *http.Request) {
	result, ok := h.analyze(w, r, DirectionUsage)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, NewGraph(result.EntryPoint, result.Edges).Impact())
}

// getExport handles GET /api/v1/components/{type}/{id}/export
func (h *Handlers) getExport(w http.ResponseWriter, r *http.Request) {
	direction, err := ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	format, err := export.ParseFormat(httputil.ParseQueryString(r, "format", string(export.FormatCSV)))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, ok := h.analyze(w, r, direction)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, result.Edges, h.export); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	filename := fmt.Sprintf("%s-%s%s", result.EntryPoint.Name, direction, format.Extension())
	if format == export.FormatManifest {
		filename = "package.xml"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// entryPoint reads the analyzed component from the route and query string
func entryPoint(r *http.Request) (metadata.EntryPoint, error) {
	vars := mux.Vars(r)
	entry := metadata.EntryPoint{
		ID:   vars["id"],
		Name: httputil.ParseQueryString(r, "name", ""),
		Type: metadata.Kind(vars["type"]),
	}.WithDefaultName()

	depth, err := httputil.ParseQueryInt(r, "depth", 0)
	if err != nil {
		return entry, err
	}
	if depth < 0 {
		return entry, fmt.Errorf("depth must not be negative")
	}
	entry.Options.MaxDepth = depth

	if entry.Options.EnhanceReportData, err = httputil.ParseQueryBool(r, "reports", false); err != nil {
		return entry, err
	}
	if entry.Options.FieldInMetadataTypes, err = httputil.ParseQueryBool(r, "metadataTypes", false); err != nil {
		return entry, err
	}
	return entry, nil
}

// analyze runs one analysis for the request and writes the error response when
// it fails
func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request, direction Direction) (*Result, bool) {
	entry, err := entryPoint(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}

	session := h.analyzer.NewSession(SessionOptions{Defaults: h.defaults})
	var result *Result
	switch direction {
	case DirectionUsage:
		result, err = session.Usage(r.Context(), entry)
	default:
		result, err = session.Dependencies(r.Context(), entry)
	}
	if err != nil {
		var qe *QueryError
		switch {
		case errors.Is(err, metadata.ErrInvalidEntryPoint):
			httputil.WriteBadRequest(w, err.Error())
		case errors.As(err, &qe):
			h.logger.WithError(err).WithField("entry_point", entry.Name).Error("primary query failed")
			httputil.WriteError(w, http.StatusBadGateway, err)
		default:
			httputil.WriteInternalError(w, err)
		}
		return nil, false
	}
	return result, true
}
