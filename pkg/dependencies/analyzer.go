package dependencies

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/blastradius/pkg/cache"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

var tracer = otel.Tracer("blastradius/dependencies")

// Direction is the walk direction
type Direction string

const (
	// DirectionDependencies walks from a component to what it references
	DirectionDependencies Direction = "dependencies"
	// DirectionUsage walks from a component to what references it
	DirectionUsage Direction = "usage"
)

// ParseDirection parses a direction name, defaulting to dependencies
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", DirectionDependencies:
		return DirectionDependencies, nil
	case DirectionUsage:
		return DirectionUsage, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// QueryError reports a failed primary query. It is the only fatal failure of a walk.
type QueryError struct {
	Direction Direction
	Level     int
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed at level %d: %v", e.Direction, e.Level, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Recorder receives analysis measurements
type Recorder interface {
	RecordAnalysis(direction, kind, status string, duration time.Duration, edges int)
	RecordPrimaryQuery(direction string, err error)
	RecordDegraded(stage string)
	RecordCacheLookup(kind string, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(string, string, string, time.Duration, int) {}
func (nopRecorder) RecordPrimaryQuery(string, error)                          {}
func (nopRecorder) RecordDegraded(string)                                     {}
func (nopRecorder) RecordCacheLookup(string, bool)                            {}

// Config configures an Analyzer
type Config struct {
	Services sfapi.Services
	Logger   logrus.FieldLogger
	Recorder Recorder

	// BaseURL prefixes component links
	BaseURL string

	// BatchSize is the number of ids per primary query
	BatchSize int

	// Concurrency bounds concurrent resolver and enrichment calls
	Concurrency int
}

// Analyzer runs dependency and usage analyses
type Analyzer struct {
	services    sfapi.Services
	logger      logrus.FieldLogger
	recorder    Recorder
	baseURL     string
	batchSize   int
	concurrency int
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Services.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		services:    cfg.Services,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
		baseURL:     cfg.BaseURL,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
	if a.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		a.logger = l
	}
	if a.recorder == nil {
		a.recorder = nopRecorder{}
	}
	if a.batchSize <= 0 {
		a.batchSize = references.DefaultBatchSize
	}
	if a.concurrency <= 0 {
		a.concurrency = references.DefaultConcurrency
	}
	return a, nil
}

// SessionOptions configures a session
type SessionOptions struct {
	// Defaults are merged into every entry point: switches are enabled when set
	// here, and MaxDepth applies when the entry point leaves it zero
	Defaults metadata.Options
}

// Session groups analyses sharing one cache
type Session struct {
	id       string
	analyzer *Analyzer
	cache    *cache.Cache
	env      *references.Env
	defaults metadata.Options
	logger   logrus.FieldLogger
}

// NewSession starts a session with a fresh cache
func (a *Analyzer) NewSession(opts SessionOptions) *Session {
	id := uuid.New().String()
	c := cache.New()
	c.SetObserver(a.recorder.RecordCacheLookup)
	logger := a.logger.WithField("session_id", id)

	return &Session{
		id:       id,
		analyzer: a,
		cache:    c,
		defaults: opts.Defaults,
		logger:   logger,
		env: &references.Env{
			Services:    a.services,
			Cache:       c,
			Logger:      logger,
			BaseURL:     a.baseURL,
			Concurrency: a.concurrency,
		},
	}
}

// Dependencies runs a one-shot dependency analysis
func (a *Analyzer) Dependencies(ctx context.Context, entry metadata.EntryPoint) (*Result, error) {
	return a.NewSession(SessionOptions{}).Dependencies(ctx, entry)
}

// Usage runs a one-shot usage analysis
func (a *Analyzer) Usage(ctx context.Context, entry metadata.EntryPoint) (*Result, error) {
	return a.NewSession(SessionOptions{}).Usage(ctx, entry)
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Cache returns the session cache
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

// Result is the outcome of one analysis
type Result struct {
	SessionID  string              `json:"sessionId"`
	Direction  Direction           `json:"direction"`
	EntryPoint metadata.EntryPoint `json:"entryPoint"`
	Edges      []metadata.Edge     `json:"edges"`
	Tree       *Tree               `json:"tree"`
	Stats      Stats               `json:"stats"`
	Warnings   []metadata.Warning  `json:"warnings,omitempty"`
}

func (s *Session) withDefaults(entry metadata.EntryPoint) metadata.EntryPoint {
	entry.Options.EnhanceReportData = entry.Options.EnhanceReportData || s.defaults.EnhanceReportData
	entry.Options.FieldInMetadataTypes = entry.Options.FieldInMetadataTypes || s.defaults.FieldInMetadataTypes
	if entry.Options.MaxDepth == 0 {
		entry.Options.MaxDepth = s.defaults.MaxDepth
	}
	return entry
}

func memoKey(entry metadata.EntryPoint) string {
	return string(entry.Type) + "|" + entry.ID + "|" + entry.Name + "|" +
		strconv.FormatBool(entry.Options.EnhanceReportData) + "|" +
		strconv.FormatBool(entry.Options.FieldInMetadataTypes) + "|" +
		strconv.Itoa(entry.Options.MaxDepth)
}

// Dependencies returns what the entry point depends on
func (s *Session) Dependencies(ctx context.Context, entry metadata.EntryPoint) (*Result, error) {
	return s.analyze(ctx, DirectionDependencies, entry)
}

// Usage returns what depends on the entry point
func (s *Session) Usage(ctx context.Context, entry metadata.EntryPoint) (*Result, error) {
	return s.analyze(ctx, DirectionUsage, entry)
}

func (s *Session) analyze(ctx context.Context, dir Direction, entry metadata.EntryPoint) (*Result, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	entry = s.withDefaults(entry)
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Session."+string(dir),
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("entry.type", string(entry.Type)),
			attribute.String("entry.name", entry.Name),
		),
	)
	defer span.End()

	logger := s.logger.WithFields(logrus.Fields{
		"entry_point": entry.Name,
		"kind":        entry.Type,
		"direction":   dir,
	})

	key := memoKey(entry)
	var (
		walk cache.Analysis
		err  error
		memo bool
	)
	switch dir {
	case DirectionDependencies:
		walk, memo = s.cache.GetDependencies(key)
		if !memo {
			walk.Edges, walk.Warnings, err = s.dependencies(ctx, entry, logger)
		}
	case DirectionUsage:
		walk, memo = s.cache.GetUsage(key)
		if !memo {
			walk.Edges, walk.Warnings, err = s.usage(ctx, entry, logger)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.analyzer.recorder.RecordAnalysis(string(dir), string(entry.Type), "error", time.Since(start), 0)
		logger.WithError(err).Error("analysis failed")
		var qe *QueryError
		if errors.As(err, &qe) {
			return nil, err
		}
		return nil, fmt.Errorf("%s analysis of %s: %w", dir, entry.Name, err)
	}

	// the cache keeps its own copy of walk
	if !memo {
		switch dir {
		case DirectionDependencies:
			s.cache.SetDependencies(key, walk)
		case DirectionUsage:
			s.cache.SetUsage(key, walk)
		}
	}

	edges, warnings := walk.Edges, walk.Warnings
	result := &Result{
		SessionID:  s.id,
		Direction:  dir,
		EntryPoint: entry,
		Edges:      edges,
		Tree:       BuildTree(entry, edges),
		Stats:      ComputeStats(edges),
		Warnings:   warnings,
	}
	if dir == DirectionUsage {
		sortUsage(result.Edges)
	}

	status := "success"
	if len(warnings) > 0 {
		status = "degraded"
	}
	span.SetAttributes(attribute.Int("result.edges", len(edges)), attribute.Bool("result.memoized", memo))
	s.analyzer.recorder.RecordAnalysis(string(dir), string(entry.Type), status, time.Since(start), len(edges))
	logger.WithFields(logrus.Fields{
		"edges":    len(edges),
		"warnings": len(warnings),
		"memoized": memo,
	}).Info("analysis complete")

	return result, nil
}

// degrade logs and records a failed non-fatal step
func (s *Session) degrade(logger logrus.FieldLogger, stage string, err error) metadata.Warning {
	logger.WithField("stage", stage).WithError(err).Warn("step failed, continuing without it")
	s.analyzer.recorder.RecordDegraded(stage)
	return metadata.Warning{Stage: stage, Message: err.Error()}
}
