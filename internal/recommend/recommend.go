// Package recommend runs the scheme filtering pipeline for a single citizen.
package recommend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/ai"
	"github.com/spigell/scheme-matcher/internal/filtering"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/metrics"
	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

type Config struct {
	ExcludedSchemes []string                   `mapstructure:"exclude-schemes"`
	ExcludeFile     string                     `mapstructure:"exclude-file"`
	Similarity      filtering.SimilarityConfig `mapstructure:"similarity"`
}

// Recommendation is the outcome of a run. Schemes are in catalog order.
type Recommendation struct {
	Profile     *welfare.Profile
	Schemes     *welfare.Schemes
	Assessments map[string]*filtering.Assessment
	Rejections  map[string]filtering.Rejection
	Filters     []filtering.Status
}

func (r *Recommendation) IDs() []string {
	return r.Schemes.IDs()
}

// Explain returns the rejection reason recorded for a scheme.
func (r *Recommendation) Explain(id string) (filtering.Rejection, bool) {
	rejection, ok := r.Rejections[id]
	return rejection, ok
}

type Recommender struct {
	store    store.Store
	embedder ai.Embedder
	config   Config
	logger   *zap.Logger
}

// New creates a Recommender. A nil embedder disables the similarity step.
func New(s store.Store, embedder ai.Embedder, cfg Config, log *zap.Logger) *Recommender {
	return &Recommender{
		store:    s,
		embedder: embedder,
		config:   cfg,
		logger:   logger.WithFields(log),
	}
}

func (r *Recommender) Recommend(ctx context.Context, email string) (*Recommendation, error) {
	start := time.Now()
	rec, err := r.recommend(ctx, email)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecommendDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return rec, err
}

func (r *Recommender) recommend(ctx context.Context, email string) (*Recommendation, error) {
	log := logger.WithFields(r.logger, logger.UserFields(email, RequestID(ctx))...)

	profile, err := r.store.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	catalog, err := r.store.ListSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schemes: %w", err)
	}

	steps := r.steps(profile, log)
	schemes, report, err := filtering.Run(ctx, log, steps, catalog)
	if err != nil {
		return nil, err
	}

	for _, step := range steps {
		if dropped := countRejections(report, step.Name()); dropped > 0 {
			metrics.FilterSchemesDropped.WithLabelValues(step.Name()).Add(float64(dropped))
		}
	}

	log.Info("recommendation finished",
		zap.Int("catalog", catalog.Len()),
		zap.Int("recommended", schemes.Len()),
	)

	return &Recommendation{
		Profile:     profile,
		Schemes:     schemes,
		Assessments: report.Assessments,
		Rejections:  report.Rejections,
		Filters:     filtering.Describe(steps),
	}, nil
}

func (r *Recommender) steps(profile *welfare.Profile, log *zap.Logger) []filtering.Filter {
	similarity := r.config.Similarity
	steps := []filtering.Filter{
		filtering.NewExcludedSchemes(r.config.ExcludedSchemes, r.config.ExcludeFile, log),
		filtering.NewEligibility(profile, log),
		filtering.NewSimilarity(&similarity, &filtering.SimilarityDeps{
			Logger:   log,
			Embedder: r.embedder,
			Profile:  profile,
		}),
	}

	if r.embedder == nil {
		filtering.DisableByName(steps, "similarity", "embedder is not configured")
	}

	return steps
}

func countRejections(report *filtering.Report, filter string) int {
	n := 0
	for _, rejection := range report.Rejections {
		if rejection.Filter == filter {
			n++
		}
	}
	return n
}

type requestIDKey struct{}

// WithRequestID attaches a request id that is added to the run's log fields.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
