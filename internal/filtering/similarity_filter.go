package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/scheme-matcher/internal/ai"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/metrics"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

const (
	DefaultSimilarityThreshold = 0.7
	defaultSimilarityWorkers   = 4
)

type SimilarityConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
	Workers   int     `mapstructure:"workers"`
}

type SimilarityDeps struct {
	Logger   *zap.Logger
	Embedder ai.Embedder
	Profile  *welfare.Profile
}

type similarityFilter struct {
	enabled bool
	reason  string
	config  *SimilarityConfig
	deps    *SimilarityDeps

	assessments map[string]*Assessment
	rejections  map[string]Rejection
}

// NewSimilarity creates the embedding re-rank step. Schemes whose description
// scores below the threshold against the profile description are dropped.
func NewSimilarity(cfg *SimilarityConfig, deps *SimilarityDeps) Filter {
	if cfg == nil {
		cfg = &SimilarityConfig{}
	}
	if deps == nil {
		deps = &SimilarityDeps{}
	}
	return &similarityFilter{
		enabled: cfg.Enabled,
		config:  cfg,
		deps:    deps,
	}
}

func (f *similarityFilter) Name() string { return "similarity" }

func (f *similarityFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *similarityFilter) IsEnabled() bool { return f.enabled }

func (f *similarityFilter) Validate() error {
	if f.deps.Embedder == nil {
		return errors.New("embedder is required when similarity filter is enabled")
	}
	if f.deps.Profile == nil {
		return errors.New("profile is required when similarity filter is enabled")
	}
	if t := f.config.Threshold; t < -1 || t > 1 {
		return fmt.Errorf("threshold %v is outside [-1, 1]", t)
	}
	return nil
}

func (f *similarityFilter) Apply(ctx context.Context, s *welfare.Schemes) (*welfare.Schemes, Step, error) {
	initial := s.Len()
	log := logger.WithModel(f.deps.Logger, "", f.deps.Embedder.Model())

	f.assessments = make(map[string]*Assessment, initial)
	f.rejections = make(map[string]Rejection)

	if initial == 0 {
		return s, Step{}, nil
	}

	userVec, err := f.deps.Embedder.Embed(ctx, welfare.DescribeProfile(f.deps.Profile))
	if err != nil {
		return s, Step{}, fmt.Errorf("embed profile: %w", err)
	}

	threshold := f.threshold()
	assessments := make([]*Assessment, initial)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers())

	for i, scheme := range s.Items {
		g.Go(func() error {
			assessment := f.assess(gctx, userVec, scheme)
			if assessment.Error != "" {
				log.Warn("scheme similarity failed, keeping scheme",
					zap.String(logger.FieldSchemeID, scheme.ID),
					zap.String("error", assessment.Error),
				)
			}

			assessments[i] = assessment
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return s, Step{}, err
	}

	index := make(map[*welfare.Scheme]*Assessment, initial)
	for i, scheme := range s.Items {
		index[scheme] = assessments[i]
		f.assessments[scheme.ID] = assessments[i]
	}

	s.Keep(func(scheme *welfare.Scheme) bool {
		assessment := index[scheme]
		if assessment.Error != "" || assessment.Score >= threshold {
			return true
		}

		f.rejections[scheme.ID] = Rejection{
			Filter: f.Name(),
			Reason: fmt.Sprintf("similarity %.3f is below threshold %.2f", assessment.Score, threshold),
		}
		log.Debug("scheme rejected by similarity",
			zap.String(logger.FieldSchemeID, scheme.ID),
			zap.Float64("score", assessment.Score),
		)
		return false
	})

	left := s.Len()
	return s, Step{Initial: initial, Dropped: initial - left, Left: left}, nil
}

func (f *similarityFilter) assess(ctx context.Context, userVec []float32, scheme *welfare.Scheme) *Assessment {
	vec, err := f.deps.Embedder.Embed(ctx, welfare.DescribeScheme(scheme))
	if err != nil {
		return &Assessment{Error: err.Error()}
	}

	score, err := ai.CosineSimilarity(userVec, vec)
	if err != nil {
		return &Assessment{Error: err.Error()}
	}

	metrics.SimilarityScores.Observe(score)
	return &Assessment{Score: score}
}

func (f *similarityFilter) threshold() float64 {
	if f.config.Threshold == 0 {
		return DefaultSimilarityThreshold
	}
	return f.config.Threshold
}

func (f *similarityFilter) workers() int {
	if f.config.Workers <= 0 {
		return defaultSimilarityWorkers
	}
	return f.config.Workers
}

func (f *similarityFilter) Assessments() map[string]*Assessment {
	if f.assessments == nil {
		return map[string]*Assessment{}
	}
	return f.assessments
}

func (f *similarityFilter) Rejections() map[string]Rejection {
	return f.rejections
}

func (f *similarityFilter) Status() Status {
	details := map[string]string{
		"threshold": strconv.FormatFloat(f.threshold(), 'f', 2, 64),
		"workers":   strconv.Itoa(f.workers()),
	}
	if f.deps.Embedder != nil {
		details["model"] = f.deps.Embedder.Model()
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
