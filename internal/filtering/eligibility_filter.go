package filtering

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/eligibility"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/metrics"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

type eligibilityFilter struct {
	profile *welfare.Profile
	logger  *zap.Logger

	rejections map[string]Rejection
}

// NewEligibility creates the rule-based filter that keeps only the schemes
// whose criteria the profile satisfies.
func NewEligibility(profile *welfare.Profile, log *zap.Logger) Filter {
	return &eligibilityFilter{
		profile: profile,
		logger:  logger.WithFields(log),
	}
}

func (f *eligibilityFilter) Name() string { return "eligibility" }

// Disable is a no-op: the rule check can not be skipped.
func (f *eligibilityFilter) Disable(string) {}

func (f *eligibilityFilter) IsEnabled() bool { return true }

func (f *eligibilityFilter) Validate() error {
	if f.profile == nil {
		return errors.New("profile is required")
	}
	return f.profile.Validate()
}

func (f *eligibilityFilter) Apply(_ context.Context, s *welfare.Schemes) (*welfare.Schemes, Step, error) {
	initial := s.Len()
	f.rejections = make(map[string]Rejection)

	s.Keep(func(scheme *welfare.Scheme) bool {
		res := eligibility.Evaluate(scheme, f.profile)
		if res.Eligible {
			return true
		}

		f.rejections[scheme.ID] = Rejection{
			Filter:    f.Name(),
			Criterion: string(res.Criterion),
			Reason:    res.Reason,
		}
		metrics.IneligibleSchemes.WithLabelValues(string(res.Criterion)).Inc()
		f.logger.Debug("scheme is not eligible",
			zap.String(logger.FieldSchemeID, scheme.ID),
			zap.String("criterion", string(res.Criterion)),
			zap.String("reason", res.Reason),
		)
		return false
	})

	return s, Step{Initial: initial, Dropped: initial - s.Len(), Left: s.Len()}, nil
}

func (f *eligibilityFilter) Rejections() map[string]Rejection {
	return f.rejections
}
