package filtering

import (
	"context"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/welfare"
)

// Filter represents a single filtering step applied to schemes.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, s *welfare.Schemes) (*welfare.Schemes, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// Assessment is the similarity verdict for a single scheme. Error is set when
// the scheme could not be scored; such schemes are kept.
type Assessment struct {
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// Rejection explains why a filter dropped a scheme.
type Rejection struct {
	Filter    string `json:"filter"`
	Criterion string `json:"criterion,omitempty"`
	Reason    string `json:"reason"`
}

// Report collects per-scheme details produced by the steps of a run.
type Report struct {
	Assessments map[string]*Assessment
	Rejections  map[string]Rejection
}

func newReport() *Report {
	return &Report{
		Assessments: make(map[string]*Assessment),
		Rejections:  make(map[string]Rejection),
	}
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

type assessmentCollector interface {
	Assessments() map[string]*Assessment
}

type rejectionCollector interface {
	Rejections() map[string]Rejection
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially, returning the remaining
// schemes in their original order together with the collected report.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, s *welfare.Schemes) (*welfare.Schemes, *Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	report := newReport()
	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		next, info, err := step.Apply(ctx, s)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		s = next

		if collector, ok := step.(assessmentCollector); ok {
			maps.Copy(report.Assessments, collector.Assessments())
		}
		if collector, ok := step.(rejectionCollector); ok {
			maps.Copy(report.Rejections, collector.Rejections())
		}
	}

	return s, report, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
