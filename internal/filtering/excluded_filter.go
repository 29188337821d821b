package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/welfare"
)

type excludedFilter struct {
	ids    []string
	path   string
	logger *zap.Logger

	rejections map[string]Rejection
}

// NewExcludedSchemes creates a filter that removes schemes listed in the
// config or in a file written by the recommend command.
func NewExcludedSchemes(ids []string, path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludedFilter{
		ids:    ids,
		path:   strings.TrimSpace(path),
		logger: logger,
	}
}

func (f *excludedFilter) Name() string { return "excluded_schemes" }

func (f *excludedFilter) Disable(string) {}

func (f *excludedFilter) IsEnabled() bool { return true }

func (f *excludedFilter) Validate() error { return nil }

func (f *excludedFilter) Apply(_ context.Context, s *welfare.Schemes) (*welfare.Schemes, Step, error) {
	initial := s.Len()

	ids := append([]string(nil), f.ids...)
	if f.path != "" {
		excluded, err := welfare.LoadSchemesFile(f.path)
		if err != nil {
			return s, Step{}, fmt.Errorf("getting excluded schemes from file: %w", err)
		}
		ids = append(ids, excluded.IDs()...)
	}

	if len(ids) == 0 {
		return s, Step{Initial: initial, Dropped: 0, Left: s.Len()}, nil
	}

	removed := s.Exclude(ids)
	f.rejections = make(map[string]Rejection, len(removed))
	for _, id := range removed {
		f.rejections[id] = Rejection{Filter: f.Name(), Reason: "excluded by configuration"}
	}

	if len(removed) > 0 {
		f.logger.Info("excluding schemes",
			zap.Strings("excluded_schemes", removed),
			zap.Int("schemes_left", s.Len()),
		)
	}

	return s, Step{Initial: initial, Dropped: len(removed), Left: s.Len()}, nil
}

func (f *excludedFilter) Rejections() map[string]Rejection {
	return f.rejections
}

func (f *excludedFilter) Status() Status {
	details := map[string]string{}
	if len(f.ids) > 0 {
		details["ids"] = strings.Join(f.ids, ",")
	}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
