package filtering

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/scheme-matcher/internal/welfare"
)

type fakeEmbedder struct {
	calls atomic.Int32
	embed func(text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	return f.embed(text)
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func scheme(id, location string) *welfare.Scheme {
	return &welfare.Scheme{ID: id, Criteria: welfare.Criteria{
		Gender:         "Anyone",
		AgeRange:       "18-60",
		IncomeRange:    "<=100000",
		EligibleCastes: []string{"['OBC', 'SC']"},
		Location:       location,
		Disability:     "Anyone",
		Minority:       "Anyone",
		Student:        "No",
		BPL:            "Anyone",
	}}
}

func profile() *welfare.Profile {
	return &welfare.Profile{
		Gender: "Male", Age: 40, Location: "Urban", Caste: "SC",
		Disability: welfare.FlagNo, Minority: welfare.FlagNo, Student: welfare.FlagNo, BPL: welfare.FlagNo,
		Income: 80000,
	}
}

func catalog() *welfare.Schemes {
	return &welfare.Schemes{Items: []*welfare.Scheme{
		scheme("1", "Urban"),
		scheme("2", "Rural"),
		scheme("3", "Anyone"),
		scheme("4", "Urban"),
	}}
}

func TestRunLogsStepsAndKeepsOrder(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	steps := []Filter{
		NewExcludedSchemes([]string{"4"}, "", log),
		NewEligibility(profile(), log),
		NewSimilarity(&SimilarityConfig{Enabled: false}, nil),
	}

	left, report, err := Run(context.Background(), log, steps, catalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(left.IDs(), ","); got != "1,3" {
		t.Fatalf("expected 1,3, got %s", got)
	}

	if r := report.Rejections["2"]; r.Filter != "eligibility" || r.Criterion != "location" {
		t.Fatalf("unexpected rejection for 2: %+v", r)
	}
	if r := report.Rejections["4"]; r.Filter != "excluded_schemes" {
		t.Fatalf("unexpected rejection for 4: %+v", r)
	}

	entries := observed.FilterMessage("filter step").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 step entries, got %d", len(entries))
	}
	fields := entries[1].ContextMap()
	if fields["name"] != "eligibility" || fields["initial"] != int64(3) || fields["dropped"] != int64(1) || fields["left"] != int64(2) {
		t.Fatalf("unexpected eligibility step fields: %+v", fields)
	}
}

func TestRunStopsOnValidationError(t *testing.T) {
	steps := []Filter{NewEligibility(&welfare.Profile{}, nil)}

	if _, _, err := Run(context.Background(), nil, steps, catalog()); !errors.Is(err, welfare.ErrInvalidProfile) {
		t.Fatalf("expected invalid profile error, got %v", err)
	}
}

func TestExcludedSchemesFromFile(t *testing.T) {
	dumped := &welfare.Schemes{Items: []*welfare.Scheme{{ID: "2"}, {ID: "3"}}}
	path, err := dumped.DumpToTmpFile()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	f := NewExcludedSchemes([]string{"1"}, path, nil)
	left, step, err := f.Apply(context.Background(), catalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step != (Step{Initial: 4, Dropped: 3, Left: 1}) {
		t.Fatalf("unexpected step: %+v", step)
	}
	if left.IDs()[0] != "4" {
		t.Fatalf("expected 4 to survive, got %v", left.IDs())
	}

	missing := NewExcludedSchemes(nil, filepath.Join(t.TempDir(), "missing.json"), nil)
	if _, _, err := missing.Apply(context.Background(), catalog()); err == nil {
		t.Fatal("expected error for missing exclude file")
	}
}

func TestSimilarityKeepsSchemesAboveThreshold(t *testing.T) {
	embedder := &fakeEmbedder{embed: func(text string) ([]float32, error) {
		switch {
		case strings.HasPrefix(text, "A 40 year old"):
			return []float32{1, 0}, nil
		case strings.Contains(text, "Location requirement: Urban."):
			return []float32{1, 0.1}, nil
		default:
			return []float32{0, 1}, nil
		}
	}}

	f := NewSimilarity(&SimilarityConfig{Enabled: true, Workers: 2}, &SimilarityDeps{
		Embedder: embedder,
		Profile:  profile(),
	})
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	left, step, err := f.Apply(context.Background(), catalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(left.IDs(), ","); got != "1,4" {
		t.Fatalf("expected 1,4, got %s", got)
	}
	if step != (Step{Initial: 4, Dropped: 2, Left: 2}) {
		t.Fatalf("unexpected step: %+v", step)
	}
	if embedder.calls.Load() != 5 {
		t.Fatalf("expected 5 embedding calls, got %d", embedder.calls.Load())
	}

	assessments := f.(*similarityFilter).Assessments()
	if len(assessments) != 4 || assessments["1"].Score < 0.99 || assessments["2"].Score != 0 {
		t.Fatalf("unexpected assessments: %+v", assessments)
	}
}

func TestSimilarityKeepsSchemesThatFailToEmbed(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)

	embedder := &fakeEmbedder{embed: func(text string) ([]float32, error) {
		if strings.Contains(text, "Rural") {
			return nil, errors.New("quota")
		}
		if strings.HasPrefix(text, "A 40 year old") {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	}}

	f := NewSimilarity(&SimilarityConfig{Enabled: true, Threshold: 0.5}, &SimilarityDeps{
		Logger:   zap.New(core),
		Embedder: embedder,
		Profile:  profile(),
	})

	left, _, err := f.Apply(context.Background(), catalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(left.IDs(), ","); got != "2" {
		t.Fatalf("expected only the failed scheme to survive, got %s", got)
	}
	if f.(*similarityFilter).Assessments()["2"].Error != "quota" {
		t.Fatalf("expected error to be recorded")
	}
	if observed.FilterMessage("scheme similarity failed, keeping scheme").Len() != 1 {
		t.Fatalf("expected a warning for the failed scheme")
	}
}

func TestSimilarityFailsWhenProfileCannotBeEmbedded(t *testing.T) {
	embedder := &fakeEmbedder{embed: func(string) ([]float32, error) {
		return nil, errors.New("unavailable")
	}}

	f := NewSimilarity(&SimilarityConfig{Enabled: true}, &SimilarityDeps{Embedder: embedder, Profile: profile()})
	if _, _, err := f.Apply(context.Background(), catalog()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSimilarityValidate(t *testing.T) {
	f := NewSimilarity(&SimilarityConfig{Enabled: true}, nil)
	if err := f.Validate(); err == nil {
		t.Fatal("expected error without embedder")
	}

	f = NewSimilarity(&SimilarityConfig{Enabled: true, Threshold: 2}, &SimilarityDeps{
		Embedder: &fakeEmbedder{}, Profile: profile(),
	})
	if err := f.Validate(); err == nil {
		t.Fatal("expected error for threshold out of range")
	}
}

func TestDescribeAndDisable(t *testing.T) {
	steps := []Filter{
		NewExcludedSchemes([]string{"9"}, "", nil),
		NewEligibility(profile(), nil),
		NewSimilarity(&SimilarityConfig{Enabled: true}, &SimilarityDeps{Embedder: &fakeEmbedder{}}),
	}

	DisableByName(steps, "similarity", "no api key")

	statuses := Describe(steps)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Details["ids"] != "9" {
		t.Fatalf("unexpected excluded status: %+v", statuses[0])
	}
	if !statuses[1].Enabled || statuses[1].Name != "eligibility" {
		t.Fatalf("unexpected eligibility status: %+v", statuses[1])
	}
	sim := statuses[2]
	if sim.Enabled || sim.Reason != "no api key" || sim.Details["threshold"] != "0.70" || sim.Details["model"] != "fake-embed" {
		t.Fatalf("unexpected similarity status: %+v", sim)
	}
}
