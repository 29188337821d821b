// Package eligibility decides whether a citizen profile satisfies the
// criteria of a welfare scheme.
//
// Evaluation never fails: malformed scheme fields make the scheme ineligible
// and are reported through Result.Reason.
package eligibility

import (
	"fmt"
	"strings"

	"github.com/spigell/scheme-matcher/internal/welfare"
)

// Criterion names a single check of the composite evaluation.
type Criterion string

const (
	CriterionGender     Criterion = "gender"
	CriterionLocation   Criterion = "location"
	CriterionCaste      Criterion = "caste"
	CriterionDisability Criterion = "disability"
	CriterionMinority   Criterion = "minority"
	CriterionStudent    Criterion = "student"
	CriterionBPL        Criterion = "bpl"
	CriterionAge        Criterion = "age"
	CriterionIncome     Criterion = "income"
)

// Order is the fixed evaluation order. The first failing criterion is the
// reported one.
var Order = []Criterion{
	CriterionGender,
	CriterionLocation,
	CriterionCaste,
	CriterionDisability,
	CriterionMinority,
	CriterionStudent,
	CriterionBPL,
	CriterionAge,
	CriterionIncome,
}

type Result struct {
	Eligible  bool
	Criterion Criterion
	Reason    string
}

func pass() Result {
	return Result{Eligible: true}
}

func fail(c Criterion, format string, args ...any) Result {
	return Result{Criterion: c, Reason: fmt.Sprintf(format, args...)}
}

type check func(*welfare.Scheme, *welfare.Profile) Result

var checks = map[Criterion]check{
	CriterionGender: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return exact(CriterionGender, s.Gender, p.Gender)
	},
	CriterionLocation: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return exact(CriterionLocation, s.Location, p.Location)
	},
	CriterionCaste: func(s *welfare.Scheme, p *welfare.Profile) Result {
		set := ParseCasteSet(s.EligibleCastes)
		if set.Contains(p.Caste) {
			return pass()
		}
		if set.Empty() {
			return fail(CriterionCaste, "scheme caste list %q is empty or malformed", strings.Join(s.EligibleCastes, ", "))
		}
		return fail(CriterionCaste, "caste %q is not in %q", p.Caste, strings.Join(s.EligibleCastes, ", "))
	},
	CriterionDisability: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return required(CriterionDisability, s.Disability, p.Disability)
	},
	CriterionMinority: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return required(CriterionMinority, s.Minority, p.Minority)
	},
	CriterionStudent: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return required(CriterionStudent, s.Student, p.Student)
	},
	CriterionBPL: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return required(CriterionBPL, s.BPL, p.BPL)
	},
	CriterionAge: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return within(CriterionAge, s.AgeRange, float64(p.Age))
	},
	CriterionIncome: func(s *welfare.Scheme, p *welfare.Profile) Result {
		return within(CriterionIncome, s.IncomeRange, p.Income)
	},
}

// Evaluate checks the profile against every criterion of the scheme in Order
// and stops at the first failure.
func Evaluate(scheme *welfare.Scheme, profile *welfare.Profile) Result {
	if scheme == nil || profile == nil {
		return fail("", "scheme or profile is missing")
	}

	for _, criterion := range Order {
		if res := checks[criterion](scheme, profile); !res.Eligible {
			return res
		}
	}
	return pass()
}

// FilterEligible returns the ids of the schemes the profile is eligible for,
// in input order.
func FilterEligible(schemes []*welfare.Scheme, profile *welfare.Profile) []string {
	ids := make([]string, 0, len(schemes))
	for _, scheme := range schemes {
		if Evaluate(scheme, profile).Eligible {
			ids = append(ids, scheme.ID)
		}
	}
	return ids
}

func exact(c Criterion, want, got string) Result {
	switch {
	case isSentinel(want):
		return pass()
	case strings.TrimSpace(want) == "":
		return fail(c, "scheme %s is empty", c)
	case want == got:
		return pass()
	default:
		return fail(c, "%s %q does not match required %q", c, got, want)
	}
}

// required treats "No" and "Anyone" as not required. "Yes" requires the same
// value on the profile.
func required(c Criterion, want string, got welfare.Flag) Result {
	if isSentinel(want) {
		return pass()
	}

	flag, ok := welfare.ParseFlag(want)
	switch {
	case !ok:
		return fail(c, "scheme %s value %q is not Yes, No or Anyone", c, want)
	case flag == welfare.FlagNo:
		return pass()
	case got == welfare.FlagYes:
		return pass()
	default:
		return fail(c, "scheme requires %s", c)
	}
}

func within(c Criterion, raw string, value float64) Result {
	r, err := ParseRange(raw)
	if err != nil {
		return fail(c, "%v", err)
	}
	if !r.Holds(value) {
		return fail(c, "%s %s is outside %s", c, formatBound(value), raw)
	}
	return pass()
}
