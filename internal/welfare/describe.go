package welfare

import (
	"fmt"
	"strconv"
	"strings"
)

// DescribeProfile renders a profile as the natural-language text used for
// semantic similarity.
func DescribeProfile(p *Profile) string {
	lines := []string{
		fmt.Sprintf("A %d year old %s from %s.", p.Age, p.Gender, p.Location),
		fmt.Sprintf("They belong to %s caste category.", p.Caste),
		choose(p.Disability == FlagYes, "They have a disability.", "They don't have any disability."),
		choose(p.Minority == FlagYes, "They belong to a minority community.", "They don't belong to a minority community."),
		choose(p.Student == FlagYes, "They are a student.", "They are not a student."),
		choose(p.BPL == FlagYes, "They are below poverty line.", "They are not below poverty line."),
		fmt.Sprintf("Their annual income is %s rupees.", strconv.FormatFloat(p.Income, 'f', -1, 64)),
	}
	return strings.Join(lines, "\n")
}

// DescribeScheme renders the eligibility criteria of a scheme in the same
// register as DescribeProfile.
func DescribeScheme(s *Scheme) string {
	lines := []string{
		fmt.Sprintf("This scheme is for %s candidates.", s.Gender),
		fmt.Sprintf("Age requirement: %s.", s.AgeRange),
		fmt.Sprintf("Income requirement: %s.", s.IncomeRange),
		fmt.Sprintf("Eligible castes: %s.", strings.Join(s.EligibleCastes, ", ")),
		fmt.Sprintf("Location requirement: %s.", s.Location),
	}

	optional := []struct {
		value string
		line  string
	}{
		{s.Disability, "Requires disability status."},
		{s.Minority, "Requires minority status."},
		{s.Student, "For students only."},
		{s.BPL, "For BPL candidates."},
	}
	for _, o := range optional {
		if flag, ok := ParseFlag(o.value); ok && flag == FlagYes {
			lines = append(lines, o.line)
		}
	}

	return strings.Join(lines, "\n")
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
