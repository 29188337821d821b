package aadhaar

import (
	"regexp"
	"strings"
	"time"
)

const dateLayout = "02/01/2006"

var (
	honorifics = []string{"sy", "sj", "sh", "shri", "smt", "mr", "mrs", "ms"}

	headerMarkers = []string{"government of india", "unique identification", "aadhaar", "भारत सरकार"}
	fieldMarkers  = []string{"male", "female", "dob", "birth", "address", "pincode", "आधार", "पहचान"}
	dobMarkers    = []string{"DOB", "दिनांक", "जन्म"}
	headerWords   = []string{"government", "india", "authority", "unique", "identification"}

	namePattern     = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2}$`)
	looseNameRegexp = regexp.MustCompile(`(?:^|\s)([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2})(?:\s|$)`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`),
		regexp.MustCompile(`\b(\d{2}\.\d{2}\.\d{4})\b`),
		regexp.MustCompile(`\b(\d{2}-\d{2}-\d{4})\b`),
	}

	genderPattern  = regexp.MustCompile(`\b(MALE|FEMALE|[Mm]ale|[Ff]emale)\b`)
	pincodePattern = regexp.MustCompile(`\b(\d{6})\b`)
)

// Fields are the values read from the card.
type Fields struct {
	Name    string `json:"name,omitempty"`
	DOB     string `json:"dob,omitempty"`
	Age     int    `json:"age,omitempty"`
	Gender  string `json:"gender,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// ExtractName finds the card holder name. A capitalised line of two or three
// words wins, then the line above the date of birth, then any capitalised run
// that is not part of the card header.
func ExtractName(text string) string {
	lines := nonEmptyLines(text)

	for i, line := range lines {
		if containsAny(line, dobMarkers) && i > 0 {
			if prev := stripHonorific(lines[i-1]); namePattern.MatchString(prev) {
				return prev
			}
		}

		lower := strings.ToLower(line)
		if containsAny(lower, headerMarkers) || containsAny(lower, fieldMarkers) {
			continue
		}

		if cleaned := stripHonorific(line); namePattern.MatchString(cleaned) {
			return cleaned
		}
	}

	for _, line := range lines {
		match := looseNameRegexp.FindStringSubmatch(stripHonorific(line))
		if match == nil {
			continue
		}
		if !containsAny(strings.ToLower(match[1]), headerWords) {
			return match[1]
		}
	}

	return ""
}

// ExtractDOB returns the first real calendar date written as dd/mm/yyyy,
// dd.mm.yyyy or dd-mm-yyyy.
func ExtractDOB(text string) (time.Time, bool) {
	for _, pattern := range datePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			normalized := strings.NewReplacer(".", "/", "-", "/").Replace(match[1])
			if dob, err := time.Parse(dateLayout, normalized); err == nil {
				return dob, true
			}
		}
	}
	return time.Time{}, false
}

// ExtractGender returns "Male" or "Female".
func ExtractGender(text string) string {
	match := genderPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	g := strings.ToLower(match[1])
	return strings.ToUpper(g[:1]) + g[1:]
}

// ExtractPincode returns the first standalone six digit number.
func ExtractPincode(text string) string {
	match := pincodePattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return match[1]
}

// Age returns the number of full years between dob and now.
func Age(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripHonorific(line string) string {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)
	for _, prefix := range honorifics {
		if strings.HasPrefix(lower, prefix+" ") {
			return strings.TrimSpace(line[len(prefix)+1:])
		}
	}
	return line
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
