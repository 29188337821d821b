package welfare

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidProfile is returned when a stored profile misses a required field
// or carries a value that can not be evaluated.
var ErrInvalidProfile = errors.New("invalid user profile")

// Flag is a Yes/No attribute of a citizen profile.
type Flag string

const (
	FlagYes Flag = "Yes"
	FlagNo  Flag = "No"
)

// ParseFlag normalizes the stored spelling of a Yes/No value.
func ParseFlag(s string) (Flag, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return FlagYes, true
	case "no", "false":
		return FlagNo, true
	default:
		return Flag(s), false
	}
}

func (f Flag) Valid() bool {
	return f == FlagYes || f == FlagNo
}

// Profile is the citizen profile used for eligibility checks.
type Profile struct {
	Name            string  `mapstructure:"name" json:"name,omitempty"`
	Email           string  `mapstructure:"email" json:"email,omitempty"`
	Gender          string  `mapstructure:"gender" json:"gender"`
	Age             int     `mapstructure:"age" json:"age"`
	Location        string  `mapstructure:"location" json:"location"`
	Caste           string  `mapstructure:"caste" json:"caste"`
	Disability      Flag    `mapstructure:"disability" json:"disability"`
	Minority        Flag    `mapstructure:"minority" json:"minority"`
	Student         Flag    `mapstructure:"student" json:"student"`
	BPL             Flag    `mapstructure:"bpl" json:"bpl"`
	Income          float64 `mapstructure:"income" json:"income"`
	Pincode         string  `mapstructure:"pincode" json:"pincode,omitempty"`
	State           string  `mapstructure:"state" json:"state,omitempty"`
	City            string  `mapstructure:"city" json:"city,omitempty"`
	AadhaarVerified bool    `mapstructure:"aadhar_verified" json:"aadhar_verified"`
}

// Validate checks the invariants the eligibility evaluator relies on.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalidProfile)
	}

	for field, value := range map[string]string{
		"gender":   p.Gender,
		"location": p.Location,
		"caste":    p.Caste,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidProfile, field)
		}
	}

	if p.Age < 0 {
		return fmt.Errorf("%w: age %d is negative", ErrInvalidProfile, p.Age)
	}

	if math.IsNaN(p.Income) || math.IsInf(p.Income, 0) || p.Income < 0 {
		return fmt.Errorf("%w: income %v is not a non-negative number", ErrInvalidProfile, p.Income)
	}

	flags := []struct {
		name  string
		value Flag
	}{
		{"disability", p.Disability},
		{"minority", p.Minority},
		{"student", p.Student},
		{"bpl", p.BPL},
	}
	for _, flag := range flags {
		if !flag.value.Valid() {
			return fmt.Errorf("%w: %s must be Yes or No, got %q", ErrInvalidProfile, flag.name, string(flag.value))
		}
	}

	return nil
}
