package welfare

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Anyone is the universal sentinel used by scheme authors for "no constraint".
const Anyone = "Anyone"

// Criteria holds the raw eligibility fields of a scheme as they are stored.
// Range fields are expressions such as "18-65" or "<=20000"; the Yes/No fields
// accept "Yes", "No" or "Anyone".
type Criteria struct {
	Gender         string   `mapstructure:"gender" json:"gender"`
	AgeRange       string   `mapstructure:"age_range" json:"age_range"`
	IncomeRange    string   `mapstructure:"income_range" json:"income_range"`
	EligibleCastes []string `mapstructure:"eligible_castes" json:"eligible_castes"`
	Location       string   `mapstructure:"location" json:"location"`
	Disability     string   `mapstructure:"disability" json:"disability"`
	Minority       string   `mapstructure:"minority" json:"minority"`
	Student        string   `mapstructure:"student" json:"student"`
	BPL            string   `mapstructure:"bpl" json:"bpl"`
}

type Scheme struct {
	ID          string `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	Benefits    string `mapstructure:"benefits" json:"benefits,omitempty"`
	ContactInfo string `mapstructure:"contact_info" json:"contact_info,omitempty"`

	Criteria `mapstructure:",squash"`
}

type Schemes struct {
	Items []*Scheme `json:"items"`
}

func (s *Schemes) Len() int {
	return len(s.Items)
}

func (s *Schemes) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, scheme := range s.Items {
		ids = append(ids, scheme.ID)
	}
	return ids
}

func (s *Schemes) FindByID(id string) *Scheme {
	for _, scheme := range s.Items {
		if scheme.ID == id {
			return scheme
		}
	}
	return nil
}

// Keep retains the schemes accepted by keep, preserving their order, and
// returns the ids of the dropped ones.
func (s *Schemes) Keep(keep func(*Scheme) bool) []string {
	var dropped []string
	kept := make([]*Scheme, 0, len(s.Items))
	for _, scheme := range s.Items {
		if keep(scheme) {
			kept = append(kept, scheme)
			continue
		}
		dropped = append(dropped, scheme.ID)
	}
	s.Items = kept
	return dropped
}

// Exclude removes schemes by id. Order of the remaining schemes is preserved.
func (s *Schemes) Exclude(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return s.Keep(func(scheme *Scheme) bool {
		return !slices.Contains(ids, scheme.ID)
	})
}

// Clone returns a shallow copy whose item list can be filtered independently.
func (s *Schemes) Clone() *Schemes {
	return &Schemes{Items: slices.Clone(s.Items)}
}

func (s *Schemes) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "schemes_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := s.encode(file); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ToFile overwrites path with the collection in the format read by LoadSchemesFile.
func (s *Schemes) ToFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return s.encode(file)
}

func (s *Schemes) encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReportByLocation groups schemes by their location requirement.
func (s *Schemes) ReportByLocation() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, scheme := range s.Items {
		key := strings.TrimSpace(scheme.Location)
		if key == "" {
			key = Anyone
		}
		report[key] = append(report[key], map[string]string{
			"id":       scheme.ID,
			"name":     scheme.Name,
			"benefits": scheme.Benefits,
			"age":      scheme.AgeRange,
			"income":   scheme.IncomeRange,
			"castes":   strings.Join(scheme.EligibleCastes, ", "),
			"contact":  scheme.ContactInfo,
		})
	}
	return report
}

// LoadSchemesFile reads a file written by DumpToTmpFile. An empty file yields
// an empty collection.
func LoadSchemesFile(path string) (*Schemes, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Schemes{}, nil
	}

	var schemes Schemes
	if err := json.NewDecoder(file).Decode(&schemes); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &schemes, nil
}

func (s *Scheme) String() string {
	if s.Name == "" {
		return s.ID
	}
	return fmt.Sprintf("%s %s", s.ID, s.Name)
}
