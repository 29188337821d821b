package welfare

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var requiredProfileKeys = []string{
	"gender", "age", "location", "caste", "disability", "minority", "student", "bpl", "income",
}

// DecodeProfile converts a stored user row into a Profile. Missing or null
// required fields are reported as ErrInvalidProfile; the decoded profile is
// validated before it is returned.
func DecodeProfile(row map[string]any) (*Profile, error) {
	for _, key := range requiredProfileKeys {
		if v, ok := row[key]; !ok || v == nil {
			return nil, fmt.Errorf("%w: %s is missing", ErrInvalidProfile, key)
		}
	}

	if age, ok := row["age"].(float64); ok && age != math.Trunc(age) {
		return nil, fmt.Errorf("%w: age %v is not a whole number", ErrInvalidProfile, age)
	}

	var profile Profile
	if err := decode(row, &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return &profile, nil
}

// DecodeScheme converts a stored scheme row into a Scheme. Scheme criteria are
// never rejected here: malformed values are carried as they are and fail
// closed at evaluation time.
func DecodeScheme(row map[string]any) (*Scheme, error) {
	var scheme Scheme
	if err := decode(row, &scheme); err != nil {
		return nil, fmt.Errorf("decode scheme: %w", err)
	}

	if scheme.Name == "" {
		if name, ok := row["scheme_name"].(string); ok {
			scheme.Name = name
		}
	}

	if strings.TrimSpace(scheme.ID) == "" {
		return nil, fmt.Errorf("decode scheme: id is missing")
	}

	return &scheme, nil
}

func decode(input map[string]any, target any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			flagHook,
			boolToYesNoHook,
			stringListHook,
		),
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

var (
	flagType       = reflect.TypeOf(Flag(""))
	stringType     = reflect.TypeOf("")
	stringListType = reflect.TypeOf([]string{})
)

// flagHook normalizes stored spellings ("yes", "TRUE", true) of Yes/No values.
func flagHook(from, to reflect.Type, data any) (any, error) {
	if to != flagType {
		return data, nil
	}

	switch v := data.(type) {
	case bool:
		if v {
			return FlagYes, nil
		}
		return FlagNo, nil
	case string:
		flag, _ := ParseFlag(v)
		return flag, nil
	default:
		return data, nil
	}
}

// boolToYesNoHook maps boolean columns of scheme rows to the Yes/No spelling.
func boolToYesNoHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Bool || to != stringType {
		return data, nil
	}
	if data.(bool) {
		return string(FlagYes), nil
	}
	return string(FlagNo), nil
}

// stringListHook accepts a bare string or a heterogeneous list where a list of
// strings is expected. List-literal strings are kept as a single element; they
// are parsed strictly by the eligibility package.
func stringListHook(from, to reflect.Type, data any) (any, error) {
	if to != stringListType {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	default:
		return data, nil
	}
}
