package contact

import (
	"sort"
	"strings"
	"time"
)

// SearchObject is the structured search used by the address book UI. Each
// non-empty criterion contributes one predicate; predicates are combined
// with AND unless OrSearch is set.
type SearchObject struct {
	Folders []int `json:"folders,omitempty"`

	// Pattern matches display name, given name and sur name.
	Pattern string `json:"pattern,omitempty"`
	// StartLetter restricts sur names (display name when no sur name is
	// set) to an initial letter; "#" selects names not starting with a letter.
	StartLetter string `json:"start_letter,omitempty"`

	GivenName      string `json:"given_name,omitempty"`
	SurName        string `json:"sur_name,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	Email1         string `json:"email1,omitempty"`
	Email2         string `json:"email2,omitempty"`
	Email3         string `json:"email3,omitempty"`
	Company        string `json:"company,omitempty"`
	Department     string `json:"department,omitempty"`
	StreetBusiness string `json:"street_business,omitempty"`
	CityBusiness   string `json:"city_business,omitempty"`
	Categories     string `json:"categories,omitempty"`

	// Fields carries additional per-field patterns keyed by field name.
	Fields map[string]string `json:"fields,omitempty"`

	// EmailAutoComplete matches the pattern against the three email fields
	// and the name fields.
	EmailAutoComplete bool `json:"email_autocomplete,omitempty"`

	BirthdayFrom     *time.Time `json:"birthday_from,omitempty"`
	BirthdayUntil    *time.Time `json:"birthday_until,omitempty"`
	AnniversaryFrom  *time.Time `json:"anniversary_from,omitempty"`
	AnniversaryUntil *time.Time `json:"anniversary_until,omitempty"`

	OrSearch                 bool `json:"or_search,omitempty"`
	ExactMatch               bool `json:"exact_match,omitempty"`
	EmailOnly                bool `json:"email_only,omitempty"`
	ExcludeDistributionLists bool `json:"exclude_distribution_lists,omitempty"`
}

// FieldPattern is one per-field criterion of a SearchObject.
type FieldPattern struct {
	Field   Field
	Pattern string
}

// Patterns lists the per-field criteria in a stable order.
func (s *SearchObject) Patterns() ([]FieldPattern, error) {
	var out []FieldPattern
	add := func(f Field, p string) {
		if strings.TrimSpace(p) != "" {
			out = append(out, FieldPattern{Field: f, Pattern: p})
		}
	}
	add(FieldGivenName, s.GivenName)
	add(FieldSurName, s.SurName)
	add(FieldDisplayName, s.DisplayName)
	add(FieldEmail1, s.Email1)
	add(FieldEmail2, s.Email2)
	add(FieldEmail3, s.Email3)
	add(FieldCompany, s.Company)
	add(FieldDepartment, s.Department)
	add(FieldStreetBusiness, s.StreetBusiness)
	add(FieldCityBusiness, s.CityBusiness)
	add(FieldCategories, s.Categories)
	for _, name := range sortedKeys(s.Fields) {
		m := ByName(name)
		if m == nil || m.Kind != KindString {
			return nil, ErrInvalidSearch("unknown or non-text field " + name)
		}
		add(m.Field, s.Fields[name])
	}
	return out, nil
}

// Empty reports whether the search carries no criterion at all.
func (s *SearchObject) Empty() bool {
	ps, _ := s.Patterns()
	return len(ps) == 0 && strings.TrimSpace(s.Pattern) == "" && s.StartLetter == "" &&
		s.BirthdayFrom == nil && s.BirthdayUntil == nil &&
		s.AnniversaryFrom == nil && s.AnniversaryUntil == nil
}

// Op is a comparison operator of a search term.
type Op string

const (
	OpEquals  Op = "="
	OpLess    Op = "<"
	OpGreater Op = ">"
	OpLike    Op = "like"
	OpIsNull  Op = "isnull"
)

// SearchTerm is a boolean expression over contact fields.
type SearchTerm interface {
	isTerm()
}

// AndTerm matches when all operands match.
type AndTerm struct{ Terms []SearchTerm }

// OrTerm matches when any operand matches.
type OrTerm struct{ Terms []SearchTerm }

// NotTerm negates its operand.
type NotTerm struct{ Term SearchTerm }

// CompareTerm compares a field with a constant. Value is ignored for OpIsNull.
type CompareTerm struct {
	Field Field
	Op    Op
	Value any
}

func (AndTerm) isTerm()     {}
func (OrTerm) isTerm()      {}
func (NotTerm) isTerm()     {}
func (CompareTerm) isTerm() {}

func And(terms ...SearchTerm) SearchTerm { return AndTerm{Terms: terms} }
func Or(terms ...SearchTerm) SearchTerm  { return OrTerm{Terms: terms} }
func Not(t SearchTerm) SearchTerm        { return NotTerm{Term: t} }

func Compare(f Field, op Op, v any) SearchTerm {
	return CompareTerm{Field: f, Op: op, Value: v}
}

// LikePattern turns a user pattern with * and ? wildcards into a SQL LIKE
// pattern using backslash as escape character. Unless exact is set the
// pattern is wrapped in % so it matches anywhere.
func LikePattern(p string, exact bool) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '\\', '%', '_':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if exact {
		return s
	}
	if !strings.HasPrefix(s, "%") {
		s = "%" + s
	}
	if !strings.HasSuffix(s, "%") || strings.HasSuffix(s, "\\%") {
		s += "%"
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
