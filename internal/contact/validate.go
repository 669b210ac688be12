package contact

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateOptions tune Validate.
type ValidateOptions struct {
	CheckEmail bool
}

// Validate runs the checks every insert and update performs before touching
// the database: bad characters, field lengths, email syntax and the
// distribution list members. Only set fields are checked.
func Validate(c *Contact, opts ValidateOptions) error {
	for _, m := range mappings {
		s, ok := m.StringValue(c)
		if !ok {
			continue
		}
		if bad := badCharacter(s); bad {
			return ErrBadCharacters(m.Label)
		}
		if m.MaxLen > 0 {
			if n := utf8.RuneCountInString(s); n > m.MaxLen {
				return ErrTruncated(m, n)
			}
		}
	}
	if opts.CheckEmail {
		for _, p := range []*string{c.Email1, c.Email2, c.Email3} {
			if p == nil || *p == "" {
				continue
			}
			if err := checkAddress(*p); err != nil {
				return err
			}
		}
	}
	for _, e := range c.DistributionList {
		if badCharacter(e.DisplayName) || badCharacter(e.Email) {
			return ErrBadCharacters("Distribution list")
		}
		if e.Independent() {
			if e.Email == "" {
				return ErrMandatoryField("Distribution list email")
			}
			if opts.CheckEmail {
				if err := checkAddress(e.Email); err != nil {
					return err
				}
			}
			continue
		}
		if e.EmailField < EmailField1 || e.EmailField > EmailField3 {
			return ErrMandatoryField("Distribution list email field")
		}
	}
	return nil
}

// EnsureDisplayName fills the display name from the name parts, the company
// or the first email when the caller left it empty. It fails when none of
// them is available.
func EnsureDisplayName(c *Contact) error {
	if c.DisplayName != nil && strings.TrimSpace(*c.DisplayName) != "" {
		return nil
	}
	if c.IsDistributionList() {
		return ErrMandatoryField("Display name")
	}
	sur, given := strings.TrimSpace(deref(c.SurName)), strings.TrimSpace(deref(c.GivenName))
	var dn string
	switch {
	case sur != "" && given != "":
		dn = sur + ", " + given
	case sur != "":
		dn = sur
	case given != "":
		dn = given
	case strings.TrimSpace(deref(c.Company)) != "":
		dn = strings.TrimSpace(deref(c.Company))
	case strings.TrimSpace(deref(c.Email1)) != "":
		dn = strings.TrimSpace(deref(c.Email1))
	default:
		return ErrMandatoryField("Display name")
	}
	c.DisplayName = &dn
	return nil
}

func checkAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != strings.TrimSpace(addr) {
		return ErrInvalidEmail(addr)
	}
	return nil
}

func badCharacter(s string) bool {
	if !utf8.ValidString(s) {
		return true
	}
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return true
		}
	}
	return false
}
