package contact

import (
	"errors"
	"strings"
	"testing"
)

func codeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    *Contact
		opts ValidateOptions
		want Code
	}{
		{"valid", &Contact{DisplayName: Ptr("Doe, John"), Email1: Ptr("john@x.com")}, ValidateOptions{CheckEmail: true}, 0},
		{"bad email", &Contact{Email2: Ptr("not an address")}, ValidateOptions{CheckEmail: true}, CodeInvalidEmail},
		{"bad email unchecked", &Contact{Email2: Ptr("not an address")}, ValidateOptions{}, 0},
		{"display name address form", &Contact{Email1: Ptr("John <john@x.com>")}, ValidateOptions{CheckEmail: true}, CodeInvalidEmail},
		{"control character", &Contact{Note: Ptr("a\x00b")}, ValidateOptions{}, CodeBadCharacters},
		{"newline allowed", &Contact{Note: Ptr("line1\nline2\ttab")}, ValidateOptions{}, 0},
		{"invalid utf8", &Contact{SurName: Ptr(string([]byte{0xff, 0xfe}))}, ValidateOptions{}, CodeBadCharacters},
		{"too long", &Contact{GivenName: Ptr(strings.Repeat("a", 129))}, ValidateOptions{}, CodeTruncated},
		{"multibyte within limit", &Contact{GivenName: Ptr(strings.Repeat("é", 128))}, ValidateOptions{}, 0},
		{"independent member without email", &Contact{DistributionList: []DistributionListEntry{{DisplayName: "X"}}}, ValidateOptions{}, CodeMandatoryField},
		{"member with bad field", &Contact{DistributionList: []DistributionListEntry{{ContactID: 3, EmailField: 4}}}, ValidateOptions{}, CodeMandatoryField},
		{"member bad email", &Contact{DistributionList: []DistributionListEntry{{Email: "nope"}}}, ValidateOptions{CheckEmail: true}, CodeInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.c, tt.opts)
			if got := codeOf(err); got != tt.want {
				t.Errorf("Validate() error = %v, want code %d", err, tt.want)
			}
		})
	}
}

func TestTruncationNamesField(t *testing.T) {
	err := Validate(&Contact{Company: Ptr(strings.Repeat("c", 600))}, ValidateOptions{})
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ce.Field != FieldCompany || ce.Max != 512 {
		t.Errorf("Field = %v, Max = %d", ce.Field, ce.Max)
	}
	if !strings.Contains(ce.Message, "Company") || !strings.Contains(ce.Message, "600") {
		t.Errorf("Message = %q", ce.Message)
	}
}

func TestEnsureDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		c       *Contact
		want    string
		wantErr bool
	}{
		{"kept", &Contact{DisplayName: Ptr("Given"), SurName: Ptr("S")}, "Given", false},
		{"sur and given", &Contact{SurName: Ptr("Doe"), GivenName: Ptr("John")}, "Doe, John", false},
		{"sur only", &Contact{SurName: Ptr("Doe")}, "Doe", false},
		{"given only", &Contact{GivenName: Ptr("John")}, "John", false},
		{"company", &Contact{Company: Ptr("ACME")}, "ACME", false},
		{"email", &Contact{Email1: Ptr("a@x.com")}, "a@x.com", false},
		{"blank display name", &Contact{DisplayName: Ptr("  "), Company: Ptr("ACME")}, "ACME", false},
		{"nothing", &Contact{}, "", true},
		{"list needs explicit name", &Contact{MarkAsDistributionList: Ptr(true), SurName: Ptr("Doe")}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureDisplayName(tt.c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EnsureDisplayName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if codeOf(err) != CodeMandatoryField {
					t.Errorf("code = %d", codeOf(err))
				}
				return
			}
			if *tt.c.DisplayName != tt.want {
				t.Errorf("DisplayName = %q, want %q", *tt.c.DisplayName, tt.want)
			}
		})
	}
}
