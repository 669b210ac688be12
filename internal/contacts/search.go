package contacts

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
	"github.com/sonroyaalmerol/ldap-contacts/pkg/ical"
)

// Search runs a structured search over the given folders, or over every
// readable folder when so.Folders is empty.
func (s *Service) Search(ctx context.Context, sess Session, so *contact.SearchObject, fields []contact.Field, order []storage.Order) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	if so == nil || so.Empty() {
		if so != nil {
			if _, err := so.Patterns(); err != nil {
				return nil, err
			}
		}
		return nil, contact.ErrInvalidSearch("no search criteria given")
	}
	scopes, err := s.scopes(ctx, sess, so.Folders)
	if err != nil {
		return nil, err
	}
	return s.store.ListContacts(ctx, storage.Query{
		ContextID: sess.ContextID,
		Fields:    fieldsOrDefault(fields),
		Scopes:    scopes,
		UserID:    sess.UserID(),
		Search:    so,
		Order:     order,
	})
}

// SearchTerm evaluates a search term over the given folders, or over every
// readable folder when folders is empty.
func (s *Service) SearchTerm(ctx context.Context, sess Session, term contact.SearchTerm, folders []int, fields []contact.Field, order []storage.Order) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	if term == nil {
		return nil, contact.ErrInvalidSearch("empty search term")
	}
	scopes, err := s.scopes(ctx, sess, folders)
	if err != nil {
		return nil, err
	}
	return s.store.ListContacts(ctx, storage.Query{
		ContextID: sess.ContextID,
		Fields:    fieldsOrDefault(fields),
		Scopes:    scopes,
		UserID:    sess.UserID(),
		Term:      term,
		Order:     order,
	})
}

// AutoComplete matches pattern against the email addresses and display
// names of contacts that carry an address. Each contact appears once even
// when several of its fields match.
func (s *Service) AutoComplete(ctx context.Context, sess Session, pattern string, folders []int, limit int) ([]*contact.Contact, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, contact.ErrInvalidSearch("empty auto-complete pattern")
	}
	so := &contact.SearchObject{
		Pattern:           pattern,
		Folders:           folders,
		EmailAutoComplete: true,
	}
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	scopes, err := s.scopes(ctx, sess, folders)
	if err != nil {
		return nil, err
	}
	return s.store.ListContacts(ctx, storage.Query{
		ContextID: sess.ContextID,
		Fields: []contact.Field{
			contact.FieldDisplayName, contact.FieldGivenName, contact.FieldSurName,
			contact.FieldEmail1, contact.FieldEmail2, contact.FieldEmail3,
			contact.FieldMarkAsDistList, contact.FieldDistributionList,
		},
		Scopes: scopes,
		UserID: sess.UserID(),
		Search: so,
		Order:  []storage.Order{{Field: contact.FieldDisplayName}, {Field: contact.FieldObjectID}},
		Limit:  limit,
	})
}

var birthdayFields = []contact.Field{
	contact.FieldUID, contact.FieldDisplayName, contact.FieldGivenName, contact.FieldSurName,
	contact.FieldBirthday, contact.FieldAnniversary,
}

// WithBirthdays returns the contacts of the given folders, or of every
// readable folder, that carry a birthday.
func (s *Service) WithBirthdays(ctx context.Context, sess Session, folders []int) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	scopes, err := s.scopes(ctx, sess, folders)
	if err != nil {
		return nil, err
	}
	return s.store.ListContacts(ctx, storage.Query{
		ContextID: sess.ContextID,
		Fields:    birthdayFields,
		Scopes:    scopes,
		UserID:    sess.UserID(),
		Term:      contact.Not(contact.Compare(contact.FieldBirthday, contact.OpIsNull, nil)),
	})
}

// Birthday is one upcoming birthday.
type Birthday struct {
	Contact *contact.Contact
	Date    time.Time
	// Age is the age reached on Date.
	Age int
}

// UpcomingBirthdays lists the birthdays falling into [from, until), sorted
// by date and display name.
func (s *Service) UpcomingBirthdays(ctx context.Context, sess Session, folders []int, from, until time.Time) ([]Birthday, error) {
	if !until.After(from) {
		return nil, contact.ErrInvalidSearch("birthday range is empty")
	}
	cs, err := s.WithBirthdays(ctx, sess, folders)
	if err != nil {
		return nil, err
	}
	var out []Birthday
	for _, c := range cs {
		for _, d := range ical.Occurrences(*c.Birthday, from, until) {
			out = append(out, Birthday{Contact: c, Date: d, Age: ical.Age(*c.Birthday, d)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return displayName(out[i].Contact) < displayName(out[j].Contact)
	})
	return out, nil
}

func displayName(c *contact.Contact) string {
	if c.DisplayName == nil {
		return ""
	}
	return strings.ToLower(*c.DisplayName)
}
