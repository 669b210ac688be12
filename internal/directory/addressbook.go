package directory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/cache"
	"github.com/sonroyaalmerol/ldap-contacts/internal/config"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
)

// gabAttrs maps directory attributes onto contact fields. Mail is handled
// separately because it fills up to three email fields.
var gabAttrs = []struct {
	attr  string
	field contact.Field
}{
	{"displayName", contact.FieldDisplayName},
	{"givenName", contact.FieldGivenName},
	{"sn", contact.FieldSurName},
	{"o", contact.FieldCompany},
	{"ou", contact.FieldDepartment},
	{"title", contact.FieldPosition},
	{"employeeType", contact.FieldEmployeeType},
	{"roomNumber", contact.FieldRoomNumber},
	{"street", contact.FieldStreetBusiness},
	{"postalCode", contact.FieldPostalCodeBusiness},
	{"l", contact.FieldCityBusiness},
	{"st", contact.FieldStateBusiness},
	{"telephoneNumber", contact.FieldTelephoneBusiness1},
	{"facsimileTelephoneNumber", contact.FieldFaxBusiness},
	{"homePhone", contact.FieldTelephoneHome1},
	{"mobile", contact.FieldCellularTelephone1},
	{"pager", contact.FieldTelephonePager},
	{"labeledURI", contact.FieldURL},
}

func attrFor(f contact.Field) string {
	switch f {
	case contact.FieldEmail1, contact.FieldEmail2, contact.FieldEmail3:
		return "mail"
	}
	for _, a := range gabAttrs {
		if a.field == f {
			return a.attr
		}
	}
	return ""
}

// AddressBook exposes directory users as read-only contacts of a virtual
// folder, the global address book.
type AddressBook struct {
	cfg     config.LDAPAddressbookFilter
	base    config.LDAPConfig
	logger  zerolog.Logger
	conn    *ldap.Conn
	results *cache.Cache[string, []*contact.Contact]
}

func NewAddressBook(base config.LDAPConfig, logger zerolog.Logger) (*AddressBook, error) {
	conn, err := dialLDAPAuto(base)
	if err != nil {
		return nil, err
	}
	if base.BindDN != "" {
		if err := conn.Bind(base.BindDN, base.BindPassword); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return &AddressBook{
		cfg:     base.AddressBook,
		base:    base,
		logger:  logger.With().Str("component", "gab").Logger(),
		conn:    conn,
		results: cache.New[string, []*contact.Contact](base.CacheTTL),
	}, nil
}

func (a *AddressBook) Close() {
	if a.conn != nil {
		a.conn.Close()
	}
}

// FolderID is the virtual folder the address book entries live in.
func (a *AddressBook) FolderID() int { return a.cfg.FolderID }

func (a *AddressBook) Name() string { return a.cfg.Name }

// Search runs a structured search against the directory. Criteria the
// directory cannot answer (date ranges, unmapped fields) yield no results
// rather than an error.
func (a *AddressBook) Search(ctx context.Context, s *contact.SearchObject) ([]*contact.Contact, error) {
	if !a.cfg.Enabled {
		return nil, nil
	}
	if len(s.Folders) > 0 && !slices.Contains(s.Folders, a.cfg.FolderID) {
		return nil, nil
	}
	filter, ok := SearchFilter(a.cfg.Filter, s)
	if !ok {
		return nil, nil
	}
	return a.search(ctx, filter)
}

// Get returns the entry for the numeric user id.
func (a *AddressBook) Get(ctx context.Context, id int) (*contact.Contact, error) {
	if !a.cfg.Enabled {
		return nil, contact.ErrNotFound(0, id)
	}
	filter := fmt.Sprintf("(&%s(%s=%d))", a.cfg.Filter, safeAttr(a.base.UserIDAttr), id)
	out, err := a.search(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, contact.ErrNotFound(0, id)
	}
	return out[0], nil
}

func (a *AddressBook) search(ctx context.Context, filter string) ([]*contact.Contact, error) {
	if v, ok := a.results.Get(filter); ok {
		return v, nil
	}
	req := ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, int(a.base.Timeout.Seconds()), false,
		filter,
		a.attrs(),
		nil,
	)
	res, err := a.conn.Search(req)
	if err != nil {
		a.logger.Error().Err(err).Str("filter", filter).Msg("address book search failed")
		return nil, contact.ErrUnexpected(err)
	}
	out := make([]*contact.Contact, 0, len(res.Entries))
	for _, e := range res.Entries {
		c, ok := a.mapEntry(e)
		if !ok {
			a.logger.Debug().Str("dn", e.DN).Msg("skipping entry without numeric id")
			continue
		}
		out = append(out, c)
	}
	a.results.Put(filter, out)
	return out, nil
}

func (a *AddressBook) attrs() []string {
	attrs := []string{"dn", "mail", "jpegPhoto", a.base.UserIDAttr}
	for _, g := range gabAttrs {
		attrs = append(attrs, g.attr)
	}
	return attrs
}

func (a *AddressBook) mapEntry(e *ldap.Entry) (*contact.Contact, bool) {
	id, err := strconv.Atoi(e.GetAttributeValue(a.base.UserIDAttr))
	if err != nil || id <= 0 {
		return nil, false
	}
	c := contact.New()
	c.ObjectID = contact.Ptr(id)
	c.FolderID = contact.Ptr(a.cfg.FolderID)
	c.InternalUserID = contact.Ptr(id)
	c.UID = contact.Ptr(e.DN)
	for _, g := range gabAttrs {
		if v := strings.TrimSpace(e.GetAttributeValue(g.attr)); v != "" {
			contact.Lookup(g.field).SetValue(c, v)
		}
	}
	emails := []*string{}
	for _, m := range e.GetAttributeValues("mail") {
		if strings.TrimSpace(m) != "" {
			emails = append(emails, contact.Ptr(strings.TrimSpace(m)))
		}
	}
	for i, dst := range []**string{&c.Email1, &c.Email2, &c.Email3} {
		if i < len(emails) {
			*dst = emails[i]
		}
	}
	if photo := e.GetRawAttributeValue("jpegPhoto"); len(photo) > 0 {
		c.Image = photo
		c.ImageContentType = contact.Ptr("image/jpeg")
	}
	if c.DisplayName == nil {
		_ = contact.EnsureDisplayName(c)
	}
	return c, true
}

// SearchFilter translates a search object into an LDAP filter ANDed with
// base. The second result is false when the search uses criteria the
// directory has no attribute for.
func SearchFilter(base string, s *contact.SearchObject) (string, bool) {
	if s.BirthdayFrom != nil || s.BirthdayUntil != nil || s.AnniversaryFrom != nil || s.AnniversaryUntil != nil {
		return "", false
	}
	var parts []string
	if p := strings.TrimSpace(s.Pattern); p != "" {
		v := ldapPattern(p, s.ExactMatch)
		attrs := []string{"displayName", "givenName", "sn"}
		if s.EmailAutoComplete {
			attrs = append(attrs, "mail")
		}
		var alt strings.Builder
		alt.WriteString("(|")
		for _, at := range attrs {
			fmt.Fprintf(&alt, "(%s=%s)", at, v)
		}
		alt.WriteString(")")
		parts = append(parts, alt.String())
	}
	if s.StartLetter != "" {
		if s.StartLetter == "#" {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("(sn=%s*)", ldap.EscapeFilter(s.StartLetter)))
	}
	patterns, err := s.Patterns()
	if err != nil {
		return "", false
	}
	for _, fp := range patterns {
		attr := attrFor(fp.Field)
		if attr == "" {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("(%s=%s)", attr, ldapPattern(fp.Pattern, s.ExactMatch)))
	}
	if len(parts) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString("(&")
	b.WriteString(base)
	if s.EmailOnly || s.EmailAutoComplete {
		b.WriteString("(mail=*)")
	}
	if len(parts) == 1 {
		b.WriteString(parts[0])
	} else {
		op := "&"
		if s.OrSearch {
			op = "|"
		}
		b.WriteString("(" + op + strings.Join(parts, "") + ")")
	}
	b.WriteString(")")
	return b.String(), true
}

// ldapPattern converts * and ? wildcards and escapes everything else.
func ldapPattern(p string, exact bool) string {
	p = strings.ReplaceAll(p, "?", "*")
	pieces := strings.Split(p, "*")
	for i := range pieces {
		pieces[i] = ldap.EscapeFilter(pieces[i])
	}
	v := strings.Join(pieces, "*")
	if exact {
		return v
	}
	if !strings.HasPrefix(v, "*") {
		v = "*" + v
	}
	if !strings.HasSuffix(v, "*") {
		v += "*"
	}
	return v
}
