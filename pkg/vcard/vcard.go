// Package vcard converts contacts to and from vCard 3.0 and 4.0.
package vcard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	govcard "github.com/emersion/go-vcard"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
)

const (
	Version3 = "3.0"
	Version4 = "4.0"
)

// Apple's group extension used by 3.0 clients.
const (
	fieldKindV3        = "X-ADDRESSBOOKSERVER-KIND"
	fieldMemberV3      = "X-ADDRESSBOOKSERVER-MEMBER"
	fieldAnniversaryV3 = "X-ANNIVERSARY"
)

var dateLayouts = []string{"2006-01-02", "20060102", "2006-01-02T15:04:05Z07:00", "20060102T150405Z"}

type telSlot struct {
	types []string
	field contact.Field
}

// telSlots are tried in order; the first free slot whose types all appear on
// the TEL property receives the number.
var telSlots = []telSlot{
	{[]string{govcard.TypeWork, govcard.TypeVoice}, contact.FieldTelephoneBusiness1},
	{[]string{govcard.TypeWork, govcard.TypeVoice}, contact.FieldTelephoneBusiness2},
	{[]string{govcard.TypeWork, govcard.TypeFax}, contact.FieldFaxBusiness},
	{[]string{govcard.TypeHome, govcard.TypeVoice}, contact.FieldTelephoneHome1},
	{[]string{govcard.TypeHome, govcard.TypeVoice}, contact.FieldTelephoneHome2},
	{[]string{govcard.TypeHome, govcard.TypeFax}, contact.FieldFaxHome},
	{[]string{govcard.TypeCell}, contact.FieldCellularTelephone1},
	{[]string{govcard.TypeCell}, contact.FieldCellularTelephone2},
	{[]string{govcard.TypePager}, contact.FieldTelephonePager},
	{[]string{"car"}, contact.FieldTelephoneCar},
	{[]string{"isdn"}, contact.FieldTelephoneISDN},
	{[]string{govcard.TypeTextPhone}, contact.FieldTelephoneTTYTDD},
	{[]string{govcard.TypeVoice}, contact.FieldTelephoneOther},
	{[]string{govcard.TypeFax}, contact.FieldFaxOther},
}

var emailSlots = []struct {
	typ   string
	field contact.Field
}{
	{govcard.TypeWork, contact.FieldEmail1},
	{govcard.TypeHome, contact.FieldEmail2},
	{"other", contact.FieldEmail3},
}

type addressSlot struct {
	typ    string
	street contact.Field
	postalCode, city, state, country contact.Field
}

var addressSlots = []addressSlot{
	{govcard.TypeWork, contact.FieldStreetBusiness, contact.FieldPostalCodeBusiness, contact.FieldCityBusiness, contact.FieldStateBusiness, contact.FieldCountryBusiness},
	{govcard.TypeHome, contact.FieldStreetHome, contact.FieldPostalCodeHome, contact.FieldCityHome, contact.FieldStateHome, contact.FieldCountryHome},
	{"other", contact.FieldStreetOther, contact.FieldPostalCodeOther, contact.FieldCityOther, contact.FieldStateOther, contact.FieldCountryOther},
}

// simple one-to-one properties
var textProps = []struct {
	prop  string
	field contact.Field
}{
	{govcard.FieldNickname, contact.FieldNickname},
	{govcard.FieldTitle, contact.FieldPosition},
	{govcard.FieldRole, contact.FieldProfession},
	{govcard.FieldNote, contact.FieldNote},
	{govcard.FieldURL, contact.FieldURL},
	{govcard.FieldCategories, contact.FieldCategories},
}

func get(c *contact.Contact, f contact.Field) string {
	s, _ := contact.Lookup(f).StringValue(c)
	return s
}

func set(c *contact.Contact, f contact.Field, v string) {
	contact.Lookup(f).SetValue(c, v)
}

// FromContact builds the card for c in the given version.
func FromContact(c *contact.Contact, version string) (govcard.Card, error) {
	if version != Version3 && version != Version4 {
		return nil, errors.New("unsupported target vcard version")
	}
	card := govcard.Card{}
	card.SetValue(govcard.FieldVersion, version)

	fn := get(c, contact.FieldDisplayName)
	if fn == "" {
		return nil, errors.New("contact has no display name")
	}
	card.SetValue(govcard.FieldFormattedName, fn)
	card.SetName(&govcard.Name{
		FamilyName:      get(c, contact.FieldSurName),
		GivenName:       get(c, contact.FieldGivenName),
		AdditionalName:  get(c, contact.FieldMiddleName),
		HonorificPrefix: get(c, contact.FieldTitle),
		HonorificSuffix: get(c, contact.FieldSuffix),
	})
	if uid := get(c, contact.FieldUID); uid != "" {
		card.SetValue(govcard.FieldUID, uid)
	}

	for _, p := range textProps {
		if v := get(c, p.field); v != "" {
			card.SetValue(p.prop, v)
		}
	}
	company, department := get(c, contact.FieldCompany), get(c, contact.FieldDepartment)
	if company != "" || department != "" {
		card.SetValue(govcard.FieldOrganization, strings.TrimSuffix(company+";"+department, ";"))
	}

	for _, s := range emailSlots {
		if v := get(c, s.field); v != "" {
			card.Add(govcard.FieldEmail, typed(v, s.typ))
		}
	}
	for _, s := range telSlots {
		if v := get(c, s.field); v != "" {
			card.Add(govcard.FieldTelephone, typed(v, s.types...))
		}
	}
	for _, s := range addressSlots {
		a := &govcard.Address{
			Field:         typed("", s.typ),
			StreetAddress: get(c, s.street),
			PostalCode:    get(c, s.postalCode),
			Locality:      get(c, s.city),
			Region:        get(c, s.state),
			Country:       get(c, s.country),
		}
		if a.StreetAddress+a.PostalCode+a.Locality+a.Region+a.Country != "" {
			card.AddAddress(a)
		}
	}
	for _, f := range []contact.Field{contact.FieldInstantMessenger1, contact.FieldInstantMessenger2} {
		if v := get(c, f); v != "" {
			card.AddValue(govcard.FieldIMPP, v)
		}
	}

	if c.Birthday != nil {
		card.SetValue(govcard.FieldBirthday, c.Birthday.UTC().Format("2006-01-02"))
	}
	if c.Anniversary != nil {
		prop := govcard.FieldAnniversary
		if version == Version3 {
			prop = fieldAnniversaryV3
		}
		card.SetValue(prop, c.Anniversary.UTC().Format("2006-01-02"))
	}
	if c.LastModified != nil {
		card.SetRevision(*c.LastModified)
	}
	if c.IsPrivate() {
		card.SetValue("CLASS", "PRIVATE")
	}

	if len(c.Image) > 0 {
		contentType := "image/jpeg"
		if c.ImageContentType != nil {
			contentType = *c.ImageContentType
		}
		data := base64.StdEncoding.EncodeToString(c.Image)
		if version == Version4 {
			card.SetValue(govcard.FieldPhoto, "data:"+contentType+";base64,"+data)
		} else {
			card.Set(govcard.FieldPhoto, &govcard.Field{
				Value: data,
				Params: govcard.Params{
					"ENCODING":        {"b"},
					govcard.ParamType: {strings.ToUpper(strings.TrimPrefix(contentType, "image/"))},
				},
			})
		}
	}

	if c.IsDistributionList() {
		kindProp, memberProp := govcard.FieldKind, govcard.FieldMember
		if version == Version3 {
			kindProp, memberProp = fieldKindV3, fieldMemberV3
		}
		card.SetValue(kindProp, string(govcard.KindGroup))
		for _, e := range c.DistributionList {
			if e.Email == "" {
				continue
			}
			f := &govcard.Field{Value: "mailto:" + e.Email}
			if e.DisplayName != "" {
				f.Params = govcard.Params{"CN": {e.DisplayName}}
			}
			card.Add(memberProp, f)
		}
	}
	return card, nil
}

func typed(v string, types ...string) *govcard.Field {
	return &govcard.Field{Value: v, Params: govcard.Params{govcard.ParamType: types}}
}

// Marshal encodes contacts as one vCard stream.
func Marshal(version string, cs ...*contact.Contact) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, version, cs...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Encode(w io.Writer, version string, cs ...*contact.Contact) error {
	enc := govcard.NewEncoder(w)
	for _, c := range cs {
		card, err := FromContact(c, version)
		if err != nil {
			return err
		}
		if err := enc.Encode(card); err != nil {
			return err
		}
	}
	return nil
}

// ToContact maps a card onto a new contact. Properties without a contact
// field, and values beyond the available slots, are dropped.
func ToContact(card govcard.Card) (*contact.Contact, error) {
	c := contact.New()

	if n := card.Name(); n != nil {
		for f, v := range map[contact.Field]string{
			contact.FieldSurName:    n.FamilyName,
			contact.FieldGivenName:  n.GivenName,
			contact.FieldMiddleName: n.AdditionalName,
			contact.FieldTitle:      n.HonorificPrefix,
			contact.FieldSuffix:     n.HonorificSuffix,
		} {
			if v = strings.TrimSpace(v); v != "" {
				set(c, f, v)
			}
		}
	}
	if fn := strings.TrimSpace(card.Value(govcard.FieldFormattedName)); fn != "" {
		c.DisplayName = contact.Ptr(fn)
	}
	if uid := card.Value(govcard.FieldUID); uid != "" {
		c.UID = contact.Ptr(uid)
	}
	for _, p := range textProps {
		if v := strings.TrimSpace(card.Value(p.prop)); v != "" {
			set(c, p.field, v)
		}
	}
	if org := card.Value(govcard.FieldOrganization); org != "" {
		parts := strings.SplitN(org, ";", 3)
		if v := strings.TrimSpace(parts[0]); v != "" {
			c.Company = contact.Ptr(v)
		}
		if len(parts) > 1 {
			if v := strings.TrimSpace(parts[1]); v != "" {
				c.Department = contact.Ptr(v)
			}
		}
	}

	decodeEmails(c, card[govcard.FieldEmail])
	decodeTels(c, card[govcard.FieldTelephone])
	decodeAddresses(c, card.Addresses())
	for i, v := range card.Values(govcard.FieldIMPP) {
		switch i {
		case 0:
			c.InstantMessenger1 = contact.Ptr(v)
		case 1:
			c.InstantMessenger2 = contact.Ptr(v)
		}
	}

	if d, ok := parseDate(card.Value(govcard.FieldBirthday)); ok {
		c.Birthday = &d
	}
	anniversary := card.Value(govcard.FieldAnniversary)
	if anniversary == "" {
		anniversary = card.Value(fieldAnniversaryV3)
	}
	if d, ok := parseDate(anniversary); ok {
		c.Anniversary = &d
	}
	if strings.EqualFold(card.Value("CLASS"), "PRIVATE") {
		c.PrivateFlag = contact.Ptr(true)
	}

	if f := card.Get(govcard.FieldPhoto); f != nil {
		data, contentType, err := decodePhoto(f)
		if err != nil {
			return nil, err
		}
		if data != nil {
			c.Image = data
			c.ImageContentType = contact.Ptr(contentType)
		}
	}

	kind := card.Value(govcard.FieldKind)
	if kind == "" {
		kind = card.Value(fieldKindV3)
	}
	if strings.EqualFold(kind, string(govcard.KindGroup)) {
		c.MarkAsDistributionList = contact.Ptr(true)
		c.DistributionList = []contact.DistributionListEntry{}
		for _, f := range append(card[govcard.FieldMember], card[fieldMemberV3]...) {
			addr, ok := strings.CutPrefix(f.Value, "mailto:")
			if !ok || addr == "" {
				continue
			}
			c.DistributionList = append(c.DistributionList, contact.DistributionListEntry{
				DisplayName: f.Params.Get("CN"),
				Email:       addr,
			})
		}
	}

	if err := contact.EnsureDisplayName(c); err != nil {
		return nil, err
	}
	return c, nil
}

func types(f *govcard.Field) []string {
	var out []string
	for _, t := range f.Params.Types() {
		for _, p := range strings.Split(t, ",") {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func decodeEmails(c *contact.Contact, fields []*govcard.Field) {
	var untyped []string
	for _, f := range fields {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		placed := false
		ts := types(f)
		for _, s := range emailSlots {
			if slices.Contains(ts, s.typ) && get(c, s.field) == "" {
				set(c, s.field, v)
				placed = true
				break
			}
		}
		if !placed {
			untyped = append(untyped, v)
		}
	}
	for _, v := range untyped {
		for _, s := range emailSlots {
			if get(c, s.field) == "" {
				set(c, s.field, v)
				break
			}
		}
	}
}

func decodeTels(c *contact.Contact, fields []*govcard.Field) {
	for _, f := range fields {
		v := strings.TrimSpace(strings.TrimPrefix(f.Value, "tel:"))
		if v == "" {
			continue
		}
		ts := types(f)
		if !slices.ContainsFunc(ts, func(t string) bool {
			switch t {
			case govcard.TypeFax, govcard.TypeCell, govcard.TypePager, govcard.TypeTextPhone, "car", "isdn":
				return true
			}
			return false
		}) {
			ts = append(ts, govcard.TypeVoice)
		}
		for _, s := range telSlots {
			if get(c, s.field) != "" {
				continue
			}
			if !containsAll(ts, s.types) {
				continue
			}
			set(c, s.field, v)
			break
		}
	}
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func decodeAddresses(c *contact.Contact, addrs []*govcard.Address) {
	for _, a := range addrs {
		ts := []string{}
		if a.Field != nil {
			ts = types(a.Field)
		}
		slot := addressSlots[2]
		for _, s := range addressSlots[:2] {
			if slices.Contains(ts, s.typ) {
				slot = s
				break
			}
		}
		if get(c, slot.street)+get(c, slot.city)+get(c, slot.postalCode) != "" {
			continue
		}
		street := strings.TrimSpace(strings.Join(nonEmpty(a.ExtendedAddress, a.StreetAddress), "\n"))
		for f, v := range map[contact.Field]string{
			slot.street:     street,
			slot.postalCode: strings.TrimSpace(a.PostalCode),
			slot.city:       strings.TrimSpace(a.Locality),
			slot.state:      strings.TrimSpace(a.Region),
			slot.country:    strings.TrimSpace(a.Country),
		} {
			if v != "" {
				set(c, f, v)
			}
		}
	}
}

func nonEmpty(vs ...string) []string {
	var out []string
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// decodePhoto accepts inline 3.0 (ENCODING=b) and 4.0 (data URI) photos.
// Photos given by URL yield no data.
func decodePhoto(f *govcard.Field) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(f.Value, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", contact.ErrImageBroken(errors.New("unsupported photo data URI"))
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", contact.ErrImageBroken(err)
		}
		return data, strings.TrimSuffix(meta, ";base64"), nil
	}
	enc := strings.ToLower(f.Params.Get("ENCODING"))
	if enc != "b" && enc != "base64" {
		return nil, "", nil
	}
	data, err := base64.StdEncoding.DecodeString(f.Value)
	if err != nil {
		return nil, "", contact.ErrImageBroken(err)
	}
	contentType := "image/jpeg"
	if ts := f.Params.Types(); len(ts) > 0 {
		contentType = "image/" + strings.ToLower(ts[0])
	}
	return data, contentType, nil
}

// ValidateVCard checks that raw holds at least one well-formed card with a
// version and a name.
func ValidateVCard(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("empty vCard data")
	}

	content := string(raw)
	if !strings.Contains(content, "BEGIN:VCARD") {
		return errors.New("vCard data missing BEGIN:VCARD")
	}
	if !strings.Contains(content, "END:VCARD") {
		return errors.New("vCard data missing END:VCARD")
	}

	cards, err := parseAll(raw)
	if err != nil {
		return fmt.Errorf("vCard parsing failed: %w", err)
	}
	if len(cards) == 0 {
		return errors.New("no valid vCard found after parsing")
	}

	for i, c := range cards {
		if c.Value(govcard.FieldVersion) == "" {
			return fmt.Errorf("vCard %d missing VERSION", i)
		}
		if c.Value(govcard.FieldFormattedName) == "" && c.Name() == nil {
			return fmt.Errorf("vCard %d missing FN and N", i)
		}
	}
	return nil
}

// Unmarshal validates raw and converts every card in it.
func Unmarshal(raw []byte) ([]*contact.Contact, error) {
	if err := ValidateVCard(raw); err != nil {
		return nil, err
	}
	cards, err := parseAll(raw)
	if err != nil {
		return nil, err
	}
	out := make([]*contact.Contact, 0, len(cards))
	for i, card := range cards {
		c, err := ToContact(card)
		if err != nil {
			return nil, fmt.Errorf("vCard %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseAll(b []byte) ([]govcard.Card, error) {
	// RFC 6350 wants CRLF
	content := strings.ReplaceAll(string(b), "\n", "\r\n")
	content = strings.ReplaceAll(content, "\r\r\n", "\r\n")

	dec := govcard.NewDecoder(strings.NewReader(content))
	var out []govcard.Card
	for {
		c, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode vCard: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}
