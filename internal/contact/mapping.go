package contact

import (
	"bytes"
	"database/sql"
	"sort"
	"time"
)

// Mapping binds one Field to its column and to the Contact struct member
// that holds it.
type Mapping struct {
	Field  Field
	Name   string // column name and API attribute name
	Label  string // human readable, used in error messages
	Kind   Kind
	MaxLen int // zero for non-string kinds

	// AlwaysDifferent fields never compare equal so an update carrying
	// them is never silently dropped.
	AlwaysDifferent bool
	// Updatable is false for fields that only the server maintains.
	Updatable bool

	isSet func(*Contact) bool
	get   func(*Contact) any
	set   func(*Contact, any)
	equal func(a, b *Contact) bool
	copy  func(dst, src *Contact)
	clear func(*Contact)
}

// IsSet reports whether c carries a value for the field.
func (m *Mapping) IsSet(c *Contact) bool { return m.isSet(c) }

// Equal compares the field between two contacts.
func (m *Mapping) Equal(a, b *Contact) bool {
	if m.AlwaysDifferent {
		return false
	}
	return m.equal(a, b)
}

// Clear unsets the field on c.
func (m *Mapping) Clear(c *Contact) { m.clear(c) }

// HasColumn reports whether the field is stored in the contacts table.
func (m *Mapping) HasColumn() bool { return m.Kind != KindDerived }

// Value returns the field as a positional parameter value. Booleans are
// stored as 0/1 and times as unix milliseconds.
func (m *Mapping) Value(c *Contact) any {
	if m.get == nil {
		return nil
	}
	v := m.get(c)
	if v == nil {
		return nil
	}
	switch m.Kind {
	case KindInt:
		return int64(v.(int))
	case KindBool:
		if v.(bool) {
			return int64(1)
		}
		return int64(0)
	case KindTime:
		return v.(time.Time).UnixMilli()
	}
	return v
}

// StringValue returns the value of a string field.
func (m *Mapping) StringValue(c *Contact) (string, bool) {
	if m.Kind != KindString || !m.isSet(c) {
		return "", false
	}
	return m.get(c).(string), true
}

// ScanDest returns a fresh destination for sql.Rows.Scan.
func (m *Mapping) ScanDest() any {
	switch m.Kind {
	case KindString:
		return new(sql.NullString)
	case KindInt, KindBool, KindTime:
		return new(sql.NullInt64)
	}
	return nil
}

// Assign stores a value scanned into a ScanDest destination on c.
func (m *Mapping) Assign(c *Contact, dest any) {
	switch d := dest.(type) {
	case *sql.NullString:
		if !d.Valid {
			m.set(c, nil)
			return
		}
		m.set(c, d.String)
	case *sql.NullInt64:
		if !d.Valid {
			m.set(c, nil)
			return
		}
		switch m.Kind {
		case KindInt:
			m.set(c, int(d.Int64))
		case KindBool:
			m.set(c, d.Int64 != 0)
		case KindTime:
			m.set(c, time.UnixMilli(d.Int64).UTC())
		}
	}
}

// SetValue assigns a Go value (string, int, bool, time.Time) to the field.
// It is used by search-term literals and the vCard importer.
func (m *Mapping) SetValue(c *Contact, v any) {
	if m.set != nil {
		m.set(c, v)
	}
}

// Get returns the raw Go value of a column field, nil when unset.
func (m *Mapping) Get(c *Contact) any {
	if m.get == nil {
		return nil
	}
	return m.get(c)
}

func column[T comparable](f Field, name, label string, kind Kind, maxLen int, acc func(*Contact) **T) *Mapping {
	return &Mapping{
		Field:     f,
		Name:      name,
		Label:     label,
		Kind:      kind,
		MaxLen:    maxLen,
		Updatable: true,
		isSet:     func(c *Contact) bool { return *acc(c) != nil },
		get: func(c *Contact) any {
			if p := *acc(c); p != nil {
				return *p
			}
			return nil
		},
		set: func(c *Contact, v any) {
			if v == nil {
				*acc(c) = nil
				return
			}
			t := v.(T)
			*acc(c) = &t
		},
		equal: func(a, b *Contact) bool {
			pa, pb := *acc(a), *acc(b)
			if pa == nil || pb == nil {
				return pa == nil && pb == nil
			}
			return *pa == *pb
		},
		copy: func(dst, src *Contact) {
			if p := *acc(src); p != nil {
				v := *p
				*acc(dst) = &v
			}
		},
		clear: func(c *Contact) { *acc(c) = nil },
	}
}

func str(f Field, name, label string, maxLen int, acc func(*Contact) **string) *Mapping {
	return column(f, name, label, KindString, maxLen, acc)
}

func integer(f Field, name, label string, acc func(*Contact) **int) *Mapping {
	return column(f, name, label, KindInt, 0, acc)
}

func boolean(f Field, name, label string, acc func(*Contact) **bool) *Mapping {
	return column(f, name, label, KindBool, 0, acc)
}

func timestamp(f Field, name, label string, acc func(*Contact) **time.Time) *Mapping {
	m := column(f, name, label, KindTime, 0, acc)
	// stored with millisecond precision
	m.equal = func(a, b *Contact) bool {
		pa, pb := *acc(a), *acc(b)
		if pa == nil || pb == nil {
			return pa == nil && pb == nil
		}
		return pa.UnixMilli() == pb.UnixMilli()
	}
	return m
}

func system(m *Mapping) *Mapping {
	m.Updatable = false
	return m
}

func alwaysDifferent(m *Mapping) *Mapping {
	m.AlwaysDifferent = true
	return m
}

var mappings = []*Mapping{
	system(alwaysDifferent(integer(FieldObjectID, "id", "Object ID", func(c *Contact) **int { return &c.ObjectID }))),
	system(integer(FieldContextID, "cid", "Context ID", func(c *Contact) **int { return &c.ContextID })),
	alwaysDifferent(integer(FieldFolderID, "folder_id", "Folder ID", func(c *Contact) **int { return &c.FolderID })),
	system(alwaysDifferent(integer(FieldCreatedBy, "created_by", "Created by", func(c *Contact) **int { return &c.CreatedBy }))),
	system(integer(FieldModifiedBy, "modified_by", "Modified by", func(c *Contact) **int { return &c.ModifiedBy })),
	system(timestamp(FieldCreationDate, "creation_date", "Creation date", func(c *Contact) **time.Time { return &c.CreationDate })),
	system(timestamp(FieldLastModified, "last_modified", "Last modified", func(c *Contact) **time.Time { return &c.LastModified })),
	str(FieldUID, "uid", "UID", 767, func(c *Contact) **string { return &c.UID }),
	boolean(FieldPrivateFlag, "private_flag", "Private", func(c *Contact) **bool { return &c.PrivateFlag }),
	integer(FieldColorLabel, "color_label", "Color label", func(c *Contact) **int { return &c.ColorLabel }),
	str(FieldCategories, "categories", "Categories", 1024, func(c *Contact) **string { return &c.Categories }),
	system(integer(FieldAttachments, "number_of_attachments", "Number of attachments", func(c *Contact) **int { return &c.NumberOfAttachments })),
	system(integer(FieldNumberOfDistList, "number_of_distribution_list", "Number of distribution list members", func(c *Contact) **int { return &c.NumberOfDistributionList })),
	system(integer(FieldNumberOfLinks, "number_of_links", "Number of links", func(c *Contact) **int { return &c.NumberOfLinks })),
	system(integer(FieldNumberOfImages, "number_of_images", "Number of images", func(c *Contact) **int { return &c.NumberOfImages })),
	integer(FieldInternalUserID, "internal_user_id", "Internal user ID", func(c *Contact) **int { return &c.InternalUserID }),
	boolean(FieldMarkAsDistList, "mark_as_distribution_list", "Distribution list", func(c *Contact) **bool { return &c.MarkAsDistributionList }),
	str(FieldFileAs, "file_as", "File as", 320, func(c *Contact) **string { return &c.FileAs }),
	integer(FieldDefaultAddress, "default_address", "Default address", func(c *Contact) **int { return &c.DefaultAddress }),
	integer(FieldUseCount, "use_count", "Use count", func(c *Contact) **int { return &c.UseCount }),

	str(FieldDisplayName, "display_name", "Display name", 320, func(c *Contact) **string { return &c.DisplayName }),
	str(FieldGivenName, "given_name", "Given name", 128, func(c *Contact) **string { return &c.GivenName }),
	str(FieldSurName, "sur_name", "Sur name", 128, func(c *Contact) **string { return &c.SurName }),
	str(FieldMiddleName, "middle_name", "Middle name", 128, func(c *Contact) **string { return &c.MiddleName }),
	str(FieldSuffix, "suffix", "Suffix", 64, func(c *Contact) **string { return &c.Suffix }),
	str(FieldTitle, "title", "Title", 64, func(c *Contact) **string { return &c.Title }),
	str(FieldNickname, "nickname", "Nickname", 64, func(c *Contact) **string { return &c.Nickname }),

	str(FieldStreetHome, "street_home", "Street home", 256, func(c *Contact) **string { return &c.StreetHome }),
	str(FieldPostalCodeHome, "postal_code_home", "Postal code home", 64, func(c *Contact) **string { return &c.PostalCodeHome }),
	str(FieldCityHome, "city_home", "City home", 64, func(c *Contact) **string { return &c.CityHome }),
	str(FieldStateHome, "state_home", "State home", 64, func(c *Contact) **string { return &c.StateHome }),
	str(FieldCountryHome, "country_home", "Country home", 64, func(c *Contact) **string { return &c.CountryHome }),

	str(FieldStreetBusiness, "street_business", "Street business", 256, func(c *Contact) **string { return &c.StreetBusiness }),
	str(FieldPostalCodeBusiness, "postal_code_business", "Postal code business", 64, func(c *Contact) **string { return &c.PostalCodeBusiness }),
	str(FieldCityBusiness, "city_business", "City business", 64, func(c *Contact) **string { return &c.CityBusiness }),
	str(FieldStateBusiness, "state_business", "State business", 64, func(c *Contact) **string { return &c.StateBusiness }),
	str(FieldCountryBusiness, "country_business", "Country business", 64, func(c *Contact) **string { return &c.CountryBusiness }),

	str(FieldStreetOther, "street_other", "Street other", 256, func(c *Contact) **string { return &c.StreetOther }),
	str(FieldPostalCodeOther, "postal_code_other", "Postal code other", 64, func(c *Contact) **string { return &c.PostalCodeOther }),
	str(FieldCityOther, "city_other", "City other", 64, func(c *Contact) **string { return &c.CityOther }),
	str(FieldStateOther, "state_other", "State other", 64, func(c *Contact) **string { return &c.StateOther }),
	str(FieldCountryOther, "country_other", "Country other", 64, func(c *Contact) **string { return &c.CountryOther }),

	timestamp(FieldBirthday, "birthday", "Birthday", func(c *Contact) **time.Time { return &c.Birthday }),
	timestamp(FieldAnniversary, "anniversary", "Anniversary", func(c *Contact) **time.Time { return &c.Anniversary }),
	str(FieldMaritalStatus, "marital_status", "Marital status", 64, func(c *Contact) **string { return &c.MaritalStatus }),
	str(FieldNumberOfChildren, "number_of_children", "Children", 64, func(c *Contact) **string { return &c.NumberOfChildren }),
	str(FieldProfession, "profession", "Profession", 64, func(c *Contact) **string { return &c.Profession }),
	str(FieldSpouseName, "spouse_name", "Spouse's name", 64, func(c *Contact) **string { return &c.SpouseName }),
	str(FieldNote, "note", "Note", 5680, func(c *Contact) **string { return &c.Note }),

	str(FieldCompany, "company", "Company", 512, func(c *Contact) **string { return &c.Company }),
	str(FieldDepartment, "department", "Department", 128, func(c *Contact) **string { return &c.Department }),
	str(FieldPosition, "position", "Position", 128, func(c *Contact) **string { return &c.Position }),
	str(FieldEmployeeType, "employee_type", "Employee type", 128, func(c *Contact) **string { return &c.EmployeeType }),
	str(FieldRoomNumber, "room_number", "Room number", 64, func(c *Contact) **string { return &c.RoomNumber }),
	str(FieldNumberOfEmployees, "number_of_employees", "Employees", 64, func(c *Contact) **string { return &c.NumberOfEmployees }),
	str(FieldSalesVolume, "sales_volume", "Sales volume", 64, func(c *Contact) **string { return &c.SalesVolume }),
	str(FieldTaxID, "tax_id", "Tax ID", 64, func(c *Contact) **string { return &c.TaxID }),
	str(FieldCommercialRegister, "commercial_register", "Commercial register", 64, func(c *Contact) **string { return &c.CommercialRegister }),
	str(FieldBranches, "branches", "Branches", 64, func(c *Contact) **string { return &c.Branches }),
	str(FieldBusinessCategory, "business_category", "Business category", 128, func(c *Contact) **string { return &c.BusinessCategory }),
	str(FieldInfo, "info", "Info", 64, func(c *Contact) **string { return &c.Info }),
	str(FieldManagerName, "manager_name", "Manager", 128, func(c *Contact) **string { return &c.ManagerName }),
	str(FieldAssistantName, "assistant_name", "Assistant", 128, func(c *Contact) **string { return &c.AssistantName }),

	str(FieldTelephoneBusiness1, "telephone_business1", "Telephone business 1", 64, func(c *Contact) **string { return &c.TelephoneBusiness1 }),
	str(FieldTelephoneBusiness2, "telephone_business2", "Telephone business 2", 64, func(c *Contact) **string { return &c.TelephoneBusiness2 }),
	str(FieldFaxBusiness, "fax_business", "Fax business", 64, func(c *Contact) **string { return &c.FaxBusiness }),
	str(FieldTelephoneCallback, "telephone_callback", "Telephone callback", 64, func(c *Contact) **string { return &c.TelephoneCallback }),
	str(FieldTelephoneCar, "telephone_car", "Telephone car", 64, func(c *Contact) **string { return &c.TelephoneCar }),
	str(FieldTelephoneCompany, "telephone_company", "Telephone company", 64, func(c *Contact) **string { return &c.TelephoneCompany }),
	str(FieldTelephoneHome1, "telephone_home1", "Telephone home 1", 64, func(c *Contact) **string { return &c.TelephoneHome1 }),
	str(FieldTelephoneHome2, "telephone_home2", "Telephone home 2", 64, func(c *Contact) **string { return &c.TelephoneHome2 }),
	str(FieldFaxHome, "fax_home", "Fax home", 64, func(c *Contact) **string { return &c.FaxHome }),
	str(FieldCellularTelephone1, "cellular_telephone1", "Mobile 1", 64, func(c *Contact) **string { return &c.CellularTelephone1 }),
	str(FieldCellularTelephone2, "cellular_telephone2", "Mobile 2", 64, func(c *Contact) **string { return &c.CellularTelephone2 }),
	str(FieldTelephoneOther, "telephone_other", "Telephone other", 64, func(c *Contact) **string { return &c.TelephoneOther }),
	str(FieldFaxOther, "fax_other", "Fax other", 64, func(c *Contact) **string { return &c.FaxOther }),
	str(FieldTelephoneISDN, "telephone_isdn", "Telephone ISDN", 64, func(c *Contact) **string { return &c.TelephoneISDN }),
	str(FieldTelephonePager, "telephone_pager", "Pager", 64, func(c *Contact) **string { return &c.TelephonePager }),
	str(FieldTelephonePrimary, "telephone_primary", "Telephone primary", 64, func(c *Contact) **string { return &c.TelephonePrimary }),
	str(FieldTelephoneRadio, "telephone_radio", "Telephone radio", 64, func(c *Contact) **string { return &c.TelephoneRadio }),
	str(FieldTelephoneTelex, "telephone_telex", "Telex", 64, func(c *Contact) **string { return &c.TelephoneTelex }),
	str(FieldTelephoneTTYTDD, "telephone_ttytdd", "TTY/TDD", 64, func(c *Contact) **string { return &c.TelephoneTTYTDD }),
	str(FieldTelephoneIP, "telephone_ip", "IP phone", 64, func(c *Contact) **string { return &c.TelephoneIP }),
	str(FieldTelephoneAssistant, "telephone_assistant", "Telephone assistant", 64, func(c *Contact) **string { return &c.TelephoneAssistant }),

	str(FieldEmail1, "email1", "Email 1", 256, func(c *Contact) **string { return &c.Email1 }),
	str(FieldEmail2, "email2", "Email 2", 256, func(c *Contact) **string { return &c.Email2 }),
	str(FieldEmail3, "email3", "Email 3", 256, func(c *Contact) **string { return &c.Email3 }),
	str(FieldURL, "url", "URL", 256, func(c *Contact) **string { return &c.URL }),
	str(FieldInstantMessenger1, "instant_messenger1", "Instant messenger 1", 64, func(c *Contact) **string { return &c.InstantMessenger1 }),
	str(FieldInstantMessenger2, "instant_messenger2", "Instant messenger 2", 64, func(c *Contact) **string { return &c.InstantMessenger2 }),

	str(FieldUserfield01, "userfield01", "Optional 1", 64, func(c *Contact) **string { return &c.Userfield01 }),
	str(FieldUserfield02, "userfield02", "Optional 2", 64, func(c *Contact) **string { return &c.Userfield02 }),
	str(FieldUserfield03, "userfield03", "Optional 3", 64, func(c *Contact) **string { return &c.Userfield03 }),
	str(FieldUserfield04, "userfield04", "Optional 4", 64, func(c *Contact) **string { return &c.Userfield04 }),
	str(FieldUserfield05, "userfield05", "Optional 5", 64, func(c *Contact) **string { return &c.Userfield05 }),
	str(FieldUserfield06, "userfield06", "Optional 6", 64, func(c *Contact) **string { return &c.Userfield06 }),
	str(FieldUserfield07, "userfield07", "Optional 7", 64, func(c *Contact) **string { return &c.Userfield07 }),
	str(FieldUserfield08, "userfield08", "Optional 8", 64, func(c *Contact) **string { return &c.Userfield08 }),
	str(FieldUserfield09, "userfield09", "Optional 9", 64, func(c *Contact) **string { return &c.Userfield09 }),
	str(FieldUserfield10, "userfield10", "Optional 10", 64, func(c *Contact) **string { return &c.Userfield10 }),
	str(FieldUserfield11, "userfield11", "Optional 11", 64, func(c *Contact) **string { return &c.Userfield11 }),
	str(FieldUserfield12, "userfield12", "Optional 12", 64, func(c *Contact) **string { return &c.Userfield12 }),
	str(FieldUserfield13, "userfield13", "Optional 13", 64, func(c *Contact) **string { return &c.Userfield13 }),
	str(FieldUserfield14, "userfield14", "Optional 14", 64, func(c *Contact) **string { return &c.Userfield14 }),
	str(FieldUserfield15, "userfield15", "Optional 15", 64, func(c *Contact) **string { return &c.Userfield15 }),
	str(FieldUserfield16, "userfield16", "Optional 16", 64, func(c *Contact) **string { return &c.Userfield16 }),
	str(FieldUserfield17, "userfield17", "Optional 17", 64, func(c *Contact) **string { return &c.Userfield17 }),
	str(FieldUserfield18, "userfield18", "Optional 18", 64, func(c *Contact) **string { return &c.Userfield18 }),
	str(FieldUserfield19, "userfield19", "Optional 19", 64, func(c *Contact) **string { return &c.Userfield19 }),
	str(FieldUserfield20, "userfield20", "Optional 20", 64, func(c *Contact) **string { return &c.Userfield20 }),

	{
		Field: FieldImage, Name: "image1", Label: "Image", Kind: KindDerived, Updatable: true,
		isSet: func(c *Contact) bool { return c.Image != nil },
		equal: func(a, b *Contact) bool {
			if a.Image == nil || b.Image == nil {
				return a.Image == nil && b.Image == nil
			}
			return bytes.Equal(a.Image, b.Image)
		},
		clear: func(c *Contact) { c.Image = nil },
	},
	{
		Field: FieldImageContentType, Name: "image1_content_type", Label: "Image content type", Kind: KindDerived,
		isSet: func(c *Contact) bool { return c.ImageContentType != nil },
		equal: func(a, b *Contact) bool { return deref(a.ImageContentType) == deref(b.ImageContentType) },
		copy: func(dst, src *Contact) {
			if src.ImageContentType != nil {
				dst.ImageContentType = Ptr(*src.ImageContentType)
			}
		},
		clear: func(c *Contact) { c.ImageContentType = nil },
	},
	{
		Field: FieldImageLastModified, Name: "image_last_modified", Label: "Image last modified", Kind: KindDerived,
		isSet: func(c *Contact) bool { return c.ImageLastModified != nil },
		equal: func(a, b *Contact) bool {
			return deref(a.ImageLastModified).UnixMilli() == deref(b.ImageLastModified).UnixMilli()
		},
		copy: func(dst, src *Contact) {
			if src.ImageLastModified != nil {
				dst.ImageLastModified = Ptr(*src.ImageLastModified)
			}
		},
		clear: func(c *Contact) { c.ImageLastModified = nil },
	},
	{
		Field: FieldDistributionList, Name: "distribution_list", Label: "Distribution list", Kind: KindDerived, Updatable: true,
		isSet: func(c *Contact) bool { return c.DistributionList != nil },
		equal: func(a, b *Contact) bool {
			add, remove := DiffDistributionList(a.DistributionList, b.DistributionList)
			return len(add) == 0 && len(remove) == 0
		},
		clear: func(c *Contact) { c.DistributionList = nil },
	},
	{
		Field: FieldLinks, Name: "links", Label: "Links", Kind: KindDerived, Updatable: true,
		isSet: func(c *Contact) bool { return c.Links != nil },
		equal: func(a, b *Contact) bool {
			add, remove := DiffLinks(a.Links, b.Links)
			return len(add) == 0 && len(remove) == 0
		},
		clear: func(c *Contact) { c.Links = nil },
	},
}

var (
	byField = map[Field]*Mapping{}
	byName  = map[string]*Mapping{}
	columns []*Mapping
)

func init() {
	for _, m := range mappings {
		byField[m.Field] = m
		byName[m.Name] = m
		if m.HasColumn() {
			columns = append(columns, m)
		}
	}
}

// Lookup returns the mapping for f or nil.
func Lookup(f Field) *Mapping { return byField[f] }

// ByName returns the mapping with the given column/API name or nil.
func ByName(name string) *Mapping { return byName[name] }

// Mappings returns every mapping in table order.
func Mappings() []*Mapping { return mappings }

// Columns returns the mappings stored in the contacts table, in table order.
func Columns() []*Mapping { return columns }

// AllFields returns every field code sorted ascending.
func AllFields() []Field {
	out := make([]Field, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, m.Field)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetFields returns the fields carrying a value on c, in table order.
func SetFields(c *Contact) []Field {
	var out []Field
	for _, m := range mappings {
		if m.isSet(c) {
			out = append(out, m.Field)
		}
	}
	return out
}
