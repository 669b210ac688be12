// Package contact holds the contact domain model: the sparse Contact record,
// its field codes and column mapping, diffing, validation and search criteria.
package contact

import (
	"time"
)

// Contact is a sparse record. A nil pointer means the field is not set.
// Slices follow the same rule: nil is unset, an empty non-nil slice is set
// to "no entries".
type Contact struct {
	ObjectID     *int       `json:"id,omitempty"`
	ContextID    *int       `json:"cid,omitempty"`
	FolderID     *int       `json:"folder_id,omitempty"`
	CreatedBy    *int       `json:"created_by,omitempty"`
	ModifiedBy   *int       `json:"modified_by,omitempty"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	UID          *string    `json:"uid,omitempty"`
	PrivateFlag  *bool      `json:"private_flag,omitempty"`
	ColorLabel   *int       `json:"color_label,omitempty"`
	Categories   *string    `json:"categories,omitempty"`

	NumberOfAttachments      *int `json:"number_of_attachments,omitempty"`
	NumberOfDistributionList *int `json:"number_of_distribution_list,omitempty"`
	NumberOfLinks            *int `json:"number_of_links,omitempty"`
	NumberOfImages           *int `json:"number_of_images,omitempty"`

	InternalUserID         *int    `json:"internal_user_id,omitempty"`
	MarkAsDistributionList *bool   `json:"mark_as_distribution_list,omitempty"`
	FileAs                 *string `json:"file_as,omitempty"`
	DefaultAddress         *int    `json:"default_address,omitempty"`
	UseCount               *int    `json:"use_count,omitempty"`

	DisplayName *string `json:"display_name,omitempty"`
	GivenName   *string `json:"given_name,omitempty"`
	SurName     *string `json:"sur_name,omitempty"`
	MiddleName  *string `json:"middle_name,omitempty"`
	Suffix      *string `json:"suffix,omitempty"`
	Title       *string `json:"title,omitempty"`
	Nickname    *string `json:"nickname,omitempty"`

	StreetHome     *string `json:"street_home,omitempty"`
	PostalCodeHome *string `json:"postal_code_home,omitempty"`
	CityHome       *string `json:"city_home,omitempty"`
	StateHome      *string `json:"state_home,omitempty"`
	CountryHome    *string `json:"country_home,omitempty"`

	StreetBusiness     *string `json:"street_business,omitempty"`
	PostalCodeBusiness *string `json:"postal_code_business,omitempty"`
	CityBusiness       *string `json:"city_business,omitempty"`
	StateBusiness      *string `json:"state_business,omitempty"`
	CountryBusiness    *string `json:"country_business,omitempty"`

	StreetOther     *string `json:"street_other,omitempty"`
	PostalCodeOther *string `json:"postal_code_other,omitempty"`
	CityOther       *string `json:"city_other,omitempty"`
	StateOther      *string `json:"state_other,omitempty"`
	CountryOther    *string `json:"country_other,omitempty"`

	Birthday         *time.Time `json:"birthday,omitempty"`
	Anniversary      *time.Time `json:"anniversary,omitempty"`
	MaritalStatus    *string    `json:"marital_status,omitempty"`
	NumberOfChildren *string    `json:"number_of_children,omitempty"`
	Profession       *string    `json:"profession,omitempty"`
	SpouseName       *string    `json:"spouse_name,omitempty"`
	Note             *string    `json:"note,omitempty"`

	Company            *string `json:"company,omitempty"`
	Department         *string `json:"department,omitempty"`
	Position           *string `json:"position,omitempty"`
	EmployeeType       *string `json:"employee_type,omitempty"`
	RoomNumber         *string `json:"room_number,omitempty"`
	NumberOfEmployees  *string `json:"number_of_employees,omitempty"`
	SalesVolume        *string `json:"sales_volume,omitempty"`
	TaxID              *string `json:"tax_id,omitempty"`
	CommercialRegister *string `json:"commercial_register,omitempty"`
	Branches           *string `json:"branches,omitempty"`
	BusinessCategory   *string `json:"business_category,omitempty"`
	Info               *string `json:"info,omitempty"`
	ManagerName        *string `json:"manager_name,omitempty"`
	AssistantName      *string `json:"assistant_name,omitempty"`

	TelephoneBusiness1 *string `json:"telephone_business1,omitempty"`
	TelephoneBusiness2 *string `json:"telephone_business2,omitempty"`
	FaxBusiness        *string `json:"fax_business,omitempty"`
	TelephoneCallback  *string `json:"telephone_callback,omitempty"`
	TelephoneCar       *string `json:"telephone_car,omitempty"`
	TelephoneCompany   *string `json:"telephone_company,omitempty"`
	TelephoneHome1     *string `json:"telephone_home1,omitempty"`
	TelephoneHome2     *string `json:"telephone_home2,omitempty"`
	FaxHome            *string `json:"fax_home,omitempty"`
	CellularTelephone1 *string `json:"cellular_telephone1,omitempty"`
	CellularTelephone2 *string `json:"cellular_telephone2,omitempty"`
	TelephoneOther     *string `json:"telephone_other,omitempty"`
	FaxOther           *string `json:"fax_other,omitempty"`
	TelephoneISDN      *string `json:"telephone_isdn,omitempty"`
	TelephonePager     *string `json:"telephone_pager,omitempty"`
	TelephonePrimary   *string `json:"telephone_primary,omitempty"`
	TelephoneRadio     *string `json:"telephone_radio,omitempty"`
	TelephoneTelex     *string `json:"telephone_telex,omitempty"`
	TelephoneTTYTDD    *string `json:"telephone_ttytdd,omitempty"`
	TelephoneIP        *string `json:"telephone_ip,omitempty"`
	TelephoneAssistant *string `json:"telephone_assistant,omitempty"`

	Email1            *string `json:"email1,omitempty"`
	Email2            *string `json:"email2,omitempty"`
	Email3            *string `json:"email3,omitempty"`
	URL               *string `json:"url,omitempty"`
	InstantMessenger1 *string `json:"instant_messenger1,omitempty"`
	InstantMessenger2 *string `json:"instant_messenger2,omitempty"`

	Userfield01 *string `json:"userfield01,omitempty"`
	Userfield02 *string `json:"userfield02,omitempty"`
	Userfield03 *string `json:"userfield03,omitempty"`
	Userfield04 *string `json:"userfield04,omitempty"`
	Userfield05 *string `json:"userfield05,omitempty"`
	Userfield06 *string `json:"userfield06,omitempty"`
	Userfield07 *string `json:"userfield07,omitempty"`
	Userfield08 *string `json:"userfield08,omitempty"`
	Userfield09 *string `json:"userfield09,omitempty"`
	Userfield10 *string `json:"userfield10,omitempty"`
	Userfield11 *string `json:"userfield11,omitempty"`
	Userfield12 *string `json:"userfield12,omitempty"`
	Userfield13 *string `json:"userfield13,omitempty"`
	Userfield14 *string `json:"userfield14,omitempty"`
	Userfield15 *string `json:"userfield15,omitempty"`
	Userfield16 *string `json:"userfield16,omitempty"`
	Userfield17 *string `json:"userfield17,omitempty"`
	Userfield18 *string `json:"userfield18,omitempty"`
	Userfield19 *string `json:"userfield19,omitempty"`
	Userfield20 *string `json:"userfield20,omitempty"`

	Image             []byte     `json:"image,omitempty"`
	ImageContentType  *string    `json:"image_content_type,omitempty"`
	ImageLastModified *time.Time `json:"image_last_modified,omitempty"`

	DistributionList []DistributionListEntry `json:"distribution_list"`
	Links            []LinkEntry             `json:"links"`
}

// Email field indexes used by distribution list references.
const (
	EmailField1 = 1
	EmailField2 = 2
	EmailField3 = 3
)

// DistributionListEntry is a member of a distribution list. A member either
// references another contact (ContactID != 0) or is independent and carries
// its own name and address.
type DistributionListEntry struct {
	ContactID   int    `json:"contact_id,omitempty"`
	FolderID    int    `json:"folder_id,omitempty"`
	EmailField  int    `json:"email_field,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email"`
}

// Independent reports whether the entry does not reference a stored contact.
func (e DistributionListEntry) Independent() bool { return e.ContactID == 0 }

// Key identifies a member for set-difference bookkeeping.
func (e DistributionListEntry) Key() string {
	if e.Independent() {
		return "i:" + e.DisplayName + "\x00" + e.Email
	}
	return "r:" + itoa(e.ContactID) + ":" + itoa(e.EmailField)
}

// LinkEntry links two contacts. Links are symmetric: the stored row is the
// same whichever side reads it.
type LinkEntry struct {
	ContactID    int    `json:"contact_id"`
	FolderID     int    `json:"folder_id"`
	DisplayName  string `json:"display_name,omitempty"`
	LinkedID     int    `json:"linked_id"`
	LinkedFolder int    `json:"linked_folder"`
	LinkedName   string `json:"linked_name,omitempty"`
}

// Key identifies a link from the owning contact's side.
func (l LinkEntry) Key() string { return itoa(l.LinkedID) }

// Ref addresses a single contact by folder and object id.
type Ref struct {
	FolderID int `json:"folder_id"`
	ObjectID int `json:"id"`
}

// ID returns the object id or zero when unset.
func (c *Contact) ID() int { return deref(c.ObjectID) }

// Folder returns the folder id or zero when unset.
func (c *Contact) Folder() int { return deref(c.FolderID) }

// Creator returns the creating user or zero when unset.
func (c *Contact) Creator() int { return deref(c.CreatedBy) }

// IsPrivate reports whether the private flag is set to true.
func (c *Contact) IsPrivate() bool { return c.PrivateFlag != nil && *c.PrivateFlag }

// IsDistributionList reports whether the contact is a distribution list.
func (c *Contact) IsDistributionList() bool {
	return c.MarkAsDistributionList != nil && *c.MarkAsDistributionList
}

// Emails returns the set email addresses in field order.
func (c *Contact) Emails() []string {
	var out []string
	for _, p := range []*string{c.Email1, c.Email2, c.Email3} {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return out
}

// EmailAt returns the address stored in email field 1, 2 or 3.
func (c *Contact) EmailAt(field int) string {
	switch field {
	case EmailField1:
		return deref(c.Email1)
	case EmailField2:
		return deref(c.Email2)
	case EmailField3:
		return deref(c.Email3)
	}
	return ""
}

// Clone returns a deep copy.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := New()
	for _, m := range mappings {
		if m.copy != nil {
			m.copy(out, c)
		}
	}
	if c.Image != nil {
		out.Image = append([]byte{}, c.Image...)
	}
	if c.DistributionList != nil {
		out.DistributionList = append([]DistributionListEntry{}, c.DistributionList...)
	}
	if c.Links != nil {
		out.Links = append([]LinkEntry{}, c.Links...)
	}
	return out
}

// New returns an empty contact.
func New() *Contact { return &Contact{} }

// Ptr returns a pointer to v. Handy when filling sparse records.
func Ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
