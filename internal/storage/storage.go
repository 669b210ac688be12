package storage

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
)

// Module names carried by folders. Only contact folders hold contacts.
const (
	ModuleContacts = "contacts"
)

type FolderType int

const (
	FolderPrivate FolderType = 1
	FolderPublic  FolderType = 2
	FolderShared  FolderType = 3
)

func (t FolderType) String() string {
	switch t {
	case FolderPrivate:
		return "private"
	case FolderPublic:
		return "public"
	case FolderShared:
		return "shared"
	}
	return "unknown"
}

type Folder struct {
	ContextID int
	ID        int
	ParentID  int
	Name      string
	Module    string
	Type      FolderType
	CreatedBy int
	Default   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllUsers is the grant entity that applies to every user of a context.
const AllUsers = 0

// Grant is a stored folder permission row. Levels use the numeric encoding of
// the acl package.
type Grant struct {
	FolderID int
	Entity   int
	Folder   int
	Read     int
	Write    int
	Delete   int
	Admin    bool
}

// Image is a stored contact image.
type Image struct {
	Data         []byte
	ContentType  string
	LastModified time.Time
}

// FolderContents summarises a folder for the permission probes.
type FolderContents struct {
	Any     bool
	Foreign bool
	Private bool
}

// Load selects the derived data fetched alongside the contact columns.
type Load struct {
	DistributionList bool
	Links            bool
	Image            bool
}

// LoadAll fetches every derived field.
var LoadAll = Load{DistributionList: true, Links: true, Image: true}

// LoadFor derives the Load set from requested fields.
func LoadFor(fields []contact.Field) Load {
	var l Load
	for _, f := range fields {
		switch f {
		case contact.FieldDistributionList:
			l.DistributionList = true
		case contact.FieldLinks:
			l.Links = true
		case contact.FieldImage, contact.FieldImageContentType, contact.FieldImageLastModified:
			l.Image = true
		}
	}
	return l
}

type Store interface {
	Close()
	Dialect() Dialect

	// Contacts
	GetContact(ctx context.Context, cid, id int, load Load) (*contact.Contact, error)
	ListContacts(ctx context.Context, q Query) ([]*contact.Contact, error)
	CountContacts(ctx context.Context, q Query) (int, error)
	ContactImage(ctx context.Context, cid, id int) (*Image, error)
	ProbeFolder(ctx context.Context, cid, folderID, userID int) (FolderContents, error)

	// Folders
	GetFolder(ctx context.Context, cid, id int) (*Folder, error)
	ListFoldersByOwner(ctx context.Context, cid, owner int) ([]*Folder, error)
	DefaultFolder(ctx context.Context, cid, owner int, module string) (*Folder, error)
	ListGrants(ctx context.Context, cid, folderID int) ([]Grant, error)
	// ListGrantedFolders returns the folders carrying a grant for any of the
	// entities.
	ListGrantedFolders(ctx context.Context, cid int, entities []int) ([]int, error)

	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side. Every method runs inside the transaction opened by
// Store.WithTx.
type Tx interface {
	NextID(ctx context.Context, cid int, sequence string) (int, error)

	GetContact(ctx context.Context, cid, id int, load Load) (*contact.Contact, error)
	InsertContact(ctx context.Context, c *contact.Contact) error
	// UpdateContact writes the given column fields of c. The row must still
	// carry lastModified, otherwise a conflict error is returned.
	UpdateContact(ctx context.Context, c *contact.Contact, fields []contact.Field, lastModified time.Time) error
	ApplyDistributionList(ctx context.Context, cid, id int, add, remove []contact.DistributionListEntry) error
	ApplyLinks(ctx context.Context, cid int, owner *contact.Contact, add, remove []contact.LinkEntry) error
	PutImage(ctx context.Context, cid, id int, img Image) error
	RemoveImage(ctx context.Context, cid, id int) error

	// DeleteContact removes a contact. Unless hard is set the row and its
	// distribution list and image are copied to the deleted tables first.
	DeleteContact(ctx context.Context, cid, id, userID int, now time.Time, hard bool) error
	// WriteTombstone records c in the deleted table without touching the
	// live row, used when a contact leaves a folder.
	WriteTombstone(ctx context.Context, c *contact.Contact, userID int, now time.Time) error
	// MoveReferences points list members and links that reference id at
	// folderID.
	MoveReferences(ctx context.Context, cid, id, folderID int) error

	// Cascade support.
	ReassignContact(ctx context.Context, cid, id, owner int, folderID *int, now time.Time) error
	ResetModifier(ctx context.Context, cid, from, to int) error
	PurgeTombstone(ctx context.Context, cid, id int) error
	ReassignTombstones(ctx context.Context, cid, from, to int) error
	RemoveDanglingReferences(ctx context.Context, cid int) error

	// Folders
	CreateFolder(ctx context.Context, f *Folder) error
	PutGrant(ctx context.Context, cid int, g Grant) error
	// DeleteFolder removes the folder row and its grants. Contacts must have
	// been removed before.
	DeleteFolder(ctx context.Context, cid, id int) error
}
