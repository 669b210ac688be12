package router

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/auth"
	"github.com/sonroyaalmerol/ldap-contacts/internal/config"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
	"github.com/sonroyaalmerol/ldap-contacts/internal/directory"
	"github.com/sonroyaalmerol/ldap-contacts/internal/folder"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"

	"github.com/rs/zerolog"
)

// ContactService is the part of the contact service the API exposes.
type ContactService interface {
	Get(ctx context.Context, sess contacts.Session, folderID, objectID int) (*contact.Contact, error)
	GetByIDs(ctx context.Context, sess contacts.Session, refs []contact.Ref, fields []contact.Field) ([]*contact.Contact, error)
	ListFolder(ctx context.Context, sess contacts.Session, folderID int, fields []contact.Field, order []storage.Order, page contacts.Page) ([]*contact.Contact, error)
	ListModified(ctx context.Context, sess contacts.Session, folderID int, since time.Time, fields []contact.Field) ([]*contact.Contact, error)
	ListDeleted(ctx context.Context, sess contacts.Session, folderID int, since time.Time) ([]*contact.Contact, error)
	Image(ctx context.Context, sess contacts.Session, folderID, objectID int) (*storage.Image, error)
	Insert(ctx context.Context, sess contacts.Session, in *contact.Contact) (*contact.Contact, error)
	Update(ctx context.Context, sess contacts.Session, in *contact.Contact, folderID int, lastModified time.Time) (*contact.Contact, error)
	Delete(ctx context.Context, sess contacts.Session, folderID, objectID int, lastModified time.Time, hard bool) error
	SearchTerm(ctx context.Context, sess contacts.Session, term contact.SearchTerm, folders []int, fields []contact.Field, order []storage.Order) ([]*contact.Contact, error)
	WithBirthdays(ctx context.Context, sess contacts.Session, folders []int) ([]*contact.Contact, error)
	UpcomingBirthdays(ctx context.Context, sess contacts.Session, folders []int, from, until time.Time) ([]contacts.Birthday, error)
}

// Searcher runs structured searches across every contact source.
type Searcher interface {
	Search(ctx context.Context, sess contacts.Session, so *contact.SearchObject, limit int) ([]*contact.Contact, error)
	AutoComplete(ctx context.Context, sess contacts.Session, pattern string, folders []int, limit int) ([]*contact.Contact, error)
}

// Authenticator is satisfied by *auth.Chain.
type Authenticator interface {
	BasicEnabled() bool
	BearerEnabled() bool
	BasicAuthenticate(ctx context.Context, header string) (*auth.Principal, error)
	BearerAuthenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// Folders provisions the personal contact folder of a user on first use and
// lists the folders a user can see.
type Folders interface {
	EnsureDefaultFolder(ctx context.Context, cid int, user *directory.User) (*storage.Folder, error)
	Readable(ctx context.Context, cid int, user *directory.User) ([]*folder.Access, error)
}

type Deps struct {
	Config   *config.Config
	Contacts ContactService
	Search   Searcher
	Folders  Folders
	Auth     Authenticator
	Logger   zerolog.Logger
}
