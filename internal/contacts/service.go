// Package contacts implements the contact operations: reads, searches and
// writes with their permission checks, and the cascades run when users or
// folders go away.
package contacts

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_folder_access.go -package=mocks github.com/sonroyaalmerol/ldap-contacts/internal/contacts FolderAccess
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_user_config.go -package=mocks github.com/sonroyaalmerol/ldap-contacts/internal/contacts UserConfig
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_publisher.go -package=mocks github.com/sonroyaalmerol/ldap-contacts/internal/contacts Publisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/directory"
	"github.com/sonroyaalmerol/ldap-contacts/internal/events"
	"github.com/sonroyaalmerol/ldap-contacts/internal/folder"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

// Module is the module name the user configuration must enable.
const Module = storage.ModuleContacts

// Session identifies the caller of an operation.
type Session struct {
	ContextID int
	User      *directory.User
}

func (s Session) UserID() int { return s.User.ID }

// FolderAccess resolves folders and the caller's permission on them.
type FolderAccess interface {
	Resolve(ctx context.Context, cid int, user *directory.User, id int) (*folder.Access, error)
	DefaultFolder(ctx context.Context, cid int, user *directory.User) (*storage.Folder, error)
	Readable(ctx context.Context, cid int, user *directory.User) ([]*folder.Access, error)
}

// UserConfig reports the modules enabled for a user.
type UserConfig interface {
	ModuleAccessible(ctx context.Context, cid, userID int, module string) (bool, error)
}

// Publisher receives an event after every committed write.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Options struct {
	// AdminUserID receives the contacts of deleted users.
	AdminUserID    int
	Image          contact.ImageOptions
	ValidateEmails bool
}

type Service struct {
	store   storage.Store
	folders FolderAccess
	users   UserConfig
	events  Publisher
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

func New(store storage.Store, folders FolderAccess, users UserConfig, pub Publisher, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		folders: folders,
		users:   users,
		events:  pub,
		opts:    opts,
		logger:  logger.With().Str("component", "contacts").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// clock returns the current time truncated to the stored precision.
func (s *Service) clock() time.Time {
	return time.UnixMilli(s.now().UnixMilli()).UTC()
}

func (s *Service) checkModule(ctx context.Context, sess Session) error {
	ok, err := s.users.ModuleAccessible(ctx, sess.ContextID, sess.UserID(), Module)
	if err != nil {
		return err
	}
	if !ok {
		return contact.ErrModuleDisabled(sess.UserID())
	}
	return nil
}

// readable resolves folderID and requires read access to it.
func (s *Service) readable(ctx context.Context, sess Session, folderID int) (*folder.Access, error) {
	a, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, folderID)
	if err != nil {
		return nil, err
	}
	if !a.Permission.CanReadFolder() {
		return nil, contact.ErrNoReadPermission(folderID)
	}
	return a, nil
}

// scopes turns the requested folders into query scopes. No folders means
// every folder the caller can read.
func (s *Service) scopes(ctx context.Context, sess Session, folders []int) ([]storage.Scope, error) {
	out := []storage.Scope{}
	if len(folders) == 0 {
		readable, err := s.folders.Readable(ctx, sess.ContextID, sess.User)
		if err != nil {
			return nil, err
		}
		for _, a := range readable {
			out = append(out, storage.Scope{FolderID: a.Folder.ID, OwnOnly: a.Permission.ReadsOwnOnly()})
		}
		return out, nil
	}
	for _, id := range folders {
		a, err := s.readable(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.Scope{FolderID: id, OwnOnly: a.Permission.ReadsOwnOnly()})
	}
	return out, nil
}

// publish never fails the operation that already committed.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("kind", string(ev.Kind)).
			Int("cid", ev.ContextID).
			Int("id", ev.ObjectID).
			Msg("failed to publish event")
	}
}
