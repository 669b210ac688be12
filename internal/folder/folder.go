// Package folder resolves contact folders and the permission a user holds on
// them.
package folder

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/acl"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/directory"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

// DefaultName is the name of the personal folder created on first use.
const DefaultName = "Contacts"

// Store is the part of storage.Store the folder service needs.
type Store interface {
	GetFolder(ctx context.Context, cid, id int) (*storage.Folder, error)
	ListFoldersByOwner(ctx context.Context, cid, owner int) ([]*storage.Folder, error)
	DefaultFolder(ctx context.Context, cid, owner int, module string) (*storage.Folder, error)
	WithTx(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Access is a folder together with the permission of the requesting user.
// It is computed per operation and never cached.
type Access struct {
	Folder     *storage.Folder
	Permission acl.Permission
}

type Service struct {
	store  Store
	acl    acl.Provider
	logger zerolog.Logger
}

func New(store Store, provider acl.Provider, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		acl:    provider,
		logger: logger.With().Str("component", "folder").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, cid, id int) (*storage.Folder, error) {
	return s.store.GetFolder(ctx, cid, id)
}

// Resolve loads a contact folder and the effective permission of user on it.
func (s *Service) Resolve(ctx context.Context, cid int, user *directory.User, id int) (*Access, error) {
	f, err := s.store.GetFolder(ctx, cid, id)
	if err != nil {
		return nil, err
	}
	if f.Module != storage.ModuleContacts {
		return nil, contact.ErrInvalidFolderModule(id)
	}
	p, err := s.acl.Effective(ctx, user, f)
	if err != nil {
		return nil, err
	}
	return &Access{Folder: f, Permission: p}, nil
}

// DefaultFolder returns the personal default contact folder of user.
func (s *Service) DefaultFolder(ctx context.Context, cid int, user *directory.User) (*storage.Folder, error) {
	return s.store.DefaultFolder(ctx, cid, user.ID, storage.ModuleContacts)
}

// EnsureDefaultFolder returns the default contact folder of user, creating
// it when the user has none yet.
func (s *Service) EnsureDefaultFolder(ctx context.Context, cid int, user *directory.User) (*storage.Folder, error) {
	f, err := s.DefaultFolder(ctx, cid, user)
	if err == nil {
		return f, nil
	}
	if !isFolderNotFound(err) {
		return nil, err
	}
	f = &storage.Folder{
		ContextID: cid,
		Name:      DefaultName,
		Module:    storage.ModuleContacts,
		Type:      storage.FolderPrivate,
		CreatedBy: user.ID,
		Default:   true,
	}
	if err := s.Create(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info().Int("cid", cid).Int("user", user.ID).Int("folder", f.ID).Msg("created default contact folder")
	return f, nil
}

// Create stores f and its grants in one transaction. f.ID is filled from
// the folder sequence when zero.
func (s *Service) Create(ctx context.Context, f *storage.Folder, grants ...storage.Grant) error {
	if f.Module == "" {
		f.Module = storage.ModuleContacts
	}
	return s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateFolder(ctx, f); err != nil {
			return err
		}
		for _, g := range grants {
			g.FolderID = f.ID
			if err := tx.PutGrant(ctx, f.ContextID, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// Readable lists the contact folders user may at least see: the folders it
// owns plus every folder it holds a grant or group binding on.
func (s *Service) Readable(ctx context.Context, cid int, user *directory.User) ([]*Access, error) {
	owned, err := s.store.ListFoldersByOwner(ctx, cid, user.ID)
	if err != nil {
		return nil, err
	}
	granted, err := s.acl.GrantedFolders(ctx, cid, user)
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, f := range owned {
		ids = append(ids, f.ID)
	}
	ids = append(ids, granted...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var out []*Access
	for _, id := range ids {
		a, err := s.Resolve(ctx, cid, user, id)
		if err != nil {
			// bindings may name folders that are gone or belong to another module
			if isFolderNotFound(err) || isInvalidModule(err) {
				continue
			}
			return nil, err
		}
		if a.Permission.CanReadFolder() {
			out = append(out, a)
		}
	}
	return out, nil
}

func hasCode(err error, code contact.Code) bool {
	var ce *contact.Error
	return errors.As(err, &ce) && ce.Code == code
}

func isFolderNotFound(err error) bool { return hasCode(err, contact.CodeFolderNotFound) }

func isInvalidModule(err error) bool { return hasCode(err, contact.CodeInvalidFolderModule) }
