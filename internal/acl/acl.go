package acl

import (
	"context"

	"github.com/sonroyaalmerol/ldap-contacts/internal/directory"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

type Provider interface {
	// Effective computes the permission of user on folder from ownership,
	// stored grants and LDAP group bindings.
	Effective(ctx context.Context, user *directory.User, folder *storage.Folder) (Permission, error)
	// GrantedFolders lists the folders the user holds any grant on, from
	// stored grants and LDAP group bindings.
	GrantedFolders(ctx context.Context, cid int, user *directory.User) ([]int, error)
}

// GrantSource is the part of the store the provider reads.
type GrantSource interface {
	ListGrants(ctx context.Context, cid, folderID int) ([]storage.Grant, error)
	ListGrantedFolders(ctx context.Context, cid int, entities []int) ([]int, error)
}

type FolderACL struct {
	Dir    directory.Directory
	Grants GrantSource
}

func NewFolderACL(dir directory.Directory, grants GrantSource) *FolderACL {
	return &FolderACL{Dir: dir, Grants: grants}
}

func (p *FolderACL) Effective(ctx context.Context, user *directory.User, folder *storage.Folder) (Permission, error) {
	if folder.Module != storage.ModuleContacts {
		return Permission{}, nil
	}
	if folder.Type == storage.FolderPrivate && folder.CreatedBy == user.ID {
		return AllPermission, nil
	}
	e := Permission{}
	grants, err := p.Grants.ListGrants(ctx, folder.ContextID, folder.ID)
	if err != nil {
		return Permission{}, err
	}
	for _, g := range grants {
		if g.Entity != user.ID && g.Entity != storage.AllUsers {
			continue
		}
		e = e.Merge(FromGrant(g))
	}
	if p.Dir != nil {
		acls, err := p.Dir.UserFolderACLs(ctx, user)
		if err != nil {
			return Permission{}, err
		}
		for _, a := range acls {
			if a.FolderID != folder.ID {
				continue
			}
			e = e.Merge(FromBinding(a))
		}
	}
	return e, nil
}

func (p *FolderACL) GrantedFolders(ctx context.Context, cid int, user *directory.User) ([]int, error) {
	ids, err := p.Grants.ListGrantedFolders(ctx, cid, []int{storage.AllUsers, user.ID})
	if err != nil {
		return nil, err
	}
	if p.Dir != nil {
		acls, err := p.Dir.UserFolderACLs(ctx, user)
		if err != nil {
			return nil, err
		}
		for _, a := range acls {
			ids = append(ids, a.FolderID)
		}
	}
	return ids, nil
}

// FromGrant converts a stored grant row.
func FromGrant(g storage.Grant) Permission {
	if g.Admin {
		return AllPermission
	}
	return Permission{
		Folder: clampFolder(g.Folder),
		Read:   clampLevel(g.Read),
		Write:  clampLevel(g.Write),
		Delete: clampLevel(g.Delete),
	}
}

// FromBinding converts an LDAP folder binding. Any object privilege makes
// the folder visible.
func FromBinding(a directory.FolderACL) Permission {
	if a.Admin {
		return AllPermission
	}
	tier := func(all, own bool) Level {
		switch {
		case all:
			return LevelAll
		case own:
			return LevelOwn
		}
		return LevelNone
	}
	e := Permission{
		Read:   tier(a.Read, a.ReadOwn),
		Write:  tier(a.Write, a.WriteOwn),
		Delete: tier(a.Delete, a.DeleteOwn),
	}
	switch {
	case a.Create:
		e.Folder = FolderCreateObjects
	case e.Read > LevelNone || e.Write > LevelNone || e.Delete > LevelNone:
		e.Folder = FolderVisible
	}
	return e
}
