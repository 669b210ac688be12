package acl

import (
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

func allows(l Level, userID int, c *contact.Contact) bool {
	if c.IsPrivate() && c.Creator() != userID {
		return false
	}
	switch l {
	case LevelAll:
		return true
	case LevelOwn:
		return c.Creator() == userID
	}
	return false
}

// CanRead decides whether userID may see c. Private contacts are only
// visible to their creator whatever the read tier.
func (p Permission) CanRead(userID int, c *contact.Contact) bool {
	return p.Folder >= FolderVisible && allows(p.Read, userID, c)
}

func (p Permission) CanWrite(userID int, c *contact.Contact) bool {
	return p.Folder >= FolderVisible && allows(p.Write, userID, c)
}

func (p Permission) CanDelete(userID int, c *contact.Contact) bool {
	return p.Folder >= FolderVisible && allows(p.Delete, userID, c)
}

// CheckRead returns the matching domain error when c may not be read.
func CheckRead(p Permission, userID int, f *storage.Folder, c *contact.Contact) error {
	if c.IsPrivate() && c.Creator() != userID {
		return contact.ErrNotPrivateOwner(c.ID())
	}
	if !p.CanRead(userID, c) {
		return contact.ErrNoReadPermission(f.ID)
	}
	return nil
}

func CheckCreate(p Permission, f *storage.Folder, c *contact.Contact) error {
	if !p.CanCreate() {
		return contact.ErrNoCreatePermission(f.ID)
	}
	return CheckPrivateFlag(f, c)
}

func CheckWrite(p Permission, userID int, f *storage.Folder, c *contact.Contact) error {
	if c.IsPrivate() && c.Creator() != userID {
		return contact.ErrNotPrivateOwner(c.ID())
	}
	if !p.CanWrite(userID, c) {
		return contact.ErrNoWritePermission(c.ID(), f.ID)
	}
	return nil
}

func CheckDelete(p Permission, userID int, f *storage.Folder, c *contact.Contact) error {
	if c.IsPrivate() && c.Creator() != userID {
		return contact.ErrNotPrivateOwner(c.ID())
	}
	if !p.CanDelete(userID, c) {
		return contact.ErrNoDeletePermission(c.ID(), f.ID)
	}
	return nil
}

// CheckPrivateFlag rejects a private contact outside a private folder.
func CheckPrivateFlag(f *storage.Folder, c *contact.Contact) error {
	if c.IsPrivate() && f.Type != storage.FolderPrivate {
		return contact.ErrPrivateInPublic(f.ID)
	}
	return nil
}

// CheckPrivateChange rejects a change of the private flag by anyone but the
// creator of the contact.
func CheckPrivateChange(userID int, original, update *contact.Contact) error {
	if update.PrivateFlag == nil || *update.PrivateFlag == original.IsPrivate() {
		return nil
	}
	if original.Creator() != userID {
		return contact.ErrNotPrivateOwner(original.ID())
	}
	return nil
}

// CheckMove validates moving original from src to dst with the update
// applied. The source needs delete permission, the target create
// permission, and a private contact may not cross between private and
// non-private folders in either direction.
func CheckMove(srcPerm, dstPerm Permission, userID int, src, dst *storage.Folder, original, update *contact.Contact) error {
	if err := CheckDelete(srcPerm, userID, src, original); err != nil {
		return err
	}
	if !dstPerm.CanCreate() {
		return contact.ErrNoCreatePermission(dst.ID)
	}
	private := original.IsPrivate()
	if update.PrivateFlag != nil {
		private = *update.PrivateFlag
	}
	if private && (src.Type == storage.FolderPrivate) != (dst.Type == storage.FolderPrivate) {
		return contact.ErrPrivateMove(original.ID())
	}
	if private && dst.Type != storage.FolderPrivate {
		return contact.ErrPrivateInPublic(dst.ID)
	}
	return nil
}
