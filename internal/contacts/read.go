package contacts

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/acl"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/folder"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

// Get returns a single contact with its distribution list, links and image.
func (s *Service) Get(ctx context.Context, sess Session, folderID, objectID int) (*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	c, _, err := s.load(ctx, sess, folderID, objectID, storage.LoadAll)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// load fetches a contact of a readable folder and checks that the caller
// may read it.
func (s *Service) load(ctx context.Context, sess Session, folderID, objectID int, load storage.Load) (*contact.Contact, *folder.Access, error) {
	a, err := s.readable(ctx, sess, folderID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.store.GetContact(ctx, sess.ContextID, objectID, load)
	if err != nil {
		return nil, nil, err
	}
	if c.Folder() != folderID {
		return nil, nil, contact.ErrNotFound(sess.ContextID, objectID)
	}
	if err := acl.CheckRead(a.Permission, sess.UserID(), a.Folder, c); err != nil {
		return nil, nil, err
	}
	return c, a, nil
}

// GetUserContact returns the contact representing a groupware user.
func (s *Service) GetUserContact(ctx context.Context, sess Session, userID int) (*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	cs, err := s.store.ListContacts(ctx, storage.Query{
		ContextID:      sess.ContextID,
		Fields:         contact.AllFields(),
		UserID:         sess.UserID(),
		InternalUserID: userID,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, contact.ErrNotFound(sess.ContextID, userID)
	}
	return cs[0], nil
}

// GetByIDs loads the referenced contacts in one query per folder. Contacts
// the caller may not see are left out; the result follows refs order.
func (s *Service) GetByIDs(ctx context.Context, sess Session, refs []contact.Ref, fields []contact.Field) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	byFolder := map[int][]int{}
	var order []int
	for _, r := range refs {
		if _, ok := byFolder[r.FolderID]; !ok {
			order = append(order, r.FolderID)
		}
		byFolder[r.FolderID] = append(byFolder[r.FolderID], r.ObjectID)
	}
	found := map[contact.Ref]*contact.Contact{}
	for _, folderID := range order {
		a, err := s.readable(ctx, sess, folderID)
		if err != nil {
			return nil, err
		}
		cs, err := s.store.ListContacts(ctx, storage.Query{
			ContextID: sess.ContextID,
			Fields:    fieldsOrDefault(fields),
			Scopes:    []storage.Scope{{FolderID: folderID, OwnOnly: a.Permission.ReadsOwnOnly()}},
			UserID:    sess.UserID(),
			ObjectIDs: byFolder[folderID],
		})
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			found[contact.Ref{FolderID: folderID, ObjectID: c.ID()}] = c
		}
	}
	out := make([]*contact.Contact, 0, len(refs))
	for _, r := range refs {
		if c, ok := found[r]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Page selects a slice of a listing: rows [From, To). A zero To means no
// upper bound.
type Page struct {
	From int
	To   int
}

func (p Page) apply(q *storage.Query) {
	q.Offset = p.From
	if p.To > p.From {
		q.Limit = p.To - p.From
	}
}

// ListFolder lists the contacts of a folder the caller can see.
func (s *Service) ListFolder(ctx context.Context, sess Session, folderID int, fields []contact.Field, order []storage.Order, page Page) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	q, err := s.folderQuery(ctx, sess, folderID)
	if err != nil {
		return nil, err
	}
	q.Fields = fieldsOrDefault(fields)
	q.Order = order
	page.apply(&q)
	return s.store.ListContacts(ctx, q)
}

// Count returns the number of contacts of a folder the caller can see.
func (s *Service) Count(ctx context.Context, sess Session, folderID int) (int, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return 0, err
	}
	q, err := s.folderQuery(ctx, sess, folderID)
	if err != nil {
		return 0, err
	}
	return s.store.CountContacts(ctx, q)
}

// ListModified returns the contacts changed after since, oldest first.
func (s *Service) ListModified(ctx context.Context, sess Session, folderID int, since time.Time, fields []contact.Field) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	q, err := s.folderQuery(ctx, sess, folderID)
	if err != nil {
		return nil, err
	}
	q.Fields = fieldsOrDefault(fields)
	q.ModifiedSince = &since
	q.Order = []storage.Order{{Field: contact.FieldLastModified}, {Field: contact.FieldObjectID}}
	return s.store.ListContacts(ctx, q)
}

// ListDeleted returns the tombstones of contacts removed from the folder
// after since.
func (s *Service) ListDeleted(ctx context.Context, sess Session, folderID int, since time.Time) ([]*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	q, err := s.folderQuery(ctx, sess, folderID)
	if err != nil {
		return nil, err
	}
	q.Table = storage.Deleted
	q.Fields = []contact.Field{contact.FieldUID, contact.FieldModifiedBy}
	q.ModifiedSince = &since
	q.Order = []storage.Order{{Field: contact.FieldLastModified}, {Field: contact.FieldObjectID}}
	return s.store.ListContacts(ctx, q)
}

func (s *Service) folderQuery(ctx context.Context, sess Session, folderID int) (storage.Query, error) {
	a, err := s.readable(ctx, sess, folderID)
	if err != nil {
		return storage.Query{}, err
	}
	return storage.Query{
		ContextID: sess.ContextID,
		Scopes:    []storage.Scope{{FolderID: folderID, OwnOnly: a.Permission.ReadsOwnOnly()}},
		UserID:    sess.UserID(),
	}, nil
}

// Image returns the stored image of a contact.
func (s *Service) Image(ctx context.Context, sess Session, folderID, objectID int) (*storage.Image, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	if _, _, err := s.load(ctx, sess, folderID, objectID, storage.Load{}); err != nil {
		return nil, err
	}
	return s.store.ContactImage(ctx, sess.ContextID, objectID)
}

// MayRead reports whether the caller may read the contact.
func (s *Service) MayRead(ctx context.Context, sess Session, folderID, objectID int) (bool, error) {
	return s.may(ctx, sess, folderID, objectID, func(a *folder.Access, c *contact.Contact) bool {
		return a.Permission.CanRead(sess.UserID(), c)
	})
}

// MayWrite reports whether the caller may modify the contact.
func (s *Service) MayWrite(ctx context.Context, sess Session, folderID, objectID int) (bool, error) {
	return s.may(ctx, sess, folderID, objectID, func(a *folder.Access, c *contact.Contact) bool {
		return a.Permission.CanWrite(sess.UserID(), c)
	})
}

// MayDelete reports whether the caller may delete the contact.
func (s *Service) MayDelete(ctx context.Context, sess Session, folderID, objectID int) (bool, error) {
	return s.may(ctx, sess, folderID, objectID, func(a *folder.Access, c *contact.Contact) bool {
		return a.Permission.CanDelete(sess.UserID(), c)
	})
}

func (s *Service) may(ctx context.Context, sess Session, folderID, objectID int, check func(*folder.Access, *contact.Contact) bool) (bool, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return false, err
	}
	a, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, folderID)
	if err != nil {
		return false, err
	}
	c, err := s.store.GetContact(ctx, sess.ContextID, objectID, storage.Load{})
	if err != nil {
		return false, err
	}
	if c.Folder() != folderID {
		return false, contact.ErrNotFound(sess.ContextID, objectID)
	}
	return check(a, c), nil
}

// ContainsForeignObjects reports whether the folder holds contacts created
// by someone other than the caller.
func (s *Service) ContainsForeignObjects(ctx context.Context, sess Session, folderID int) (bool, error) {
	fc, err := s.probe(ctx, sess, folderID)
	return fc.Foreign, err
}

// ContainsAnyObjects reports whether the folder holds any contact.
func (s *Service) ContainsAnyObjects(ctx context.Context, sess Session, folderID int) (bool, error) {
	fc, err := s.probe(ctx, sess, folderID)
	return fc.Any, err
}

func (s *Service) probe(ctx context.Context, sess Session, folderID int) (storage.FolderContents, error) {
	if _, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, folderID); err != nil {
		return storage.FolderContents{}, err
	}
	return s.store.ProbeFolder(ctx, sess.ContextID, folderID, sess.UserID())
}

func fieldsOrDefault(fields []contact.Field) []contact.Field {
	if len(fields) == 0 {
		return contact.ListFields
	}
	return fields
}
