package contacts

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sonroyaalmerol/ldap-contacts/internal/acl"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/events"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

// prepare runs the checks shared by insert and update. It works on c in
// place; callers pass a clone.
func (s *Service) prepare(c *contact.Contact) error {
	if err := contact.Validate(c, contact.ValidateOptions{CheckEmail: s.opts.ValidateEmails}); err != nil {
		return err
	}
	if len(c.Image) > 0 {
		data, contentType, err := contact.PrepareImage(c.Image, s.opts.Image)
		if err != nil {
			return err
		}
		c.Image = data
		c.ImageContentType = &contentType
	}
	return nil
}

// Insert creates a contact in the folder named by c.FolderID and returns the
// stored record.
func (s *Service) Insert(ctx context.Context, sess Session, in *contact.Contact) (*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	if in.FolderID == nil {
		return nil, contact.ErrMandatoryField(contact.Lookup(contact.FieldFolderID).Label)
	}
	c := in.Clone()
	if err := s.prepare(c); err != nil {
		return nil, err
	}
	if err := contact.EnsureDisplayName(c); err != nil {
		return nil, err
	}
	if len(c.Image) == 0 {
		c.Image, c.ImageContentType = nil, nil
	}
	if len(c.DistributionList) > 0 && c.MarkAsDistributionList == nil {
		c.MarkAsDistributionList = contact.Ptr(true)
	}

	a, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, c.Folder())
	if err != nil {
		return nil, err
	}
	if err := acl.CheckCreate(a.Permission, a.Folder, c); err != nil {
		return nil, err
	}

	uid := sess.UserID()
	now := s.clock()
	var out *contact.Contact
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		id, err := tx.NextID(ctx, sess.ContextID, "contact")
		if err != nil {
			return err
		}
		c.ObjectID = &id
		c.ContextID = contact.Ptr(sess.ContextID)
		c.CreatedBy = &uid
		c.ModifiedBy = &uid
		c.CreationDate = &now
		c.LastModified = &now
		if c.UID == nil || *c.UID == "" {
			c.UID = contact.Ptr(uuid.NewString())
		}
		zero := 0
		c.NumberOfAttachments = &zero
		c.NumberOfDistributionList = &zero
		c.NumberOfLinks = &zero
		c.NumberOfImages = &zero

		if err := s.resolveMembers(ctx, tx, sess, c.DistributionList); err != nil {
			return err
		}
		if err := s.resolveLinks(ctx, tx, sess, c.Links); err != nil {
			return err
		}
		if err := tx.InsertContact(ctx, c); err != nil {
			return err
		}
		if len(c.DistributionList) > 0 {
			if err := tx.ApplyDistributionList(ctx, sess.ContextID, id, c.DistributionList, nil); err != nil {
				return err
			}
		}
		if len(c.Links) > 0 {
			if err := tx.ApplyLinks(ctx, sess.ContextID, c, c.Links, nil); err != nil {
				return err
			}
		}
		if c.Image != nil {
			if err := tx.PutImage(ctx, sess.ContextID, id, storage.Image{
				Data: c.Image, ContentType: *c.ImageContentType, LastModified: now,
			}); err != nil {
				return err
			}
		}
		out, err = tx.GetContact(ctx, sess.ContextID, id, storage.LoadAll)
		return err
	})
	if err != nil {
		s.logger.Debug().Err(err).Int("cid", sess.ContextID).Int("folder", c.Folder()).Msg("insert failed")
		return nil, err
	}

	s.publish(ctx, events.Event{
		Kind: events.Created, ContextID: sess.ContextID, FolderID: c.Folder(),
		ObjectID: c.ID(), UserID: uid, Time: now,
	})
	return out, nil
}

// Update applies the set fields of in to the stored contact in folderID.
// lastModified is the client's view of the contact; a newer stored version
// is a conflict and nothing is written. Setting FolderID to another folder
// moves the contact.
func (s *Service) Update(ctx context.Context, sess Session, in *contact.Contact, folderID int, lastModified time.Time) (*contact.Contact, error) {
	if err := s.checkModule(ctx, sess); err != nil {
		return nil, err
	}
	id := in.ID()
	if id == 0 {
		return nil, contact.ErrMandatoryField(contact.Lookup(contact.FieldObjectID).Label)
	}
	upd := in.Clone()
	if err := s.prepare(upd); err != nil {
		return nil, err
	}
	if upd.DisplayName != nil && *upd.DisplayName == "" {
		return nil, contact.ErrMandatoryField(contact.Lookup(contact.FieldDisplayName).Label)
	}

	src, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, folderID)
	if err != nil {
		return nil, err
	}

	uid := sess.UserID()
	var (
		now   time.Time
		moved bool
		out   *contact.Contact
	)
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		original, err := tx.GetContact(ctx, sess.ContextID, id, storage.LoadAll)
		if err != nil {
			return err
		}
		if original.Folder() != folderID {
			return contact.ErrNotFound(sess.ContextID, id)
		}
		stored := *original.LastModified
		if stored.UnixMilli() > lastModified.UnixMilli() {
			return contact.ErrConflict(id)
		}
		if err := acl.CheckWrite(src.Permission, uid, src.Folder, original); err != nil {
			return err
		}
		if err := acl.CheckPrivateChange(uid, original, upd); err != nil {
			return err
		}

		fields := contact.Diff(original, upd)
		merged := original.Clone()
		for _, f := range fields {
			if m := contact.Lookup(f); m.HasColumn() {
				m.SetValue(merged, m.Get(upd))
			}
		}

		now = s.clock()
		if !now.After(stored) {
			now = stored.Add(time.Millisecond)
		}

		if upd.FolderID != nil && upd.Folder() != folderID {
			dst, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, upd.Folder())
			if err != nil {
				return err
			}
			if err := acl.CheckMove(src.Permission, dst.Permission, uid, src.Folder, dst.Folder, original, upd); err != nil {
				return err
			}
			if err := tx.WriteTombstone(ctx, original, uid, now); err != nil {
				return err
			}
			moved = true
		} else {
			fields = slices.DeleteFunc(fields, func(f contact.Field) bool { return f == contact.FieldFolderID })
			if err := acl.CheckPrivateFlag(src.Folder, merged); err != nil {
				return err
			}
		}

		merged.ModifiedBy = &uid
		merged.LastModified = &now
		if err := tx.UpdateContact(ctx, merged, fields, stored); err != nil {
			return err
		}
		if moved {
			if err := tx.MoveReferences(ctx, sess.ContextID, id, merged.Folder()); err != nil {
				return err
			}
		}

		if slices.Contains(fields, contact.FieldDistributionList) {
			add, remove := contact.DiffDistributionList(original.DistributionList, upd.DistributionList)
			if err := s.resolveMembers(ctx, tx, sess, add); err != nil {
				return err
			}
			if err := tx.ApplyDistributionList(ctx, sess.ContextID, id, add, remove); err != nil {
				return err
			}
		}
		if slices.Contains(fields, contact.FieldLinks) {
			add, remove := contact.DiffLinks(original.Links, upd.Links)
			if err := s.resolveLinks(ctx, tx, sess, add); err != nil {
				return err
			}
			if err := tx.ApplyLinks(ctx, sess.ContextID, merged, add, remove); err != nil {
				return err
			}
		}
		if slices.Contains(fields, contact.FieldImage) {
			if len(upd.Image) == 0 {
				err = tx.RemoveImage(ctx, sess.ContextID, id)
			} else {
				err = tx.PutImage(ctx, sess.ContextID, id, storage.Image{
					Data: upd.Image, ContentType: *upd.ImageContentType, LastModified: now,
				})
			}
			if err != nil {
				return err
			}
		}
		out, err = tx.GetContact(ctx, sess.ContextID, id, storage.LoadAll)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := events.Event{
		Kind: events.Updated, ContextID: sess.ContextID, FolderID: folderID,
		ObjectID: id, UserID: uid, Time: now,
	}
	if moved {
		ev.FolderID, ev.OldFolderID = upd.Folder(), folderID
	}
	s.publish(ctx, ev)
	return out, nil
}

// Delete removes a contact. A zero lastModified skips the conflict check.
// Unless hard is set a tombstone is kept for synchronising clients.
func (s *Service) Delete(ctx context.Context, sess Session, folderID, objectID int, lastModified time.Time, hard bool) error {
	if err := s.checkModule(ctx, sess); err != nil {
		return err
	}
	a, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, folderID)
	if err != nil {
		return err
	}
	uid := sess.UserID()
	now := s.clock()
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		c, err := tx.GetContact(ctx, sess.ContextID, objectID, storage.Load{})
		if err != nil {
			return err
		}
		if c.Folder() != folderID {
			return contact.ErrNotFound(sess.ContextID, objectID)
		}
		if !lastModified.IsZero() && c.LastModified.UnixMilli() > lastModified.UnixMilli() {
			return contact.ErrConflict(objectID)
		}
		if err := acl.CheckDelete(a.Permission, uid, a.Folder, c); err != nil {
			return err
		}
		return tx.DeleteContact(ctx, sess.ContextID, objectID, uid, now, hard)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Kind: events.Deleted, ContextID: sess.ContextID, FolderID: folderID,
		ObjectID: objectID, UserID: uid, Time: now,
	})
	return nil
}

// referenced loads a contact named by a list member or link. The caller must
// be able to read it; a private contact of someone else counts as missing.
func (s *Service) referenced(ctx context.Context, tx storage.Tx, sess Session, id int) (*contact.Contact, error) {
	ref, err := tx.GetContact(ctx, sess.ContextID, id, storage.Load{})
	if err != nil {
		return nil, err
	}
	if ref.IsPrivate() && ref.Creator() != sess.UserID() {
		return nil, contact.ErrNotFound(sess.ContextID, id)
	}
	a, err := s.folders.Resolve(ctx, sess.ContextID, sess.User, ref.Folder())
	if err != nil {
		return nil, err
	}
	if err := acl.CheckRead(a.Permission, sess.UserID(), a.Folder, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// resolveMembers fills the cached folder, name and address of list members
// that reference stored contacts.
func (s *Service) resolveMembers(ctx context.Context, tx storage.Tx, sess Session, members []contact.DistributionListEntry) error {
	for i := range members {
		e := &members[i]
		if e.Independent() {
			continue
		}
		ref, err := s.referenced(ctx, tx, sess, e.ContactID)
		if err != nil {
			return err
		}
		e.FolderID = ref.Folder()
		if ref.DisplayName != nil {
			e.DisplayName = *ref.DisplayName
		}
		e.Email = ref.EmailAt(e.EmailField)
		if e.Email == "" {
			return contact.ErrMandatoryField("Distribution list email")
		}
	}
	return nil
}

// resolveLinks fills the cached folder and name of the linked contacts.
func (s *Service) resolveLinks(ctx context.Context, tx storage.Tx, sess Session, links []contact.LinkEntry) error {
	for i := range links {
		l := &links[i]
		ref, err := s.referenced(ctx, tx, sess, l.LinkedID)
		if err != nil {
			return err
		}
		l.LinkedFolder = ref.Folder()
		if ref.DisplayName != nil {
			l.LinkedName = *ref.DisplayName
		}
	}
	return nil
}
