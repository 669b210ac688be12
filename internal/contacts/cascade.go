package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/events"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

type ActionKind int

const (
	// ActionDelete removes the contact without a tombstone.
	ActionDelete ActionKind = iota + 1
	// ActionReassign hands the contact to another owner.
	ActionReassign
	// ActionReassignMove hands the contact to another owner and moves it
	// into that owner's default folder.
	ActionReassignMove
	ActionResetModifier
	ActionPurgeTombstone
	ActionReassignTombstones
)

func (k ActionKind) String() string {
	switch k {
	case ActionDelete:
		return "delete"
	case ActionReassign:
		return "reassign"
	case ActionReassignMove:
		return "reassign-move"
	case ActionResetModifier:
		return "reset-modifier"
	case ActionPurgeTombstone:
		return "purge-tombstone"
	case ActionReassignTombstones:
		return "reassign-tombstones"
	}
	return "unknown"
}

// Action is one step of a user deletion cascade.
type Action struct {
	Kind      ActionKind
	ContactID int
	// To is the new owner or modifier, FolderID the target folder of a move.
	To       int
	FolderID int
}

// UserDeletion is everything PlanUserDeletion looks at.
type UserDeletion struct {
	UserID      int
	AdminUserID int
	// Created holds the live contacts created by the user.
	Created []*contact.Contact
	// UserContact is the contact representing the user, nil if none.
	UserContact *contact.Contact
	// Tombstones holds the deleted contacts created by the user.
	Tombstones []*contact.Contact
	// Folders maps the folder ids of Created and Tombstones to their folder.
	// A missing id is a folder that could not be resolved.
	Folders map[int]*storage.Folder
	// AdminFolder is the default contact folder of the admin, zero if none.
	AdminFolder int
}

// PlanUserDeletion decides what happens to every contact a deleted user
// leaves behind:
//
//   - private contacts and contacts in the user's own private folders are
//     deleted, as is the contact representing the user
//   - contacts in another user's private folder go to that folder's owner
//   - contacts in public or shared folders go to the admin
//   - contacts whose folder is gone go to the admin and move into the
//     admin's default folder
//   - the user is replaced as last modifier by the admin
//   - tombstones of private data are purged, the rest go to the admin
func PlanUserDeletion(in UserDeletion) []Action {
	var plan []Action
	ownPrivate := func(folderID int) bool {
		f, ok := in.Folders[folderID]
		return ok && f.Type == storage.FolderPrivate && f.CreatedBy == in.UserID
	}

	deleted := map[int]bool{}
	if in.UserContact != nil {
		plan = append(plan, Action{Kind: ActionDelete, ContactID: in.UserContact.ID()})
		deleted[in.UserContact.ID()] = true
	}
	for _, c := range in.Created {
		if deleted[c.ID()] {
			continue
		}
		f, ok := in.Folders[c.Folder()]
		switch {
		case c.IsPrivate() || ownPrivate(c.Folder()):
			plan = append(plan, Action{Kind: ActionDelete, ContactID: c.ID()})
		case !ok && in.AdminFolder != 0:
			plan = append(plan, Action{Kind: ActionReassignMove, ContactID: c.ID(), To: in.AdminUserID, FolderID: in.AdminFolder})
		case !ok:
			plan = append(plan, Action{Kind: ActionDelete, ContactID: c.ID()})
		case f.Type == storage.FolderPrivate:
			plan = append(plan, Action{Kind: ActionReassign, ContactID: c.ID(), To: f.CreatedBy})
		default:
			plan = append(plan, Action{Kind: ActionReassign, ContactID: c.ID(), To: in.AdminUserID})
		}
	}

	plan = append(plan, Action{Kind: ActionResetModifier, To: in.AdminUserID})

	kept := 0
	for _, t := range in.Tombstones {
		_, ok := in.Folders[t.Folder()]
		if t.IsPrivate() || ownPrivate(t.Folder()) || !ok {
			plan = append(plan, Action{Kind: ActionPurgeTombstone, ContactID: t.ID()})
			continue
		}
		kept++
	}
	if kept > 0 {
		plan = append(plan, Action{Kind: ActionReassignTombstones, To: in.AdminUserID})
	}
	return plan
}

// CascadeReport summarises an executed cascade.
type CascadeReport struct {
	Actions int
	Failed  int
}

// DeleteUser runs the user deletion cascade. Every action runs in its own
// transaction; a failing action is logged and the cascade goes on. Finally
// distribution list members, links and images pointing at removed contacts
// are cleaned up.
func (s *Service) DeleteUser(ctx context.Context, cid, userID int) (*CascadeReport, error) {
	admin := s.opts.AdminUserID
	if userID == admin {
		return nil, contact.ErrUnexpected(fmt.Errorf("user %d is the context admin and can not be removed", userID))
	}
	in, err := s.collectUserDeletion(ctx, cid, userID)
	if err != nil {
		return nil, err
	}
	plan := PlanUserDeletion(in)

	report := &CascadeReport{Actions: len(plan)}
	now := s.clock()
	for _, a := range plan {
		err := s.store.WithTx(ctx, func(tx storage.Tx) error {
			return s.apply(ctx, tx, cid, userID, a)
		})
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).
				Int("cid", cid).
				Int("user", userID).
				Str("action", a.Kind.String()).
				Int("id", a.ContactID).
				Msg("user deletion step failed")
			continue
		}
		if a.Kind == ActionDelete {
			s.publish(ctx, events.Event{Kind: events.Deleted, ContextID: cid, ObjectID: a.ContactID, UserID: admin, Time: now})
		}
	}

	if err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.RemoveDanglingReferences(ctx, cid)
	}); err != nil {
		report.Failed++
		s.logger.Warn().Err(err).Int("cid", cid).Int("user", userID).Msg("failed to remove dangling references")
	}
	s.logger.Info().
		Int("cid", cid).
		Int("user", userID).
		Int("actions", report.Actions).
		Int("failed", report.Failed).
		Msg("user deletion cascade finished")
	return report, nil
}

func (s *Service) apply(ctx context.Context, tx storage.Tx, cid, userID int, a Action) error {
	now := s.clock()
	switch a.Kind {
	case ActionDelete:
		return tx.DeleteContact(ctx, cid, a.ContactID, s.opts.AdminUserID, now, true)
	case ActionReassign:
		return tx.ReassignContact(ctx, cid, a.ContactID, a.To, nil, now)
	case ActionReassignMove:
		return tx.ReassignContact(ctx, cid, a.ContactID, a.To, &a.FolderID, now)
	case ActionResetModifier:
		return tx.ResetModifier(ctx, cid, userID, a.To)
	case ActionPurgeTombstone:
		return tx.PurgeTombstone(ctx, cid, a.ContactID)
	case ActionReassignTombstones:
		return tx.ReassignTombstones(ctx, cid, userID, a.To)
	}
	return contact.ErrUnexpected(fmt.Errorf("unknown cascade action %d", a.Kind))
}

var cascadeFields = []contact.Field{contact.FieldInternalUserID}

func (s *Service) collectUserDeletion(ctx context.Context, cid, userID int) (UserDeletion, error) {
	in := UserDeletion{
		UserID:      userID,
		AdminUserID: s.opts.AdminUserID,
		Folders:     map[int]*storage.Folder{},
	}
	var err error
	in.Created, err = s.store.ListContacts(ctx, storage.Query{
		ContextID: cid, Fields: cascadeFields, CreatedBy: userID,
	})
	if err != nil {
		return in, err
	}
	own, err := s.store.ListContacts(ctx, storage.Query{
		ContextID: cid, Fields: cascadeFields, InternalUserID: userID, Limit: 1,
	})
	if err != nil {
		return in, err
	}
	if len(own) > 0 {
		in.UserContact = own[0]
	}
	in.Tombstones, err = s.store.ListContacts(ctx, storage.Query{
		ContextID: cid, Table: storage.Deleted, CreatedBy: userID,
	})
	if err != nil {
		return in, err
	}

	for _, cs := range [][]*contact.Contact{in.Created, in.Tombstones} {
		for _, c := range cs {
			id := c.Folder()
			if _, seen := in.Folders[id]; seen {
				continue
			}
			f, err := s.store.GetFolder(ctx, cid, id)
			if err != nil {
				if !isCode(err, contact.CodeFolderNotFound) {
					return in, err
				}
				s.logger.Warn().Int("cid", cid).Int("folder", id).Msg("contact folder not found during user deletion")
				continue
			}
			in.Folders[id] = f
		}
	}

	f, err := s.store.DefaultFolder(ctx, cid, s.opts.AdminUserID, storage.ModuleContacts)
	switch {
	case err == nil:
		in.AdminFolder = f.ID
	case !isCode(err, contact.CodeFolderNotFound):
		return in, err
	}
	return in, nil
}

// DeleteFolder removes every contact of a folder, keeping tombstones, and
// then the folder itself. It runs when the folder is deleted and performs no
// permission checks.
func (s *Service) DeleteFolder(ctx context.Context, cid, folderID, userID int) (int, error) {
	cs, err := s.store.ListContacts(ctx, storage.Query{
		ContextID: cid,
		Scopes:    []storage.Scope{{FolderID: folderID}},
	})
	if err != nil {
		return 0, err
	}
	now := s.clock()
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		for _, c := range cs {
			if err := tx.DeleteContact(ctx, cid, c.ID(), userID, now, false); err != nil {
				return err
			}
		}
		return tx.DeleteFolder(ctx, cid, folderID)
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.Event{Kind: events.FolderCleared, ContextID: cid, FolderID: folderID, UserID: userID, Time: now})
	return len(cs), nil
}

func isCode(err error, code contact.Code) bool {
	var ce *contact.Error
	return errors.As(err, &ce) && ce.Code == code
}
