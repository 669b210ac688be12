package sqlstore

import (
	"context"
	"time"
)

func (t *tx) ReassignContact(ctx context.Context, cid, id, owner int, folderID *int, now time.Time) error {
	if folderID != nil {
		_, err := t.exec(ctx,
			`UPDATE contacts SET created_by = ?, folder_id = ?, last_modified = ? WHERE cid = ? AND id = ?`,
			owner, *folderID, now.UnixMilli(), cid, id)
		return err
	}
	_, err := t.exec(ctx,
		`UPDATE contacts SET created_by = ?, last_modified = ? WHERE cid = ? AND id = ?`,
		owner, now.UnixMilli(), cid, id)
	return err
}

func (t *tx) ResetModifier(ctx context.Context, cid, from, to int) error {
	for _, table := range []string{"contacts", "deleted_contacts"} {
		if _, err := t.exec(ctx,
			`UPDATE `+table+` SET modified_by = ? WHERE cid = ? AND modified_by = ?`, to, cid, from); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) PurgeTombstone(ctx context.Context, cid, id int) error {
	stmts := []string{
		`DELETE FROM deleted_contact_dlist WHERE cid = ? AND contact_id = ?`,
		`DELETE FROM deleted_contact_images WHERE cid = ? AND contact_id = ?`,
		`DELETE FROM deleted_contacts WHERE cid = ? AND id = ?`,
	}
	for _, q := range stmts {
		if _, err := t.exec(ctx, q, cid, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) ReassignTombstones(ctx context.Context, cid, from, to int) error {
	_, err := t.exec(ctx,
		`UPDATE deleted_contacts SET created_by = ? WHERE cid = ? AND created_by = ?`, to, cid, from)
	return err
}

// RemoveDanglingReferences detaches list members and drops links and images
// that point at contacts which no longer exist, then refreshes the counters.
func (t *tx) RemoveDanglingReferences(ctx context.Context, cid int) error {
	stmts := []string{
		`UPDATE contact_dlist SET member_id = NULL, member_folder = NULL, email_field = NULL
		 WHERE cid = ? AND member_id IS NOT NULL
		   AND NOT EXISTS (SELECT 1 FROM contacts c WHERE c.cid = contact_dlist.cid AND c.id = contact_dlist.member_id)`,
		`DELETE FROM contact_dlist
		 WHERE cid = ?
		   AND NOT EXISTS (SELECT 1 FROM contacts c WHERE c.cid = contact_dlist.cid AND c.id = contact_dlist.contact_id)`,
		`DELETE FROM contact_links
		 WHERE cid = ?
		   AND (NOT EXISTS (SELECT 1 FROM contacts c WHERE c.cid = contact_links.cid AND c.id = contact_links.first_id)
		     OR NOT EXISTS (SELECT 1 FROM contacts c WHERE c.cid = contact_links.cid AND c.id = contact_links.second_id))`,
		`DELETE FROM contact_images
		 WHERE cid = ?
		   AND NOT EXISTS (SELECT 1 FROM contacts c WHERE c.cid = contact_images.cid AND c.id = contact_images.contact_id)`,
		`UPDATE contacts SET number_of_links =
			(SELECT COUNT(*) FROM contact_links l WHERE l.cid = contacts.cid AND (l.first_id = contacts.id OR l.second_id = contacts.id))
		 WHERE cid = ?`,
		`UPDATE contacts SET number_of_distribution_list =
			(SELECT COUNT(*) FROM contact_dlist d WHERE d.cid = contacts.cid AND d.contact_id = contacts.id)
		 WHERE cid = ? AND COALESCE(mark_as_distribution_list, 0) = 1`,
	}
	for _, q := range stmts {
		if _, err := t.exec(ctx, q, cid); err != nil {
			return err
		}
	}
	return nil
}
