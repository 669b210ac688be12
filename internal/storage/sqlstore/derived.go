package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

const chunkSize = 500

func chunks(ids []int) [][]int {
	var out [][]int
	for len(ids) > chunkSize {
		out = append(out, ids[:chunkSize])
		ids = ids[chunkSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func dlistTable(t storage.Table) string {
	if t == storage.Deleted {
		return "deleted_contact_dlist"
	}
	return "contact_dlist"
}

func imageTable(t storage.Table) string {
	if t == storage.Deleted {
		return "deleted_contact_images"
	}
	return "contact_images"
}

// loadDerived fills the fields that live outside the contacts table.
func loadDerived(ctx context.Context, q querier, d storage.Dialect, table storage.Table, cid int, cs []*contact.Contact, load storage.Load) error {
	if len(cs) == 0 {
		return nil
	}
	byID := make(map[int]*contact.Contact, len(cs))
	ids := make([]int, 0, len(cs))
	for _, c := range cs {
		byID[c.ID()] = c
		ids = append(ids, c.ID())
	}
	for _, part := range chunks(ids) {
		if load.DistributionList {
			if err := loadDistributionLists(ctx, q, d, table, cid, part, byID); err != nil {
				return err
			}
		}
		if load.Links && table == storage.Live {
			if err := loadLinks(ctx, q, d, cid, part, byID); err != nil {
				return err
			}
		}
		if load.Image {
			if err := loadImages(ctx, q, d, table, cid, part, byID); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadDistributionLists(ctx context.Context, q querier, d storage.Dialect, table storage.Table, cid int, ids []int, byID map[int]*contact.Contact) error {
	for _, id := range ids {
		if c := byID[id]; c.IsDistributionList() && c.DistributionList == nil {
			c.DistributionList = []contact.DistributionListEntry{}
		}
	}
	rows, err := q.QueryContext(ctx, d.Rebind(`
		SELECT contact_id, member_id, member_folder, email_field, display_name, email
		FROM `+dlistTable(table)+`
		WHERE cid = ? AND contact_id IN (`+placeholders(len(ids))+`)
		ORDER BY contact_id, position`),
		append([]any{cid}, intArgs(ids)...)...)
	if err != nil {
		return contact.ErrSQL(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			owner                      int
			member, folder, emailField sql.NullInt64
			displayName, email         sql.NullString
		)
		if err := rows.Scan(&owner, &member, &folder, &emailField, &displayName, &email); err != nil {
			return contact.ErrSQL(err)
		}
		c := byID[owner]
		if c == nil {
			continue
		}
		c.DistributionList = append(c.DistributionList, contact.DistributionListEntry{
			ContactID:   int(member.Int64),
			FolderID:    int(folder.Int64),
			EmailField:  int(emailField.Int64),
			DisplayName: displayName.String,
			Email:       email.String,
		})
	}
	return contact.ErrSQL(rows.Err())
}

func loadLinks(ctx context.Context, q querier, d storage.Dialect, cid int, ids []int, byID map[int]*contact.Contact) error {
	ph := placeholders(len(ids))
	args := append([]any{cid}, intArgs(ids)...)
	args = append(args, intArgs(ids)...)
	rows, err := q.QueryContext(ctx, d.Rebind(`
		SELECT first_id, first_folder, first_name, second_id, second_folder, second_name
		FROM contact_links
		WHERE cid = ? AND (first_id IN (`+ph+`) OR second_id IN (`+ph+`))
		ORDER BY first_id, second_id`), args...)
	if err != nil {
		return contact.ErrSQL(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			firstID, firstFolder, secondID, secondFolder int
			firstName, secondName                        sql.NullString
		)
		if err := rows.Scan(&firstID, &firstFolder, &firstName, &secondID, &secondFolder, &secondName); err != nil {
			return contact.ErrSQL(err)
		}
		if c := byID[firstID]; c != nil {
			c.Links = append(c.Links, contact.LinkEntry{
				ContactID: firstID, FolderID: firstFolder, DisplayName: firstName.String,
				LinkedID: secondID, LinkedFolder: secondFolder, LinkedName: secondName.String,
			})
		}
		if c := byID[secondID]; c != nil {
			c.Links = append(c.Links, contact.LinkEntry{
				ContactID: secondID, FolderID: secondFolder, DisplayName: secondName.String,
				LinkedID: firstID, LinkedFolder: firstFolder, LinkedName: firstName.String,
			})
		}
	}
	return contact.ErrSQL(rows.Err())
}

func loadImages(ctx context.Context, q querier, d storage.Dialect, table storage.Table, cid int, ids []int, byID map[int]*contact.Contact) error {
	rows, err := q.QueryContext(ctx, d.Rebind(`
		SELECT contact_id, image, content_type, last_modified
		FROM `+imageTable(table)+`
		WHERE cid = ? AND contact_id IN (`+placeholders(len(ids))+`)`),
		append([]any{cid}, intArgs(ids)...)...)
	if err != nil {
		return contact.ErrSQL(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id          int
			data        []byte
			contentType string
			lm          int64
		)
		if err := rows.Scan(&id, &data, &contentType, &lm); err != nil {
			return contact.ErrSQL(err)
		}
		if c := byID[id]; c != nil {
			c.Image = data
			c.ImageContentType = contact.Ptr(contentType)
			c.ImageLastModified = contact.Ptr(time.UnixMilli(lm).UTC())
		}
	}
	return contact.ErrSQL(rows.Err())
}

func (t *tx) ApplyDistributionList(ctx context.Context, cid, id int, add, remove []contact.DistributionListEntry) error {
	for _, e := range remove {
		var err error
		if e.Independent() {
			_, err = t.exec(ctx, `
				DELETE FROM contact_dlist
				WHERE cid = ? AND contact_id = ? AND member_id IS NULL AND COALESCE(display_name, '') = ? AND email = ?`,
				cid, id, e.DisplayName, e.Email)
		} else {
			_, err = t.exec(ctx, `
				DELETE FROM contact_dlist WHERE cid = ? AND contact_id = ? AND member_id = ? AND email_field = ?`,
				cid, id, e.ContactID, e.EmailField)
		}
		if err != nil {
			return err
		}
	}
	if len(add) > 0 {
		var pos int
		if err := t.tx.QueryRowContext(ctx, t.rebind(
			`SELECT COALESCE(MAX(position), 0) FROM contact_dlist WHERE cid = ? AND contact_id = ?`),
			cid, id).Scan(&pos); err != nil {
			return contact.ErrSQL(err)
		}
		for _, e := range add {
			pos++
			var member, folder, field any
			if !e.Independent() {
				member, folder, field = e.ContactID, e.FolderID, e.EmailField
			}
			if _, err := t.exec(ctx, `
				INSERT INTO contact_dlist (cid, contact_id, position, member_id, member_folder, email_field, display_name, email)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				cid, id, pos, member, folder, field, e.DisplayName, e.Email); err != nil {
				return err
			}
		}
	}
	_, err := t.exec(ctx, `
		UPDATE contacts SET number_of_distribution_list =
			(SELECT COUNT(*) FROM contact_dlist d WHERE d.cid = ? AND d.contact_id = ?)
		WHERE cid = ? AND id = ?`,
		cid, id, cid, id)
	return err
}

func (t *tx) ApplyLinks(ctx context.Context, cid int, owner *contact.Contact, add, remove []contact.LinkEntry) error {
	id := owner.ID()
	touched := []int{id}
	for _, l := range remove {
		if err := t.deleteLink(ctx, cid, id, l.LinkedID); err != nil {
			return err
		}
		touched = append(touched, l.LinkedID)
	}
	name := ""
	if owner.DisplayName != nil {
		name = *owner.DisplayName
	}
	for _, l := range add {
		if err := t.deleteLink(ctx, cid, id, l.LinkedID); err != nil {
			return err
		}
		if _, err := t.exec(ctx, `
			INSERT INTO contact_links (cid, first_id, first_folder, first_name, second_id, second_folder, second_name)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cid, id, owner.Folder(), name, l.LinkedID, l.LinkedFolder, l.LinkedName); err != nil {
			return err
		}
		touched = append(touched, l.LinkedID)
	}
	return t.recountLinks(ctx, cid, touched)
}

func (t *tx) deleteLink(ctx context.Context, cid, a, b int) error {
	_, err := t.exec(ctx, `
		DELETE FROM contact_links
		WHERE cid = ? AND ((first_id = ? AND second_id = ?) OR (first_id = ? AND second_id = ?))`,
		cid, a, b, b, a)
	return err
}

func (t *tx) recountLinks(ctx context.Context, cid int, ids []int) error {
	for _, id := range ids {
		if _, err := t.exec(ctx, `
			UPDATE contacts SET number_of_links =
				(SELECT COUNT(*) FROM contact_links l WHERE l.cid = ? AND (l.first_id = ? OR l.second_id = ?))
			WHERE cid = ? AND id = ?`,
			cid, id, id, cid, id); err != nil {
			return err
		}
	}
	return nil
}

// removeLinksOf drops every link of id and refreshes the counters of the
// contacts on the other side.
func (t *tx) removeLinksOf(ctx context.Context, cid, id int) error {
	rows, err := t.tx.QueryContext(ctx, t.rebind(`
		SELECT first_id, second_id FROM contact_links WHERE cid = ? AND (first_id = ? OR second_id = ?)`),
		cid, id, id)
	if err != nil {
		return contact.ErrSQL(err)
	}
	var others []int
	for rows.Next() {
		var a, b int
		if err := rows.Scan(&a, &b); err != nil {
			rows.Close()
			return contact.ErrSQL(err)
		}
		if a == id {
			others = append(others, b)
		} else {
			others = append(others, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return contact.ErrSQL(err)
	}
	if _, err := t.exec(ctx,
		`DELETE FROM contact_links WHERE cid = ? AND (first_id = ? OR second_id = ?)`, cid, id, id); err != nil {
		return err
	}
	return t.recountLinks(ctx, cid, others)
}

func (t *tx) MoveReferences(ctx context.Context, cid, id, folderID int) error {
	for _, q := range []string{
		`UPDATE contact_dlist SET member_folder = ? WHERE cid = ? AND member_id = ?`,
		`UPDATE contact_links SET first_folder = ? WHERE cid = ? AND first_id = ?`,
		`UPDATE contact_links SET second_folder = ? WHERE cid = ? AND second_id = ?`,
	} {
		if _, err := t.exec(ctx, q, folderID, cid, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) PutImage(ctx context.Context, cid, id int, img storage.Image) error {
	if _, err := t.exec(ctx, `DELETE FROM contact_images WHERE cid = ? AND contact_id = ?`, cid, id); err != nil {
		return err
	}
	if _, err := t.exec(ctx, `
		INSERT INTO contact_images (cid, contact_id, image, content_type, last_modified) VALUES (?, ?, ?, ?, ?)`,
		cid, id, img.Data, img.ContentType, img.LastModified.UnixMilli()); err != nil {
		return err
	}
	_, err := t.exec(ctx, `UPDATE contacts SET number_of_images = 1 WHERE cid = ? AND id = ?`, cid, id)
	return err
}

func (t *tx) RemoveImage(ctx context.Context, cid, id int) error {
	if _, err := t.exec(ctx, `DELETE FROM contact_images WHERE cid = ? AND contact_id = ?`, cid, id); err != nil {
		return err
	}
	_, err := t.exec(ctx, `UPDATE contacts SET number_of_images = 0 WHERE cid = ? AND id = ?`, cid, id)
	return err
}
