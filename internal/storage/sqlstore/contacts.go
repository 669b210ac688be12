package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

func (s *Store) GetContact(ctx context.Context, cid, id int, load storage.Load) (*contact.Contact, error) {
	var out *contact.Contact
	err := s.withConn(ctx, func(q querier) error {
		c, err := getContact(ctx, q, s.dialect, storage.Live, cid, id, load)
		out = c
		return err
	})
	return out, err
}

func (s *Store) ListContacts(ctx context.Context, query storage.Query) ([]*contact.Contact, error) {
	var out []*contact.Contact
	err := s.withConn(ctx, func(q querier) error {
		cs, err := listContacts(ctx, q, s.dialect, query, storage.LoadFor(query.Fields))
		out = cs
		return err
	})
	return out, err
}

func (s *Store) CountContacts(ctx context.Context, query storage.Query) (int, error) {
	st, err := query.BuildCount(s.dialect)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.withConn(ctx, func(q querier) error {
		return contact.ErrSQL(q.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n))
	})
	return n, err
}

func (s *Store) ContactImage(ctx context.Context, cid, id int) (*storage.Image, error) {
	var img storage.Image
	err := s.withConn(ctx, func(q querier) error {
		var lm int64
		err := q.QueryRowContext(ctx, s.rebind(
			`SELECT image, content_type, last_modified FROM contact_images WHERE cid = ? AND contact_id = ?`),
			cid, id).Scan(&img.Data, &img.ContentType, &lm)
		if errors.Is(err, sql.ErrNoRows) {
			return contact.ErrNotFound(cid, id)
		}
		if err != nil {
			return contact.ErrSQL(err)
		}
		img.LastModified = time.UnixMilli(lm).UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *Store) ProbeFolder(ctx context.Context, cid, folderID, userID int) (storage.FolderContents, error) {
	var (
		out                     storage.FolderContents
		total, foreign, private int64
	)
	err := s.withConn(ctx, func(q querier) error {
		return contact.ErrSQL(q.QueryRowContext(ctx, s.rebind(`
			SELECT COUNT(*),
				COALESCE(SUM(CASE WHEN created_by <> ? THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN private_flag = 1 THEN 1 ELSE 0 END), 0)
			FROM contacts WHERE cid = ? AND folder_id = ?`),
			userID, cid, folderID).Scan(&total, &foreign, &private))
	})
	if err != nil {
		return out, err
	}
	out.Any = total > 0
	out.Foreign = foreign > 0
	out.Private = private > 0
	return out, nil
}

func getContact(ctx context.Context, q querier, d storage.Dialect, table storage.Table, cid, id int, load storage.Load) (*contact.Contact, error) {
	cs, err := listContacts(ctx, q, d, storage.Query{
		ContextID: cid,
		Table:     table,
		Fields:    contact.AllFields(),
		ObjectIDs: []int{id},
	}, load)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, contact.ErrNotFound(cid, id)
	}
	return cs[0], nil
}

func listContacts(ctx context.Context, q querier, d storage.Dialect, query storage.Query, load storage.Load) ([]*contact.Contact, error) {
	st, err := query.Build(d)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, contact.ErrSQL(err)
	}
	defer rows.Close()

	dest := make([]any, len(st.Columns))
	for i, m := range st.Columns {
		dest[i] = m.ScanDest()
	}
	var out []*contact.Contact
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, contact.ErrSQL(err)
		}
		c := contact.New()
		for i, m := range st.Columns {
			m.Assign(c, dest[i])
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, contact.ErrSQL(err)
	}
	if err := loadDerived(ctx, q, d, query.Table, query.ContextID, out, load); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *tx) GetContact(ctx context.Context, cid, id int, load storage.Load) (*contact.Contact, error) {
	return getContact(ctx, t.tx, t.s.dialect, storage.Live, cid, id, load)
}

func (t *tx) NextID(ctx context.Context, cid int, sequence string) (int, error) {
	if _, err := t.exec(ctx,
		`INSERT INTO sequences (cid, name, id) VALUES (?, ?, 0) ON CONFLICT (cid, name) DO NOTHING`,
		cid, sequence); err != nil {
		return 0, err
	}
	var id int
	err := t.tx.QueryRowContext(ctx, t.rebind(
		`UPDATE sequences SET id = id + 1 WHERE cid = ? AND name = ? RETURNING id`),
		cid, sequence).Scan(&id)
	if err != nil {
		return 0, contact.ErrSQL(err)
	}
	return id, nil
}

func (t *tx) InsertContact(ctx context.Context, c *contact.Contact) error {
	var (
		names []string
		args  []any
	)
	for _, m := range contact.Columns() {
		if !m.IsSet(c) {
			continue
		}
		names = append(names, m.Name)
		args = append(args, m.Value(c))
	}
	q := `INSERT INTO contacts (` + strings.Join(names, ", ") + `) VALUES (` + placeholders(len(names)) + `)`
	if _, err := t.tx.ExecContext(ctx, t.rebind(q), args...); err != nil {
		return t.s.writeError(err, c)
	}
	return nil
}

func (t *tx) UpdateContact(ctx context.Context, c *contact.Contact, fields []contact.Field, lastModified time.Time) error {
	var (
		sets []string
		args []any
	)
	for _, f := range fields {
		m := contact.Lookup(f)
		if m == nil || !m.HasColumn() || f == contact.FieldModifiedBy || f == contact.FieldLastModified {
			continue
		}
		sets = append(sets, m.Name+" = ?")
		args = append(args, m.Value(c))
	}
	sets = append(sets, "modified_by = ?", "last_modified = ?")
	args = append(args,
		contact.Lookup(contact.FieldModifiedBy).Value(c),
		contact.Lookup(contact.FieldLastModified).Value(c),
		deref(c.ContextID), c.ID(), lastModified.UnixMilli())

	q := `UPDATE contacts SET ` + strings.Join(sets, ", ") + ` WHERE cid = ? AND id = ? AND last_modified = ?`
	res, err := t.tx.ExecContext(ctx, t.rebind(q), args...)
	if err != nil {
		return t.s.writeError(err, c)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return contact.ErrSQL(err)
	}
	if n == 0 {
		return contact.ErrConflict(c.ID())
	}
	return nil
}

func (t *tx) DeleteContact(ctx context.Context, cid, id, userID int, now time.Time, hard bool) error {
	if !hard {
		if err := t.copyToDeleted(ctx, cid, id, userID, now); err != nil {
			return err
		}
	}
	if _, err := t.exec(ctx, `DELETE FROM contact_dlist WHERE cid = ? AND contact_id = ?`, cid, id); err != nil {
		return err
	}
	// members of other lists keep their cached name and address
	if _, err := t.exec(ctx,
		`UPDATE contact_dlist SET member_id = NULL, member_folder = NULL, email_field = NULL WHERE cid = ? AND member_id = ?`,
		cid, id); err != nil {
		return err
	}
	if err := t.removeLinksOf(ctx, cid, id); err != nil {
		return err
	}
	if _, err := t.exec(ctx, `DELETE FROM contact_images WHERE cid = ? AND contact_id = ?`, cid, id); err != nil {
		return err
	}
	res, err := t.exec(ctx, `DELETE FROM contacts WHERE cid = ? AND id = ?`, cid, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return contact.ErrSQL(err)
	} else if n == 0 {
		return contact.ErrNotFound(cid, id)
	}
	return nil
}

func (t *tx) copyToDeleted(ctx context.Context, cid, id, userID int, now time.Time) error {
	if err := t.PurgeTombstone(ctx, cid, id); err != nil {
		return err
	}
	stmts := []string{
		`INSERT INTO deleted_contacts SELECT * FROM contacts WHERE cid = ? AND id = ?`,
		`INSERT INTO deleted_contact_dlist SELECT * FROM contact_dlist WHERE cid = ? AND contact_id = ?`,
		`INSERT INTO deleted_contact_images SELECT * FROM contact_images WHERE cid = ? AND contact_id = ?`,
	}
	for _, q := range stmts {
		if _, err := t.exec(ctx, q, cid, id); err != nil {
			return err
		}
	}
	_, err := t.exec(ctx,
		`UPDATE deleted_contacts SET modified_by = ?, last_modified = ? WHERE cid = ? AND id = ?`,
		userID, now.UnixMilli(), cid, id)
	return err
}

func (t *tx) WriteTombstone(ctx context.Context, c *contact.Contact, userID int, now time.Time) error {
	cid := deref(c.ContextID)
	if err := t.PurgeTombstone(ctx, cid, c.ID()); err != nil {
		return err
	}
	created := now
	if c.CreationDate != nil {
		created = *c.CreationDate
	}
	_, err := t.exec(ctx, `
		INSERT INTO deleted_contacts (cid, id, folder_id, created_by, modified_by, creation_date, last_modified, private_flag, uid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cid, c.ID(), c.Folder(), c.Creator(), userID, created.UnixMilli(), now.UnixMilli(),
		boolInt(c.IsPrivate()), contact.Lookup(contact.FieldUID).Value(c))
	return err
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
