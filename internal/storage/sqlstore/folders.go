package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

const folderColumns = `cid, id, parent_id, name, module, type, created_by, is_default, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(r rowScanner) (*storage.Folder, error) {
	var (
		f                storage.Folder
		typ, def         int
		created, updated int64
	)
	if err := r.Scan(&f.ContextID, &f.ID, &f.ParentID, &f.Name, &f.Module, &typ, &f.CreatedBy, &def, &created, &updated); err != nil {
		return nil, err
	}
	f.Type = storage.FolderType(typ)
	f.Default = def != 0
	f.CreatedAt = time.UnixMilli(created).UTC()
	f.UpdatedAt = time.UnixMilli(updated).UTC()
	return &f, nil
}

func (s *Store) GetFolder(ctx context.Context, cid, id int) (*storage.Folder, error) {
	var out *storage.Folder
	err := s.withConn(ctx, func(q querier) error {
		f, err := scanFolder(q.QueryRowContext(ctx, s.rebind(
			`SELECT `+folderColumns+` FROM folders WHERE cid = ? AND id = ?`), cid, id))
		if errors.Is(err, sql.ErrNoRows) {
			return contact.ErrFolderNotFound(cid, id)
		}
		out = f
		return contact.ErrSQL(err)
	})
	return out, err
}

func (s *Store) ListFoldersByOwner(ctx context.Context, cid, owner int) ([]*storage.Folder, error) {
	var out []*storage.Folder
	err := s.withConn(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, s.rebind(
			`SELECT `+folderColumns+` FROM folders WHERE cid = ? AND created_by = ? ORDER BY id`), cid, owner)
		if err != nil {
			return contact.ErrSQL(err)
		}
		defer rows.Close()
		for rows.Next() {
			f, err := scanFolder(rows)
			if err != nil {
				return contact.ErrSQL(err)
			}
			out = append(out, f)
		}
		return contact.ErrSQL(rows.Err())
	})
	return out, err
}

func (s *Store) DefaultFolder(ctx context.Context, cid, owner int, module string) (*storage.Folder, error) {
	var out *storage.Folder
	err := s.withConn(ctx, func(q querier) error {
		f, err := scanFolder(q.QueryRowContext(ctx, s.rebind(`
			SELECT `+folderColumns+` FROM folders
			WHERE cid = ? AND created_by = ? AND module = ? AND type = ? AND is_default = 1
			ORDER BY id LIMIT 1`),
			cid, owner, module, int(storage.FolderPrivate)))
		if errors.Is(err, sql.ErrNoRows) {
			return contact.ErrFolderNotFound(cid, 0)
		}
		out = f
		return contact.ErrSQL(err)
	})
	return out, err
}

func (s *Store) ListGrants(ctx context.Context, cid, folderID int) ([]storage.Grant, error) {
	var out []storage.Grant
	err := s.withConn(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, s.rebind(`
			SELECT folder_id, entity, folder_perm, read_perm, write_perm, delete_perm, admin
			FROM folder_permissions WHERE cid = ? AND folder_id = ? ORDER BY entity`), cid, folderID)
		if err != nil {
			return contact.ErrSQL(err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				g     storage.Grant
				admin int
			)
			if err := rows.Scan(&g.FolderID, &g.Entity, &g.Folder, &g.Read, &g.Write, &g.Delete, &admin); err != nil {
				return contact.ErrSQL(err)
			}
			g.Admin = admin != 0
			out = append(out, g)
		}
		return contact.ErrSQL(rows.Err())
	})
	return out, err
}

func (s *Store) ListGrantedFolders(ctx context.Context, cid int, entities []int) ([]int, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	var out []int
	err := s.withConn(ctx, func(q querier) error {
		args := append([]any{cid}, intArgs(entities)...)
		rows, err := q.QueryContext(ctx, s.rebind(`
			SELECT DISTINCT folder_id FROM folder_permissions
			WHERE cid = ? AND entity IN (`+placeholders(len(entities))+`) ORDER BY folder_id`), args...)
		if err != nil {
			return contact.ErrSQL(err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return contact.ErrSQL(err)
			}
			out = append(out, id)
		}
		return contact.ErrSQL(rows.Err())
	})
	return out, err
}

func (t *tx) CreateFolder(ctx context.Context, f *storage.Folder) error {
	if f.ID == 0 {
		id, err := t.NextID(ctx, f.ContextID, "folder")
		if err != nil {
			return err
		}
		f.ID = id
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if f.Default {
		// one default folder per owner and module
		if _, err := t.exec(ctx, `
			UPDATE folders SET is_default = 0 WHERE cid = ? AND created_by = ? AND module = ?`,
			f.ContextID, f.CreatedBy, f.Module); err != nil {
			return err
		}
	}
	_, err := t.exec(ctx, `
		INSERT INTO folders (`+folderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ContextID, f.ID, f.ParentID, f.Name, f.Module, int(f.Type), f.CreatedBy, boolInt(f.Default),
		f.CreatedAt.UnixMilli(), f.UpdatedAt.UnixMilli())
	return err
}

func (t *tx) PutGrant(ctx context.Context, cid int, g storage.Grant) error {
	if _, err := t.exec(ctx,
		`DELETE FROM folder_permissions WHERE cid = ? AND folder_id = ? AND entity = ?`,
		cid, g.FolderID, g.Entity); err != nil {
		return err
	}
	_, err := t.exec(ctx, `
		INSERT INTO folder_permissions (cid, folder_id, entity, folder_perm, read_perm, write_perm, delete_perm, admin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cid, g.FolderID, g.Entity, g.Folder, g.Read, g.Write, g.Delete, boolInt(g.Admin))
	return err
}

func (t *tx) DeleteFolder(ctx context.Context, cid, id int) error {
	if _, err := t.exec(ctx, `DELETE FROM folder_permissions WHERE cid = ? AND folder_id = ?`, cid, id); err != nil {
		return err
	}
	res, err := t.exec(ctx, `DELETE FROM folders WHERE cid = ? AND id = ?`, cid, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrFolderNotFound(cid, id)
	}
	return nil
}
