package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

var errTooLong = errors.New("value too long for type character varying(320)")

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := New(db, storage.SQLite, zerolog.Nop(),
		WithTruncationDetector(func(err error) bool { return errors.Is(err, errTooLong) }))
	return db, mock, s
}

func TestGetFolder_NotFound(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + folderColumns + " FROM folders")).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetFolder(context.Background(), 1, 42)
	require.Error(t, err)
	var ce *contact.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, contact.CodeFolderNotFound, ce.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFolder_SQLErrorIsWrapped(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM folders").WillReturnError(errors.New("connection reset"))

	_, err := s.GetFolder(context.Background(), 1, 42)
	require.Error(t, err)
	assert.Equal(t, contact.CategoryServiceDown, contact.CategoryOf(err))
	assert.Contains(t, err.Error(), "CON-0100")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFolder_Success(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	now := time.Now().UnixMilli()
	rows := sqlmock.NewRows(strings.Split(strings.ReplaceAll(folderColumns, " ", ""), ",")).
		AddRow(1, 42, 0, "Contacts", storage.ModuleContacts, 1, 7, 1, now, now)
	mock.ExpectQuery("SELECT .* FROM folders").WillReturnRows(rows)

	f, err := s.GetFolder(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, f.ID)
	assert.Equal(t, storage.FolderPrivate, f.Type)
	assert.Equal(t, 7, f.CreatedBy)
	assert.True(t, f.Default)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM contact_images").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE contacts SET number_of_images = 0").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := contact.ErrConflict(5)
	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		if err := tx.RemoveImage(context.Background(), 1, 5); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contact.ErrConflictSentinel))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Commit(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sequences")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sequences SET id = id + 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(17))
	mock.ExpectCommit()

	var got int
	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		id, err := tx.NextID(context.Background(), 1, "contact")
		got = id
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 17, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContact_ConflictWhenStale(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contacts SET display_name = \\?, modified_by = \\?, last_modified = \\? WHERE cid = \\? AND id = \\? AND last_modified = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	now := time.Now()
	c := &contact.Contact{
		ObjectID:     contact.Ptr(5),
		ContextID:    contact.Ptr(1),
		DisplayName:  contact.Ptr("Doe, Jane"),
		ModifiedBy:   contact.Ptr(7),
		LastModified: contact.Ptr(now),
	}
	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.UpdateContact(context.Background(), c, []contact.Field{contact.FieldDisplayName}, now.Add(-time.Hour))
	})
	require.Error(t, err)
	var ce *contact.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, contact.CodeConflict, ce.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertContact_TruncationNamesField(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO contacts").WillReturnError(errTooLong)
	mock.ExpectRollback()

	c := &contact.Contact{
		ObjectID:    contact.Ptr(5),
		ContextID:   contact.Ptr(1),
		DisplayName: contact.Ptr(strings.Repeat("x", 400)),
	}
	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.InsertContact(context.Background(), c)
	})
	require.Error(t, err)
	var ce *contact.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, contact.CodeTruncated, ce.Code)
	assert.Equal(t, contact.FieldDisplayName, ce.Field)
	assert.Equal(t, 320, ce.Max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProbeFolder(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"total", "foreign", "private"}).AddRow(3, 1, 0))

	got, err := s.ProbeFolder(context.Background(), 1, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, storage.FolderContents{Any: true, Foreign: true}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactImage_NotFound(t *testing.T) {
	db, mock, s := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT image").WillReturnRows(sqlmock.NewRows([]string{"image", "content_type", "last_modified"}))

	_, err := s.ContactImage(context.Background(), 1, 5)
	assert.True(t, errors.Is(err, contact.ErrNotFoundSentinel))
	assert.NoError(t, mock.ExpectationsWereMet())
}
