package contacts_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sonroyaalmerol/ldap-contacts/internal/acl"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts/mocks"
	"github.com/sonroyaalmerol/ldap-contacts/internal/directory"
	"github.com/sonroyaalmerol/ldap-contacts/internal/events"
	"github.com/sonroyaalmerol/ldap-contacts/internal/folder"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage/sqlite"
)

const (
	cid   = 1
	admin = 2
)

var (
	owner    = &directory.User{ID: 7, UID: "jdoe"}
	coworker = &directory.User{ID: 8, UID: "asmith"}

	privateFolder = &storage.Folder{ContextID: cid, ID: 10, Name: "Contacts", Module: storage.ModuleContacts, Type: storage.FolderPrivate, CreatedBy: 7, Default: true}
	publicFolder  = &storage.Folder{ContextID: cid, ID: 20, Name: "Company", Module: storage.ModuleContacts, Type: storage.FolderPublic, CreatedBy: admin}
)

type fixture struct {
	svc     *contacts.Service
	store   *sqlite.Store
	folders *mocks.MockFolderAccess
	users   *mocks.MockUserConfig
	events  *mocks.MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	st, err := sqlite.New(filepath.Join(t.TempDir(), "contacts.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	f := &fixture{
		store:   st,
		folders: mocks.NewMockFolderAccess(ctrl),
		users:   mocks.NewMockUserConfig(ctrl),
		events:  mocks.NewMockPublisher(ctrl),
	}
	f.svc = contacts.New(st, f.folders, f.users, f.events, contacts.Options{
		AdminUserID:    admin,
		Image:          contact.ImageOptions{MaxBytes: 1 << 20, MaxWidth: 90, MaxHeight: 90},
		ValidateEmails: true,
	}, zerolog.Nop())
	return f
}

// enable lets every user through the module gate and accepts any event.
func (f *fixture) enable() *fixture {
	f.users.EXPECT().ModuleAccessible(gomock.Any(), cid, gomock.Any(), contacts.Module).Return(true, nil).AnyTimes()
	f.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return f
}

func (f *fixture) grant(user *directory.User, fl *storage.Folder, p acl.Permission) {
	f.folders.EXPECT().Resolve(gomock.Any(), cid, user, fl.ID).
		Return(&folder.Access{Folder: fl, Permission: p}, nil).AnyTimes()
}

func sessionOf(u *directory.User) contacts.Session {
	return contacts.Session{ContextID: cid, User: u}
}

func codeOf(err error) contact.Code {
	var ce *contact.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func person(folderID int, display, email string) *contact.Contact {
	c := &contact.Contact{FolderID: contact.Ptr(folderID), DisplayName: contact.Ptr(display)}
	if email != "" {
		c.Email1 = contact.Ptr(email)
	}
	return c
}

func (f *fixture) insert(t *testing.T, u *directory.User, c *contact.Contact) *contact.Contact {
	t.Helper()
	got, err := f.svc.Insert(context.Background(), sessionOf(u), c)
	require.NoError(t, err)
	return got
}

var readOwn = acl.Permission{Folder: acl.FolderCreateObjects, Read: acl.LevelOwn, Write: acl.LevelOwn, Delete: acl.LevelOwn}

func TestInsert_Example(t *testing.T) {
	f := newFixture(t)
	f.users.EXPECT().ModuleAccessible(gomock.Any(), cid, 7, contacts.Module).Return(true, nil).AnyTimes()
	f.grant(owner, privateFolder, acl.AllPermission)

	var published events.Event
	f.events.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev events.Event) error {
			published = ev
			return nil
		}).Times(1)

	got := f.insert(t, owner, &contact.Contact{
		FolderID:    contact.Ptr(10),
		DisplayName: contact.Ptr("Doe, John"),
		Email1:      contact.Ptr("john@x.com"),
	})

	assert.NotZero(t, got.ID())
	assert.Equal(t, 10, got.Folder())
	assert.Equal(t, 7, got.Creator())
	assert.Equal(t, 7, *got.ModifiedBy)
	assert.Equal(t, "Doe, John", *got.DisplayName)
	assert.Equal(t, "john@x.com", *got.Email1)
	require.NotNil(t, got.UID)
	assert.NotEmpty(t, *got.UID)
	require.NotNil(t, got.LastModified)
	assert.Equal(t, got.CreationDate.UnixMilli(), got.LastModified.UnixMilli())
	assert.Equal(t, 0, *got.NumberOfImages)

	assert.Equal(t, events.Created, published.Kind)
	assert.Equal(t, got.ID(), published.ObjectID)
	assert.Equal(t, 10, published.FolderID)
	assert.Equal(t, 7, published.UserID)
}

func TestInsert_Rejected(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(owner, publicFolder, acl.Permission{Folder: acl.FolderVisible, Read: acl.LevelAll})
	f.grant(coworker, publicFolder, acl.AllPermission)

	tests := []struct {
		name string
		user *directory.User
		in   *contact.Contact
		want contact.Code
	}{
		{
			name: "no folder",
			user: owner,
			in:   &contact.Contact{DisplayName: contact.Ptr("x")},
			want: contact.CodeMandatoryField,
		},
		{
			name: "invalid email",
			user: owner,
			in:   person(10, "x", "not an address"),
			want: contact.CodeInvalidEmail,
		},
		{
			name: "no display name",
			user: owner,
			in:   &contact.Contact{FolderID: contact.Ptr(10)},
			want: contact.CodeMandatoryField,
		},
		{
			name: "control character",
			user: owner,
			in:   person(10, "bad\x00name", ""),
			want: contact.CodeBadCharacters,
		},
		{
			name: "no create permission",
			user: owner,
			in:   person(20, "x", ""),
			want: contact.CodeNoCreatePermission,
		},
		{
			name: "private in public folder",
			user: coworker,
			in: &contact.Contact{
				FolderID: contact.Ptr(20), DisplayName: contact.Ptr("x"), PrivateFlag: contact.Ptr(true),
			},
			want: contact.CodePrivateInPublic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Insert(context.Background(), sessionOf(tt.user), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.want, codeOf(err), "error: %v", err)
		})
	}

	n, err := f.store.CountContacts(context.Background(), storage.Query{ContextID: cid})
	require.NoError(t, err)
	assert.Zero(t, n, "rejected inserts must not write")
}

func TestModuleDisabled(t *testing.T) {
	f := newFixture(t)
	f.users.EXPECT().ModuleAccessible(gomock.Any(), cid, 7, contacts.Module).Return(false, nil).AnyTimes()

	_, err := f.svc.Insert(context.Background(), sessionOf(owner), person(10, "x", ""))
	assert.Equal(t, contact.CodeModuleDisabled, codeOf(err))
	_, err = f.svc.Get(context.Background(), sessionOf(owner), 10, 1)
	assert.Equal(t, contact.CodeModuleDisabled, codeOf(err))
}

func TestPrivateVisibility(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(coworker, privateFolder, acl.Permission{Folder: acl.FolderVisible, Read: acl.LevelAll, Write: acl.LevelAll})
	ctx := context.Background()

	secret := person(10, "Secret", "")
	secret.PrivateFlag = contact.Ptr(true)
	secret = f.insert(t, owner, secret)
	open := f.insert(t, owner, person(10, "Open", ""))

	got, err := f.svc.Get(ctx, sessionOf(owner), 10, secret.ID())
	require.NoError(t, err)
	assert.True(t, got.IsPrivate())

	_, err = f.svc.Get(ctx, sessionOf(coworker), 10, secret.ID())
	assert.Equal(t, contact.CodeNotPrivateOwner, codeOf(err))

	list, err := f.svc.ListFolder(ctx, sessionOf(coworker), 10, nil, nil, contacts.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID(), list[0].ID())

	n, err := f.svc.Count(ctx, sessionOf(owner), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := f.svc.MayRead(ctx, sessionOf(coworker), 10, secret.ID())
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.svc.MayWrite(ctx, sessionOf(coworker), 10, open.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.MayDelete(ctx, sessionOf(coworker), 10, open.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	foreign, err := f.svc.ContainsForeignObjects(ctx, sessionOf(coworker), 10)
	require.NoError(t, err)
	assert.True(t, foreign)
	foreign, err = f.svc.ContainsForeignObjects(ctx, sessionOf(owner), 10)
	require.NoError(t, err)
	assert.False(t, foreign)
	nonEmpty, err := f.svc.ContainsAnyObjects(ctx, sessionOf(owner), 10)
	require.NoError(t, err)
	assert.True(t, nonEmpty)
}

func TestOwnObjectsOnly(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, publicFolder, acl.AllPermission)
	f.grant(coworker, publicFolder, readOwn)
	ctx := context.Background()

	theirs := f.insert(t, owner, person(20, "Owner's", ""))
	mine := f.insert(t, coworker, person(20, "Coworker's", ""))

	list, err := f.svc.ListFolder(ctx, sessionOf(coworker), 20, nil, nil, contacts.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID(), list[0].ID())

	_, err = f.svc.Get(ctx, sessionOf(coworker), 20, theirs.ID())
	assert.Equal(t, contact.CodeNoReadPermission, codeOf(err))

	err = f.svc.Delete(ctx, sessionOf(coworker), 20, theirs.ID(), time.Time{}, false)
	assert.Equal(t, contact.CodeNoDeletePermission, codeOf(err))

	upd := &contact.Contact{ObjectID: contact.Ptr(theirs.ID()), GivenName: contact.Ptr("x")}
	_, err = f.svc.Update(ctx, sessionOf(coworker), upd, 20, *theirs.LastModified)
	assert.Equal(t, contact.CodeNoWritePermission, codeOf(err))
}

func TestUpdate_ConflictLeavesContactUntouched(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	ctx := context.Background()

	c := f.insert(t, owner, person(10, "Doe, John", "john@x.com"))
	created := *c.LastModified

	stale := created.Add(-time.Second)
	_, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), DisplayName: contact.Ptr("Changed"),
	}, 10, stale)
	require.Error(t, err)
	assert.Equal(t, contact.CodeConflict, codeOf(err))

	got, err := f.svc.Get(ctx, sessionOf(owner), 10, c.ID())
	require.NoError(t, err)
	assert.Equal(t, "Doe, John", *got.DisplayName)
	assert.Equal(t, created.UnixMilli(), got.LastModified.UnixMilli())

	updated, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), DisplayName: contact.Ptr("Doe, John"), GivenName: contact.Ptr("John"),
	}, 10, created)
	require.NoError(t, err)
	assert.Equal(t, "John", *updated.GivenName)
	assert.Equal(t, "john@x.com", *updated.Email1)
	assert.True(t, updated.LastModified.After(created))

	// the first timestamp is stale now
	_, err = f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), GivenName: contact.Ptr("Jack"),
	}, 10, created)
	assert.Equal(t, contact.CodeConflict, codeOf(err))

	err = f.svc.Delete(ctx, sessionOf(owner), 10, c.ID(), created, false)
	assert.Equal(t, contact.CodeConflict, codeOf(err))
}

func TestUpdate_Move(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(owner, publicFolder, acl.AllPermission)
	ctx := context.Background()
	since := time.Now().Add(-time.Minute)

	secret := person(10, "Secret", "")
	secret.PrivateFlag = contact.Ptr(true)
	secret = f.insert(t, owner, secret)

	_, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(secret.ID()), FolderID: contact.Ptr(20),
	}, 10, *secret.LastModified)
	assert.Equal(t, contact.CodePrivateMove, codeOf(err))

	got, err := f.svc.Get(ctx, sessionOf(owner), 10, secret.ID())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Folder())

	plain := f.insert(t, owner, person(10, "Plain", ""))
	moved, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(plain.ID()), FolderID: contact.Ptr(20),
	}, 10, *plain.LastModified)
	require.NoError(t, err)
	assert.Equal(t, 20, moved.Folder())

	gone, err := f.svc.ListDeleted(ctx, sessionOf(owner), 10, since)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, plain.ID(), gone[0].ID())

	modified, err := f.svc.ListModified(ctx, sessionOf(owner), 20, since, nil)
	require.NoError(t, err)
	require.Len(t, modified, 1)
	assert.Equal(t, plain.ID(), modified[0].ID())
}

func TestDelete(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	ctx := context.Background()
	since := time.Now().Add(-time.Minute)

	c := f.insert(t, owner, person(10, "Doe, John", ""))
	hard := f.insert(t, owner, person(10, "Temp", ""))

	require.NoError(t, f.svc.Delete(ctx, sessionOf(owner), 10, c.ID(), *c.LastModified, false))
	require.NoError(t, f.svc.Delete(ctx, sessionOf(owner), 10, hard.ID(), time.Time{}, true))

	_, err := f.svc.Get(ctx, sessionOf(owner), 10, c.ID())
	assert.Equal(t, contact.CodeNotFound, codeOf(err))

	gone, err := f.svc.ListDeleted(ctx, sessionOf(owner), 10, since)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, c.ID(), gone[0].ID())

	err = f.svc.Delete(ctx, sessionOf(owner), 10, c.ID(), time.Time{}, false)
	assert.Equal(t, contact.CodeNotFound, codeOf(err))
}

func TestDistributionListAndLinks(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	ctx := context.Background()

	member := f.insert(t, owner, person(10, "Member", "member@x.com"))
	list := f.insert(t, owner, &contact.Contact{
		FolderID:    contact.Ptr(10),
		DisplayName: contact.Ptr("Team"),
		DistributionList: []contact.DistributionListEntry{
			{ContactID: member.ID(), EmailField: contact.EmailField1},
			{DisplayName: "Guest", Email: "guest@y.com"},
		},
		Links: []contact.LinkEntry{{LinkedID: member.ID()}},
	})

	assert.True(t, list.IsDistributionList())
	require.Len(t, list.DistributionList, 2)
	assert.Equal(t, 2, *list.NumberOfDistributionList)
	ref := list.DistributionList[0]
	assert.Equal(t, "Member", ref.DisplayName)
	assert.Equal(t, "member@x.com", ref.Email)
	assert.Equal(t, 10, ref.FolderID)
	assert.Equal(t, 1, *list.NumberOfLinks)

	updated, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(list.ID()),
		DistributionList: []contact.DistributionListEntry{
			{DisplayName: "Guest", Email: "guest@y.com"},
		},
		Links: []contact.LinkEntry{},
	}, 10, *list.LastModified)
	require.NoError(t, err)
	require.Len(t, updated.DistributionList, 1)
	assert.True(t, updated.DistributionList[0].Independent())
	assert.Equal(t, 1, *updated.NumberOfDistributionList)
	assert.Equal(t, 0, *updated.NumberOfLinks)
}

func TestReferencesNeedReadAccess(t *testing.T) {
	f := newFixture(t).enable()
	theirFolder := &storage.Folder{ContextID: cid, ID: 11, Name: "Contacts", Module: storage.ModuleContacts, Type: storage.FolderPrivate, CreatedBy: 8, Default: true}
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(coworker, theirFolder, acl.AllPermission)
	f.grant(coworker, privateFolder, acl.Permission{})
	ctx := context.Background()

	secret := person(10, "Secret", "secret@x.com")
	secret.PrivateFlag = contact.Ptr(true)
	secret = f.insert(t, owner, secret)
	hidden := f.insert(t, owner, person(10, "Hidden", "hidden@x.com"))

	listOf := func(id int) *contact.Contact {
		return &contact.Contact{
			FolderID:         contact.Ptr(11),
			DisplayName:      contact.Ptr("List"),
			DistributionList: []contact.DistributionListEntry{{ContactID: id, EmailField: contact.EmailField1}},
		}
	}
	linkTo := func(id int) *contact.Contact {
		return &contact.Contact{
			FolderID:    contact.Ptr(11),
			DisplayName: contact.Ptr("Linked"),
			Links:       []contact.LinkEntry{{LinkedID: id}},
		}
	}

	tests := []struct {
		name string
		in   *contact.Contact
		want contact.Code
	}{
		{"private member", listOf(secret.ID()), contact.CodeNotFound},
		{"member in unreadable folder", listOf(hidden.ID()), contact.CodeNoReadPermission},
		{"private link", linkTo(secret.ID()), contact.CodeNotFound},
		{"link into unreadable folder", linkTo(hidden.ID()), contact.CodeNoReadPermission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Insert(ctx, sessionOf(coworker), tt.in)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, tt.want, codeOf(err))
		})
	}

	n, err := f.svc.Count(ctx, sessionOf(coworker), 11)
	require.NoError(t, err)
	assert.Zero(t, n)

	list := f.insert(t, coworker, &contact.Contact{
		FolderID:         contact.Ptr(11),
		DisplayName:      contact.Ptr("Team"),
		DistributionList: []contact.DistributionListEntry{{DisplayName: "Guest", Email: "guest@y.com"}},
	})
	_, err = f.svc.Update(ctx, sessionOf(coworker), &contact.Contact{
		ObjectID: contact.Ptr(list.ID()),
		DistributionList: []contact.DistributionListEntry{
			{DisplayName: "Guest", Email: "guest@y.com"},
			{ContactID: secret.ID(), EmailField: contact.EmailField1},
		},
	}, 11, *list.LastModified)
	assert.Equal(t, contact.CodeNotFound, codeOf(err))

	got, err := f.svc.Get(ctx, sessionOf(coworker), 11, list.ID())
	require.NoError(t, err)
	require.Len(t, got.DistributionList, 1)
	assert.Equal(t, "guest@y.com", got.DistributionList[0].Email)
}

func TestUpdate_MoveFollowsReferences(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(owner, publicFolder, acl.AllPermission)
	ctx := context.Background()

	member := f.insert(t, owner, person(10, "Member", "member@x.com"))
	list := f.insert(t, owner, &contact.Contact{
		FolderID:         contact.Ptr(10),
		DisplayName:      contact.Ptr("Team"),
		DistributionList: []contact.DistributionListEntry{{ContactID: member.ID(), EmailField: contact.EmailField1}},
		Links:            []contact.LinkEntry{{LinkedID: member.ID()}},
	})

	moved, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(member.ID()), FolderID: contact.Ptr(20),
	}, 10, *member.LastModified)
	require.NoError(t, err)
	assert.Equal(t, 20, moved.Folder())
	require.Len(t, moved.Links, 1)
	assert.Equal(t, 20, moved.Links[0].FolderID)

	got, err := f.svc.Get(ctx, sessionOf(owner), 10, list.ID())
	require.NoError(t, err)
	require.Len(t, got.DistributionList, 1)
	assert.Equal(t, member.ID(), got.DistributionList[0].ContactID)
	assert.Equal(t, 20, got.DistributionList[0].FolderID)
	require.Len(t, got.Links, 1)
	assert.Equal(t, member.ID(), got.Links[0].LinkedID)
	assert.Equal(t, 20, got.Links[0].LinkedFolder)
}

func TestUpdate_PrivateFlagOnlyByCreator(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(coworker, privateFolder, acl.Permission{Folder: acl.FolderVisible, Read: acl.LevelAll, Write: acl.LevelAll})
	ctx := context.Background()

	c := f.insert(t, owner, person(10, "Doe, John", ""))

	_, err := f.svc.Update(ctx, sessionOf(coworker), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), PrivateFlag: contact.Ptr(true),
	}, 10, *c.LastModified)
	assert.Equal(t, contact.CodeNotPrivateOwner, codeOf(err))

	got, err := f.svc.Get(ctx, sessionOf(coworker), 10, c.ID())
	require.NoError(t, err)
	assert.False(t, got.IsPrivate())

	edited, err := f.svc.Update(ctx, sessionOf(coworker), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), GivenName: contact.Ptr("John"),
	}, 10, *c.LastModified)
	require.NoError(t, err)
	assert.Equal(t, "John", *edited.GivenName)

	private, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), PrivateFlag: contact.Ptr(true),
	}, 10, *edited.LastModified)
	require.NoError(t, err)
	assert.True(t, private.IsPrivate())
}

func TestGetUserContact_HidesForeignPrivate(t *testing.T) {
	f := newFixture(t).enable()
	adminFolder := &storage.Folder{ContextID: cid, ID: 30, Name: "Contacts", Module: storage.ModuleContacts, Type: storage.FolderPrivate, CreatedBy: admin, Default: true}
	adminUser := &directory.User{ID: admin}
	f.grant(adminUser, adminFolder, acl.AllPermission)
	ctx := context.Background()

	self := &contact.Contact{
		FolderID: contact.Ptr(30), DisplayName: contact.Ptr("Doe, John"),
		InternalUserID: contact.Ptr(7), PrivateFlag: contact.Ptr(true),
	}
	self = f.insert(t, adminUser, self)

	got, err := f.svc.GetUserContact(ctx, sessionOf(adminUser), 7)
	require.NoError(t, err)
	assert.Equal(t, self.ID(), got.ID())

	_, err = f.svc.GetUserContact(ctx, sessionOf(coworker), 7)
	assert.Equal(t, contact.CodeNotFound, codeOf(err))
}

// staleReads answers every read like a replica that has not caught up yet.
type staleReads struct {
	storage.Store
}

func (s staleReads) GetContact(_ context.Context, cid, id int, _ storage.Load) (*contact.Contact, error) {
	return nil, contact.ErrNotFound(cid, id)
}

func TestWritesReturnCommittedContact(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	svc := contacts.New(staleReads{f.store}, f.folders, f.users, f.events, contacts.Options{}, zerolog.Nop())
	ctx := context.Background()

	got, err := svc.Insert(ctx, sessionOf(owner), person(10, "Doe, John", "john@x.com"))
	require.NoError(t, err)
	assert.NotZero(t, got.ID())
	assert.Equal(t, "john@x.com", *got.Email1)

	updated, err := svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(got.ID()), GivenName: contact.Ptr("John"),
	}, 10, *got.LastModified)
	require.NoError(t, err)
	assert.Equal(t, "John", *updated.GivenName)
	assert.Equal(t, "Doe, John", *updated.DisplayName)
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestImage(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	ctx := context.Background()

	in := person(10, "Pictured", "")
	in.Image = pngOf(t, 180, 90)
	c := f.insert(t, owner, in)
	assert.Equal(t, 1, *c.NumberOfImages)

	img, err := f.svc.Image(ctx, sessionOf(owner), 10, c.ID())
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Width)
	assert.Equal(t, 45, cfg.Height)

	updated, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(c.ID()), Image: []byte{},
	}, 10, *c.LastModified)
	require.NoError(t, err)
	assert.Equal(t, 0, *updated.NumberOfImages)

	_, err = f.svc.Image(ctx, sessionOf(owner), 10, c.ID())
	assert.Equal(t, contact.CodeNotFound, codeOf(err))

	broken := person(10, "Broken", "")
	broken.Image = []byte("not an image")
	_, err = f.svc.Insert(ctx, sessionOf(owner), broken)
	assert.Equal(t, contact.CodeImageBroken, codeOf(err))
}

func TestAutoComplete_NoDuplicates(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.folders.EXPECT().Readable(gomock.Any(), cid, owner).
		Return([]*folder.Access{{Folder: privateFolder, Permission: acl.AllPermission}}, nil).AnyTimes()
	ctx := context.Background()

	anna := person(10, "Anna Berg", "anna@x.com")
	anna.Email2 = contact.Ptr("anna.berg@y.com")
	anna = f.insert(t, owner, anna)
	f.insert(t, owner, person(10, "Bob", "bob@x.com"))
	f.insert(t, owner, person(10, "Anna Without Mail", ""))

	got, err := f.svc.AutoComplete(ctx, sessionOf(owner), "anna", nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, anna.ID(), got[0].ID())

	_, err = f.svc.AutoComplete(ctx, sessionOf(owner), "  ", nil, 0)
	assert.Equal(t, contact.CodeInvalidSearch, codeOf(err))
}

func TestSearch(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(coworker, privateFolder, acl.Permission{})
	ctx := context.Background()

	f.insert(t, owner, &contact.Contact{
		FolderID: contact.Ptr(10), GivenName: contact.Ptr("Jane"), SurName: contact.Ptr("Doe"),
		Company: contact.Ptr("Acme"),
	})
	f.insert(t, owner, &contact.Contact{
		FolderID: contact.Ptr(10), GivenName: contact.Ptr("Max"), SurName: contact.Ptr("Muster"),
		Company: contact.Ptr("Other"),
	})

	got, err := f.svc.Search(ctx, sessionOf(owner), &contact.SearchObject{Folders: []int{10}, Company: "acme"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Doe, Jane", *got[0].DisplayName)

	got, err = f.svc.SearchTerm(ctx, sessionOf(owner),
		contact.Compare(contact.FieldSurName, contact.OpEquals, "Muster"), []int{10}, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Max", *got[0].GivenName)

	_, err = f.svc.Search(ctx, sessionOf(owner), &contact.SearchObject{Folders: []int{10}}, nil, nil)
	assert.Equal(t, contact.CodeInvalidSearch, codeOf(err))

	_, err = f.svc.Search(ctx, sessionOf(coworker), &contact.SearchObject{Folders: []int{10}, Pattern: "a"}, nil, nil)
	assert.Equal(t, contact.CodeNoReadPermission, codeOf(err))
}

func TestUpcomingBirthdays(t *testing.T) {
	f := newFixture(t).enable()
	f.grant(owner, privateFolder, acl.AllPermission)
	ctx := context.Background()

	jane := person(10, "Jane", "")
	jane.Birthday = contact.Ptr(time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC))
	f.insert(t, owner, jane)
	maxC := person(10, "Max", "")
	maxC.Birthday = contact.Ptr(time.Date(1985, time.March, 10, 0, 0, 0, 0, time.UTC))
	f.insert(t, owner, maxC)
	f.insert(t, owner, person(10, "Nobody", ""))

	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	got, err := f.svc.UpcomingBirthdays(ctx, sessionOf(owner), []int{10}, from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Max", *got[0].Contact.DisplayName)
	assert.Equal(t, 39, got[0].Age)
	assert.Equal(t, "Jane", *got[1].Contact.DisplayName)
	assert.True(t, got[1].Date.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)))

	_, err = f.svc.UpcomingBirthdays(ctx, sessionOf(owner), []int{10}, from, from)
	assert.Equal(t, contact.CodeInvalidSearch, codeOf(err))
}

func createFolders(t *testing.T, st *sqlite.Store, folders ...*storage.Folder) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx storage.Tx) error {
		for _, fl := range folders {
			cp := *fl
			if err := tx.CreateFolder(context.Background(), &cp); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteUser_LeavesNoDanglingRows(t *testing.T) {
	f := newFixture(t).enable()
	adminFolder := &storage.Folder{ContextID: cid, ID: 30, Name: "Contacts", Module: storage.ModuleContacts, Type: storage.FolderPrivate, CreatedBy: admin, Default: true}
	lostFolder := &storage.Folder{ContextID: cid, ID: 99, Module: storage.ModuleContacts, Type: storage.FolderPublic, CreatedBy: admin}
	createFolders(t, f.store, privateFolder, publicFolder, adminFolder)

	adminUser := &directory.User{ID: admin}
	f.grant(owner, privateFolder, acl.AllPermission)
	f.grant(owner, publicFolder, acl.AllPermission)
	f.grant(owner, lostFolder, acl.AllPermission)
	f.grant(adminUser, publicFolder, acl.AllPermission)
	f.grant(adminUser, privateFolder, acl.Permission{Folder: acl.FolderVisible, Read: acl.LevelAll})
	ctx := context.Background()

	mine := f.insert(t, owner, person(10, "Private note", "p@x.com"))
	shared := f.insert(t, owner, person(20, "Shared", ""))
	orphan := f.insert(t, owner, person(99, "Orphan", ""))
	self := f.insert(t, adminUser, &contact.Contact{
		FolderID: contact.Ptr(20), DisplayName: contact.Ptr("Doe, John"), InternalUserID: contact.Ptr(7),
	})
	team := f.insert(t, adminUser, &contact.Contact{
		FolderID:         contact.Ptr(20),
		DisplayName:      contact.Ptr("Team"),
		DistributionList: []contact.DistributionListEntry{{ContactID: mine.ID(), EmailField: contact.EmailField1}},
		Links:            []contact.LinkEntry{{LinkedID: mine.ID()}},
	})
	touched, err := f.svc.Update(ctx, sessionOf(owner), &contact.Contact{
		ObjectID: contact.Ptr(team.ID()), Note: contact.Ptr("edited"),
	}, 20, *team.LastModified)
	require.NoError(t, err)
	require.Equal(t, 7, *touched.ModifiedBy)

	report, err := f.svc.DeleteUser(ctx, cid, 7)
	require.NoError(t, err)
	assert.Zero(t, report.Failed)

	left, err := f.store.ListContacts(ctx, storage.Query{ContextID: cid, CreatedBy: 7})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = f.store.GetContact(ctx, cid, mine.ID(), storage.Load{})
	assert.Equal(t, contact.CodeNotFound, codeOf(err))
	_, err = f.store.GetContact(ctx, cid, self.ID(), storage.Load{})
	assert.Equal(t, contact.CodeNotFound, codeOf(err))

	got, err := f.store.GetContact(ctx, cid, shared.ID(), storage.Load{})
	require.NoError(t, err)
	assert.Equal(t, admin, got.Creator())
	assert.Equal(t, 20, got.Folder())

	got, err = f.store.GetContact(ctx, cid, orphan.ID(), storage.Load{})
	require.NoError(t, err)
	assert.Equal(t, admin, got.Creator())
	assert.Equal(t, 30, got.Folder())

	got, err = f.store.GetContact(ctx, cid, team.ID(), storage.LoadAll)
	require.NoError(t, err)
	assert.Equal(t, admin, *got.ModifiedBy)
	require.Len(t, got.DistributionList, 1)
	assert.True(t, got.DistributionList[0].Independent(), "member reference must be detached")
	assert.Equal(t, "p@x.com", got.DistributionList[0].Email)
	assert.Empty(t, got.Links)
	assert.Equal(t, 0, *got.NumberOfLinks)

	_, err = f.svc.DeleteUser(ctx, cid, admin)
	assert.Error(t, err)
}

func TestDeleteFolder(t *testing.T) {
	f := newFixture(t).enable()
	createFolders(t, f.store, publicFolder)
	f.grant(owner, publicFolder, acl.AllPermission)
	ctx := context.Background()

	f.insert(t, owner, person(20, "One", ""))
	f.insert(t, owner, person(20, "Two", ""))

	n, err := f.svc.DeleteFolder(ctx, cid, 20, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	live, err := f.store.CountContacts(ctx, storage.Query{ContextID: cid})
	require.NoError(t, err)
	assert.Zero(t, live)
	tombstones, err := f.store.CountContacts(ctx, storage.Query{ContextID: cid, Table: storage.Deleted})
	require.NoError(t, err)
	assert.Equal(t, 2, tombstones)

	_, err = f.store.GetFolder(ctx, cid, 20)
	assert.Equal(t, contact.CodeFolderNotFound, codeOf(err))
}
