package contact

import (
	"reflect"
	"testing"
	"time"
)

func TestDiffReportsOnlyChangedFields(t *testing.T) {
	orig := &Contact{
		ObjectID:    Ptr(5),
		FolderID:    Ptr(10),
		CreatedBy:   Ptr(7),
		DisplayName: Ptr("Doe, John"),
		Email1:      Ptr("john@x.com"),
		Birthday:    Ptr(time.UnixMilli(1_000_000).UTC()),
	}
	upd := &Contact{
		DisplayName: Ptr("Doe, John"),
		Email1:      Ptr("john@y.com"),
		Birthday:    Ptr(time.UnixMilli(1_000_000).In(time.FixedZone("X", 3600))),
		GivenName:   Ptr("John"),
	}
	got := Diff(orig, upd)
	want := []Field{FieldGivenName, FieldEmail1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff() = %v, want %v", got, want)
	}
}

func TestDiffFolderIsAlwaysDifferent(t *testing.T) {
	orig := &Contact{FolderID: Ptr(10), ObjectID: Ptr(5), CreatedBy: Ptr(7)}
	upd := &Contact{FolderID: Ptr(10), ObjectID: Ptr(5), CreatedBy: Ptr(7)}
	got := Diff(orig, upd)
	// object id and creator are system fields and never reported
	if !reflect.DeepEqual(got, []Field{FieldFolderID}) {
		t.Errorf("Diff() = %v, want [folder_id]", got)
	}
}

func TestDiffSkipsSystemFields(t *testing.T) {
	now := time.Now()
	orig := &Contact{LastModified: Ptr(now), ModifiedBy: Ptr(1), NumberOfLinks: Ptr(0)}
	upd := &Contact{LastModified: Ptr(now.Add(time.Hour)), ModifiedBy: Ptr(2), NumberOfLinks: Ptr(3)}
	if got := Diff(orig, upd); len(got) != 0 {
		t.Errorf("Diff() = %v, want none", got)
	}
}

func TestDiffImageComparesBytes(t *testing.T) {
	orig := &Contact{Image: []byte{1, 2, 3}}
	if got := Diff(orig, &Contact{Image: []byte{1, 2, 3}}); len(got) != 0 {
		t.Errorf("identical image reported: %v", got)
	}
	if got := Diff(orig, &Contact{Image: []byte{1, 2, 4}}); !reflect.DeepEqual(got, []Field{FieldImage}) {
		t.Errorf("Diff() = %v, want [image1]", got)
	}
}

func TestDiffDistributionList(t *testing.T) {
	prev := []DistributionListEntry{
		{ContactID: 3, EmailField: EmailField1, Email: "a@x.com"},
		{DisplayName: "Bob", Email: "bob@x.com"},
	}
	next := []DistributionListEntry{
		{ContactID: 3, EmailField: EmailField1, Email: "a@x.com"},
		{ContactID: 3, EmailField: EmailField2, Email: "a2@x.com"},
		{ContactID: 3, EmailField: EmailField2, Email: "a2@x.com"},
	}
	add, remove := DiffDistributionList(prev, next)
	if len(add) != 1 || add[0].EmailField != EmailField2 {
		t.Errorf("add = %v", add)
	}
	if len(remove) != 1 || remove[0].DisplayName != "Bob" {
		t.Errorf("remove = %v", remove)
	}

	if got := Diff(&Contact{DistributionList: prev}, &Contact{DistributionList: next}); !reflect.DeepEqual(got, []Field{FieldDistributionList}) {
		t.Errorf("Diff() = %v", got)
	}
}

func TestDiffLinks(t *testing.T) {
	add, remove := DiffLinks(
		[]LinkEntry{{LinkedID: 1}, {LinkedID: 2}},
		[]LinkEntry{{LinkedID: 2}, {LinkedID: 3}},
	)
	if len(add) != 1 || add[0].LinkedID != 3 {
		t.Errorf("add = %v", add)
	}
	if len(remove) != 1 || remove[0].LinkedID != 1 {
		t.Errorf("remove = %v", remove)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := &Contact{
		DisplayName:      Ptr("A"),
		Image:            []byte{1},
		DistributionList: []DistributionListEntry{{Email: "a@x.com"}},
	}
	cp := c.Clone()
	*cp.DisplayName = "B"
	cp.Image[0] = 9
	cp.DistributionList[0].Email = "b@x.com"
	if *c.DisplayName != "A" || c.Image[0] != 1 || c.DistributionList[0].Email != "a@x.com" {
		t.Errorf("Clone shares memory with the original: %+v", c)
	}
}

func TestMappingTableIsConsistent(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Mappings() {
		if seen[m.Name] {
			t.Errorf("duplicate name %s", m.Name)
		}
		seen[m.Name] = true
		if Lookup(m.Field) != m || ByName(m.Name) != m {
			t.Errorf("index mismatch for %s", m.Name)
		}
		if m.Kind == KindString && m.MaxLen == 0 {
			t.Errorf("string field %s has no max length", m.Name)
		}
		if m.HasColumn() && (m.get == nil || m.set == nil || m.copy == nil) {
			t.Errorf("column field %s lacks accessors", m.Name)
		}
	}
}

func TestValueEncoding(t *testing.T) {
	when := time.UnixMilli(1234).UTC()
	c := &Contact{PrivateFlag: Ptr(true), ColorLabel: Ptr(4), Birthday: &when}
	if v := Lookup(FieldPrivateFlag).Value(c); v != int64(1) {
		t.Errorf("bool value = %v", v)
	}
	if v := Lookup(FieldColorLabel).Value(c); v != int64(4) {
		t.Errorf("int value = %v", v)
	}
	if v := Lookup(FieldBirthday).Value(c); v != int64(1234) {
		t.Errorf("time value = %v", v)
	}
	if v := Lookup(FieldEmail1).Value(c); v != nil {
		t.Errorf("unset value = %v", v)
	}
}
