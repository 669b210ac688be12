package acl

// Level is an object permission tier.
type Level int

const (
	LevelNone Level = iota
	LevelOwn
	LevelAll
)

func (l Level) String() string {
	switch l {
	case LevelOwn:
		return "own"
	case LevelAll:
		return "all"
	}
	return "none"
}

// FolderLevel is the folder permission tier.
type FolderLevel int

const (
	FolderNone FolderLevel = iota
	FolderVisible
	FolderCreateObjects
)

// Permission is the effective permission of one user on one folder.
type Permission struct {
	Folder FolderLevel
	Read   Level
	Write  Level
	Delete Level
	Admin  bool
}

// AllPermission is what the owner of a private folder holds.
var AllPermission = Permission{
	Folder: FolderCreateObjects,
	Read:   LevelAll,
	Write:  LevelAll,
	Delete: LevelAll,
	Admin:  true,
}

// Merge returns the per-tier maximum of p and o.
func (p Permission) Merge(o Permission) Permission {
	return Permission{
		Folder: max(p.Folder, o.Folder),
		Read:   max(p.Read, o.Read),
		Write:  max(p.Write, o.Write),
		Delete: max(p.Delete, o.Delete),
		Admin:  p.Admin || o.Admin,
	}
}

func clampLevel(n int) Level {
	switch {
	case n <= 0:
		return LevelNone
	case n == 1:
		return LevelOwn
	}
	return LevelAll
}

func clampFolder(n int) FolderLevel {
	switch {
	case n <= 0:
		return FolderNone
	case n == 1:
		return FolderVisible
	}
	return FolderCreateObjects
}

func (p Permission) CanReadFolder() bool {
	return p.Folder >= FolderVisible && p.Read > LevelNone
}

func (p Permission) CanCreate() bool {
	return p.Folder >= FolderCreateObjects
}

// ReadsOwnOnly reports whether listing must be restricted to the user's
// own objects.
func (p Permission) ReadsOwnOnly() bool {
	return p.Read == LevelOwn
}
