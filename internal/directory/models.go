package directory

import "slices"

type User struct {
	// ID is the numeric groupware user id read from the configured id attribute.
	ID          int
	UID         string
	DN          string
	DisplayName string
	Mail        string
	// Modules lists the modules enabled for the user. Nil means the
	// directory carries no module attribute and every module is enabled.
	Modules []string
}

// HasModule reports whether the module is enabled for the user.
func (u *User) HasModule(module string) bool {
	if u.Modules == nil {
		return true
	}
	return slices.Contains(u.Modules, module)
}

// FolderACL is one folder binding granted through group membership.
type FolderACL struct {
	FolderID int
	// privilege bits
	Read      bool
	ReadOwn   bool
	Write     bool
	WriteOwn  bool
	Delete    bool
	DeleteOwn bool
	Create    bool
	Admin     bool
}

type Group struct {
	CN      string
	DN      string
	Members []string // DNs or UIDs
	ACLs    []FolderACL
}
