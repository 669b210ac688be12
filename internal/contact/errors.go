package contact

import (
	"errors"
	"fmt"
)

// Category groups error codes by how a caller should react.
type Category string

const (
	CategoryUserInput   Category = "user-input"
	CategoryPermission  Category = "permission"
	CategoryConflict    Category = "conflict"
	CategoryServiceDown Category = "service-down"
	CategoryError       Category = "error"
)

// Code is a numeric contact error code, rendered as CON-nnnn.
type Code int

const (
	CodeNotFound            Code = 1
	CodeFolderNotFound      Code = 2
	CodeNoReadPermission    Code = 10
	CodeNoCreatePermission  Code = 11
	CodeNoWritePermission   Code = 12
	CodeNoDeletePermission  Code = 13
	CodePrivateInPublic     Code = 14
	CodePrivateMove         Code = 15
	CodeNotPrivateOwner     Code = 16
	CodeModuleDisabled      Code = 17
	CodeInvalidFolderModule Code = 18
	CodeInvalidEmail        Code = 20
	CodeMandatoryField      Code = 21
	CodeBadCharacters       Code = 22
	CodeInvalidSearch       Code = 23
	CodeTruncated           Code = 30
	CodeImageTooLarge       Code = 31
	CodeImageBroken         Code = 32
	CodeConflict            Code = 40
	CodeSQL                 Code = 100
	CodeUnexpected          Code = 101
)

var codeInfo = map[Code]struct {
	category Category
	format   string
}{
	CodeNotFound:            {CategoryUserInput, "contact %d not found in context %d"},
	CodeFolderNotFound:      {CategoryUserInput, "folder %d not found in context %d"},
	CodeNoReadPermission:    {CategoryPermission, "no permission to read contacts in folder %d"},
	CodeNoCreatePermission:  {CategoryPermission, "no permission to create contacts in folder %d"},
	CodeNoWritePermission:   {CategoryPermission, "no permission to modify contact %d in folder %d"},
	CodeNoDeletePermission:  {CategoryPermission, "no permission to delete contact %d in folder %d"},
	CodePrivateInPublic:     {CategoryPermission, "private contacts are not allowed in non-private folder %d"},
	CodePrivateMove:         {CategoryPermission, "private contact %d can not be moved between private and non-private folders"},
	CodeNotPrivateOwner:     {CategoryPermission, "only the creator may access private contact %d"},
	CodeModuleDisabled:      {CategoryPermission, "contacts module is not enabled for user %d"},
	CodeInvalidFolderModule: {CategoryUserInput, "folder %d is not a contact folder"},
	CodeInvalidEmail:        {CategoryUserInput, "invalid email address %q"},
	CodeMandatoryField:      {CategoryUserInput, "mandatory field %s is missing"},
	CodeBadCharacters:       {CategoryUserInput, "field %s contains invalid characters"},
	CodeInvalidSearch:       {CategoryUserInput, "invalid search: %s"},
	CodeTruncated:           {CategoryUserInput, "value of field %s is too long: %d characters, maximum %d"},
	CodeImageTooLarge:       {CategoryUserInput, "contact image is too large: %d bytes, maximum %d"},
	CodeImageBroken:         {CategoryUserInput, "contact image is broken or has an unsupported format"},
	CodeConflict:            {CategoryConflict, "contact %d was modified concurrently"},
	CodeSQL:                 {CategoryServiceDown, "database error: %s"},
	CodeUnexpected:          {CategoryError, "unexpected error: %s"},
}

// Error is the error type returned by every contact operation.
type Error struct {
	Code     Code
	Category Category
	Message  string
	// Field and Max are filled for truncation errors.
	Field Field
	Max   int
	cause error
}

func (e *Error) Error() string { return e.ID() + ": " + e.Message }

// ID renders the code as CON-nnnn.
func (e *Error) ID() string { return fmt.Sprintf("CON-%04d", int(e.Code)) }

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by code, so errors.Is(err, ErrConflictSentinel)
// style checks work against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, cause error, args ...any) *Error {
	info := codeInfo[code]
	return &Error{
		Code:     code,
		Category: info.category,
		Message:  fmt.Sprintf(info.format, args...),
		cause:    cause,
	}
}

// Sentinels for errors.Is.
var (
	ErrNotFoundSentinel   = &Error{Code: CodeNotFound}
	ErrConflictSentinel   = &Error{Code: CodeConflict}
	ErrPermissionSentinel = &Error{Code: CodeNoReadPermission}
)

func ErrNotFound(cid, id int) *Error      { return newError(CodeNotFound, nil, id, cid) }
func ErrFolderNotFound(cid, id int) *Error { return newError(CodeFolderNotFound, nil, id, cid) }
func ErrNoReadPermission(folder int) *Error {
	return newError(CodeNoReadPermission, nil, folder)
}
func ErrNoCreatePermission(folder int) *Error {
	return newError(CodeNoCreatePermission, nil, folder)
}
func ErrNoWritePermission(id, folder int) *Error {
	return newError(CodeNoWritePermission, nil, id, folder)
}
func ErrNoDeletePermission(id, folder int) *Error {
	return newError(CodeNoDeletePermission, nil, id, folder)
}
func ErrPrivateInPublic(folder int) *Error  { return newError(CodePrivateInPublic, nil, folder) }
func ErrPrivateMove(id int) *Error          { return newError(CodePrivateMove, nil, id) }
func ErrNotPrivateOwner(id int) *Error      { return newError(CodeNotPrivateOwner, nil, id) }
func ErrModuleDisabled(user int) *Error     { return newError(CodeModuleDisabled, nil, user) }
func ErrInvalidFolderModule(id int) *Error  { return newError(CodeInvalidFolderModule, nil, id) }
func ErrInvalidEmail(addr string) *Error    { return newError(CodeInvalidEmail, nil, addr) }
func ErrMandatoryField(label string) *Error { return newError(CodeMandatoryField, nil, label) }
func ErrBadCharacters(label string) *Error  { return newError(CodeBadCharacters, nil, label) }
func ErrInvalidSearch(reason string) *Error { return newError(CodeInvalidSearch, nil, reason) }
func ErrImageBroken(cause error) *Error     { return newError(CodeImageBroken, cause) }
func ErrConflict(id int) *Error             { return newError(CodeConflict, nil, id) }

func ErrImageTooLarge(size, max int) *Error {
	return newError(CodeImageTooLarge, nil, size, max)
}

// ErrTruncated names the offending field and its limit.
func ErrTruncated(m *Mapping, actual int) *Error {
	e := newError(CodeTruncated, nil, m.Label, actual, m.MaxLen)
	e.Field = m.Field
	e.Max = m.MaxLen
	return e
}

// ErrSQL wraps a database error. A nil cause returns nil.
func ErrSQL(cause error) error {
	if cause == nil {
		return nil
	}
	var ce *Error
	if errors.As(cause, &ce) {
		return cause
	}
	return newError(CodeSQL, cause, cause.Error())
}

// ErrUnexpected wraps anything that does not fit another code.
func ErrUnexpected(cause error) *Error {
	return newError(CodeUnexpected, cause, cause.Error())
}

// CategoryOf returns the category of err, CategoryError for foreign errors.
func CategoryOf(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return CategoryError
}
