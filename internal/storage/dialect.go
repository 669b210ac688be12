package storage

import (
	"strconv"
	"strings"
)

// Dialect hides the few differences between the supported SQL engines.
type Dialect struct {
	Name     string
	numbered bool
}

var (
	Postgres = Dialect{Name: "postgres", numbered: true}
	SQLite   = Dialect{Name: "sqlite"}
)

// Rebind rewrites ? placeholders into the dialect's form. Question marks
// inside single quoted literals are left alone.
func (d Dialect) Rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 16)
	n := 0
	quoted := false
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Like returns a case-insensitive LIKE comparison of col against one bound
// pattern using backslash escapes.
func (d Dialect) Like(col string) string {
	return "LOWER(" + col + ") LIKE LOWER(?) ESCAPE '\\'"
}
