package storage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
)

// Table selects the live or the deleted contacts table.
type Table int

const (
	Live Table = iota
	Deleted
)

func (t Table) Name() string {
	if t == Deleted {
		return "deleted_contacts"
	}
	return "contacts"
}

// Scope grants read access to one folder. OwnOnly restricts it to the
// objects created by the querying user.
type Scope struct {
	FolderID int
	OwnOnly  bool
}

type Order struct {
	Field contact.Field
	Desc  bool
}

// Query describes one contact read. It is a plain value: callers fill it in
// once and the store never modifies it.
type Query struct {
	ContextID int
	Table     Table
	// Fields to fetch. System fields are always added.
	Fields []contact.Field

	// Scopes restricts the readable folders. A nil slice means no folder
	// restriction, an empty non-nil slice matches nothing.
	Scopes []Scope
	// UserID is the querying user. It drives OwnOnly scopes and hides other
	// users' private contacts unless ShowForeignPrivate is set.
	UserID             int
	ShowForeignPrivate bool

	CreatedBy      int
	ModifiedBy     int
	InternalUserID int
	// InternalUsers filters on the presence of an internal user id.
	InternalUsers *bool
	// ObjectIDs restricts to the given ids. An empty non-nil slice matches nothing.
	ObjectIDs     []int
	ModifiedSince *time.Time

	Search *contact.SearchObject
	Term   contact.SearchTerm

	Order  []Order
	Limit  int
	Offset int
}

// Statement is a built query. Columns lists the selected mappings in the
// order the result columns appear.
type Statement struct {
	SQL     string
	Args    []any
	Columns []*contact.Mapping
}

type pred struct {
	sql  string
	args []any
}

const alias = "co"

func col(name string) string { return alias + "." + name }

// Build renders the query for d.
func (q Query) Build(d Dialect) (Statement, error) {
	cols := q.columns()
	shared, branches, err := q.predicates(d)
	if err != nil {
		return Statement{}, err
	}

	names := make([]string, len(cols))
	for i, m := range cols {
		names[i] = col(m.Name) + " AS " + m.Name
	}
	selectList := strings.Join(names, ", ")
	from := " FROM " + q.Table.Name() + " " + alias

	var (
		b     strings.Builder
		args  []any
		union = q.orSearch() && len(branches) > 1
	)
	if union {
		for i, br := range branches {
			if i > 0 {
				b.WriteString(" UNION ")
			}
			preds := append(append([]pred{}, shared...), br)
			w, a := where(preds)
			b.WriteString("SELECT " + selectList + from + w)
			args = append(args, a...)
		}
	} else {
		w, a := where(append(shared, branches...))
		b.WriteString("SELECT " + selectList + from + w)
		args = append(args, a...)
	}

	b.WriteString(" ORDER BY ")
	for i, o := range q.order() {
		if i > 0 {
			b.WriteString(", ")
		}
		m := contact.Lookup(o.Field)
		if union {
			// the union's ORDER BY addresses result columns, not the alias
			b.WriteString(m.Name)
		} else {
			b.WriteString(col(m.Name))
		}
		if o.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
		if q.Offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, q.Offset)
		}
	}

	return Statement{SQL: d.Rebind(b.String()), Args: args, Columns: cols}, nil
}

// BuildCount renders a COUNT(*) over the rows Build would return, ignoring
// order and paging.
func (q Query) BuildCount(d Dialect) (Statement, error) {
	q.Order = nil
	q.Limit, q.Offset = 0, 0
	q.Fields = []contact.Field{contact.FieldObjectID}
	st, err := q.Build(d)
	if err != nil {
		return Statement{}, err
	}
	inner := st.SQL[:strings.LastIndex(st.SQL, " ORDER BY ")]
	st.SQL = "SELECT COUNT(*) FROM (" + inner + ") cnt"
	st.Columns = nil
	return st, nil
}

func (q Query) orSearch() bool {
	return q.Search != nil && (q.Search.OrSearch || q.Search.EmailAutoComplete)
}

func (q Query) order() []Order {
	if len(q.Order) == 0 {
		return []Order{{Field: contact.FieldObjectID}}
	}
	return q.Order
}

// columns returns the selected column mappings in table order: the system
// fields, the requested fields and every ordered field.
func (q Query) columns() []*contact.Mapping {
	want := map[contact.Field]bool{}
	for _, f := range contact.SystemFields {
		want[f] = true
	}
	for _, f := range q.Fields {
		want[f] = true
	}
	for _, o := range q.order() {
		want[o.Field] = true
	}
	var out []*contact.Mapping
	for _, m := range contact.Columns() {
		if want[m.Field] {
			out = append(out, m)
		}
	}
	return out
}

func (q Query) predicates(d Dialect) (shared, branches []pred, err error) {
	shared = append(shared, pred{col("cid") + " = ?", []any{q.ContextID}})

	if q.Scopes != nil {
		shared = append(shared, q.scopePredicate())
	}
	if q.UserID != 0 && !q.ShowForeignPrivate {
		shared = append(shared, pred{
			"(COALESCE(" + col("private_flag") + ", 0) = 0 OR " + col("created_by") + " = ?)",
			[]any{q.UserID},
		})
	}
	if q.CreatedBy != 0 {
		shared = append(shared, pred{col("created_by") + " = ?", []any{q.CreatedBy}})
	}
	if q.ModifiedBy != 0 {
		shared = append(shared, pred{col("modified_by") + " = ?", []any{q.ModifiedBy}})
	}
	if q.InternalUserID != 0 {
		shared = append(shared, pred{col("internal_user_id") + " = ?", []any{q.InternalUserID}})
	}
	if q.InternalUsers != nil {
		if *q.InternalUsers {
			shared = append(shared, pred{sql: col("internal_user_id") + " IS NOT NULL"})
		} else {
			shared = append(shared, pred{sql: col("internal_user_id") + " IS NULL"})
		}
	}
	if q.ObjectIDs != nil {
		shared = append(shared, inPredicate(col("id"), q.ObjectIDs))
	}
	if q.ModifiedSince != nil {
		shared = append(shared, pred{col("last_modified") + " > ?", []any{q.ModifiedSince.UnixMilli()}})
	}
	if q.Term != nil {
		p, err := compileTerm(d, q.Term)
		if err != nil {
			return nil, nil, err
		}
		shared = append(shared, p)
	}
	if q.Search != nil {
		filters, br, err := searchPredicates(d, q.Search)
		if err != nil {
			return nil, nil, err
		}
		shared = append(shared, filters...)
		branches = br
	}
	return shared, branches, nil
}

func (q Query) scopePredicate() pred {
	if len(q.Scopes) == 0 {
		return pred{sql: "1 = 0"}
	}
	var (
		all   []int
		parts []string
		args  []any
	)
	for _, s := range q.Scopes {
		if !s.OwnOnly {
			all = append(all, s.FolderID)
		}
	}
	if len(all) > 0 {
		p := inPredicate(col("folder_id"), all)
		parts = append(parts, p.sql)
		args = append(args, p.args...)
	}
	for _, s := range q.Scopes {
		if s.OwnOnly {
			parts = append(parts, "("+col("folder_id")+" = ? AND "+col("created_by")+" = ?)")
			args = append(args, s.FolderID, q.UserID)
		}
	}
	return pred{"(" + strings.Join(parts, " OR ") + ")", args}
}

func inPredicate(column string, ids []int) pred {
	if len(ids) == 0 {
		return pred{sql: "1 = 0"}
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return pred{column + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args}
}

func where(preds []pred) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	parts := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		parts[i] = p.sql
		args = append(args, p.args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// searchPredicates splits a SearchObject into filters that apply to every
// row and the criteria that are combined with AND, or unioned in OR mode.
func searchPredicates(d Dialect, s *contact.SearchObject) (filters, criteria []pred, err error) {
	emailOnly := s.EmailOnly || s.EmailAutoComplete
	if emailOnly {
		var ors []string
		for _, name := range []string{"email1", "email2", "email3"} {
			ors = append(ors, "("+col(name)+" IS NOT NULL AND "+col(name)+" <> '')")
		}
		ors = append(ors, "COALESCE("+col("mark_as_distribution_list")+", 0) = 1")
		filters = append(filters, pred{sql: "(" + strings.Join(ors, " OR ") + ")"})
	}
	if s.ExcludeDistributionLists {
		filters = append(filters, pred{sql: "COALESCE(" + col("mark_as_distribution_list") + ", 0) = 0"})
	}

	if p := strings.TrimSpace(s.Pattern); p != "" {
		lp := contact.LikePattern(p, s.ExactMatch)
		if s.EmailAutoComplete {
			for _, name := range []string{"email1", "email2", "email3", "display_name"} {
				criteria = append(criteria, pred{d.Like(col(name)), []any{lp}})
			}
		} else {
			criteria = append(criteria, pred{
				"(" + d.Like(col("display_name")) + " OR " + d.Like(col("given_name")) + " OR " + d.Like(col("sur_name")) + ")",
				[]any{lp, lp, lp},
			})
		}
	}

	patterns, err := s.Patterns()
	if err != nil {
		return nil, nil, err
	}
	for _, fp := range patterns {
		m := contact.Lookup(fp.Field)
		if s.ExactMatch && !strings.ContainsAny(fp.Pattern, "*?") {
			criteria = append(criteria, pred{col(m.Name) + " = ?", []any{fp.Pattern}})
			continue
		}
		criteria = append(criteria, pred{d.Like(col(m.Name)), []any{contact.LikePattern(fp.Pattern, s.ExactMatch)}})
	}

	if s.StartLetter != "" {
		p, err := startLetter(s.StartLetter)
		if err != nil {
			return nil, nil, err
		}
		criteria = append(criteria, p)
	}

	if p, ok := dateRange("birthday", s.BirthdayFrom, s.BirthdayUntil); ok {
		criteria = append(criteria, p)
	}
	if p, ok := dateRange("anniversary", s.AnniversaryFrom, s.AnniversaryUntil); ok {
		criteria = append(criteria, p)
	}
	return filters, criteria, nil
}

func startLetter(letter string) (pred, error) {
	name := "LOWER(SUBSTR(COALESCE(NULLIF(" + col("sur_name") + ", ''), " + col("display_name") + "), 1, 1))"
	if letter == "#" {
		return pred{sql: "(" + name + " < 'a' OR " + name + " > 'z')"}, nil
	}
	r := []rune(letter)
	if len(r) != 1 {
		return pred{}, contact.ErrInvalidSearch("start letter must be a single character")
	}
	return pred{name + " = ?", []any{strings.ToLower(letter)}}, nil
}

func dateRange(name string, from, until *time.Time) (pred, bool) {
	switch {
	case from != nil && until != nil:
		return pred{"(" + col(name) + " >= ? AND " + col(name) + " < ?)", []any{from.UnixMilli(), until.UnixMilli()}}, true
	case from != nil:
		return pred{col(name) + " >= ?", []any{from.UnixMilli()}}, true
	case until != nil:
		return pred{col(name) + " < ?", []any{until.UnixMilli()}}, true
	}
	return pred{}, false
}

func compileTerm(d Dialect, t contact.SearchTerm) (pred, error) {
	switch t := t.(type) {
	case contact.AndTerm:
		return compileJoin(d, t.Terms, " AND ", "1 = 1")
	case contact.OrTerm:
		return compileJoin(d, t.Terms, " OR ", "1 = 0")
	case contact.NotTerm:
		if t.Term == nil {
			return pred{}, contact.ErrInvalidSearch("not without operand")
		}
		inner, err := compileTerm(d, t.Term)
		if err != nil {
			return pred{}, err
		}
		return pred{"NOT (" + inner.sql + ")", inner.args}, nil
	case contact.CompareTerm:
		return compileCompare(d, t)
	}
	return pred{}, contact.ErrInvalidSearch(fmt.Sprintf("unsupported term %T", t))
}

func compileJoin(d Dialect, terms []contact.SearchTerm, sep, empty string) (pred, error) {
	if len(terms) == 0 {
		return pred{sql: empty}, nil
	}
	parts := make([]string, 0, len(terms))
	var args []any
	for _, t := range terms {
		p, err := compileTerm(d, t)
		if err != nil {
			return pred{}, err
		}
		parts = append(parts, p.sql)
		args = append(args, p.args...)
	}
	return pred{"(" + strings.Join(parts, sep) + ")", args}, nil
}

func compileCompare(d Dialect, t contact.CompareTerm) (pred, error) {
	m := contact.Lookup(t.Field)
	if m == nil || !m.HasColumn() {
		return pred{}, contact.ErrInvalidSearch("field " + t.Field.String() + " is not searchable")
	}
	c := col(m.Name)
	if t.Op == contact.OpIsNull {
		return pred{sql: c + " IS NULL"}, nil
	}
	v, err := bindValue(m, t.Value)
	if err != nil {
		return pred{}, err
	}
	switch t.Op {
	case contact.OpEquals, contact.OpLess, contact.OpGreater:
		return pred{c + " " + string(t.Op) + " ?", []any{v}}, nil
	case contact.OpLike:
		s, ok := v.(string)
		if !ok {
			return pred{}, contact.ErrInvalidSearch("like needs a text field: " + m.Name)
		}
		return pred{d.Like(c), []any{contact.LikePattern(s, true)}}, nil
	}
	return pred{}, contact.ErrInvalidSearch("unknown operator " + string(t.Op))
}

// bindValue converts a term literal into the column's stored representation.
func bindValue(m *contact.Mapping, v any) (any, error) {
	bad := contact.ErrInvalidSearch(fmt.Sprintf("invalid value %v for field %s", v, m.Name))
	switch m.Kind {
	case contact.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, bad
	case contact.KindInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, bad
		}
		return n, nil
	case contact.KindBool:
		switch b := v.(type) {
		case bool:
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		n, ok := toInt64(v)
		if !ok {
			return nil, bad
		}
		return n, nil
	case contact.KindTime:
		switch tv := v.(type) {
		case time.Time:
			return tv.UnixMilli(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339, tv)
			if err != nil {
				return nil, bad
			}
			return parsed.UnixMilli(), nil
		}
		n, ok := toInt64(v)
		if !ok {
			return nil, bad
		}
		return n, nil
	}
	return nil, bad
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
