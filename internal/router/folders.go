package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
	"github.com/sonroyaalmerol/ldap-contacts/pkg/ical"
	"github.com/sonroyaalmerol/ldap-contacts/pkg/vcard"
)

type folderView struct {
	ID       int    `json:"id"`
	ParentID int    `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Owner    int    `json:"owner"`
	Default  bool   `json:"default,omitempty"`
	Create   bool   `json:"create"`
	Read     string `json:"read"`
	Write    string `json:"write"`
	Delete   string `json:"delete"`
	Admin    bool   `json:"admin,omitempty"`
}

func (r *Router) handleFolders(w http.ResponseWriter, req *http.Request) {
	sess := r.session(req)
	as, err := r.folders.Readable(req.Context(), sess.ContextID, sess.User)
	if err != nil {
		r.writeError(w, err)
		return
	}
	out := make([]folderView, 0, len(as))
	for _, a := range as {
		f, p := a.Folder, a.Permission
		out = append(out, folderView{
			ID:       f.ID,
			ParentID: f.ParentID,
			Name:     f.Name,
			Type:     f.Type.String(),
			Owner:    f.CreatedBy,
			Default:  f.Default,
			Create:   p.CanCreate(),
			Read:     p.Read.String(),
			Write:    p.Write.String(),
			Delete:   p.Delete.String(),
			Admin:    p.Admin,
		})
	}
	writeData(w, http.StatusOK, out)
}

func (r *Router) handleListFolder(w http.ResponseWriter, req *http.Request) {
	folderID, ok := pathInt(req, "folder")
	if !ok {
		badRequest(w, "invalid folder id")
		return
	}
	fields, err := queryColumns(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	order, err := queryOrder(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	from, err1 := queryInt(req, "from", 0)
	to, err2 := queryInt(req, "to", 0)
	if err1 != nil || err2 != nil || from < 0 || to < 0 {
		badRequest(w, "invalid page bounds")
		return
	}

	cs, err := r.contacts.ListFolder(req.Context(), r.session(req), folderID, fields, order, contacts.Page{From: from, To: to})
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

// queryOrder reads sort=<column> and order=asc|desc.
func queryOrder(req *http.Request) ([]storage.Order, error) {
	name := req.URL.Query().Get("sort")
	if name == "" {
		return nil, nil
	}
	m := contact.ByName(name)
	if m == nil || !m.HasColumn() {
		return nil, contact.ErrInvalidSearch("cannot sort by " + name)
	}
	return []storage.Order{{Field: m.Field, Desc: strings.EqualFold(req.URL.Query().Get("order"), "desc")}}, nil
}

func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) {
	folderID, ok := pathInt(req, "folder")
	if !ok {
		badRequest(w, "invalid folder id")
		return
	}
	var in contact.Contact
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	in.FolderID = contact.Ptr(folderID)
	in.ObjectID = nil

	c, err := r.contacts.Insert(req.Context(), r.session(req), &in)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

// target reads the folder and object ids of a contact route.
func target(w http.ResponseWriter, req *http.Request) (folderID, objectID int, ok bool) {
	if folderID, ok = pathInt(req, "folder"); !ok {
		badRequest(w, "invalid folder id")
		return 0, 0, false
	}
	if objectID, ok = pathInt(req, "id"); !ok {
		badRequest(w, "invalid contact id")
		return 0, 0, false
	}
	return folderID, objectID, true
}

func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) {
	folderID, objectID, ok := target(w, req)
	if !ok {
		return
	}
	c, err := r.contacts.Get(req.Context(), r.session(req), folderID, objectID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

// timestamp reads the mandatory client timestamp of a write.
func timestamp(w http.ResponseWriter, req *http.Request) (time.Time, bool) {
	if req.URL.Query().Get("timestamp") == "" {
		badRequest(w, "missing timestamp")
		return time.Time{}, false
	}
	ts, err := queryMillis(req, "timestamp", time.Time{})
	if err != nil {
		badRequest(w, "invalid timestamp")
		return time.Time{}, false
	}
	return ts, true
}

func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) {
	folderID, objectID, ok := target(w, req)
	if !ok {
		return
	}
	ts, ok := timestamp(w, req)
	if !ok {
		return
	}
	var in contact.Contact
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	in.ObjectID = contact.Ptr(objectID)

	c, err := r.contacts.Update(req.Context(), r.session(req), &in, folderID, ts)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	folderID, objectID, ok := target(w, req)
	if !ok {
		return
	}
	ts, ok := timestamp(w, req)
	if !ok {
		return
	}
	if err := r.contacts.Delete(req.Context(), r.session(req), folderID, objectID, ts, false); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleImage(w http.ResponseWriter, req *http.Request) {
	folderID, objectID, ok := target(w, req)
	if !ok {
		return
	}
	img, err := r.contacts.Image(req.Context(), r.session(req), folderID, objectID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	ct := img.ContentType
	if ct == "" {
		ct = http.DetectContentType(img.Data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if !img.LastModified.IsZero() {
		w.Header().Set("Last-Modified", img.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (r *Router) handleExportVCard(w http.ResponseWriter, req *http.Request) {
	folderID, objectID, ok := target(w, req)
	if !ok {
		return
	}
	version := req.URL.Query().Get("version")
	if version == "" {
		version = vcard.Version3
	}
	if version != vcard.Version3 && version != vcard.Version4 {
		badRequest(w, "unsupported vCard version "+version)
		return
	}
	c, err := r.contacts.Get(req.Context(), r.session(req), folderID, objectID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	raw, err := vcard.Marshal(version, c)
	if err != nil {
		r.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%d.vcf", objectID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

type importResult struct {
	Created []contact.Ref `json:"created"`
	Failed  []problem     `json:"failed,omitempty"`
}

// handleImportVCard stores every card of the body in the folder. Cards
// that fail are reported and do not stop the import.
func (r *Router) handleImportVCard(w http.ResponseWriter, req *http.Request) {
	folderID, ok := pathInt(req, "folder")
	if !ok {
		badRequest(w, "invalid folder id")
		return
	}
	limit := r.config.HTTP.MaxVCFBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, req.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, contact.CategoryUserInput, "vCard too large")
			return
		}
		badRequest(w, "cannot read body")
		return
	}
	cards, err := vcard.Unmarshal(raw)
	if err != nil {
		var ce *contact.Error
		if errors.As(err, &ce) {
			r.writeError(w, err)
			return
		}
		badRequest(w, err.Error())
		return
	}

	sess := r.session(req)
	res := importResult{Created: []contact.Ref{}}
	for _, c := range cards {
		c.FolderID = contact.Ptr(folderID)
		stored, err := r.contacts.Insert(req.Context(), sess, c)
		if err != nil {
			var ce *contact.Error
			if !errors.As(err, &ce) {
				r.writeError(w, err)
				return
			}
			res.Failed = append(res.Failed, problem{Code: int(ce.Code), ID: ce.ID(), Category: ce.Category, Message: ce.Message})
			continue
		}
		res.Created = append(res.Created, contact.Ref{FolderID: stored.Folder(), ObjectID: stored.ID()})
	}
	r.logger.Info().Int("folder", folderID).Int("created", len(res.Created)).Int("failed", len(res.Failed)).Msg("vcard import")
	writeData(w, http.StatusOK, res)
}

func (r *Router) handleUpdates(w http.ResponseWriter, req *http.Request) {
	r.handleSince(w, req, func(sess contacts.Session, folderID int, since time.Time) ([]*contact.Contact, error) {
		fields, err := queryColumns(req)
		if err != nil {
			return nil, err
		}
		return r.contacts.ListModified(req.Context(), sess, folderID, since, fields)
	})
}

func (r *Router) handleDeleted(w http.ResponseWriter, req *http.Request) {
	r.handleSince(w, req, func(sess contacts.Session, folderID int, since time.Time) ([]*contact.Contact, error) {
		return r.contacts.ListDeleted(req.Context(), sess, folderID, since)
	})
}

func (r *Router) handleSince(w http.ResponseWriter, req *http.Request, list func(contacts.Session, int, time.Time) ([]*contact.Contact, error)) {
	folderID, ok := pathInt(req, "folder")
	if !ok {
		badRequest(w, "invalid folder id")
		return
	}
	since, err := queryMillis(req, "since", time.UnixMilli(0).UTC())
	if err != nil {
		badRequest(w, "invalid since")
		return
	}
	cs, err := list(r.session(req), folderID, since)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

// handleBirthdayFeed renders the birthdays and anniversaries of a folder as
// recurring all-day events.
func (r *Router) handleBirthdayFeed(w http.ResponseWriter, req *http.Request) {
	folderID, ok := pathInt(req, "folder")
	if !ok {
		badRequest(w, "invalid folder id")
		return
	}
	cs, err := r.contacts.WithBirthdays(req.Context(), r.session(req), []int{folderID})
	if err != nil {
		r.writeError(w, err)
		return
	}

	var entries []ical.Anniversary
	for _, c := range cs {
		name := contactName(c)
		if c.Birthday != nil {
			entries = append(entries, ical.Anniversary{
				UID:     fmt.Sprintf("birthday-%d-%d@contacts", c.Folder(), c.ID()),
				Summary: name,
				Date:    *c.Birthday,
			})
		}
		if c.Anniversary != nil {
			entries = append(entries, ical.Anniversary{
				UID:     fmt.Sprintf("anniversary-%d-%d@contacts", c.Folder(), c.ID()),
				Summary: name + " (anniversary)",
				Date:    *c.Anniversary,
			})
		}
	}

	raw, err := ical.Encode(ical.BuildCalendar(r.config.ICS.ProdID(), entries, time.Now()))
	if err != nil {
		r.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func contactName(c *contact.Contact) string {
	if c.DisplayName != nil && *c.DisplayName != "" {
		return *c.DisplayName
	}
	return strings.TrimSpace(strings.Join([]string{deref(c.GivenName), deref(c.SurName)}, " "))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
