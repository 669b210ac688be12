package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
)

// defaultBirthdayWindow is the range of /contacts/birthdays when the caller
// gives no until parameter.
const defaultBirthdayWindow = 14 * 24 * time.Hour

func (r *Router) handleList(w http.ResponseWriter, req *http.Request) {
	var refs []contact.Ref
	if err := json.NewDecoder(req.Body).Decode(&refs); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	fields, err := queryColumns(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	cs, err := r.contacts.GetByIDs(req.Context(), r.session(req), refs, fields)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	var so contact.SearchObject
	if err := json.NewDecoder(req.Body).Decode(&so); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	limit, err := queryInt(req, "limit", 0)
	if err != nil || limit < 0 {
		badRequest(w, "invalid limit")
		return
	}
	cs, err := r.search.Search(req.Context(), r.session(req), &so, limit)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

func (r *Router) handleTerm(w http.ResponseWriter, req *http.Request) {
	var body termRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	term, err := decodeTerm(body.Term)
	if err != nil {
		r.writeError(w, err)
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
	cs, err := r.contacts.SearchTerm(req.Context(), r.session(req), term, body.Folders, fields, order)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

func (r *Router) handleAutoComplete(w http.ResponseWriter, req *http.Request) {
	folders, err := queryFolders(req)
	if err != nil {
		badRequest(w, "invalid folder")
		return
	}
	limit, err := queryInt(req, "limit", 0)
	if err != nil || limit < 0 {
		badRequest(w, "invalid limit")
		return
	}
	cs, err := r.search.AutoComplete(req.Context(), r.session(req), req.URL.Query().Get("q"), folders, limit)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

type birthdayEntry struct {
	Contact *contact.Contact `json:"contact"`
	Date    string           `json:"date"`
	Age     int              `json:"age"`
}

func (r *Router) handleBirthdays(w http.ResponseWriter, req *http.Request) {
	folders, err := queryFolders(req)
	if err != nil {
		badRequest(w, "invalid folder")
		return
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from, err := queryMillis(req, "from", today)
	if err != nil {
		badRequest(w, "invalid from")
		return
	}
	until, err := queryMillis(req, "until", from.Add(defaultBirthdayWindow))
	if err != nil {
		badRequest(w, "invalid until")
		return
	}

	bs, err := r.contacts.UpcomingBirthdays(req.Context(), r.session(req), folders, from, until)
	if err != nil {
		r.writeError(w, err)
		return
	}
	out := make([]birthdayEntry, 0, len(bs))
	for _, b := range bs {
		out = append(out, birthdayEntry{Contact: b.Contact, Date: b.Date.Format(time.DateOnly), Age: b.Age})
	}
	writeData(w, http.StatusOK, out)
}
