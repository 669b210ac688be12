package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/auth"
	"github.com/sonroyaalmerol/ldap-contacts/internal/cache"
	"github.com/sonroyaalmerol/ldap-contacts/internal/config"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
)

// provisionTTL is how long a user counts as provisioned after their
// personal folder was ensured.
const provisionTTL = time.Hour

type Router struct {
	config   *config.Config
	contacts ContactService
	search   Searcher
	folders  Folders
	auth     Authenticator
	logger   zerolog.Logger

	provisioned *cache.Cache[int, bool]
}

func New(deps Deps) http.Handler {
	r := &Router{
		config:      deps.Config,
		contacts:    deps.Contacts,
		search:      deps.Search,
		folders:     deps.Folders,
		auth:        deps.Auth,
		logger:      deps.Logger.With().Str("component", "http").Logger(),
		provisioned: cache.New[int, bool](provisionTTL),
	}
	return r.setupRoutes()
}

func (r *Router) setupRoutes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(r.requestLogger)
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", r.handleHealth)

	mux.Route(r.basePath(), func(api chi.Router) {
		api.Use(r.authenticate)

		api.Get("/folders", r.handleFolders)
		api.Route("/folders/{folder}", func(f chi.Router) {
			f.Get("/contacts", r.handleListFolder)
			f.Post("/contacts", r.handleCreate)
			f.Get("/contacts/{id}", r.handleGet)
			f.Put("/contacts/{id}", r.handleUpdate)
			f.Delete("/contacts/{id}", r.handleDelete)
			f.Get("/contacts/{id}/image", r.handleImage)
			f.Get("/contacts/{id}/vcard", r.handleExportVCard)
			f.Put("/vcard", r.handleImportVCard)
			f.Get("/updates", r.handleUpdates)
			f.Get("/deleted", r.handleDeleted)
			f.Get("/birthdays.ics", r.handleBirthdayFeed)
		})

		api.Route("/contacts", func(c chi.Router) {
			c.Post("/list", r.handleList)
			c.Post("/search", r.handleSearch)
			c.Post("/term", r.handleTerm)
			c.Get("/autocomplete", r.handleAutoComplete)
			c.Get("/birthdays", r.handleBirthdays)
		})
	})

	return mux
}

func (r *Router) basePath() string {
	base := r.config.HTTP.BasePath
	if base == "" || base[0] != '/' {
		base = "/api"
	}
	return strings.TrimSuffix(base, "/")
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authenticate resolves the caller and provisions their personal folder on
// the first request.
func (r *Router) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		p, err := r.principal(req)
		if err != nil || p == nil {
			r.logAttempt(req, err)
			if r.auth.BasicEnabled() {
				w.Header().Set("WWW-Authenticate", `Basic realm="contacts", charset="UTF-8"`)
			}
			writeProblem(w, http.StatusUnauthorized, contact.CategoryPermission, "unauthorized")
			return
		}
		if rec, ok := w.(*statusRecorder); ok {
			rec.user = p.UID
		}

		ctx := auth.WithPrincipal(req.Context(), p)
		if _, ok := r.provisioned.Get(p.UserID); !ok {
			if _, err := r.folders.EnsureDefaultFolder(ctx, r.config.Contacts.ContextID, p.User()); err != nil {
				r.writeError(w, err)
				return
			}
			r.provisioned.Put(p.UserID, true)
		}

		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) principal(req *http.Request) (*auth.Principal, error) {
	authz := req.Header.Get("Authorization")
	lower := strings.ToLower(authz)

	if strings.HasPrefix(lower, "bearer ") && r.auth.BearerEnabled() {
		return r.auth.BearerAuthenticate(req.Context(), strings.TrimSpace(authz[7:]))
	}
	if r.auth.BasicEnabled() {
		return r.auth.BasicAuthenticate(req.Context(), authz)
	}
	return nil, errors.New("no auth")
}

// session builds the service session of the authenticated caller.
func (r *Router) session(req *http.Request) contacts.Session {
	p, _ := auth.PrincipalFrom(req.Context())
	return contacts.Session{ContextID: r.config.Contacts.ContextID, User: p.User()}
}

type problem struct {
	Code     int              `json:"code,omitempty"`
	ID       string           `json:"id,omitempty"`
	Category contact.Category `json:"category"`
	Message  string           `json:"message"`
}

// statusFor maps an error to its HTTP status via the error category.
func statusFor(err error) int {
	var ce *contact.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case contact.CodeNotFound, contact.CodeFolderNotFound:
		return http.StatusNotFound
	}
	switch ce.Category {
	case contact.CategoryUserInput:
		return http.StatusBadRequest
	case contact.CategoryPermission:
		return http.StatusForbidden
	case contact.CategoryConflict:
		return http.StatusConflict
	case contact.CategoryServiceDown:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (r *Router) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var ce *contact.Error
	if !errors.As(err, &ce) {
		r.logger.Error().Err(err).Msg("unexpected error")
		writeProblem(w, status, contact.CategoryError, "internal error")
		return
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error().Err(err).Str("code", ce.ID()).Msg("request failed")
	}
	writeJSON(w, status, map[string]problem{"error": {
		Code:     int(ce.Code),
		ID:       ce.ID(),
		Category: ce.Category,
		Message:  ce.Message,
	}})
}

func writeProblem(w http.ResponseWriter, status int, cat contact.Category, msg string) {
	writeJSON(w, status, map[string]problem{"error": {Category: cat, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, map[string]any{"data": v})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeProblem(w, http.StatusBadRequest, contact.CategoryUserInput, msg)
}

func pathInt(req *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(req, name))
	return n, err == nil && n > 0
}

// queryMillis parses a millisecond epoch timestamp. A missing parameter
// yields def.
func queryMillis(req *http.Request, name string, def time.Time) (time.Time, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func queryInt(req *http.Request, name string, def int) (int, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// queryFolders reads repeated folder parameters.
func queryFolders(req *http.Request) ([]int, error) {
	var out []int
	for _, v := range req.URL.Query()["folder"] {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// queryColumns reads the comma separated columns parameter. No parameter
// yields nil so the service picks its defaults.
func queryColumns(req *http.Request) ([]contact.Field, error) {
	v := req.URL.Query().Get("columns")
	if v == "" {
		return nil, nil
	}
	var out []contact.Field
	for _, name := range strings.Split(v, ",") {
		m := contact.ByName(strings.TrimSpace(name))
		if m == nil {
			return nil, contact.ErrInvalidSearch("unknown column " + name)
		}
		out = append(out, m.Field)
	}
	return out, nil
}
