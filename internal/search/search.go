// Package search fans contact searches out to the contact store and the
// directory's global address book and merges the answers.
package search

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

// Backend answers a structured search for one source of contacts.
type Backend interface {
	Name() string
	Search(ctx context.Context, sess contacts.Session, so *contact.SearchObject) ([]*contact.Contact, error)
}

// Multiplexer queries the primary backend and every secondary backend in
// parallel. A failing primary fails the search; secondary failures are
// logged and their results dropped.
type Multiplexer struct {
	primary   Backend
	secondary []Backend
	logger    zerolog.Logger
}

func New(primary Backend, logger zerolog.Logger, secondary ...Backend) *Multiplexer {
	return &Multiplexer{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "search").Logger(),
	}
}

// Search returns the merged results, each contact once, sorted by display
// name. A positive limit caps the merged list.
func (m *Multiplexer) Search(ctx context.Context, sess contacts.Session, so *contact.SearchObject, limit int) ([]*contact.Contact, error) {
	if so == nil || so.Empty() {
		return nil, contact.ErrInvalidSearch("no search criteria given")
	}

	var (
		mu      sync.Mutex
		results [][]*contact.Contact
	)
	collect := func(cs []*contact.Contact) {
		mu.Lock()
		results = append(results, cs)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cs, err := m.primary.Search(gctx, sess, so)
		if err != nil {
			return err
		}
		collect(cs)
		return nil
	})
	for _, b := range m.secondary {
		g.Go(func() error {
			cs, err := b.Search(gctx, sess, so)
			if err != nil {
				m.logger.Warn().Err(err).Str("backend", b.Name()).Msg("secondary search failed")
				return nil
			}
			collect(cs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := Merge(results...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AutoComplete matches pattern against names and email addresses in every
// backend.
func (m *Multiplexer) AutoComplete(ctx context.Context, sess contacts.Session, pattern string, folders []int, limit int) ([]*contact.Contact, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, contact.ErrInvalidSearch("empty auto-complete pattern")
	}
	return m.Search(ctx, sess, &contact.SearchObject{
		Pattern:           pattern,
		Folders:           folders,
		EmailAutoComplete: true,
	}, limit)
}

// Merge concatenates result lists, drops repeated (folder, id) pairs and
// sorts by display name, folder and id.
func Merge(lists ...[]*contact.Contact) []*contact.Contact {
	seen := map[contact.Ref]bool{}
	var out []*contact.Contact
	for _, cs := range lists {
		for _, c := range cs {
			ref := contact.Ref{FolderID: c.Folder(), ObjectID: c.ID()}
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortName(out[i]), sortName(out[j])
		if a != b {
			return a < b
		}
		if out[i].Folder() != out[j].Folder() {
			return out[i].Folder() < out[j].Folder()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func sortName(c *contact.Contact) string {
	if c.DisplayName == nil {
		return ""
	}
	return strings.ToLower(*c.DisplayName)
}

// Searcher is the part of the contact service the store backend uses.
type Searcher interface {
	Search(ctx context.Context, sess contacts.Session, so *contact.SearchObject, fields []contact.Field, order []storage.Order) ([]*contact.Contact, error)
}

// StoreBackend searches the stored contacts. Virtual folders served by other
// backends are removed from the folder list first.
type StoreBackend struct {
	svc     Searcher
	virtual []int
}

func NewStoreBackend(svc Searcher, virtualFolders ...int) *StoreBackend {
	return &StoreBackend{svc: svc, virtual: virtualFolders}
}

func (b *StoreBackend) Name() string { return "store" }

func (b *StoreBackend) Search(ctx context.Context, sess contacts.Session, so *contact.SearchObject) ([]*contact.Contact, error) {
	q := *so
	if len(so.Folders) > 0 {
		q.Folders = slices.DeleteFunc(slices.Clone(so.Folders), func(id int) bool {
			return slices.Contains(b.virtual, id)
		})
		if len(q.Folders) == 0 {
			return nil, nil
		}
	}
	return b.svc.Search(ctx, sess, &q, nil, nil)
}

// AddressBook is the directory side of the global address book.
type AddressBook interface {
	Search(ctx context.Context, s *contact.SearchObject) ([]*contact.Contact, error)
}

// DirectoryBackend searches the global address book. Entries are visible to
// every user of the context.
type DirectoryBackend struct {
	book AddressBook
}

func NewDirectoryBackend(book AddressBook) *DirectoryBackend {
	return &DirectoryBackend{book: book}
}

func (b *DirectoryBackend) Name() string { return "directory" }

func (b *DirectoryBackend) Search(ctx context.Context, _ contacts.Session, so *contact.SearchObject) ([]*contact.Contact, error) {
	return b.book.Search(ctx, so)
}
