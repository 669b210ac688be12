package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/acl"
	"github.com/sonroyaalmerol/ldap-contacts/internal/auth"
	"github.com/sonroyaalmerol/ldap-contacts/internal/config"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
	"github.com/sonroyaalmerol/ldap-contacts/internal/directory"
	"github.com/sonroyaalmerol/ldap-contacts/internal/events"
	"github.com/sonroyaalmerol/ldap-contacts/internal/folder"
	"github.com/sonroyaalmerol/ldap-contacts/internal/router"
	"github.com/sonroyaalmerol/ldap-contacts/internal/search"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage/postgres"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage/sqlite"
)

type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// OpenStore opens the configured contact store.
func OpenStore(cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresURL, cfg.Storage.ReplicaURL, logger)
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLitePath, logger)
	}
	return nil, errors.New("unknown storage type: " + cfg.Storage.Type)
}

// OpenPublisher returns a Redis publisher when a Redis URL is configured and
// a log publisher otherwise. The returned func releases the connection.
func OpenPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (contacts.Publisher, func(), error) {
	if cfg.Events.RedisURL == "" {
		return events.NewLogPublisher(logger), func() {}, nil
	}
	client, err := events.DialRedis(ctx, cfg.Events.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return events.NewRedisPublisher(client, cfg.Events.Channel), func() { _ = client.Close() }, nil
}

// ServiceOptions derives the contact service options from cfg.
func ServiceOptions(cfg *config.Config) contacts.Options {
	return contacts.Options{
		AdminUserID: cfg.Contacts.AdminUserID,
		Image: contact.ImageOptions{
			MaxBytes:  cfg.Contacts.MaxImageBytes,
			MaxWidth:  cfg.Contacts.ImageWidth,
			MaxHeight: cfg.Contacts.ImageHeight,
		},
		ValidateEmails: cfg.Contacts.ValidateEmails,
	}
}

func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, func(), error) {
	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	dir, err := directory.NewLDAPClient(cfg.LDAP, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	pub, closePub, err := OpenPublisher(context.Background(), cfg, logger)
	if err != nil {
		dir.Close()
		store.Close()
		return nil, nil, err
	}

	folders := folder.New(store, acl.NewFolderACL(dir, store), logger)
	svc := contacts.New(store, folders, dir, pub, ServiceOptions(cfg), logger)

	var (
		gab       *directory.AddressBook
		secondary []search.Backend
		virtual   []int
	)
	if cfg.LDAP.AddressBook.Enabled {
		gab, err = directory.NewAddressBook(cfg.LDAP, logger)
		if err != nil {
			closePub()
			dir.Close()
			store.Close()
			return nil, nil, err
		}
		secondary = append(secondary, search.NewDirectoryBackend(gab))
		virtual = append(virtual, gab.FolderID())
		logger.Info().Str("name", gab.Name()).Int("folder", gab.FolderID()).Msg("global address book enabled")
	}
	searcher := search.New(search.NewStoreBackend(svc, virtual...), logger, secondary...)

	mux := router.New(router.Deps{
		Config:   cfg,
		Contacts: svc,
		Search:   searcher,
		Folders:  folders,
		Auth:     auth.NewChain(cfg, dir, logger),
		Logger:   logger,
	})

	srv := &Server{
		http: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
	cleanup := func() {
		if gab != nil {
			gab.Close()
		}
		closePub()
		dir.Close()
		store.Close()
	}
	logger.Info().Msgf("listening on %s (storage=%s)", cfg.HTTP.Addr, cfg.Storage.Type)
	return srv, cleanup, nil
}

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
