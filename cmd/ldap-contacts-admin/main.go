package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/acl"
	"github.com/sonroyaalmerol/ldap-contacts/internal/config"
	"github.com/sonroyaalmerol/ldap-contacts/internal/contacts"
	"github.com/sonroyaalmerol/ldap-contacts/internal/folder"
	"github.com/sonroyaalmerol/ldap-contacts/internal/httpserver"
	"github.com/sonroyaalmerol/ldap-contacts/internal/logging"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ldap-contacts-admin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("component", "admin").Logger()

	root := &ffcli.Command{
		Name:       "ldap-contacts-admin",
		ShortUsage: "ldap-contacts-admin <subcommand> [flags]",
		FlagSet:    flag.NewFlagSet("ldap-contacts-admin", flag.ContinueOnError),
		Subcommands: []*ffcli.Command{
			createFolderCmd(cfg, logger),
			deleteUserCmd(cfg, logger),
			deleteFolderCmd(cfg, logger),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
	return root.ParseAndRun(ctx, args)
}

// env opens the store and the services the subcommands run on. Cascades
// and folder creation work on the store alone, so no directory connection
// is made.
type env struct {
	store    storage.Store
	folders  *folder.Service
	contacts *contacts.Service
	close    func()
}

func openEnv(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*env, error) {
	store, err := httpserver.OpenStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	pub, closePub, err := httpserver.OpenPublisher(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("events init: %w", err)
	}
	return &env{
		store:    store,
		folders:  folder.New(store, nil, logger),
		contacts: contacts.New(store, nil, nil, pub, httpserver.ServiceOptions(cfg), logger),
		close: func() {
			closePub()
			store.Close()
		},
	}, nil
}

func parseFolderType(s string) (storage.FolderType, error) {
	for _, t := range []storage.FolderType{storage.FolderPrivate, storage.FolderPublic, storage.FolderShared} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown folder type %q (private, public, shared)", s)
}

func createFolderCmd(cfg *config.Config, logger zerolog.Logger) *ffcli.Command {
	fs := flag.NewFlagSet("create-folder", flag.ContinueOnError)
	cid := fs.Int("cid", cfg.Contacts.ContextID, "context id")
	owner := fs.Int("owner", 0, "owner user id (required)")
	name := fs.String("name", folder.DefaultName, "folder name")
	typ := fs.String("type", "private", "folder type: private, public or shared")
	parent := fs.Int("parent", 0, "parent folder id")
	def := fs.Bool("default", false, "mark as the owner's default contact folder")
	share := fs.Bool("share", false, "let every user of the context read and create contacts")

	return &ffcli.Command{
		Name:       "create-folder",
		ShortUsage: "ldap-contacts-admin create-folder -owner <id> [-cid <id>] [-name <name>] [-type <type>] [-default] [-share]",
		ShortHelp:  "create a contact folder",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if *owner <= 0 {
				return errors.New("-owner is required")
			}
			ft, err := parseFolderType(*typ)
			if err != nil {
				return err
			}
			if *share && ft == storage.FolderPrivate {
				return errors.New("private folders can not be shared with every user")
			}

			e, err := openEnv(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer e.close()

			f := &storage.Folder{
				ContextID: *cid,
				ParentID:  *parent,
				Name:      *name,
				Module:    storage.ModuleContacts,
				Type:      ft,
				CreatedBy: *owner,
				Default:   *def,
			}
			var grants []storage.Grant
			if ft != storage.FolderPrivate {
				grants = append(grants, storage.Grant{Entity: *owner, Admin: true})
			}
			if *share {
				grants = append(grants, storage.Grant{
					Entity: storage.AllUsers,
					Folder: int(acl.FolderCreateObjects),
					Read:   int(acl.LevelAll),
					Write:  int(acl.LevelOwn),
					Delete: int(acl.LevelOwn),
				})
			}
			if err := e.folders.Create(ctx, f, grants...); err != nil {
				return fmt.Errorf("create folder: %w", err)
			}

			logger.Info().
				Int("cid", f.ContextID).
				Int("folder", f.ID).
				Int("owner", f.CreatedBy).
				Str("type", f.Type.String()).
				Bool("default", f.Default).
				Msg("folder created")
			fmt.Printf("Created folder id=%d name=%q type=%s owner=%d\n", f.ID, f.Name, f.Type, f.CreatedBy)
			return nil
		},
	}
}

func deleteUserCmd(cfg *config.Config, logger zerolog.Logger) *ffcli.Command {
	fs := flag.NewFlagSet("delete-user", flag.ContinueOnError)
	cid := fs.Int("cid", cfg.Contacts.ContextID, "context id")
	user := fs.Int("user", 0, "id of the deleted user (required)")
	admin := fs.Int("admin", cfg.Contacts.AdminUserID, "context admin receiving reassigned contacts")

	return &ffcli.Command{
		Name:       "delete-user",
		ShortUsage: "ldap-contacts-admin delete-user -user <id> [-cid <id>] [-admin <id>]",
		ShortHelp:  "remove or reassign every contact of a deleted user",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if *user <= 0 {
				return errors.New("-user is required")
			}
			c := *cfg
			c.Contacts.AdminUserID = *admin

			e, err := openEnv(ctx, &c, logger)
			if err != nil {
				return err
			}
			defer e.close()

			report, err := e.contacts.DeleteUser(ctx, *cid, *user)
			if err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			fmt.Printf("User %d removed: %d actions, %d failed\n", *user, report.Actions, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d cascade steps failed", report.Failed)
			}
			return nil
		},
	}
}

func deleteFolderCmd(cfg *config.Config, logger zerolog.Logger) *ffcli.Command {
	fs := flag.NewFlagSet("delete-folder", flag.ContinueOnError)
	cid := fs.Int("cid", cfg.Contacts.ContextID, "context id")
	folderID := fs.Int("folder", 0, "folder id (required)")
	user := fs.Int("user", cfg.Contacts.AdminUserID, "user recorded as deleting the contacts")

	return &ffcli.Command{
		Name:       "delete-folder",
		ShortUsage: "ldap-contacts-admin delete-folder -folder <id> [-cid <id>] [-user <id>]",
		ShortHelp:  "delete a contact folder and its contacts",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if *folderID <= 0 {
				return errors.New("-folder is required")
			}
			e, err := openEnv(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.contacts.DeleteFolder(ctx, *cid, *folderID, *user)
			if err != nil {
				return fmt.Errorf("delete folder: %w", err)
			}
			fmt.Printf("Folder %d deleted with %d contacts\n", *folderID, n)
			return nil
		},
	}
}
