package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORAGE_TYPE", "CONTACTS_CONTEXT_ID", "CONTACTS_IMAGE_WIDTH", "REDIS_URL", "LDAP_GAB_ENABLED"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Type != "postgres" {
		t.Errorf("Storage.Type = %q", cfg.Storage.Type)
	}
	if cfg.Contacts.ContextID != 1 || cfg.Contacts.ImageWidth != 90 {
		t.Errorf("Contacts = %+v", cfg.Contacts)
	}
	if cfg.Events.RedisURL != "" || cfg.LDAP.AddressBook.Enabled {
		t.Errorf("optional integrations enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("CONTACTS_ADMIN_USER_ID", "42")
	t.Setenv("CONTACTS_VALIDATE_EMAILS", "false")
	t.Setenv("LDAP_GAB_FOLDER_ID", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Contacts.AdminUserID != 42 || cfg.Contacts.ValidateEmails {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.LDAP.AddressBook.FolderID != 9 {
		t.Errorf("AddressBook.FolderID = %d", cfg.LDAP.AddressBook.FolderID)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("CONTACTS_IMAGE_HEIGHT", "tall")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric CONTACTS_IMAGE_HEIGHT")
	}
}

func TestProdID(t *testing.T) {
	tests := []struct {
		cfg  ICSConfig
		want string
	}{
		{ICSConfig{Company: "ACME", Product: "Birthdays", Version: "2", Language: "DE"}, "-//ACME//Birthdays 2//DE"},
		{ICSConfig{Company: "ACME", Product: "Birthdays", Language: "EN"}, "-//ACME//Birthdays//EN"},
		{ICSConfig{Company: "ACME", Product: "Birthdays"}, "-//ACME//Birthdays//EN"},
	}
	for _, tt := range tests {
		if got := tt.cfg.ProdID(); got != tt.want {
			t.Errorf("ProdID(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
