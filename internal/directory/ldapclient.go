package directory

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/ldap-contacts/internal/cache"
	"github.com/sonroyaalmerol/ldap-contacts/internal/config"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

type Directory interface {
	Close()
	BindUser(ctx context.Context, username, password string) (*User, error)
	LookupUserByAttr(ctx context.Context, attr, value string) (*User, error)
	LookupUserByID(ctx context.Context, id int) (*User, error)
	UserFolderACLs(ctx context.Context, user *User) ([]FolderACL, error)
	IntrospectToken(ctx context.Context, token, url, authHeader string) (bool, string, error)
}

var ErrUserNotFound = errors.New("user not found")

type LDAPClient struct {
	cfg       config.LDAPConfig
	logger    zerolog.Logger
	conn      *ldap.Conn
	cache     *cache.Cache[string, []FolderACL]
	userCache *cache.Cache[int, *User]
}

func NewLDAPClient(cfg config.LDAPConfig, logger zerolog.Logger) (*LDAPClient, error) {
	l, err := dialLDAPAuto(cfg)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.URL).Msg("failed to dial LDAP")
		return nil, err
	}
	if cfg.BindDN != "" {
		if err := l.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			logger.Error().Err(err).Str("bind_dn", cfg.BindDN).Msg("initial bind failed")
			l.Close()
			return nil, err
		}
	}
	return &LDAPClient{
		cfg:       cfg,
		logger:    logger.With().Str("component", "directory").Logger(),
		conn:      l,
		cache:     cache.New[string, []FolderACL](cfg.CacheTTL),
		userCache: cache.New[int, *User](cfg.CacheTTL),
	}, nil
}

func (l *LDAPClient) Close() {
	if l.conn != nil {
		l.conn.Close()
	}
}

func (l *LDAPClient) BindUser(ctx context.Context, username, password string) (*User, error) {
	searchReq := ldap.NewSearchRequest(
		l.cfg.UserBaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(l.cfg.Timeout.Seconds()), false,
		fmt.Sprintf(l.cfg.UserFilter, ldap.EscapeFilter(username), ldap.EscapeFilter(username)),
		userAttrList(l.cfg),
		nil,
	)
	res, err := l.conn.SearchWithPaging(searchReq, 1)
	if err != nil {
		l.logger.Error().Err(err).
			Str("user_base_dn", l.cfg.UserBaseDN).
			Str("username", username).
			Msg("LDAP search failed in BindUser")
		return nil, ErrUserNotFound
	}
	if len(res.Entries) == 0 {
		l.logger.Debug().Str("username", username).Msg("user not found in BindUser search")
		return nil, ErrUserNotFound
	}
	entry := res.Entries[0]
	userDN := entry.DN

	userConn, err := dialLDAPAuto(l.cfg)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to dial LDAP for user bind")
		return nil, err
	}
	defer userConn.Close()
	if err := userConn.Bind(userDN, password); err != nil {
		l.logger.Debug().Err(err).Str("user_dn", userDN).Msg("user bind failed")
		return nil, err
	}

	return l.userFromEntry(entry)
}

func (l *LDAPClient) LookupUserByAttr(ctx context.Context, attr, value string) (*User, error) {
	attr = safeAttr(attr)
	searchReq := ldap.NewSearchRequest(
		l.cfg.UserBaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(l.cfg.Timeout.Seconds()), false,
		fmt.Sprintf("(%s=%s)", attr, ldap.EscapeFilter(value)),
		userAttrList(l.cfg),
		nil,
	)
	res, err := l.conn.Search(searchReq)
	if err != nil {
		l.logger.Error().Err(err).
			Str("attr", attr).
			Str("value", value).
			Str("user_base_dn", l.cfg.UserBaseDN).
			Msg("LDAP search failed in LookupUserByAttr")
		return nil, ErrUserNotFound
	}
	if len(res.Entries) == 0 {
		l.logger.Debug().Str("attr", attr).Str("value", value).Msg("user not found in LookupUserByAttr")
		return nil, ErrUserNotFound
	}
	return l.userFromEntry(res.Entries[0])
}

// LookupUserByID resolves a numeric user id. Results are cached.
func (l *LDAPClient) LookupUserByID(ctx context.Context, id int) (*User, error) {
	if u, ok := l.userCache.Get(id); ok {
		return u, nil
	}
	u, err := l.LookupUserByAttr(ctx, l.cfg.UserIDAttr, strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	l.userCache.Put(id, u)
	return u, nil
}

// ModuleAccessible reports whether module is enabled for the user. Unknown
// users have no module. The context id is accepted for the user
// configuration contract; the directory serves a single context.
func (l *LDAPClient) ModuleAccessible(ctx context.Context, cid, userID int, module string) (bool, error) {
	u, err := l.LookupUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.HasModule(module), nil
}

func (l *LDAPClient) userFromEntry(e *ldap.Entry) (*User, error) {
	id, err := strconv.Atoi(e.GetAttributeValue(l.cfg.UserIDAttr))
	if err != nil {
		l.logger.Error().Err(err).Str("dn", e.DN).Str("attr", l.cfg.UserIDAttr).Msg("user entry has no numeric id")
		return nil, fmt.Errorf("user %s: invalid %s: %w", e.DN, l.cfg.UserIDAttr, err)
	}
	u := &User{
		ID:          id,
		UID:         firstNonEmpty(e.GetAttributeValue(l.cfg.TokenUserAttr), e.GetAttributeValue("mail")),
		DN:          e.DN,
		DisplayName: firstNonEmpty(e.GetAttributeValue("displayName"), e.GetAttributeValue("cn")),
		Mail:        e.GetAttributeValue("mail"),
	}
	if l.cfg.ModulesAttr != "" {
		u.Modules = []string{}
		for _, m := range e.GetAttributeValues(l.cfg.ModulesAttr) {
			u.Modules = append(u.Modules, strings.ToLower(strings.TrimSpace(m)))
		}
	}
	return u, nil
}

// UserFolderACLs returns the folder bindings of every group the user is a
// member of. Results are cached per DN.
func (l *LDAPClient) UserFolderACLs(ctx context.Context, user *User) ([]FolderACL, error) {
	if v, ok := l.cache.Get(user.DN); ok {
		return v, nil
	}
	if l.cfg.BindingsAttr == "" || l.cfg.GroupBaseDN == "" {
		return nil, nil
	}
	memFilter := fmt.Sprintf("(%s=%s)", safeAttr(l.cfg.MemberAttr), ldap.EscapeFilter(user.DN))
	search := ldap.NewSearchRequest(
		l.cfg.GroupBaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, int(l.cfg.Timeout.Seconds()), false,
		fmt.Sprintf("(&%s%s)", "(objectClass=groupOfNames)", memFilter),
		attrList(l.cfg),
		nil,
	)
	res, err := l.conn.Search(search)
	if err != nil {
		l.logger.Error().Err(err).
			Str("group_base_dn", l.cfg.GroupBaseDN).
			Str("member_attr", l.cfg.MemberAttr).
			Str("user_dn", user.DN).
			Msg("LDAP search failed in UserFolderACLs")
		return nil, err
	}
	var acls []FolderACL
	for _, e := range res.Entries {
		for _, line := range e.GetAttributeValues(l.cfg.BindingsAttr) {
			if acl, ok := ParseBindingLine(line); ok {
				acls = append(acls, acl)
			}
		}
	}
	l.cache.Put(user.DN, acls)
	return acls, nil
}

func (l *LDAPClient) IntrospectToken(ctx context.Context, token, url, authHeader string) (bool, string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader("token="+token))
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to build introspection request")
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		l.logger.Error().Err(err).Str("url", url).Msg("introspection HTTP request failed")
		return false, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		l.logger.Debug().Int("status", resp.StatusCode).Msg("token introspection not active")
		return false, "", nil
	}
	var out struct {
		Active bool   `json:"active"`
		Sub    string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		l.logger.Error().Err(err).Msg("failed to decode introspection response")
		return false, "", err
	}

	username := strings.SplitN(out.Sub, "@", 2)[0]
	return out.Active, username, nil
}

// ParseBindingLine parses "folder-id=<id>;priv=read,write-own,...". Lines
// without a numeric folder id are rejected.
func ParseBindingLine(s string) (FolderACL, bool) {
	acl := FolderACL{}
	ok := false
	parts := strings.Split(s, ";")
	for _, p := range parts {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		switch k {
		case "folder-id", "folder":
			id, err := strconv.Atoi(v)
			if err != nil || id <= 0 {
				return FolderACL{}, false
			}
			acl.FolderID = id
			ok = true
		case "priv", "privileges":
			for _, t := range strings.Split(v, ",") {
				switch strings.ToLower(strings.TrimSpace(t)) {
				case "read", "read-all":
					acl.Read = true
				case "read-own":
					acl.ReadOwn = true
				case "write", "edit", "write-all":
					acl.Write = true
				case "write-own", "edit-own":
					acl.WriteOwn = true
				case "delete", "unbind", "delete-all":
					acl.Delete = true
				case "delete-own":
					acl.DeleteOwn = true
				case "create", "bind":
					acl.Create = true
				case "admin":
					acl.Admin = true
				}
			}
		}
	}
	return acl, ok
}

func userAttrList(cfg config.LDAPConfig) []string {
	attrs := []string{"dn", "displayName", "mail", "uid", "cn"}
	for _, a := range []string{cfg.TokenUserAttr, cfg.UserIDAttr, cfg.ModulesAttr} {
		if a != "" && !slices.Contains(attrs, a) {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

func attrList(cfg config.LDAPConfig) []string {
	return []string{"dn", "cn", cfg.MemberAttr, cfg.BindingsAttr}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func safeAttr(a string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, a)
}

func dialLDAPAuto(cfg config.LDAPConfig) (*ldap.Conn, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errors.New("LDAP URL is empty")
	}

	isLDAPS := strings.HasPrefix(strings.ToLower(u), "ldaps://")
	isLDAP := strings.HasPrefix(strings.ToLower(u), "ldap://")

	if !isLDAP && !isLDAPS {
		return nil, errors.New("URL must start with ldap:// or ldaps://")
	}

	if isLDAPS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
		hostPort := strings.TrimPrefix(u, "ldaps://")
		if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = hostPort
		}
		return ldap.DialURL(u, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(u)
	if err != nil {
		return nil, err
	}

	if cfg.RequireTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
		hostPort := strings.TrimPrefix(u, "ldap://")
		if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = hostPort
		}
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, fmt.Errorf("StartTLS failed: %w", err)
		}
	}

	return conn, nil
}
