package repository

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/ponyo877/roomchat/client/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS cookies (
	host      TEXT NOT NULL,
	path      TEXT NOT NULL,
	name      TEXT NOT NULL,
	value     TEXT NOT NULL,
	domain    TEXT NOT NULL DEFAULT '',
	scheme    TEXT NOT NULL,
	secure    INTEGER NOT NULL DEFAULT 0,
	http_only INTEGER NOT NULL DEFAULT 0,
	expires   DATETIME,
	PRIMARY KEY (host, path, name)
)`

// CookieStore is an http.CookieJar that writes every cookie it receives
// to sqlite, so the server session survives between CLI invocations.
// Matching and expiry are delegated to net/http/cookiejar.
type CookieStore struct {
	db     *sql.DB
	logger zerolog.Logger

	mu  sync.Mutex
	jar *cookiejar.Jar
}

// OpenCookieStore opens (or creates) the database at path.
func OpenCookieStore(path string, logger zerolog.Logger) (*CookieStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie db: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewCookieStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewCookieStore(db *sql.DB, logger zerolog.Logger) (*CookieStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create cookies table: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	s := &CookieStore{
		db:     db,
		logger: logx.Component(logger, "cookies"),
		jar:    jar,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CookieStore) load() error {
	if _, err := s.db.Exec("DELETE FROM cookies WHERE expires IS NOT NULL AND expires <= ?", time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to purge expired cookies: %w", err)
	}

	rows, err := s.db.Query("SELECT host, path, name, value, domain, scheme, secure, http_only, expires FROM cookies")
	if err != nil {
		return fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var host, path, name, value, domain, scheme string
		var secure, httpOnly bool
		var expires sql.NullTime
		if err := rows.Scan(&host, &path, &name, &value, &domain, &scheme, &secure, &httpOnly, &expires); err != nil {
			return fmt.Errorf("failed to scan cookie: %w", err)
		}
		c := &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     path,
			Domain:   domain,
			Secure:   secure,
			HttpOnly: httpOnly,
		}
		if expires.Valid {
			c.Expires = expires.Time
		}
		s.jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: path}, []*http.Cookie{c})
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over cookies: %w", err)
	}
	s.logger.Debug().Int("count", n).Msg("Loaded cookies")
	return nil
}

func (s *CookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

// SetCookies updates the in-memory jar and mirrors the change to disk.
// A write failure is logged; the in-memory jar stays authoritative for
// the running process.
func (s *CookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(u, cookies)
	now := time.Now()
	for _, c := range cookies {
		if err := s.persist(u, c, now); err != nil {
			s.logger.Warn().Err(err).Str("cookie", c.Name).Msg("Failed to persist cookie")
		}
	}
}

func (s *CookieStore) persist(u *url.URL, c *http.Cookie, now time.Time) error {
	path := c.Path
	if path == "" || path[0] != '/' {
		path = "/"
	}

	var expires sql.NullTime
	switch {
	case c.MaxAge < 0:
		return s.delete(u.Host, path, c.Name)
	case c.MaxAge > 0:
		expires = sql.NullTime{Time: now.Add(time.Duration(c.MaxAge) * time.Second).UTC(), Valid: true}
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return s.delete(u.Host, path, c.Name)
		}
		expires = sql.NullTime{Time: c.Expires.UTC(), Valid: true}
	}

	query := `
		INSERT INTO cookies (host, path, name, value, domain, scheme, secure, http_only, expires)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (host, path, name) DO UPDATE SET
			value = excluded.value,
			domain = excluded.domain,
			scheme = excluded.scheme,
			secure = excluded.secure,
			http_only = excluded.http_only,
			expires = excluded.expires
	`
	if _, err := s.db.Exec(query, u.Host, path, c.Name, c.Value, c.Domain, httpScheme(u.Scheme), c.Secure, c.HttpOnly, expires); err != nil {
		return fmt.Errorf("failed to upsert cookie '%s': %w", c.Name, err)
	}
	return nil
}

func (s *CookieStore) delete(host, path, name string) error {
	if _, err := s.db.Exec("DELETE FROM cookies WHERE host = ? AND path = ? AND name = ?", host, path, name); err != nil {
		return fmt.Errorf("failed to delete cookie '%s': %w", name, err)
	}
	return nil
}

// Clear forgets every stored cookie.
func (s *CookieStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM cookies"); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	s.jar = jar
	return nil
}

func (s *CookieStore) Close() error {
	return s.db.Close()
}

// httpScheme maps stream schemes onto the http scheme cookiejar accepts.
func httpScheme(scheme string) string {
	switch scheme {
	case "wss", "https":
		return "https"
	default:
		return "http"
	}
}
