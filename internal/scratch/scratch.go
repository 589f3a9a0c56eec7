// Package scratch is the device-local key-value space. It holds the
// notification dedup markers and the theme preference, nothing else.
package scratch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

const (
	themeKey   = "theme"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrInvalidKey = errors.New("scratch: key must be non-empty and must not contain path separators")

// Store is a string-to-string map persisted as one small file per key.
type Store struct {
	d *diskv.Diskv
}

// Open returns a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 64 * 1024,
		FilePerm:     0o600,
		PathPerm:     0o700,
	})}, nil
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	b, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

// Set stores value under key. Writing the same value twice is harmless.
func (s *Store) Set(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return s.d.Write(key, []byte(value))
}

func (s *Store) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := s.d.Erase(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Keys lists the keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) []string {
	out := make([]string, 0)
	for key := range s.d.KeysPrefix(prefix, ctx.Done()) {
		out = append(out, key)
	}
	return out
}

// Theme returns the stored UI theme, defaulting to light.
func (s *Store) Theme() (string, error) {
	v, ok, err := s.Get(themeKey)
	if err != nil || !ok {
		return ThemeLight, err
	}
	return v, nil
}

func (s *Store) SetTheme(theme string) error {
	switch theme {
	case ThemeLight, ThemeDark:
		return s.Set(themeKey, theme)
	}
	return errors.New("scratch: theme must be light or dark")
}
