package scratch

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.Get("notified_for_2026-02-16_adv1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("notified_for_2026-02-16_adv1", "true"))
	require.NoError(t, s.Set("notified_for_2026-02-16_adv1", "true"))

	v, ok, err := s.Get("notified_for_2026-02-16_adv1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Delete("notified_for_2026-02-16_adv1"))
	require.NoError(t, s.Delete("notified_for_2026-02-16_adv1"))
	_, ok, err = s.Get("notified_for_2026-02-16_adv1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetTheme(ThemeDark))

	reopened, err := Open(dir)
	require.NoError(t, err)
	theme, err := reopened.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestThemeDefaultsAndValidation(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	theme, err := s.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	assert.Error(t, s.SetTheme("sepia"))
}

func TestKeysPrefix(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Set("notified_for_2026-01-01_adv0", "true"))
	require.NoError(t, s.Set("notified_for_2026-01-02_adv1", "true"))
	require.NoError(t, s.SetTheme(ThemeDark))

	keys := s.Keys(context.Background(), "notified_for_")
	sort.Strings(keys)
	assert.Equal(t, []string{"notified_for_2026-01-01_adv0", "notified_for_2026-01-02_adv1"}, keys)
}

func TestRejectsPathKeys(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Set("../escape", "x"), ErrInvalidKey)
	_, _, err = s.Get("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
