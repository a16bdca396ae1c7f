package cmd

import (
	u "net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
)

func TestParseCoomerURL(t *testing.T) {
	t.Parallel()

	t.Run("creator feed", func(t *testing.T) {
		t.Parallel()
		parsed, err := u.Parse("https://coomer.su/onlyfans/user/alice")
		require.NoError(t, err)
		site, service, user, postID, query, offset, err := parseCoomerURL(parsed)
		require.NoError(t, err)
		assert.Equal(t, "coomer.su", site)
		assert.Equal(t, "onlyfans", service)
		assert.Equal(t, "alice", user)
		assert.Empty(t, postID)
		assert.Empty(t, query)
		assert.Zero(t, offset)
	})

	t.Run("single post", func(t *testing.T) {
		t.Parallel()
		parsed, err := u.Parse("https://kemono.su/patreon/user/bob/post/12345")
		require.NoError(t, err)
		_, service, user, postID, _, _, err := parseCoomerURL(parsed)
		require.NoError(t, err)
		assert.Equal(t, "patreon", service)
		assert.Equal(t, "bob", user)
		assert.Equal(t, "12345", postID)
	})

	t.Run("query and offset", func(t *testing.T) {
		t.Parallel()
		parsed, err := u.Parse("https://coomer.su/onlyfans/user/alice?q=beach&o=150")
		require.NoError(t, err)
		_, _, _, _, query, offset, err := parseCoomerURL(parsed)
		require.NoError(t, err)
		assert.Equal(t, "beach", query)
		assert.Equal(t, 150, offset)
	})

	t.Run("unrecognized path", func(t *testing.T) {
		t.Parallel()
		parsed, err := u.Parse("https://coomer.su/artists")
		require.NoError(t, err)
		_, _, _, _, _, _, err = parseCoomerURL(parsed)
		assert.ErrorIs(t, err, session.ErrUnsupportedURL)
	})
}

func TestDispatchUnknownHost(t *testing.T) {
	sess := session.New(session.Config{DownloadFolder: t.TempDir()}, nil)
	err := dispatch(sess, nil, "https://unknown.example.com/a/b")
	assert.ErrorIs(t, err, session.ErrUnsupportedURL)
}

func TestIsCoomerHost(t *testing.T) {
	t.Parallel()

	assert.True(t, isCoomerHost("coomer.su"))
	assert.True(t, isCoomerHost("www.kemono.su"))
	assert.True(t, isCoomerHost("coomer.party"))
	assert.False(t, isCoomerHost("notcoomer.example.com"))
	assert.False(t, isCoomerHost("coomer.su.evil.example"))
}

func TestBuildFilters(t *testing.T) {
	t.Cleanup(func() {
		images, videos, archives = false, false, false
	})

	images, videos, archives = false, false, false
	assert.Equal(t, links.Filters{Images: true, Videos: true, Archives: true}, buildFilters())

	images, videos, archives = true, false, false
	assert.Equal(t, links.Filters{Images: true}, buildFilters())

	images, videos, archives = false, true, true
	assert.Equal(t, links.Filters{Videos: true, Archives: true}, buildFilters())
}

func TestReadDownloadList(t *testing.T) {
	t.Parallel()

	t.Run("valid list", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "urls.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`urls:
  - https://example.com/a/one
  - https://example.com/a/two
`), 0644))
		urls, err := ReadDownloadList(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/a/one", "https://example.com/a/two"}, urls)
	})

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "urls.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`urls: []`), 0644))
		_, err := ReadDownloadList(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := ReadDownloadList(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
