package matrix

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbnailURL(t *testing.T) {
	c := newTestClient(t, nil)

	raw := c.ThumbnailURL("mxc://example.org/abc123")
	require.NotEmpty(t, raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/_matrix/media/r0/thumbnail/example.org/abc123", u.Path)
	assert.Equal(t, "320", u.Query().Get("width"))
	assert.Equal(t, "180", u.Query().Get("height"))
	assert.Equal(t, "scale", u.Query().Get("method"))
	assert.Equal(t, "secret-token", u.Query().Get("access_token"))
}

func TestDownloadURL(t *testing.T) {
	c := newTestClient(t, nil)

	raw := c.DownloadURL("mxc://example.org/abc123")
	require.NotEmpty(t, raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/_matrix/media/r0/download/example.org/abc123", u.Path)
	assert.Equal(t, "secret-token", u.Query().Get("access_token"))
}

func TestMediaURLMalformedLocator(t *testing.T) {
	c := newTestClient(t, nil)

	assert.Empty(t, c.ThumbnailURL("not-a-locator"))
	assert.Empty(t, c.DownloadURL(""))
}

func TestProgressReaderReportsPercentage(t *testing.T) {
	var reported []int

	pr := &progressReader{
		r:     strings.NewReader(strings.Repeat("x", 100)),
		total: 100,
		fn:    func(pct int) { reported = append(reported, pct) },
	}

	buf := make([]byte, 25)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}

	require.NotEmpty(t, reported)
	assert.Equal(t, 100, reported[len(reported)-1])

	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1])
	}
}

func TestDownloadReportsProgress(t *testing.T) {
	payload := strings.Repeat("limb", 1024)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/download/") {
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write([]byte(payload))
	})

	c := newTestClient(t, handler)

	var reported []int
	data, err := c.Download("mxc://example.org/abc123", func(pct int) { reported = append(reported, pct) })
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	require.NotEmpty(t, reported)
	assert.Equal(t, 100, reported[len(reported)-1])
	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1])
	}
}

func TestDownloadWithoutContentLengthEndsAtFull(t *testing.T) {
	payload := strings.Repeat("limb", 16*1024)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// flush to force a chunked response with no length
		flusher := w.(http.Flusher)
		w.Write([]byte(payload[:len(payload)/2]))
		flusher.Flush()
		w.Write([]byte(payload[len(payload)/2:]))
	})

	c := newTestClient(t, handler)

	last := -1
	data, err := c.Download("mxc://example.org/abc123", func(pct int) { last = pct })
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Equal(t, 100, last)
}
