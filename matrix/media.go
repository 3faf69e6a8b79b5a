package matrix

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ThumbnailURL resolves a content locator to the media thumbnail
// endpoint, authenticated with an access_token query parameter.
// Malformed input resolves to "".
func (c *Client) ThumbnailURL(mxc string) string {
	uri, err := id.ParseContentURI(mxc)
	if err != nil {
		return ""
	}

	query := url.Values{}
	query.Set("width", strconv.Itoa(c.v.GetInt("matrix.thumbnailwidth")))
	query.Set("height", strconv.Itoa(c.v.GetInt("matrix.thumbnailheight")))
	query.Set("method", c.v.GetString("matrix.thumbnailmethod"))
	query.Set("access_token", c.mc.AccessToken)

	return fmt.Sprintf("%s/_matrix/media/r0/thumbnail/%s/%s?%s",
		c.baseURL(), uri.Homeserver, uri.FileID, query.Encode())
}

// DownloadURL resolves a content locator to the original rendition.
func (c *Client) DownloadURL(mxc string) string {
	uri, err := id.ParseContentURI(mxc)
	if err != nil {
		return ""
	}

	query := url.Values{}
	query.Set("access_token", c.mc.AccessToken)

	return fmt.Sprintf("%s/_matrix/media/r0/download/%s/%s?%s",
		c.baseURL(), uri.Homeserver, uri.FileID, query.Encode())
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.mc.HomeserverURL.String(), "/")
}

func (c *Client) thumbnailFromString(mxc string) string {
	if mxc == "" {
		return ""
	}

	return c.ThumbnailURL(mxc)
}

// SendText sends a plain text message to the room.
func (c *Client) SendText(roomID id.RoomID, text string) (id.EventID, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty message")
	}

	resp, err := c.mc.SendText(roomID, text)
	if err != nil {
		return "", errors.Wrap(err, "unable to send message")
	}

	return resp.EventID, nil
}

// progressReader reports coarse percentage progress as its wrapped
// reader drains. No cancellation; an upload runs to completion.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	if p.fn != nil && p.total > 0 {
		p.fn(int(p.read * 100 / p.total))
	}

	return n, err
}

// SendFile uploads the content and sends a file or image message
// carrying the returned content locator plus MIME type and size.
func (c *Client) SendFile(roomID id.RoomID, filename, mimeType string, data []byte, progress func(pct int)) (id.EventID, error) {
	if progress != nil {
		progress(0)
	}

	reader := &progressReader{r: bytes.NewReader(data), total: int64(len(data)), fn: progress}

	upload, err := c.mc.Upload(reader, mimeType, int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "unable to upload content")
	}

	msgType := event.MsgFile
	if strings.HasPrefix(mimeType, "image/") {
		msgType = event.MsgImage
	}

	content := event.MessageEventContent{
		MsgType: msgType,
		Body:    filename,
		URL:     id.ContentURIString(upload.ContentURI.String()),
		Info: &event.FileInfo{
			MimeType: mimeType,
			Size:     len(data),
		},
	}

	resp, err := c.mc.SendMessageEvent(roomID, event.EventMessage, content)
	if err != nil {
		return "", errors.Wrap(err, "unable to send file message")
	}

	if progress != nil {
		progress(100)
	}

	return resp.EventID, nil
}

// Download fetches the original rendition of a content locator,
// reporting percentage progress when the response carries a length.
func (c *Client) Download(mxc string, progress func(pct int)) ([]byte, error) {
	dlURL := c.DownloadURL(mxc)
	if dlURL == "" {
		return nil, errors.New("invalid content locator")
	}

	resp, err := c.mc.Client.Get(dlURL)
	if err != nil {
		return nil, errors.Wrap(err, "unable to download content")
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, errors.Errorf("download failed: %s", resp.Status)
	}

	total := resp.ContentLength

	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)

	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if progress != nil && total > 0 {
				progress(int(int64(buf.Len()) * 100 / total))
			}
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrap(err, "unable to read content")
		}
	}

	// a chunked response carries no length; the download still ends at
	// full progress
	if progress != nil {
		progress(100)
	}

	return buf.Bytes(), nil
}
