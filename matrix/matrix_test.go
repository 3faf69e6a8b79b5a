package matrix

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/limbchat/limb/session"

	"github.com/stretchr/testify/require"
)

const testUserID = id.UserID("@me:example.org")

func testViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("matrix.backloglimit", 30)
	v.SetDefault("matrix.pagelimit", 20)
	v.SetDefault("matrix.thumbnailwidth", 320)
	v.SetDefault("matrix.thumbnailheight", 180)
	v.SetDefault("matrix.thumbnailmethod", "scale")

	return v
}

// newTestClient returns a client whose mautrix handle points at the
// given handler. No sync loop is started.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	var server *httptest.Server
	if handler != nil {
		server = httptest.NewServer(handler)
		t.Cleanup(server.Close)
	}

	st, err := session.OpenPath(t.TempDir() + "/session.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := newClient(testViper(), st)

	homeserver := "https://example.org"
	if server != nil {
		homeserver = server.URL
	}

	mc, err := mautrix.NewClient(homeserver, testUserID, "secret-token")
	require.NoError(t, err)
	c.mc = mc

	return c
}

// seedRoom installs room state as if it had arrived through sync.
func seedRoom(c *Client, roomID id.RoomID, name, topicType string, members ...id.UserID) *Room {
	c.Lock()
	defer c.Unlock()

	room := c.roomLocked(roomID)
	room.Name = name
	room.TopicType = topicType

	for _, userID := range members {
		user := &User{ID: userID, MemberEventContent: &event.MemberEventContent{
			Membership:  event.MembershipJoin,
			Displayname: userID.String(),
		}}
		c.users[userID] = user
		room.Members[userID] = user
	}

	return room
}
