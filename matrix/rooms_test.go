package matrix

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGroup(t *testing.T) {
	c := newTestClient(t, nil)

	seedRoom(c, "!group:example.org", "devs", topicTypeGroup)
	seedRoom(c, "!topiconly:example.org", "chatter", "")
	seedRoom(c, "!dm:example.org", "", "")

	// the marker decides, member count does not
	assert.True(t, c.IsGroup("!group:example.org"))

	// a topic without the marker is not a group
	assert.False(t, c.IsGroup("!topiconly:example.org"))
	assert.False(t, c.IsGroup("!dm:example.org"))
}

func TestIsDirect(t *testing.T) {
	c := newTestClient(t, nil)

	c.Lock()
	c.direct = map[id.UserID][]id.RoomID{
		"@alice:example.org": {"!one:example.org", "!two:example.org"},
		"@bob:example.org":   {"!three:example.org"},
	}
	c.Unlock()

	assert.True(t, c.IsDirect("!two:example.org"))
	assert.True(t, c.IsDirect("!three:example.org"))
	assert.False(t, c.IsDirect("!four:example.org"))
}

func TestContactsSkipsGroupMarkedRooms(t *testing.T) {
	c := newTestClient(t, nil)

	seedRoom(c, "!dm:example.org", "", "", "@alice:example.org", testUserID)
	seedRoom(c, "!group:example.org", "devs", topicTypeGroup, "@alice:example.org", testUserID)

	c.Lock()
	c.direct = map[id.UserID][]id.RoomID{
		"@alice:example.org": {"!dm:example.org", "!group:example.org"},
	}
	c.Unlock()

	contacts := c.Contacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, id.RoomID("!dm:example.org"), contacts[0].RoomID)
	assert.Equal(t, id.UserID("@alice:example.org"), contacts[0].UserID)
}

func TestGroups(t *testing.T) {
	c := newTestClient(t, nil)

	seedRoom(c, "!group:example.org", "devs", topicTypeGroup)
	seedRoom(c, "!unnamed:example.org", "", topicTypeGroup)
	seedRoom(c, "!dm:example.org", "", "")

	groups := c.Groups()
	require.Len(t, groups, 2)

	names := map[id.RoomID]string{}
	for _, g := range groups {
		names[g.RoomID] = g.Name
	}

	assert.Equal(t, "devs", names["!group:example.org"])
	// rooms without a name fall back to the id
	assert.Equal(t, "!unnamed:example.org", names["!unnamed:example.org"])
}

// fakeHomeserver covers the endpoints the direct-room bookkeeping and
// room creation paths hit.
type fakeHomeserver struct {
	t *testing.T

	directData  map[string][]string
	directPuts  int32
	createdRoom string
}

func (f *fakeHomeserver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.Contains(r.URL.Path, "/account_data/m.direct") && r.Method == http.MethodGet:
		if f.directData == nil {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errcode":"M_NOT_FOUND","error":"not found"}`))
			return
		}
		json.NewEncoder(w).Encode(f.directData)

	case strings.Contains(r.URL.Path, "/account_data/m.direct") && r.Method == http.MethodPut:
		atomic.AddInt32(&f.directPuts, 1)
		f.directData = map[string][]string{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.directData))
		w.Write([]byte(`{}`))

	case strings.HasSuffix(r.URL.Path, "/createRoom"):
		f.createdRoom = "!new:example.org"
		w.Write([]byte(`{"room_id":"!new:example.org"}`))

	case strings.Contains(r.URL.Path, "/state/m.room.topic"):
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errcode":"M_NOT_FOUND","error":"event not found"}`))

	case strings.Contains(r.URL.Path, "/joined_members"):
		w.Write([]byte(`{"joined":{"@me:example.org":{},"@alice:example.org":{}}}`))

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestAddDirectRoomMergesWithoutDuplicates(t *testing.T) {
	fake := &fakeHomeserver{t: t, directData: map[string][]string{
		"@alice:example.org": {"!old:example.org"},
	}}
	c := newTestClient(t, fake)

	require.NoError(t, c.addDirectRoom("@alice:example.org", "!fresh:example.org"))
	assert.Equal(t, []string{"!old:example.org", "!fresh:example.org"}, fake.directData["@alice:example.org"])

	// already recorded: no second write
	require.NoError(t, c.addDirectRoom("@alice:example.org", "!fresh:example.org"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.directPuts))

	// cache follows the write
	assert.True(t, c.IsDirect("!fresh:example.org"))
}

func TestCreateDMRecordsRoomBeforeReturning(t *testing.T) {
	fake := &fakeHomeserver{t: t}
	c := newTestClient(t, fake)

	roomID, err := c.CreateDM("@alice:example.org")
	require.NoError(t, err)
	assert.Equal(t, id.RoomID("!new:example.org"), roomID)

	// the map was written before CreateDM returned
	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.directPuts))
	assert.Contains(t, fake.directData["@alice:example.org"], "!new:example.org")
	assert.True(t, c.IsDirect("!new:example.org"))
}

func TestCreateDMReusesLiveRoom(t *testing.T) {
	fake := &fakeHomeserver{t: t}
	c := newTestClient(t, fake)

	seedRoom(c, "!existing:example.org", "", "", "@alice:example.org", testUserID)

	c.Lock()
	c.direct = map[id.UserID][]id.RoomID{"@alice:example.org": {"!existing:example.org"}}
	c.Unlock()

	roomID, err := c.CreateDM("@alice:example.org")
	require.NoError(t, err)
	assert.Equal(t, id.RoomID("!existing:example.org"), roomID)
	assert.Empty(t, fake.createdRoom)
}

func topicEvent(t *testing.T, roomID id.RoomID, topic, topicType string) *event.Event {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{
		"event_id":         "$topic1",
		"sender":           "@alice:example.org",
		"type":             "m.room.topic",
		"state_key":        "",
		"room_id":          roomID.String(),
		"origin_server_ts": int64(1700000000000),
		"content":          map[string]interface{}{"topic": topic, "type": topicType},
	})
	require.NoError(t, err)

	var ev event.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.NoError(t, ev.Content.ParseRaw(ev.Type))

	return &ev
}

// topic updates from the sync goroutine and classification reads from
// command goroutines run concurrently; run with -race.
func TestConcurrentTopicWritesAndClassification(t *testing.T) {
	c := newTestClient(t, nil)
	seedRoom(c, "!room:example.org", "devs", "")

	ev := topicEvent(t, "!room:example.org", "No Topic", topicTypeGroup)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.handleTopic(mautrix.EventSourceState, ev)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.IsGroup("!room:example.org")
				c.Groups()
			}
		}()
	}
	wg.Wait()

	assert.True(t, c.IsGroup("!room:example.org"))
	require.Len(t, c.Groups(), 1)
}

func TestCreateGroupValidation(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.CreateGroup("", []id.UserID{"@alice:example.org"})
	assert.Error(t, err)

	_, err = c.CreateGroup("devs", nil)
	assert.Error(t, err)
}

func TestRoomHeaderShowsEncryptionState(t *testing.T) {
	c := newTestClient(t, nil)
	seedRoom(c, "!group:example.org", "devs", topicTypeGroup)

	header, err := c.RoomHeader("!group:example.org")
	require.NoError(t, err)
	assert.False(t, header.Encrypted)

	c.handleEncryptionState(mautrix.EventSourceState, &event.Event{RoomID: "!group:example.org"})

	header, err = c.RoomHeader("!group:example.org")
	require.NoError(t, err)
	assert.True(t, header.Encrypted)
	assert.Equal(t, "devs", header.DisplayName)
}
