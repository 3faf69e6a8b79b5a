package matrix

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	prefixed "github.com/matterbridge/logrus-prefixed-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/limbchat/limb/session"
)

// ErrNoSession is returned by Restore when the persisted session is
// absent or incomplete. The caller renders the unauthenticated view.
var ErrNoSession = errors.New("no active session")

// Client wraps a mautrix connection handle with the view-facing state:
// room/member maps fed by sync, the cached direct-rooms map, and a
// buffered event channel the UI consumes.
type Client struct {
	mc    *mautrix.Client
	v     *viper.Viper
	store *session.Store

	eventChan chan *Event
	ready     bool

	rooms  map[id.RoomID]*Room
	users  map[id.UserID]*User
	direct map[id.UserID][]id.RoomID
	sync.RWMutex

	// serializes the read-modify-write of m.direct within this
	// process. Writers in other sessions still race; last writer wins.
	directMu sync.Mutex

	active         *Timeline
	pendingDecrypt map[id.EventID]struct{}

	profileCache *lru.Cache

	logger     *logrus.Entry
	rootLogger *logrus.Logger
	quit       chan struct{}
}

func newClient(v *viper.Viper, store *session.Store) *Client {
	rootLogger := logrus.New()
	rootLogger.SetFormatter(&prefixed.TextFormatter{
		PrefixPadding: 14,
		FullTimestamp: true,
	})

	if v.GetBool("debug") {
		rootLogger.SetLevel(logrus.DebugLevel)
	}

	if v.GetBool("trace") {
		rootLogger.SetLevel(logrus.TraceLevel)
	}

	cache, _ := lru.New(500)

	return &Client{
		v:              v,
		store:          store,
		eventChan:      make(chan *Event, 100),
		rooms:          make(map[id.RoomID]*Room),
		users:          make(map[id.UserID]*User),
		direct:         make(map[id.UserID][]id.RoomID),
		pendingDecrypt: make(map[id.EventID]struct{}),
		profileCache:   cache,
		rootLogger:     rootLogger,
		logger:         rootLogger.WithFields(logrus.Fields{"prefix": "matrix"}),
		quit:           make(chan struct{}),
	}
}

// Restore rebuilds a live connection from the persisted session. If any
// credential field is missing it returns ErrNoSession; any other
// failure during bootstrap degrades to the same outcome after a log
// line, it never takes the process down.
func Restore(v *viper.Viper, store *session.Store) (c *Client, err error) {
	c = newClient(v, store)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("session restore panicked: %v", r)
			c, err = nil, ErrNoSession
		}
	}()

	sess, err := store.Load()
	if err != nil {
		c.logger.Errorf("unable to load session: %v", err)
		return nil, ErrNoSession
	}

	if !sess.Complete() {
		return nil, ErrNoSession
	}

	mc, err := mautrix.NewClient(sess.HomeserverURL, id.UserID(sess.UserID), sess.AccessToken)
	if err != nil {
		c.logger.Errorf("unable to create matrix client: %v", err)
		return nil, ErrNoSession
	}

	mc.DeviceID = id.DeviceID(sess.DeviceID)
	c.mc = mc

	c.start()

	return c, nil
}

// Ready reports whether the first sync has completed. Until then the
// connection handle must be treated as unusable.
func (c *Client) Ready() bool {
	c.RLock()
	defer c.RUnlock()

	return c.ready
}

func (c *Client) UserID() id.UserID {
	return c.mc.UserID
}

// Logout revokes the access token, stops the sync loop and wipes the
// persisted session.
func (c *Client) Logout() error {
	close(c.quit)
	c.mc.StopSync()

	if _, err := c.mc.Logout(); err != nil {
		c.logger.Errorf("logout request failed: %v", err)
	}

	if err := c.store.Clear(); err != nil {
		return errors.Wrap(err, "unable to clear session")
	}

	c.emit(EventTypeLogout, &LogoutEvent{})

	return nil
}
