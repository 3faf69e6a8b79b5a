package session

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Session holds the credential fields needed to rebuild a matrix
// connection. All fields are opaque strings handed back by the
// homeserver on login or registration.
type Session struct {
	AccessToken   string
	UserID        string
	HomeserverURL string
	DeviceID      string
}

// Complete reports whether every credential field is present.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.UserID != "" && s.HomeserverURL != "" && s.DeviceID != ""
}

var bucketName = []byte("session")

var (
	keyAccessToken   = []byte("accessToken")
	keyUserID        = []byte("userId")
	keyHomeserverURL = []byte("homeServerUrl")
	keyDeviceID      = []byte("deviceId")
	keySelectedRoom  = []byte("selectedRoomId")
)

// Store persists a single session in a bolt database.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the session database under the user data
// directory ($XDG_DATA_HOME/limb/session.db).
func Open() (*Store, error) {
	path, err := xdg.DataFile(filepath.Join("limb", "session.db"))
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve data directory")
	}

	return OpenPath(path)
}

// OpenPath opens the session database at an explicit location.
func OpenPath(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open session database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to create session bucket")
	}

	return &Store{db: db}, nil
}

func (st *Store) Close() error {
	return st.db.Close()
}

// Save persists the four credential fields. It does not touch the
// selected-room key.
func (st *Store) Save(sess Session) error {
	err := st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)

		for _, kv := range []struct {
			k []byte
			v string
		}{
			{keyAccessToken, sess.AccessToken},
			{keyUserID, sess.UserID},
			{keyHomeserverURL, sess.HomeserverURL},
			{keyDeviceID, sess.DeviceID},
		} {
			if err := b.Put(kv.k, []byte(kv.v)); err != nil {
				return err
			}
		}

		return nil
	})

	return errors.Wrap(err, "unable to save session")
}

// Load returns whatever credential fields are present. Absent keys come
// back as empty strings; use Session.Complete to decide whether the
// session is usable.
func (st *Store) Load() (Session, error) {
	var sess Session

	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		sess.AccessToken = string(b.Get(keyAccessToken))
		sess.UserID = string(b.Get(keyUserID))
		sess.HomeserverURL = string(b.Get(keyHomeserverURL))
		sess.DeviceID = string(b.Get(keyDeviceID))
		return nil
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "unable to load session")
	}

	return sess, nil
}

// Clear wipes the whole bucket, the selected-room key included.
func (st *Store) Clear() error {
	err := st.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}

		_, err := tx.CreateBucket(bucketName)
		return err
	})

	return errors.Wrap(err, "unable to clear session")
}

func (st *Store) SaveSelectedRoom(roomID string) error {
	err := st.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(keySelectedRoom, []byte(roomID))
	})

	return errors.Wrap(err, "unable to save selected room")
}

func (st *Store) LoadSelectedRoom() (string, error) {
	var roomID string

	err := st.db.View(func(tx *bolt.Tx) error {
		roomID = string(tx.Bucket(bucketName).Get(keySelectedRoom))
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "unable to load selected room")
	}

	return roomID, nil
}

func (st *Store) ClearSelectedRoom() error {
	err := st.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(keySelectedRoom)
	})

	return errors.Wrap(err, "unable to clear selected room")
}
