package matrix

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"maunium.net/go/mautrix"

	"github.com/limbchat/limb/session"
)

// Login performs a password login, persists the returned credentials
// and starts the sync loop.
func Login(v *viper.Viper, store *session.Store, server, username, password string) (*Client, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	c := newClient(v, store)

	mc, err := mautrix.NewClient(server, "", "")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create matrix client")
	}

	resp, err := mc.Login(&mautrix.ReqLogin{
		Type: "m.login.password",
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: username,
		},
		Password:         password,
		StoreCredentials: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to login")
	}

	sess := session.Session{
		AccessToken:   resp.AccessToken,
		UserID:        resp.UserID.String(),
		HomeserverURL: server,
		DeviceID:      resp.DeviceID.String(),
	}

	if err := store.Save(sess); err != nil {
		c.logger.Errorf("unable to persist session: %v", err)
	}

	c.mc = mc
	c.start()

	return c, nil
}

// Register creates a new account through the dummy auth flow, persists
// the credentials and starts the sync loop.
func Register(v *viper.Viper, store *session.Store, server, username, password, confirm string) (*Client, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	if password != confirm {
		return nil, errors.New("passwords do not match")
	}

	c := newClient(v, store)

	mc, err := mautrix.NewClient(server, "", "")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create matrix client")
	}

	resp, err := mc.RegisterDummy(&mautrix.ReqRegister{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to register")
	}

	if resp.AccessToken == "" || resp.UserID == "" || resp.DeviceID == "" {
		return nil, errors.New("invalid registration response from server")
	}

	mc.AccessToken = resp.AccessToken
	mc.UserID = resp.UserID
	mc.DeviceID = resp.DeviceID

	sess := session.Session{
		AccessToken:   resp.AccessToken,
		UserID:        resp.UserID.String(),
		HomeserverURL: server,
		DeviceID:      resp.DeviceID.String(),
	}

	if err := store.Save(sess); err != nil {
		c.logger.Errorf("unable to persist session: %v", err)
	}

	c.mc = mc
	c.start()

	return c, nil
}
