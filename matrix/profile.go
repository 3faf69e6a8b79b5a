package matrix

import (
	"github.com/pkg/errors"
	"maunium.net/go/mautrix/id"
)

type respProfile struct {
	DisplayName string `json:"displayname"`
	AvatarURL   string `json:"avatar_url"`
}

// Profile fetches a user's display name and avatar content locator,
// with an lru cache in front of the endpoint.
func (c *Client) Profile(userID id.UserID) (string, string, error) {
	if cached, ok := c.profileCache.Get(userID); ok {
		if profile, ok := cached.(respProfile); ok {
			return profile.DisplayName, profile.AvatarURL, nil
		}
	}

	var profile respProfile

	urlPath := c.mc.BuildURL("profile", userID)
	if _, err := c.mc.MakeRequest("GET", urlPath, nil, &profile); err != nil {
		return "", "", errors.Wrapf(err, "unable to fetch profile of %s", userID)
	}

	c.profileCache.Add(userID, profile)

	return profile.DisplayName, profile.AvatarURL, nil
}

// SetDisplayName updates the local user's display name.
func (c *Client) SetDisplayName(name string) error {
	if name == "" {
		return errors.New("display name is required")
	}

	if err := c.mc.SetDisplayName(name); err != nil {
		return errors.Wrap(err, "unable to set display name")
	}

	c.profileCache.Remove(c.mc.UserID)

	return nil
}

// SetAvatar points the local user's avatar at an uploaded content
// locator.
func (c *Client) SetAvatar(mxc string) error {
	uri, err := id.ParseContentURI(mxc)
	if err != nil {
		return errors.Wrap(err, "invalid content locator")
	}

	if err := c.mc.SetAvatarURL(uri); err != nil {
		return errors.Wrap(err, "unable to set avatar")
	}

	c.profileCache.Remove(c.mc.UserID)

	return nil
}

// RemoveAvatar clears the local user's avatar.
func (c *Client) RemoveAvatar() error {
	if err := c.mc.SetAvatarURL(id.ContentURI{}); err != nil {
		return errors.Wrap(err, "unable to remove avatar")
	}

	c.profileCache.Remove(c.mc.UserID)

	return nil
}

// UploadAvatar uploads image bytes and returns the content locator for
// SetAvatar.
func (c *Client) UploadAvatar(mimeType string, data []byte) (string, error) {
	upload, err := c.mc.UploadBytes(data, mimeType)
	if err != nil {
		return "", errors.Wrap(err, "unable to upload avatar")
	}

	return upload.ContentURI.String(), nil
}
