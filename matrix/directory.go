package matrix

import (
	"github.com/pkg/errors"
	"maunium.net/go/mautrix/id"
)

type reqDirectorySearch struct {
	SearchTerm string `json:"search_term"`
	Limit      int    `json:"limit,omitempty"`
}

type respDirectorySearch struct {
	Limited bool `json:"limited"`
	Results []struct {
		UserID      id.UserID `json:"user_id"`
		DisplayName string    `json:"display_name"`
		AvatarURL   string    `json:"avatar_url"`
	} `json:"results"`
}

// SearchUsers queries the homeserver user directory. An empty term
// returns no results without a network call.
func (c *Client) SearchUsers(term string) ([]Contact, error) {
	if term == "" {
		return nil, nil
	}

	var resp respDirectorySearch

	urlPath := c.mc.BuildURL("user_directory", "search")
	_, err := c.mc.MakeRequest("POST", urlPath, &reqDirectorySearch{SearchTerm: term, Limit: 20}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "unable to search user directory")
	}

	contacts := make([]Contact, 0, len(resp.Results))

	for _, result := range resp.Results {
		name := result.DisplayName
		if name == "" {
			name = result.UserID.String()
		}

		contacts = append(contacts, Contact{
			UserID:      result.UserID,
			DisplayName: name,
			AvatarURL:   c.thumbnailFromString(result.AvatarURL),
		})
	}

	return contacts, nil
}
