package soundcloud

import (
	"context"
	"net/url"
	"strconv"
)

const tracksPageSize = 50

type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Permalink      string `json:"permalink"`
	PermalinkURL   string `json:"permalink_url"`
	FollowersCount int    `json:"followers_count"`
	TrackCount     int    `json:"track_count"`
}

type Track struct {
	ID            int64  `json:"id"`
	URN           string `json:"urn"`
	Title         string `json:"title"`
	PermalinkURL  string `json:"permalink_url"`
	PlaybackCount int    `json:"playback_count"`
	LikesCount    int    `json:"likes_count"`
	RepostsCount  int    `json:"reposts_count"`
	CommentCount  int    `json:"comment_count"`
	DownloadCount int    `json:"download_count"`
	CreatedAt     string `json:"created_at"`
	Duration      int64  `json:"duration"`
	Genre         string `json:"genre"`
	TagList       string `json:"tag_list"`
	Description   string `json:"description"`
}

type trackPage struct {
	Collection []Track `json:"collection"`
	NextHref   string  `json:"next_href"`
}

// Me returns the account the token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u *User
	if err := c.getJSON(ctx, c.apiBaseURL+"/me", &u); err != nil {
		return nil, err
	}

	return u, nil
}

// Tracks pages through the user's uploads until limit tracks were read or
// there are no more pages. On a failed page the tracks read so far are
// returned with the error.
func (c *Client) Tracks(ctx context.Context, userID string, limit int) ([]Track, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(tracksPageSize))
	query.Set("offset", "0")
	query.Set("linked_partitioning", "1")

	next := c.apiBaseURL + "/users/" + url.PathEscape(userID) + "/tracks?" + query.Encode()

	tracks := make([]Track, 0)
	for next != "" {
		var page trackPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return tracks, err
		}

		tracks = append(tracks, page.Collection...)

		if limit > 0 && len(tracks) >= limit {
			return tracks[:limit], nil
		}

		next = page.NextHref
	}

	return tracks, nil
}
