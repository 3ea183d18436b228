// Package music resolves a shared Spotify link into the now-playing snapshot
// stored on a post. Lookups go through Spotify's public oEmbed endpoint,
// which needs no credentials.
package music

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
)

const defaultOEmbedBaseURL = "https://open.spotify.com"

// spotifyIDPattern matches the base62 IDs Spotify uses for tracks and albums
var spotifyIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// supported share-link kinds
var linkKinds = map[string]bool{
	"track":    true,
	"album":    true,
	"playlist": true,
	"episode":  true,
}

// Link is a parsed Spotify share link
type Link struct {
	Kind string
	ID   string
	URL  string
}

// ParseLink parses a Spotify share URL or spotify: URI. Locale path segments
// (open.spotify.com/intl-ja/track/...) and query strings are tolerated.
func ParseLink(raw string) (*Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ValidationError("url", "music url cannot be empty")
	}

	// spotify:track:<id> URI form
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && linkKinds[parts[1]] && spotifyIDPattern.MatchString(parts[2]) {
			return &Link{
				Kind: parts[1],
				ID:   parts[2],
				URL:  fmt.Sprintf("https://open.spotify.com/%s/%s", parts[1], parts[2]),
			}, nil
		}
		return nil, apperrors.ValidationError("url", "not a recognizable spotify uri")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.ValidationError("url", "not a valid url")
	}
	if parsed.Host != "open.spotify.com" {
		return nil, apperrors.ValidationError("url", "only open.spotify.com links are supported")
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) != 2 || !linkKinds[segments[0]] || !spotifyIDPattern.MatchString(segments[1]) {
		return nil, apperrors.ValidationError("url", "not a recognizable spotify link")
	}

	return &Link{
		Kind: segments[0],
		ID:   segments[1],
		URL:  fmt.Sprintf("https://open.spotify.com/%s/%s", segments[0], segments[1]),
	}, nil
}

// Client resolves Spotify links via oEmbed
type Client struct {
	http *resty.Client
}

// NewClient creates a music client
func NewClient() *Client {
	http := resty.New()
	http.SetBaseURL(defaultOEmbedBaseURL)
	http.SetTimeout(5 * time.Second)
	http.SetHeader("User-Agent", "pixelblog-backend/1.0")
	return &Client{http: http}
}

// SetBaseURL overrides the oEmbed endpoint, used by tests
func (c *Client) SetBaseURL(url string) {
	c.http.SetBaseURL(url)
}

// oEmbedResponse is the subset of Spotify's oEmbed payload we keep
type oEmbedResponse struct {
	Title        string `json:"title"`
	ProviderName string `json:"provider_name"`
}

// Resolve turns a share link into a music snapshot. The oEmbed title is the
// display title; Spotify does not split out the artist, so Artist stays
// whatever the caller supplies on top.
func (c *Client) Resolve(ctx context.Context, rawURL string) (*models.MusicSnapshot, error) {
	link, err := ParseLink(rawURL)
	if err != nil {
		return nil, err
	}

	var result oEmbedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("url", link.URL).
		SetResult(&result).
		Get("/oembed")

	if err != nil {
		logger.WarnWithError("Music oEmbed lookup failed", err)
		return nil, apperrors.RemoteRead("music lookup")
	}
	if resp.StatusCode() != 200 {
		return nil, apperrors.NotFound("track")
	}

	return &models.MusicSnapshot{
		Title:   result.Title,
		URL:     link.URL,
		TrackID: link.ID,
	}, nil
}
