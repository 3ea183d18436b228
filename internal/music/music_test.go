package music

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/pixelblog/backend/internal/errors"
	applogger "github.com/pixelblog/backend/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	applogger.Log = zap.NewNop()
}

func TestParseLink(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		kind    string
		id      string
		wantErr bool
	}{
		{
			name:  "plain track link",
			input: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT",
			kind:  "track",
			id:    "4cOdK2wGLETKBW3PvgPWqT",
		},
		{
			name:  "link with locale segment",
			input: "https://open.spotify.com/intl-ja/track/4cOdK2wGLETKBW3PvgPWqT",
			kind:  "track",
			id:    "4cOdK2wGLETKBW3PvgPWqT",
		},
		{
			name:  "link with query string",
			input: "https://open.spotify.com/album/2noRn2Aes5aoNVsU6iWThc?si=abc123",
			kind:  "album",
			id:    "2noRn2Aes5aoNVsU6iWThc",
		},
		{
			name:  "spotify uri",
			input: "spotify:track:4cOdK2wGLETKBW3PvgPWqT",
			kind:  "track",
			id:    "4cOdK2wGLETKBW3PvgPWqT",
		},
		{
			name:    "wrong host",
			input:   "https://example.com/track/4cOdK2wGLETKBW3PvgPWqT",
			wantErr: true,
		},
		{
			name:    "malformed id",
			input:   "https://open.spotify.com/track/short",
			wantErr: true,
		},
		{
			name:    "unsupported kind",
			input:   "https://open.spotify.com/artist/4cOdK2wGLETKBW3PvgPWqT",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			link, err := ParseLink(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				apiErr, ok := err.(*apperrors.APIError)
				require.True(t, ok)
				assert.Equal(t, apperrors.ErrValidation, apiErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, link.Kind)
			assert.Equal(t, tc.id, link.ID)
		})
	}
}

func TestResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oembed", r.URL.Path)
		require.Equal(t, "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT", r.URL.Query().Get("url"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title": "Never Gonna Give You Up", "provider_name": "Spotify"}`))
	}))
	defer server.Close()

	client := NewClient()
	client.SetBaseURL(server.URL)

	snapshot, err := client.Resolve(context.Background(), "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT?si=xyz")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", snapshot.Title)
	assert.Equal(t, "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT", snapshot.URL)
	assert.Equal(t, "4cOdK2wGLETKBW3PvgPWqT", snapshot.TrackID)
}

func TestResolveUnknownTrack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient()
	client.SetBaseURL(server.URL)

	_, err := client.Resolve(context.Background(), "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT")
	require.Error(t, err)
	apiErr, ok := err.(*apperrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, apiErr.Code)
}
