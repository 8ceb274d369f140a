// Package spotify implements the playlist fetcher against the Spotify Web
// API using the client-credentials flow, one authenticated client per
// configured connection.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"playlistwatch/internal/core"
)

const (
	// pageLimit is the Spotify API maximum page size for playlist items
	pageLimit = 100
)

// Client fetches playlists for the cycle coordinator. Clients are cached per
// connection credential; the oauth2 transport refreshes tokens transparently,
// so an expired token surfaces at most as a single failed cycle.
type Client struct {
	logger  *zap.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[int64]*spotify.Client
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		clients: make(map[int64]*spotify.Client),
	}
}

// FetchPlaylist returns the playlist's display metadata and full ordered
// track list. Failures are classified as auth, not-found or network, but all
// of them are transient to the caller: skip the cycle, retry next pass.
func (c *Client) FetchPlaylist(ctx context.Context, creds *core.Credentials, spotifyPlaylistID string) (*core.PlaylistDetails, error) {
	client := c.clientFor(creds)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &core.FetchError{Kind: core.FetchErrNetwork, Err: err}
	}

	playlist, err := client.GetPlaylist(ctx, spotify.ID(spotifyPlaylistID))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get playlist %s: %w", spotifyPlaylistID, err))
	}

	tracks, err := c.fetchAllTracks(ctx, client, spotify.ID(spotifyPlaylistID))
	if err != nil {
		return nil, classify(err)
	}

	details := &core.PlaylistDetails{
		SpotifyID:   spotifyPlaylistID,
		Name:        playlist.Name,
		Description: playlist.Description,
		URL:         playlist.ExternalURLs["spotify"],
		ImageURL:    coverImage(playlist.Images),
		Tracks:      tracks,
	}

	c.logger.Debug("Fetched playlist",
		zap.String("spotifyID", spotifyPlaylistID),
		zap.String("name", playlist.Name),
		zap.Int("tracks", len(tracks)))

	return details, nil
}

func (c *Client) fetchAllTracks(ctx context.Context, client *spotify.Client, playlistID spotify.ID) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		items, err := client.GetPlaylistItems(ctx, playlistID,
			spotify.Limit(pageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items at offset %d: %w", offset, err)
		}

		for i := range items.Items {
			// Episodes and withdrawn items come back without a track.
			if items.Items[i].Track.Track == nil {
				continue
			}
			tracks = append(tracks, convertTrack(items.Items[i].Track.Track))
		}

		if len(items.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return tracks, nil
}

// clientFor returns the cached authenticated client for the credential pair,
// creating it on first use. The client is built on context.Background so it
// outlives individual cycles.
func (c *Client) clientFor(creds *core.Credentials) *spotify.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[creds.ID]; ok {
		return client
	}

	config := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	client := spotify.New(config.Client(context.Background()))
	c.clients[creds.ID] = client

	c.logger.Info("Spotify client created", zap.Int64("connectionID", creds.ID))

	return client
}

func convertTrack(track *spotify.FullTrack) core.Track {
	artists := make([]core.Artist, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, core.Artist{
			Name: artist.Name,
			URL:  artist.ExternalURLs["spotify"],
		})
	}

	return core.Track{
		ID:          string(track.ID),
		Title:       track.Name,
		Artists:     artists,
		Album:       track.Album.Name,
		AlbumURL:    track.Album.ExternalURLs["spotify"],
		AlbumArtURL: coverImage(track.Album.Images),
		URL:         track.ExternalURLs["spotify"],
	}
}

// coverImage picks the smallest available image; Spotify orders images
// largest-first.
func coverImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[len(images)-1].URL
}

func classify(err error) *core.FetchError {
	var spotifyErr spotify.Error
	if errors.As(err, &spotifyErr) {
		switch spotifyErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &core.FetchError{Kind: core.FetchErrAuth, Err: err}
		case http.StatusNotFound:
			return &core.FetchError{Kind: core.FetchErrNotFound, Err: err}
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &core.FetchError{Kind: core.FetchErrAuth, Err: err}
	}

	return &core.FetchError{Kind: core.FetchErrNetwork, Err: err}
}
