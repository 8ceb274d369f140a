package core

import (
	"context"
	"time"
)

// Artist is a single credited artist on a track.
type Artist struct {
	Name string
	URL  string
}

type Track struct {
	ID          string
	Title       string
	Artists     []Artist
	Album       string
	AlbumURL    string
	AlbumArtURL string
	URL         string
}

// ArtistNames joins the credited artist names for log lines.
func (t Track) ArtistNames() string {
	names := ""
	for i, a := range t.Artists {
		if i > 0 {
			names += ", "
		}
		names += a.Name
	}
	return names
}

// Playlist is a configured playlist row: which Spotify playlist to watch and
// which connection credentials to fetch it with.
type Playlist struct {
	ID           int64
	ConnectionID int64
	SpotifyID    string
}

// PlaylistDetails is the freshly fetched state of a playlist: display
// metadata plus the full ordered track list.
type PlaylistDetails struct {
	SpotifyID   string
	Name        string
	Description string
	URL         string
	ImageURL    string
	Tracks      []Track
}

// TrackIDs returns the ordered track identifier list, the shape snapshots
// are stored in.
func (d *PlaylistDetails) TrackIDs() []string {
	ids := make([]string, 0, len(d.Tracks))
	for _, t := range d.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

type Group struct {
	ID   int64
	Name string
}

type Member struct {
	ID         int64
	Name       string
	ExternalID string
	Email      string
}

// Credentials is an opaque client id/secret pair used to authenticate
// playlist fetches. Rotated externally, never mutated here.
type Credentials struct {
	ID           int64
	ClientID     string
	ClientSecret string
}

// AddedTrackEvent records one track that appeared in a playlist since the
// last committed snapshot. Derived per cycle, never persisted.
type AddedTrackEvent struct {
	PlaylistID int64
	Track      Track
	ObservedAt time.Time
}

// DeliveryResult is the outcome of one recipient's delivery attempt.
// Err == nil means delivered.
type DeliveryResult struct {
	Member Member
	Err    error
}

func (r DeliveryResult) Delivered() bool {
	return r.Err == nil
}

// MailSettings is the sender configuration, usually read from the
// global_config row with flag/env configuration as fallback.
type MailSettings struct {
	Sender   string
	Host     string
	Port     int
	Password string
}

type CycleState int

const (
	// CycleFetching indicates the playlist is being fetched from Spotify
	CycleFetching CycleState = iota
	// CycleDiffing indicates the fetched list is being compared to the snapshot
	CycleDiffing
	// CycleResolving indicates recipients are being resolved
	CycleResolving
	// CycleDispatching indicates notifications are being delivered
	CycleDispatching
	// CycleCommitting indicates the new snapshot is being persisted
	CycleCommitting
	// CycleDone indicates the cycle completed and the snapshot advanced
	CycleDone
	// CycleFailed indicates the fetch failed and the cycle was skipped
	CycleFailed
)

func (s CycleState) String() string {
	switch s {
	case CycleFetching:
		return "fetching"
	case CycleDiffing:
		return "diffing"
	case CycleResolving:
		return "resolving"
	case CycleDispatching:
		return "dispatching"
	case CycleCommitting:
		return "committing"
	case CycleDone:
		return "done"
	case CycleFailed:
		return "failed"
	}
	return "unknown"
}

// SnapshotStore persists the last observed track-id list per playlist.
// Snapshot returns nil (not an empty slice) when no snapshot has ever been
// committed for the playlist.
type SnapshotStore interface {
	Snapshot(ctx context.Context, playlistID int64) ([]string, error)
	CommitSnapshot(ctx context.Context, playlistID int64, trackIDs []string) error
}

// Directory exposes the read-only configuration graph: playlists, their
// groups, and group members.
type Directory interface {
	Playlists(ctx context.Context) ([]Playlist, error)
	GroupsForPlaylist(ctx context.Context, playlistID int64) ([]Group, error)
	MembersForGroup(ctx context.Context, groupID int64) ([]Member, error)
	CredentialsFor(ctx context.Context, connectionID int64) (*Credentials, error)
}

// PlaylistFetcher fetches the current contents of a Spotify playlist.
type PlaylistFetcher interface {
	FetchPlaylist(ctx context.Context, creds *Credentials, spotifyPlaylistID string) (*PlaylistDetails, error)
}

// EmailTransport delivers one rendered message to one recipient address.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// MessageRenderer turns a playlist cycle's added tracks into a subject and
// HTML body. The body is identical for every recipient of the cycle.
type MessageRenderer interface {
	Render(playlist *PlaylistDetails, events []AddedTrackEvent) (subject, htmlBody string, err error)
}

// SeenStore remembers (playlist, track) pairs that were already notified, so
// a track removed and re-added between polls is not announced twice.
type SeenStore interface {
	HasTrack(playlistID int64, trackID string) bool
	AddTrack(playlistID int64, trackID string)
}

// Metrics receives observations from the cycle coordinator. Implemented by
// the HTTP server's prometheus registry; NopMetrics is used in tests.
type Metrics interface {
	RecordPass()
	RecordCycle(status string)
	RecordTracksDetected(count int)
	RecordEmail(delivered bool)
	ObserveCycleDuration(d time.Duration)
	SetMonitoredPlaylists(count int)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordPass()                        {}
func (NopMetrics) RecordCycle(string)                 {}
func (NopMetrics) RecordTracksDetected(int)           {}
func (NopMetrics) RecordEmail(bool)                   {}
func (NopMetrics) ObserveCycleDuration(time.Duration) {}
func (NopMetrics) SetMonitoredPlaylists(int)          {}
