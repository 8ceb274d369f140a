package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator drives the per-playlist polling cycle:
//
//	fetching -> diffing -> resolving -> dispatching -> committing -> done
//
// with failed reachable from fetching only. Playlists within a pass run
// concurrently; cycles for the same playlist never overlap.
type Coordinator struct {
	config     *Config
	directory  Directory
	snapshots  SnapshotStore
	fetcher    PlaylistFetcher
	resolver   *Resolver
	dispatcher *Dispatcher
	seen       SeenStore
	metrics    Metrics
	logger     *zap.Logger

	inFlight map[int64]struct{}
	mu       sync.Mutex
}

func NewCoordinator(
	config *Config,
	directory Directory,
	snapshots SnapshotStore,
	fetcher PlaylistFetcher,
	resolver *Resolver,
	dispatcher *Dispatcher,
	seen SeenStore,
	metrics Metrics,
	logger *zap.Logger,
) *Coordinator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Coordinator{
		config:     config,
		directory:  directory,
		snapshots:  snapshots,
		fetcher:    fetcher,
		resolver:   resolver,
		dispatcher: dispatcher,
		seen:       seen,
		metrics:    metrics,
		logger:     logger,
		inFlight:   make(map[int64]struct{}),
	}
}

// RunPass runs one polling pass over all configured playlists. Playlists are
// processed concurrently and independently: a failing cycle is logged and
// counted, never propagated, so one misbehaving playlist cannot halt the
// others. Playlists whose previous cycle is still in flight are skipped.
func (c *Coordinator) RunPass(ctx context.Context) error {
	c.metrics.RecordPass()

	playlists, err := c.directory.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list configured playlists: %w", err)
	}

	c.metrics.SetMonitoredPlaylists(len(playlists))
	c.logger.Info("Starting polling pass", zap.Int("playlists", len(playlists)))

	g := &errgroup.Group{}
	for _, playlist := range playlists {
		g.Go(func() error {
			if err := c.RunCycle(ctx, playlist); err != nil {
				c.logger.Warn("Playlist cycle did not complete",
					zap.Int64("playlistID", playlist.ID),
					zap.String("spotifyID", playlist.SpotifyID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("Polling pass finished")
	return nil
}

// RunCycle runs a single playlist's cycle. It returns ErrCycleInFlight when
// a previous cycle for the same playlist has not reached done or failed,
// and the fetch error when the cycle fails during fetching. In both cases
// the snapshot is untouched, so the same additions are recomputed and
// safely re-notified on the next pass.
func (c *Coordinator) RunCycle(ctx context.Context, playlist Playlist) error {
	if !c.begin(playlist.ID) {
		c.metrics.RecordCycle("skipped")
		return fmt.Errorf("playlist %d: %w", playlist.ID, ErrCycleInFlight)
	}
	defer c.end(playlist.ID)

	start := time.Now()
	defer func() {
		c.metrics.ObserveCycleDuration(time.Since(start))
	}()

	// The snapshot read through the snapshot write below forms the
	// per-playlist critical section; begin/end guarantees cycles for the
	// same playlist never interleave it.
	previous, err := c.snapshots.Snapshot(ctx, playlist.ID)
	if err != nil {
		c.metrics.RecordCycle("failed")
		return fmt.Errorf("failed to read snapshot for playlist %d: %w", playlist.ID, err)
	}

	details, err := c.fetch(ctx, playlist)
	if err != nil {
		c.metrics.RecordCycle("failed")
		return err
	}

	c.transition(playlist, CycleDiffing)
	events := c.diff(playlist, previous, details)
	c.metrics.RecordTracksDetected(len(events))

	c.transition(playlist, CycleResolving)
	recipients, err := c.resolver.Resolve(ctx, playlist)
	if err != nil {
		// Degrade to zero recipients: the snapshot still advances so a
		// directory hiccup costs notifications, not a re-flood later.
		c.logger.Warn("Recipient resolution failed, proceeding without recipients",
			zap.Int64("playlistID", playlist.ID),
			zap.Error(err))
		recipients = nil
	}

	c.transition(playlist, CycleDispatching)
	results := c.dispatcher.DispatchAll(ctx, recipients, details, events)
	for _, result := range results {
		c.metrics.RecordEmail(result.Delivered())
	}

	// Commit after dispatch has been attempted for every recipient,
	// regardless of individual outcomes: a failed delivery may silently
	// miss one recipient, but a rollback would re-flood all of them.
	c.transition(playlist, CycleCommitting)
	if err := c.snapshots.CommitSnapshot(ctx, playlist.ID, details.TrackIDs()); err != nil {
		c.metrics.RecordCycle("failed")
		return fmt.Errorf("failed to commit snapshot for playlist %d: %w", playlist.ID, err)
	}

	for _, event := range events {
		c.seen.AddTrack(playlist.ID, event.Track.ID)
	}

	c.transition(playlist, CycleDone)
	c.metrics.RecordCycle("done")

	c.logger.Info("Playlist cycle completed",
		zap.Int64("playlistID", playlist.ID),
		zap.String("spotifyID", playlist.SpotifyID),
		zap.Int("tracks", len(details.Tracks)),
		zap.Int("added", len(events)),
		zap.Int("recipients", len(recipients)),
		zap.Int("failedDeliveries", countFailed(results)))

	return nil
}

func (c *Coordinator) fetch(ctx context.Context, playlist Playlist) (*PlaylistDetails, error) {
	c.transition(playlist, CycleFetching)

	creds, err := c.directory.CredentialsFor(ctx, playlist.ConnectionID)
	if err != nil {
		c.transition(playlist, CycleFailed)
		return nil, fmt.Errorf("failed to load credentials for connection %d: %w", playlist.ConnectionID, err)
	}

	fetchCtx := ctx
	if c.config.Spotify.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.config.Spotify.FetchTimeout)
		defer cancel()
	}

	details, err := c.fetcher.FetchPlaylist(fetchCtx, creds, playlist.SpotifyID)
	if err != nil {
		c.transition(playlist, CycleFailed)
		return nil, fmt.Errorf("playlist %d: %w", playlist.ID, err)
	}

	return details, nil
}

// diff computes the added-track events for this cycle, filtering out tracks
// that were already announced in an earlier cycle. That makes a track that
// is removed and re-added between polls a non-event while it remains in the
// seen window.
func (c *Coordinator) diff(playlist Playlist, previous []string, details *PlaylistDetails) []AddedTrackEvent {
	added := NewTracks(previous, details.Tracks)
	if len(added) == 0 {
		return nil
	}

	now := time.Now()
	events := make([]AddedTrackEvent, 0, len(added))
	for _, track := range added {
		if c.seen.HasTrack(playlist.ID, track.ID) {
			c.logger.Debug("Suppressing re-added track",
				zap.Int64("playlistID", playlist.ID),
				zap.String("trackID", track.ID))
			continue
		}
		events = append(events, AddedTrackEvent{
			PlaylistID: playlist.ID,
			Track:      track,
			ObservedAt: now,
		})
	}

	return events
}

func (c *Coordinator) begin(playlistID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.inFlight[playlistID]; running {
		return false
	}
	c.inFlight[playlistID] = struct{}{}
	return true
}

func (c *Coordinator) end(playlistID int64) {
	c.mu.Lock()
	delete(c.inFlight, playlistID)
	c.mu.Unlock()
}

func (c *Coordinator) transition(playlist Playlist, state CycleState) {
	c.logger.Debug("Cycle state",
		zap.Int64("playlistID", playlist.ID),
		zap.String("state", state.String()))
}

func countFailed(results []DeliveryResult) int {
	failed := 0
	for _, result := range results {
		if !result.Delivered() {
			failed++
		}
	}
	return failed
}
