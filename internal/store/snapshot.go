package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Snapshot returns the last committed track-id list for the playlist, or
// nil when no snapshot has ever been committed. The nil/empty distinction
// matters: nil means "no baseline yet", an empty list is a real snapshot of
// an empty playlist.
func (s *Store) Snapshot(ctx context.Context, playlistID int64) ([]string, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_state_json FROM playlists WHERE id = ?`, playlistID,
	).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for playlist %d: %w", playlistID, err)
	}

	if !raw.Valid {
		return nil, nil
	}

	var trackIDs []string
	if err := json.Unmarshal([]byte(raw.String), &trackIDs); err != nil {
		return nil, fmt.Errorf("corrupt snapshot for playlist %d: %w", playlistID, err)
	}
	if trackIDs == nil {
		trackIDs = []string{}
	}

	return trackIDs, nil
}

// CommitSnapshot atomically replaces the playlist's snapshot with the given
// ordered track-id list. An empty list is stored as a real (empty) snapshot,
// never as NULL.
func (s *Store) CommitSnapshot(ctx context.Context, playlistID int64, trackIDs []string) error {
	if trackIDs == nil {
		trackIDs = []string{}
	}

	data, err := json.Marshal(trackIDs)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for playlist %d: %w", playlistID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE playlists SET last_state_json = ? WHERE id = ?`, string(data), playlistID)
	if err != nil {
		return fmt.Errorf("failed to write snapshot for playlist %d: %w", playlistID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check snapshot write for playlist %d: %w", playlistID, err)
	}
	if affected != 1 {
		return fmt.Errorf("playlist %d not found, snapshot not committed", playlistID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot for playlist %d: %w", playlistID, err)
	}

	s.logger.Debug("Snapshot committed",
		zap.Int64("playlistID", playlistID),
		zap.Int("tracks", len(trackIDs)))

	return nil
}
