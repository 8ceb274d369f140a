package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"playlistwatch/internal/core"
)

// The directory methods expose the configuration tables as the read-only
// graph views the core resolves recipients through. Rows are owned by the
// operator; nothing here mutates them.

func (s *Store) Playlists(ctx context.Context) ([]core.Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, connection_id, spotify_playlist_id FROM playlists ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []core.Playlist
	for rows.Next() {
		var p core.Playlist
		if err := rows.Scan(&p.ID, &p.ConnectionID, &p.SpotifyID); err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		playlists = append(playlists, p)
	}

	return playlists, rows.Err()
}

func (s *Store) GroupsForPlaylist(ctx context.Context, playlistID int64) ([]core.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name FROM groups g
		 INNER JOIN playlist_groups pg ON pg.group_id = g.id
		 WHERE pg.playlist_id = ?
		 ORDER BY g.id`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for playlist %d: %w", playlistID, err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		var g core.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (s *Store) MembersForGroup(ctx context.Context, groupID int64) ([]core.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.name, COALESCE(m.spotify_user_id, ''), m.email FROM members m
		 INNER JOIN group_members gm ON gm.member_id = m.id
		 WHERE gm.group_id = ?
		 ORDER BY m.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for group %d: %w", groupID, err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.ExternalID, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (s *Store) CredentialsFor(ctx context.Context, connectionID int64) (*core.Credentials, error) {
	var creds core.Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, client_secret FROM connection_credentials WHERE id = ?`,
		connectionID,
	).Scan(&creds.ID, &creds.ClientID, &creds.ClientSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %d has no credentials", connectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials for connection %d: %w", connectionID, err)
	}

	return &creds, nil
}

// MailSettings returns the sender configuration from the global_config row,
// or nil when the row has not been populated yet.
func (s *Store) MailSettings(ctx context.Context) (*core.MailSettings, error) {
	var settings core.MailSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(email_sender, ''), COALESCE(email_host, ''),
		        COALESCE(email_port, 0), COALESCE(email_password, '')
		 FROM global_config WHERE id = 1`,
	).Scan(&settings.Sender, &settings.Host, &settings.Port, &settings.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mail settings: %w", err)
	}

	return &settings, nil
}
