package store

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

// seedFixture installs one connection, one playlist, two groups and three
// members, with one member reachable through both groups.
func seedFixture(t *testing.T, s *Store) {
	t.Helper()

	statements := []string{
		`INSERT INTO connection_credentials (id, client_id, client_secret) VALUES (1, 'cid', 'secret')`,
		`INSERT INTO playlists (id, connection_id, spotify_playlist_id) VALUES (1, 1, 'sp1')`,
		`INSERT INTO groups (id, name) VALUES (1, 'Family'), (2, 'Friends')`,
		`INSERT INTO members (id, name, spotify_user_id, email) VALUES
			(1, 'Alice', 'alice-spotify', 'alice@example.com'),
			(2, 'Bob', NULL, 'bob@example.com'),
			(3, 'Carol', 'carol-spotify', 'carol@example.com')`,
		`INSERT INTO group_members (group_id, member_id) VALUES (1, 1), (1, 2), (2, 1), (2, 3)`,
		`INSERT INTO playlist_groups (playlist_id, group_id) VALUES (1, 1), (1, 2)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			t.Fatalf("Failed to seed fixture: %v", err)
		}
	}
}

func TestSnapshot_AbsentIsNil(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)

	snapshot, err := s.Snapshot(context.Background(), 1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot != nil {
		t.Errorf("Expected nil snapshot before first commit, got %v", snapshot)
	}
}

func TestSnapshot_CommitAndReadBack(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)
	ctx := context.Background()

	if err := s.CommitSnapshot(ctx, 1, []string{"t1", "t2", "t3"}); err != nil {
		t.Fatalf("CommitSnapshot failed: %v", err)
	}

	snapshot, err := s.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot) != 3 || snapshot[0] != "t1" || snapshot[1] != "t2" || snapshot[2] != "t3" {
		t.Errorf("Expected [t1 t2 t3], got %v", snapshot)
	}

	// Overwrite keeps only the latest state.
	if err := s.CommitSnapshot(ctx, 1, []string{"t1"}); err != nil {
		t.Fatalf("CommitSnapshot failed: %v", err)
	}
	snapshot, err = s.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0] != "t1" {
		t.Errorf("Expected [t1], got %v", snapshot)
	}
}

func TestSnapshot_EmptyCommitIsNotAbsent(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)
	ctx := context.Background()

	if err := s.CommitSnapshot(ctx, 1, nil); err != nil {
		t.Fatalf("CommitSnapshot failed: %v", err)
	}

	snapshot, err := s.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot == nil {
		t.Fatal("Empty committed snapshot must read back non-nil")
	}
	if len(snapshot) != 0 {
		t.Errorf("Expected empty snapshot, got %v", snapshot)
	}
}

func TestSnapshot_UnknownPlaylistCommitFails(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)

	if err := s.CommitSnapshot(context.Background(), 999, []string{"t1"}); err == nil {
		t.Error("Expected commit to an unknown playlist to fail")
	}
}

func TestDirectory_Playlists(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)

	playlists, err := s.Playlists(context.Background())
	if err != nil {
		t.Fatalf("Playlists failed: %v", err)
	}
	if len(playlists) != 1 {
		t.Fatalf("Expected 1 playlist, got %d", len(playlists))
	}
	p := playlists[0]
	if p.ID != 1 || p.ConnectionID != 1 || p.SpotifyID != "sp1" {
		t.Errorf("Unexpected playlist row: %+v", p)
	}
}

func TestDirectory_GraphTraversal(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)
	ctx := context.Background()

	groups, err := s.GroupsForPlaylist(ctx, 1)
	if err != nil {
		t.Fatalf("GroupsForPlaylist failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	family, err := s.MembersForGroup(ctx, 1)
	if err != nil {
		t.Fatalf("MembersForGroup failed: %v", err)
	}
	if len(family) != 2 {
		t.Fatalf("Expected 2 members in Family, got %d", len(family))
	}
	if family[0].Name != "Alice" || family[0].ExternalID != "alice-spotify" {
		t.Errorf("Unexpected first member: %+v", family[0])
	}
	// NULL spotify_user_id scans as empty string.
	if family[1].Name != "Bob" || family[1].ExternalID != "" {
		t.Errorf("Unexpected second member: %+v", family[1])
	}
}

func TestDirectory_CredentialsFor(t *testing.T) {
	s := openTestStore(t)
	seedFixture(t, s)
	ctx := context.Background()

	creds, err := s.CredentialsFor(ctx, 1)
	if err != nil {
		t.Fatalf("CredentialsFor failed: %v", err)
	}
	if creds.ClientID != "cid" || creds.ClientSecret != "secret" {
		t.Errorf("Unexpected credentials: %+v", creds)
	}

	if _, err := s.CredentialsFor(ctx, 42); err == nil {
		t.Error("Expected error for a dangling connection reference")
	}
}

func TestMailSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	settings, err := s.MailSettings(ctx)
	if err != nil {
		t.Fatalf("MailSettings failed: %v", err)
	}
	if settings != nil {
		t.Errorf("Expected nil settings before the row exists, got %+v", settings)
	}

	_, err = s.db.Exec(`INSERT INTO global_config (id, email_sender, email_host, email_port, email_password)
		VALUES (1, 'bot@example.com', 'smtp.example.com', 465, 'hunter2')`)
	if err != nil {
		t.Fatalf("Failed to insert global_config: %v", err)
	}

	settings, err = s.MailSettings(ctx)
	if err != nil {
		t.Fatalf("MailSettings failed: %v", err)
	}
	if settings == nil {
		t.Fatal("Expected settings after inserting the row")
	}
	if settings.Sender != "bot@example.com" || settings.Host != "smtp.example.com" ||
		settings.Port != 465 || settings.Password != "hunter2" {
		t.Errorf("Unexpected settings: %+v", settings)
	}
}
