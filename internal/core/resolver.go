package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Resolver walks the playlist -> group -> member relations and produces the
// set of recipients for a playlist.
type Resolver struct {
	directory Directory
	logger    *zap.Logger
}

func NewResolver(directory Directory, logger *zap.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    logger,
	}
}

// Resolve returns the union of members over all groups linked to the
// playlist, deduplicated by member identity. A member reachable through
// several groups appears once, at its first traversal position. A playlist
// with no groups resolves to an empty set without error.
//
// Resolution is read-only and safe to call repeatedly within a cycle. A
// failing or empty group degrades to fewer recipients instead of failing
// the whole cycle.
func (r *Resolver) Resolve(ctx context.Context, playlist Playlist) ([]Member, error) {
	groups, err := r.directory.GroupsForPlaylist(ctx, playlist.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for playlist %d: %w", playlist.ID, err)
	}

	seen := make(map[int64]struct{})
	var recipients []Member

	for _, group := range groups {
		members, err := r.directory.MembersForGroup(ctx, group.ID)
		if err != nil {
			r.logger.Warn("Failed to list group members, skipping group",
				zap.Int64("playlistID", playlist.ID),
				zap.Int64("groupID", group.ID),
				zap.String("group", group.Name),
				zap.Error(err))
			continue
		}

		for _, member := range members {
			if _, dup := seen[member.ID]; dup {
				continue
			}
			if member.Email == "" {
				r.logger.Warn("Member has no email address, skipping",
					zap.Int64("memberID", member.ID),
					zap.String("member", member.Name))
				continue
			}
			seen[member.ID] = struct{}{}
			recipients = append(recipients, member)
		}
	}

	r.logger.Debug("Resolved playlist recipients",
		zap.Int64("playlistID", playlist.ID),
		zap.Int("groups", len(groups)),
		zap.Int("recipients", len(recipients)))

	return recipients, nil
}
