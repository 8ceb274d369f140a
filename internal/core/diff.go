// Package core implements the playlist diffing and notification fanout
// engine: snapshot comparison, recipient resolution, consolidated delivery
// and the per-playlist cycle state machine.
package core

// NewTracks compares the previously committed snapshot against the freshly
// fetched track list and returns every track whose identifier was not part
// of the snapshot, in the order it appears in current.
//
// A nil previous means the playlist has never been observed: the current
// contents become the baseline and nothing is reported, so configuring a
// large existing playlist does not flood recipients. An empty (non-nil)
// previous is a real snapshot of an empty playlist, so every current track
// counts as added.
//
// Tracks present in previous but missing from current (removals) and pure
// reorderings produce nothing. Identifier comparison is exact string
// equality.
func NewTracks(previous []string, current []Track) []Track {
	if previous == nil {
		return nil
	}

	known := make(map[string]struct{}, len(previous))
	for _, id := range previous {
		known[id] = struct{}{}
	}

	var added []Track
	for _, track := range current {
		if _, ok := known[track.ID]; !ok {
			added = append(added, track)
		}
	}

	return added
}
