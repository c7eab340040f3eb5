package session

import (
	"longrec/internal/navigator"
	"longrec/internal/reference"
)

// View is one consistent picture of a session: the plan, the navigation
// position and the data of the current segment, all from the same rebuild.
// A published View is never mutated.
type View struct {
	Plan     *Plan
	State    navigator.State
	Snapshot *Snapshot
}

// Segment returns the reference segment under the navigation position.
func (v *View) Segment() reference.Segment {
	return v.Plan.Reference.Segments[v.State.Segment]
}

// Sources returns, per stream ID, the first file contributing to the current
// segment. Streams without data in the segment map to "".
func (v *View) Sources() map[string]string {
	out := make(map[string]string, len(v.Snapshot.Descriptors)+1)
	for id, desc := range v.Snapshot.Descriptors {
		if files := desc.Files(); len(files) > 0 {
			out[id] = files[0]
		} else {
			out[id] = ""
		}
	}
	out[v.Plan.Reference.ModalityID] = v.Snapshot.Segment.Path
	return out
}
