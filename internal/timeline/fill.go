package timeline

import "time"

// AlignmentRow is one position of the merged timelines: the begin time shared
// by the row and, per timeline ID, the index of its real entry in the filled
// timeline (-1 when the row is a hole for that timeline).
type AlignmentRow struct {
	Begin time.Time
	Slots map[string]int
}

// Alignment is the positional correspondence produced by Fill.
type Alignment []AlignmentRow

// Fill merges the timelines so that entry i of every output timeline refers to
// the same period. At each step the earliest current begin time is taken;
// timelines whose current file starts more than tolerance later, or that are
// exhausted, receive a hole at that time without consuming their file. Inputs
// are left untouched.
func Fill(timelines []Timeline, tolerance time.Duration) ([]Timeline, Alignment) {
	out := make([]Timeline, len(timelines))
	for i, tl := range timelines {
		out[i] = Timeline{ID: tl.ID, Kind: tl.Kind}
	}
	cursors := make([]int, len(timelines))
	var alignment Alignment

	for {
		var minBegin time.Time
		found := false
		for i, tl := range timelines {
			if cursors[i] >= len(tl.Files) {
				continue
			}
			begin := tl.Files[cursors[i]].Begin
			if !found || begin.Before(minBegin) {
				minBegin = begin
				found = true
			}
		}
		if !found {
			return out, alignment
		}

		row := AlignmentRow{Begin: minBegin, Slots: make(map[string]int, len(timelines))}
		for i, tl := range timelines {
			pos := len(out[i].Files)
			if cursors[i] >= len(tl.Files) || tl.Files[cursors[i]].Begin.Sub(minBegin) > tolerance {
				out[i].Files = append(out[i].Files, SourceFile{Begin: minBegin})
				row.Slots[tl.ID] = -1
				continue
			}
			out[i].Files = append(out[i].Files, tl.Files[cursors[i]])
			row.Slots[tl.ID] = pos
			cursors[i]++
		}
		alignment = append(alignment, row)
	}
}

// HoleCount returns the number of hole entries per timeline ID.
func (a Alignment) HoleCount() map[string]int {
	counts := make(map[string]int)
	for _, row := range a {
		for id, slot := range row.Slots {
			if slot < 0 {
				counts[id]++
			}
		}
	}
	return counts
}
