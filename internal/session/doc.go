// Package session assembles a configured recording into a navigable whole.
//
// Open scans every modality, fills coverage gaps, selects the reference
// segmentation and assembles the first segment. Navigate moves the position
// and, when a segment boundary is crossed, reassembles every stream before
// publishing the new set in one swap. Rebuild rescans the directories while
// keeping the position.
package session
