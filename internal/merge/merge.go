// Package merge implements the three-way text merge used by the
// three-way-merge conflict strategy: the base→remote diff is computed and
// replayed as a patch against the local text. Hunks that fail to apply
// are wrapped in conflict markers rather than failing the merge outright.
package merge

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const cleanupThreshold = 8

// ConflictMarkerBegin/Separator/End bracket an unresolved region in the
// merged output.
const (
	ConflictMarkerBegin     = "<<<<<<< LOCAL"
	ConflictMarkerSeparator = "======="
	ConflictMarkerEnd       = ">>>>>>> REMOTE"
)

// Result is the outcome of a three-way merge.
type Result struct {
	Merged string
	Clean  bool // false if any hunk failed to apply and was conflict-marked
}

// ThreeWay merges remote changes (relative to base) onto local. If base
// is empty, this degrades to a two-way merge per the spec's best-effort
// base-cache design note.
func ThreeWay(base, local, remote string) Result {
	if base == remote {
		return Result{Merged: local, Clean: true}
	}
	if base == local {
		return Result{Merged: remote, Clean: true}
	}

	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(base, remote, true)
	if len(diffs) > cleanupThreshold {
		diffs = dmp.DiffCleanupSemantic(diffs)
	}
	diffs = dmp.DiffCleanupEfficiency(diffs)

	patches := dmp.PatchMake(base, diffs)
	merged, applied := dmp.PatchApply(patches, local)

	clean := true
	for _, ok := range applied {
		if !ok {
			clean = false
			break
		}
	}

	if clean {
		return Result{Merged: merged, Clean: true}
	}

	return Result{Merged: conflictMarked(local, remote), Clean: false}
}

// conflictMarked produces the fallback conflict-marked document when the
// patch set could not be applied cleanly.
func conflictMarked(local, remote string) string {
	var b strings.Builder
	fmt.Fprintln(&b, ConflictMarkerBegin)
	b.WriteString(local)
	if !strings.HasSuffix(local, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintln(&b, ConflictMarkerSeparator)
	b.WriteString(remote)
	if !strings.HasSuffix(remote, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintln(&b, ConflictMarkerEnd)
	return b.String()
}
