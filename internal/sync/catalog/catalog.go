// Package catalog registers the configured record types. Import it for
// side effects:
//
//	import _ "github.com/FairportRobotics/scouting-sync/internal/sync/catalog"
package catalog

import "github.com/FairportRobotics/scouting-sync/internal/sync"

func init() {
	sync.Register(sync.TypeConfig{
		Key:          "match",
		SnapshotName: "match.csv",
		RawPrefix:    "raw/match",
		Collection:   "match",
	})
	sync.Register(sync.TypeConfig{
		Key:          "pit",
		SnapshotName: "pit.csv",
		RawPrefix:    "raw/pit",
		Collection:   "pit",
	})
	sync.Register(sync.TypeConfig{
		Key:          "team",
		SnapshotName: "team.csv",
		RawPrefix:    "raw/team",
		Collection:   "team",
	})
	sync.Register(sync.TypeConfig{
		Key:          "assignment",
		SnapshotName: "assignment.csv",
		RawPrefix:    "raw/assignment",
		Collection:   "assignment",
	})
}
