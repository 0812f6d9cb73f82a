// Package migrate implements the one-shot legacy-state migration harness
// (C8, SPEC_FULL.md §12). Grounded on Matbe34-aimharder-sync's
// loadSyncHistory/saveSyncHistory/isWorkoutSynced/recordSync JSON
// history file (map[workoutID][]SyncStatus), reshaped into the Catalog
// Store's fingerprint-keyed schema. The legacy file is read-only: this
// package never writes back to it, and the migration is marked complete
// in the catalog so it never reapplies.
package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Dunky-Z/FitSync/internal/catalog"
	"github.com/Dunky-Z/FitSync/internal/fingerprint"
	"github.com/Dunky-Z/FitSync/internal/sporttype"
)

// LegacyStatus mirrors Matbe34-aimharder-sync's models.SyncStatus JSON
// shape.
type LegacyStatus struct {
	WorkoutID    string    `json:"workout_id"`
	Platform     string    `json:"platform"`
	ExternalID   string    `json:"external_id"`
	SyncedAt     time.Time `json:"synced_at"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// LegacyActivity is the minimal activity metadata needed to compute a
// fingerprint for a legacy workout; it is not part of the legacy sync
// history file itself (that file only tracks status per-platform,
// keyed by an opaque workout id with no canonicalizable fields), so a
// caller wanting full fidelity must supply it from whatever catalog of
// legacy activities the deployment kept. A workout with no entry is not
// migrated (see Run).
type LegacyActivity struct {
	WorkoutID string
	SportType string
	StartTime time.Time
	Distance  float64
	Duration  int64
}

// LoadHistory reads a legacy sync-history JSON file. A missing file
// returns an empty, non-nil map, matching the teacher's
// loadSyncHistory (a first run has no history yet).
func LoadHistory(path string) (map[string][]LegacyStatus, error) {
	history := make(map[string][]LegacyStatus)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return history, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading legacy history: %w", err)
	}

	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decoding legacy history: %w", err)
	}
	return history, nil
}

// Result summarizes one migration run.
type Result struct {
	WorkoutsSeen    int
	MappingsWritten int
	StatusesWritten int
	SkippedNoActivity int
}

// Run migrates legacy history into the Catalog Store. activities
// supplies canonicalization data per workout id; a workout with no
// matching entry is counted in SkippedNoActivity and not migrated,
// since a fingerprint cannot be computed without it. Run is idempotent:
// if the catalog already recorded the migration as complete, it returns
// immediately with a zero Result.
func Run(store *catalog.Store, history map[string][]LegacyStatus, activities map[string]LegacyActivity) (Result, error) {
	done, err := store.MigrationCompleted()
	if err != nil {
		return Result{}, fmt.Errorf("checking migration state: %w", err)
	}
	if done {
		return Result{}, nil
	}

	var result Result
	for workoutID, statuses := range history {
		result.WorkoutsSeen++

		act, ok := activities[workoutID]
		if !ok {
			result.SkippedNoActivity++
			continue
		}

		fp := fingerprint.Compute(fingerprint.Source{
			SportType: sporttype.Normalize(act.SportType),
			StartTime: act.StartTime,
			Distance:  act.Distance,
			Duration:  act.Duration,
		})

		if err := store.UpsertActivity(&catalog.ActivityRecord{
			Fingerprint: fp,
			SportType:   act.SportType,
			StartTime:   act.StartTime,
			Distance:    act.Distance,
			Duration:    act.Duration,
		}); err != nil {
			return result, fmt.Errorf("upserting activity for workout %s: %w", workoutID, err)
		}

		for _, s := range statuses {
			if s.ExternalID != "" {
				if err := store.RecordMapping(fp, s.Platform, s.ExternalID); err != nil {
					return result, fmt.Errorf("recording mapping for workout %s/%s: %w", workoutID, s.Platform, err)
				}
				result.MappingsWritten++
			}

			status := catalog.StatusFailed
			reason := s.ErrorMessage
			if s.Success {
				status = catalog.StatusSynced
				reason = ""
			}
			// Legacy history has no source platform; the source is
			// implied to be whatever the original tool read workouts
			// from (aimharder), which has no adapter in this system.
			// Migrated rows use "legacy" as the source so they are
			// visible in --status without colliding with a live
			// direction.
			if err := store.SetStatus(fp, "legacy", s.Platform, status, reason); err != nil {
				return result, fmt.Errorf("setting status for workout %s/%s: %w", workoutID, s.Platform, err)
			}
			result.StatusesWritten++
		}
	}

	if err := store.MarkMigrationCompleted(); err != nil {
		return result, fmt.Errorf("marking migration complete: %w", err)
	}
	return result, nil
}
