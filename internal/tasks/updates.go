package tasks

import (
	"fmt"

	"github.com/desertthunder/portable/internal/models"
)

// ProgressUpdate represents a progress event during a migration run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase       // Operation phase
	Pass    models.Pass // Pass the update belongs to, empty for run-level updates
	Step    int         // Current step number within phase
	Total   int         // Total steps in this phase
	Message string      // Human-readable message for display
	Data    any         // Optional phase-specific data (*models.RunItem, *models.Playlist, PassReport, *MigrationResult, PlaylistExportResult)
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	MigrateItem
	CreatePlaylist
	AddTracks
	SkipPass
	CompletePass
	CompleteRun
	ExportPlaylist
	CompleteExport
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case MigrateItem:
		return "migrate_item"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case SkipPass:
		return "skip_pass"
	case CompletePass:
		return "complete_pass"
	case CompleteRun:
		return "complete_run"
	case ExportPlaylist:
		return "export_playlist"
	case CompleteExport:
		return "complete_export"
	default:
		return ""
	}
}

func fetchingSourceUpdate(pass models.Pass, source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Pass:    pass,
		Message: fmt.Sprintf("Fetching %s from %s...", pass, source),
	}
}

func fetchedSourceUpdate(pass models.Pass, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Pass:    pass,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Found %d %s", total, pass),
	}
}

func itemUpdate(step, total int, item *models.RunItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MigrateItem,
		Pass:    item.Pass(),
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, item.Outcome(), item.Label()),
		Data:    item,
	}
}

func playlistUpdate(step, total int, pl *models.Playlist, created bool) ProgressUpdate {
	verb := "Using existing"
	if created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Pass:    models.PassPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s playlist: %s", step, total, verb, pl.Name),
		Data:    pl,
	}
}

func addTracksUpdate(step, total int, pl *models.Playlist, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Pass:    models.PassPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Added %d tracks to %s", step, total, added, pl.Name),
		Data:    pl,
	}
}

func skipPassUpdate(pass models.Pass, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipPass,
		Pass:    pass,
		Message: fmt.Sprintf("Skipping %s: %s", pass, reason),
	}
}

func completePassUpdate(report PassReport) ProgressUpdate {
	t := report.Tally
	return ProgressUpdate{
		Phase: CompletePass,
		Pass:  report.Pass,
		Step:  t.Total(),
		Total: t.Total(),
		Message: fmt.Sprintf("%s: %d written, %d existing, %d unresolved, %d failed, %d skipped",
			report.Pass, t.Written, t.Existing, t.Unresolved, t.Failed, t.Skipped),
		Data: report,
	}
}

func completeRunUpdate(result *MigrationResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CompleteRun,
		Step:    len(result.Passes),
		Total:   len(result.Passes),
		Message: fmt.Sprintf("Run %s %s", result.Run.ID(), result.Run.Status()),
		Data:    result,
	}
}

func exportCompletedUpdate(step, total int, res PlaylistExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Pass:    models.PassPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exported %s (%d tracks)", step, total, res.PlaylistName, res.Tracks),
		Data:    res,
	}
}

func exportFailedUpdate(step, total int, res PlaylistExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Pass:    models.PassPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Failed to export %s: %v", step, total, res.PlaylistName, res.Error),
		Data:    res,
	}
}

func completeExportUpdate(result *ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CompleteExport,
		Step:    result.SuccessfulExports + result.FailedExports,
		Total:   result.TotalPlaylists,
		Message: fmt.Sprintf("Exported %d of %d playlists to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory),
		Data:    result,
	}
}
