package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/locator"
	"github.com/mrlokans/shelfsync/internal/remote"
)

// PullProgress applies server progress to every downloaded book of the
// server. For each book, in order:
//
//   - a completion newer than the local position removes the local row;
//     with no local row, server progress older than the completion is ignored
//   - no server progress leaves the local row alone
//   - a local row at least as new as the server's is kept
//   - otherwise the server's position replaces the local one, SYNCED
//
// A failed remote query fails every requested book. A failed local write
// fails only its book.
func (e *Engine) PullProgress(ctx context.Context) PullResult {
	var result PullResult

	bookIDs, err := e.stores.Books.DownloadedBookIDs(ctx, e.serverID)
	if err != nil {
		result.Err = fmt.Errorf("list downloaded books: %w", err)
		e.report(result.Err, "progress_pull", nil)
		return result
	}
	if len(bookIDs) == 0 {
		return result
	}

	media, err := e.remote.MediaProgress(ctx, bookIDs)
	if err != nil {
		e.report(err, "progress_pull", map[string]any{"book_ids": bookIDs})
		result.FailedBookIDs = append(result.FailedBookIDs, bookIDs...)
		return result
	}

	byID := make(map[string]remote.MediaProgress, len(media))
	for _, m := range media {
		byID[m.ID] = m
	}

	for _, bookID := range bookIDs {
		m, ok := byID[bookID]
		if !ok {
			continue
		}
		if err := e.applyProgress(ctx, bookID, m, &result); err != nil {
			e.report(err, "progress_pull", bookFields(bookID))
			result.fail(bookID)
		}
	}

	log.Printf("[SYNC] %s: pulled progress for %d books, %d updated, %d cleared, %d failed",
		e.serverID, len(bookIDs), result.Pulled, result.Deleted, len(result.FailedBookIDs))
	return result
}

func (e *Engine) applyProgress(ctx context.Context, bookID string, m remote.MediaProgress, result *PullResult) error {
	local, err := e.stores.Progress.GetProgress(ctx, e.serverID, bookID)
	if err != nil {
		return fmt.Errorf("load progress for %s: %w", bookID, err)
	}

	server := m.ReadProgress

	if completed := m.LatestCompletion(); completed != nil {
		if local != nil && completed.After(local.LastModified) {
			if err := e.stores.Progress.DeleteProgress(ctx, e.serverID, bookID); err != nil {
				return fmt.Errorf("clear progress for %s: %w", bookID, err)
			}
			result.Deleted++
			return nil
		}
		// Without a local row, only progress made after the completion
		// (a re-read) is worth restoring.
		if local == nil && (server == nil || !server.UpdatedAt.After(*completed)) {
			return nil
		}
	}

	if server == nil {
		return nil
	}
	if local != nil && !local.LastModified.Before(server.UpdatedAt) {
		return nil
	}

	rawLocator, err := locator.Marshal(server.Locator)
	if err != nil {
		return fmt.Errorf("encode locator for %s: %w", bookID, err)
	}

	row := &entities.ReadProgress{
		BookID:         bookID,
		ServerID:       e.serverID,
		Page:           server.Page,
		Percentage:     server.PercentageCompleted,
		EpubLocator:    rawLocator,
		ElapsedSeconds: server.ElapsedSeconds,
		LastModified:   server.UpdatedAt,
		SyncStatus:     entities.SyncStatusSynced,
	}
	if err := e.stores.Progress.UpsertProgress(ctx, row); err != nil {
		return fmt.Errorf("save progress for %s: %w", bookID, err)
	}
	result.Pulled++
	return nil
}

// PushProgress sends every pending progress row of the server, skipping the
// books in ignoreBookIDs. Rows with a valid locator are sent in the epub
// shape, all others in the paged shape.
func (e *Engine) PushProgress(ctx context.Context, ignoreBookIDs []string) PushResult {
	var result PushResult

	claimed, err := e.stores.Progress.ClaimProgress(ctx, e.serverID, ignoreBookIDs, e.staleBefore())
	if err != nil {
		result.Err = fmt.Errorf("claim progress: %w", err)
		e.report(result.Err, "progress_push", nil)
		return result
	}

	Each(ctx, e.queue, claimed, func(ctx context.Context, p entities.ReadProgress) {
		status := entities.SyncStatusSynced
		if err := e.remote.UpdateProgress(ctx, p.BookID, progressInput(p)); err != nil {
			e.report(err, "progress_push", bookFields(p.BookID))
			status = entities.SyncStatusError
		}

		if err := e.stores.Progress.SetProgressStatus(ctx, p.ID, status); err != nil {
			e.report(fmt.Errorf("settle progress for %s: %w", p.BookID, err), "progress_push", bookFields(p.BookID))
			status = entities.SyncStatusError
		}

		e.locked(func() {
			if status == entities.SyncStatusSynced {
				result.Synced++
			} else {
				result.Failed++
			}
		})
	})

	if len(claimed) > 0 {
		log.Printf("[SYNC] %s: pushed progress, %d synced, %d failed", e.serverID, result.Synced, result.Failed)
	}
	return result
}

func progressInput(p entities.ReadProgress) remote.MediaProgressInput {
	if loc, ok := locator.Parse(p.EpubLocator).Get(); ok {
		return remote.MediaProgressInput{Epub: &remote.EpubProgressInput{
			Locator:        loc,
			Percentage:     p.Percentage,
			ElapsedSeconds: p.ElapsedSeconds,
		}}
	}
	return remote.MediaProgressInput{Paged: &remote.PagedProgressInput{
		Page:           p.Page,
		ElapsedSeconds: p.ElapsedSeconds,
	}}
}
