package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/locator"
	"github.com/mrlokans/shelfsync/internal/matching"
	"github.com/mrlokans/shelfsync/internal/remote"
)

const entityBookmark = "bookmark"

// PullBookmarks applies the server's bookmarks to every downloaded book.
// Server bookmarks already linked locally are left alone. Unlinked ones are
// linked to a matching pending local row, or inserted as new SYNCED rows.
// Linked SYNCED rows the server no longer has are removed.
func (e *Engine) PullBookmarks(ctx context.Context) PullResult {
	var result PullResult

	bookIDs, err := e.stores.Books.DownloadedBookIDs(ctx, e.serverID)
	if err != nil {
		result.Err = fmt.Errorf("list downloaded books: %w", err)
		e.report(result.Err, "bookmark_pull", nil)
		return result
	}
	if len(bookIDs) == 0 {
		return result
	}

	pendingDelete, err := e.pendingBookmarkDeletes(ctx)
	if err != nil {
		result.Err = err
		e.report(err, "bookmark_pull", nil)
		return result
	}

	for _, bookID := range bookIDs {
		if err := e.pullBookBookmarks(ctx, bookID, pendingDelete, &result); err != nil {
			e.report(err, "bookmark_pull", bookFields(bookID))
			result.fail(bookID)
		}
	}

	log.Printf("[SYNC] %s: pulled bookmarks for %d books, %d applied, %d removed, %d failed",
		e.serverID, len(bookIDs), result.Pulled, result.Deleted, len(result.FailedBookIDs))
	return result
}

// pendingBookmarkDeletes returns server ids of bookmarks deleted locally but
// not yet on the server, so a pull does not bring them back.
func (e *Engine) pendingBookmarkDeletes(ctx context.Context) (map[string]bool, error) {
	deleted, err := e.stores.Bookmarks.ListDeletedBookmarks(ctx, e.serverID, nil)
	if err != nil {
		return nil, fmt.Errorf("list deleted bookmarks: %w", err)
	}
	ids := make(map[string]bool, len(deleted))
	for i := range deleted {
		if deleted[i].IsLinked() {
			ids[*deleted[i].ServerBookmarkID] = true
		}
	}
	return ids, nil
}

func (e *Engine) pullBookBookmarks(ctx context.Context, bookID string, pendingDelete map[string]bool, result *PullResult) error {
	server, err := e.remote.Bookmarks(ctx, bookID)
	if err != nil {
		return err
	}
	locals, err := e.stores.Bookmarks.ListBookmarks(ctx, e.serverID, bookID)
	if err != nil {
		return fmt.Errorf("list bookmarks for %s: %w", bookID, err)
	}

	linked := make(map[string]bool, len(locals))
	var unlinked []entities.Bookmark
	for _, b := range locals {
		if b.IsLinked() {
			linked[*b.ServerBookmarkID] = true
		} else {
			unlinked = append(unlinked, b)
		}
	}

	var firstErr error
	seen := make(map[string]bool, len(server))
	for _, sb := range server {
		seen[sb.ID] = true
		if linked[sb.ID] || pendingDelete[sb.ID] {
			continue
		}

		if i := matching.FindBookmark(unlinked, sb.Href, sb.Locations); i >= 0 {
			local := unlinked[i]
			if err := e.stores.Bookmarks.LinkBookmark(ctx, local.ID, sb.ID); err != nil {
				firstErr = keepFirst(firstErr, fmt.Errorf("link bookmark %s: %w", local.ID, err))
				continue
			}
			unlinked = append(unlinked[:i], unlinked[i+1:]...)
			result.Pulled++
			continue
		}

		if err := e.insertServerBookmark(ctx, bookID, sb); err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		result.Pulled++
	}

	var gone []string
	for _, b := range locals {
		if b.IsLinked() && b.SyncStatus == entities.SyncStatusSynced && !seen[*b.ServerBookmarkID] {
			gone = append(gone, b.ID)
		}
	}
	if len(gone) > 0 {
		if err := e.stores.Bookmarks.DeleteBookmarks(ctx, gone); err != nil {
			return keepFirst(firstErr, fmt.Errorf("remove bookmarks for %s: %w", bookID, err))
		}
		result.Deleted += len(gone)
	}
	return firstErr
}

func (e *Engine) insertServerBookmark(ctx context.Context, bookID string, sb remote.Bookmark) error {
	locations, err := locator.MarshalLocations(sb.Locations)
	if err != nil {
		return fmt.Errorf("encode bookmark %s: %w", sb.ID, err)
	}
	serverID := sb.ID
	row := &entities.Bookmark{
		BookID:           bookID,
		ServerID:         e.serverID,
		ServerBookmarkID: &serverID,
		Href:             sb.Href,
		Locations:        locations,
		PreviewContent:   sb.PreviewContent,
		SyncStatus:       entities.SyncStatusSynced,
	}
	if err := e.stores.Bookmarks.InsertBookmark(ctx, row); err != nil {
		return fmt.Errorf("insert bookmark %s: %w", sb.ID, err)
	}
	return nil
}

// PushBookmarks creates pending bookmarks on the server and deletes the ones
// removed locally, skipping the books in ignoreBookIDs. Bookmarks cannot be
// edited, so a pending row that is already linked is only marked SYNCED.
func (e *Engine) PushBookmarks(ctx context.Context, ignoreBookIDs []string) PushResult {
	var result PushResult

	claimed, err := e.stores.Bookmarks.ClaimBookmarks(ctx, e.serverID, ignoreBookIDs, e.staleBefore())
	if err != nil {
		result.Err = fmt.Errorf("claim bookmarks: %w", err)
		e.report(result.Err, "bookmark_push", nil)
		return result
	}

	Each(ctx, e.queue, claimed, func(ctx context.Context, b entities.Bookmark) {
		ok := e.pushBookmark(ctx, b)
		e.locked(func() {
			if ok {
				result.Synced++
			} else {
				result.Failed++
			}
		})
	})

	deleted, err := e.stores.Bookmarks.ListDeletedBookmarks(ctx, e.serverID, ignoreBookIDs)
	if err != nil {
		e.report(fmt.Errorf("list deleted bookmarks: %w", err), "bookmark_delete", nil)
		if result.Err == nil {
			result.Err = err
		}
		return result
	}

	Each(ctx, e.queue, deleted, func(ctx context.Context, b entities.Bookmark) {
		ok := e.deleteBookmark(ctx, b)
		e.locked(func() {
			if ok {
				result.Deleted++
			} else {
				result.Failed++
			}
		})
	})

	if len(claimed)+len(deleted) > 0 {
		log.Printf("[SYNC] %s: pushed bookmarks, %d synced, %d deleted, %d failed",
			e.serverID, result.Synced, result.Deleted, result.Failed)
	}
	return result
}

func (e *Engine) pushBookmark(ctx context.Context, b entities.Bookmark) bool {
	fields := recordFields(entityBookmark, b.ID, b.BookID)

	if b.IsLinked() {
		if err := e.stores.Bookmarks.SetBookmarkStatus(ctx, b.ID, entities.SyncStatusSynced); err != nil {
			e.report(fmt.Errorf("settle bookmark %s: %w", b.ID, err), "bookmark_push", fields)
			return false
		}
		return true
	}

	serverID, err := e.createBookmark(ctx, b)
	if err == nil {
		err = e.stores.Bookmarks.LinkBookmark(ctx, b.ID, serverID)
	}
	if err != nil {
		e.report(err, "bookmark_push", fields)
		if err := e.stores.Bookmarks.SetBookmarkStatus(ctx, b.ID, entities.SyncStatusError); err != nil {
			e.report(fmt.Errorf("settle bookmark %s: %w", b.ID, err), "bookmark_push", fields)
		}
		return false
	}
	return true
}

func (e *Engine) createBookmark(ctx context.Context, b entities.Bookmark) (string, error) {
	input := remote.CreateBookmarkInput{
		MediaID:        b.BookID,
		Href:           b.Href,
		PreviewContent: b.PreviewContent,
	}
	if b.Locations != "" {
		parsed := locator.ParseLocations(b.Locations)
		locs, ok := parsed.Get()
		if !ok {
			return "", fmt.Errorf("bookmark %s has unreadable locations: %w", b.ID, parsed.Err())
		}
		input.Locations = &locs
	}
	return e.remote.CreateBookmark(ctx, input)
}

// deleteBookmark removes a soft-deleted bookmark from the server, then from
// the local store. Rows the server never saw are removed locally only.
func (e *Engine) deleteBookmark(ctx context.Context, b entities.Bookmark) bool {
	fields := recordFields(entityBookmark, b.ID, b.BookID)

	if b.IsLinked() {
		if err := e.remote.DeleteBookmark(ctx, *b.ServerBookmarkID); err != nil {
			e.report(err, "bookmark_delete", fields)
			return false
		}
	}
	if err := e.stores.Bookmarks.DeleteBookmarks(ctx, []string{b.ID}); err != nil {
		e.report(fmt.Errorf("remove bookmark %s: %w", b.ID, err), "bookmark_delete", fields)
		return false
	}
	return true
}

func keepFirst(first, next error) error {
	if first != nil {
		return first
	}
	return next
}
