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

const entityAnnotation = "annotation"

// PullAnnotations applies the server's annotations to every downloaded book.
//
// A server annotation linked to a local row overwrites it only when the
// server copy is newer. An unlinked one with the same locator as a pending
// local row is merged into it, the newer text winning. Anything else is
// inserted. Linked SYNCED rows the server no longer has are removed.
func (e *Engine) PullAnnotations(ctx context.Context) PullResult {
	var result PullResult

	bookIDs, err := e.stores.Books.DownloadedBookIDs(ctx, e.serverID)
	if err != nil {
		result.Err = fmt.Errorf("list downloaded books: %w", err)
		e.report(result.Err, "annotation_pull", nil)
		return result
	}
	if len(bookIDs) == 0 {
		return result
	}

	pendingDelete, err := e.pendingAnnotationDeletes(ctx)
	if err != nil {
		result.Err = err
		e.report(err, "annotation_pull", nil)
		return result
	}

	for _, bookID := range bookIDs {
		if err := e.pullBookAnnotations(ctx, bookID, pendingDelete, &result); err != nil {
			e.report(err, "annotation_pull", bookFields(bookID))
			result.fail(bookID)
		}
	}

	log.Printf("[SYNC] %s: pulled annotations for %d books, %d applied, %d removed, %d failed",
		e.serverID, len(bookIDs), result.Pulled, result.Deleted, len(result.FailedBookIDs))
	return result
}

func (e *Engine) pendingAnnotationDeletes(ctx context.Context) (map[string]bool, error) {
	deleted, err := e.stores.Annotations.ListDeletedAnnotations(ctx, e.serverID, nil)
	if err != nil {
		return nil, fmt.Errorf("list deleted annotations: %w", err)
	}
	ids := make(map[string]bool, len(deleted))
	for i := range deleted {
		if deleted[i].IsLinked() {
			ids[*deleted[i].ServerAnnotationID] = true
		}
	}
	return ids, nil
}

func (e *Engine) pullBookAnnotations(ctx context.Context, bookID string, pendingDelete map[string]bool, result *PullResult) error {
	server, err := e.remote.Annotations(ctx, bookID)
	if err != nil {
		return err
	}
	locals, err := e.stores.Annotations.ListAnnotations(ctx, e.serverID, bookID)
	if err != nil {
		return fmt.Errorf("list annotations for %s: %w", bookID, err)
	}

	linked := make(map[string]entities.Annotation, len(locals))
	var unlinked []entities.Annotation
	for _, a := range locals {
		if a.IsLinked() {
			linked[*a.ServerAnnotationID] = a
		} else {
			unlinked = append(unlinked, a)
		}
	}

	var firstErr error
	seen := make(map[string]bool, len(server))
	for _, sa := range server {
		seen[sa.ID] = true
		if pendingDelete[sa.ID] {
			continue
		}

		if local, ok := linked[sa.ID]; ok {
			if !sa.UpdatedAt.After(local.UpdatedAt) {
				continue
			}
			local.AnnotationText = sa.AnnotationText
			local.UpdatedAt = sa.UpdatedAt
			local.SyncStatus = entities.SyncStatusSynced
			if err := e.stores.Annotations.SaveAnnotation(ctx, &local); err != nil {
				firstErr = keepFirst(firstErr, fmt.Errorf("update annotation %s: %w", local.ID, err))
				continue
			}
			result.Pulled++
			continue
		}

		if i := matching.FindAnnotation(unlinked, sa.Locator); i >= 0 {
			local := unlinked[i]
			mergeAnnotation(&local, sa)
			if err := e.stores.Annotations.SaveAnnotation(ctx, &local); err != nil {
				firstErr = keepFirst(firstErr, fmt.Errorf("link annotation %s: %w", local.ID, err))
				continue
			}
			unlinked = append(unlinked[:i], unlinked[i+1:]...)
			result.Pulled++
			continue
		}

		if err := e.insertServerAnnotation(ctx, bookID, sa); err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		result.Pulled++
	}

	var gone []string
	for _, a := range locals {
		if a.IsLinked() && a.SyncStatus == entities.SyncStatusSynced && !seen[*a.ServerAnnotationID] {
			gone = append(gone, a.ID)
		}
	}
	if len(gone) > 0 {
		if err := e.stores.Annotations.DeleteAnnotations(ctx, gone); err != nil {
			return keepFirst(firstErr, fmt.Errorf("remove annotations for %s: %w", bookID, err))
		}
		result.Deleted += len(gone)
	}
	return firstErr
}

// mergeAnnotation links local to the server copy. The newer side's text and
// timestamp win. When the local side wins with different text the row stays
// UNSYNCED so the next push sends it as an update.
func mergeAnnotation(local *entities.Annotation, server remote.Annotation) {
	serverID := server.ID
	local.ServerAnnotationID = &serverID

	if server.UpdatedAt.After(local.UpdatedAt) {
		local.AnnotationText = server.AnnotationText
		local.UpdatedAt = server.UpdatedAt
		local.SyncStatus = entities.SyncStatusSynced
		return
	}

	if textEqual(local.AnnotationText, server.AnnotationText) {
		local.SyncStatus = entities.SyncStatusSynced
	} else {
		local.SyncStatus = entities.SyncStatusUnsynced
	}
}

func (e *Engine) insertServerAnnotation(ctx context.Context, bookID string, sa remote.Annotation) error {
	raw, err := locator.Marshal(&sa.Locator)
	if err != nil {
		return fmt.Errorf("encode annotation %s: %w", sa.ID, err)
	}
	serverID := sa.ID
	row := &entities.Annotation{
		BookID:             bookID,
		ServerID:           e.serverID,
		ServerAnnotationID: &serverID,
		Locator:            raw,
		AnnotationText:     sa.AnnotationText,
		SyncStatus:         entities.SyncStatusSynced,
		CreatedAt:          sa.CreatedAt,
		UpdatedAt:          sa.UpdatedAt,
	}
	if err := e.stores.Annotations.InsertAnnotation(ctx, row); err != nil {
		return fmt.Errorf("insert annotation %s: %w", sa.ID, err)
	}
	return nil
}

// PushAnnotations creates or updates pending annotations on the server and
// deletes the ones removed locally, skipping the books in ignoreBookIDs.
func (e *Engine) PushAnnotations(ctx context.Context, ignoreBookIDs []string) PushResult {
	var result PushResult

	claimed, err := e.stores.Annotations.ClaimAnnotations(ctx, e.serverID, ignoreBookIDs, e.staleBefore())
	if err != nil {
		result.Err = fmt.Errorf("claim annotations: %w", err)
		e.report(result.Err, "annotation_push", nil)
		return result
	}

	Each(ctx, e.queue, claimed, func(ctx context.Context, a entities.Annotation) {
		ok := e.pushAnnotation(ctx, a)
		e.locked(func() {
			if ok {
				result.Synced++
			} else {
				result.Failed++
			}
		})
	})

	deleted, err := e.stores.Annotations.ListDeletedAnnotations(ctx, e.serverID, ignoreBookIDs)
	if err != nil {
		e.report(fmt.Errorf("list deleted annotations: %w", err), "annotation_delete", nil)
		if result.Err == nil {
			result.Err = err
		}
		return result
	}

	Each(ctx, e.queue, deleted, func(ctx context.Context, a entities.Annotation) {
		ok := e.deleteAnnotation(ctx, a)
		e.locked(func() {
			if ok {
				result.Deleted++
			} else {
				result.Failed++
			}
		})
	})

	if len(claimed)+len(deleted) > 0 {
		log.Printf("[SYNC] %s: pushed annotations, %d synced, %d deleted, %d failed",
			e.serverID, result.Synced, result.Deleted, result.Failed)
	}
	return result
}

func (e *Engine) pushAnnotation(ctx context.Context, a entities.Annotation) bool {
	fields := recordFields(entityAnnotation, a.ID, a.BookID)

	stored, err := e.sendAnnotation(ctx, a)
	if err == nil {
		a.ServerAnnotationID = &stored.ID
		if !stored.UpdatedAt.IsZero() {
			a.UpdatedAt = stored.UpdatedAt
		}
		a.SyncStatus = entities.SyncStatusSynced
		err = e.stores.Annotations.SaveAnnotation(ctx, &a)
	}
	if err != nil {
		e.report(err, "annotation_push", fields)
		if err := e.stores.Annotations.SetAnnotationStatus(ctx, a.ID, entities.SyncStatusError); err != nil {
			e.report(fmt.Errorf("settle annotation %s: %w", a.ID, err), "annotation_push", fields)
		}
		return false
	}
	return true
}

// sendAnnotation updates a linked annotation's text, or creates an unlinked one.
func (e *Engine) sendAnnotation(ctx context.Context, a entities.Annotation) (*remote.Annotation, error) {
	if a.IsLinked() {
		stored, err := e.remote.UpdateAnnotation(ctx, *a.ServerAnnotationID, a.AnnotationText)
		if err != nil {
			return nil, err
		}
		if stored.ID == "" {
			stored.ID = *a.ServerAnnotationID
		}
		return stored, nil
	}

	parsed := locator.Parse(a.Locator)
	loc, ok := parsed.Get()
	if !ok {
		return nil, fmt.Errorf("annotation %s has an unreadable locator: %w", a.ID, parsed.Err())
	}
	return e.remote.CreateAnnotation(ctx, remote.CreateAnnotationInput{
		MediaID:        a.BookID,
		Locator:        loc,
		AnnotationText: a.AnnotationText,
	})
}

func (e *Engine) deleteAnnotation(ctx context.Context, a entities.Annotation) bool {
	fields := recordFields(entityAnnotation, a.ID, a.BookID)

	if a.IsLinked() {
		if err := e.remote.DeleteAnnotation(ctx, *a.ServerAnnotationID); err != nil {
			e.report(err, "annotation_delete", fields)
			return false
		}
	}
	if err := e.stores.Annotations.DeleteAnnotations(ctx, []string{a.ID}); err != nil {
		e.report(fmt.Errorf("remove annotation %s: %w", a.ID, err), "annotation_delete", fields)
		return false
	}
	return true
}

func textEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
