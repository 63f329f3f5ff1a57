// Package matching pairs server records with local records that have not yet
// been linked to a server id, so a push that succeeded remotely but never
// stored its link (or an item created on another client) does not produce a
// duplicate on the next pull.
//
// Candidates are considered in slice order and the first match wins. When more
// than one unlinked local row could match, that choice is arbitrary.
package matching

import (
	"strings"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/locator"
)

// isCandidate reports whether a local row may be linked by matching.
func isCandidate(linked bool, status entities.SyncStatus) bool {
	return !linked && status.IsPushCandidate()
}

// BookmarkMatches reports whether a local bookmark describes the same position
// as a server bookmark: same href and same progression. Blank local locations
// carry no progression; locations that fail to parse never match.
func BookmarkMatches(local *entities.Bookmark, href string, locations *locator.Locations) bool {
	if local.Href != href {
		return false
	}
	var localProgression *float64
	if strings.TrimSpace(local.Locations) != "" {
		localLocs, ok := locator.ParseLocations(local.Locations).Get()
		if !ok {
			return false
		}
		localProgression = localLocs.Progression
	}
	return progressionEqual(localProgression, progressionOf(locations))
}

// FindBookmark returns the index of the first unlinked pending local bookmark
// matching the server position, or -1.
func FindBookmark(locals []entities.Bookmark, href string, locations *locator.Locations) int {
	for i := range locals {
		b := &locals[i]
		if !isCandidate(b.IsLinked(), b.SyncStatus) {
			continue
		}
		if BookmarkMatches(b, href, locations) {
			return i
		}
	}
	return -1
}

// AnnotationMatches reports whether a local annotation's stored locator is
// deep-equal to the server locator.
func AnnotationMatches(local *entities.Annotation, server locator.Locator) bool {
	localLoc, ok := locator.Parse(local.Locator).Get()
	if !ok {
		return false
	}
	return locator.Equal(localLoc, server)
}

// FindAnnotation returns the index of the first unlinked pending local
// annotation whose locator equals the server locator, or -1.
func FindAnnotation(locals []entities.Annotation, server locator.Locator) int {
	for i := range locals {
		a := &locals[i]
		if !isCandidate(a.IsLinked(), a.SyncStatus) {
			continue
		}
		if AnnotationMatches(a, server) {
			return i
		}
	}
	return -1
}

func progressionOf(l *locator.Locations) *float64 {
	if l == nil {
		return nil
	}
	return l.Progression
}

func progressionEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
