package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/locator"
	"github.com/mrlokans/shelfsync/internal/remote"
)

func seedBookmark(t *testing.T, store *memStore, b entities.Bookmark) string {
	t.Helper()
	require.NoError(t, store.InsertBookmark(context.Background(), &b))
	return b.ID
}

func locationsAt(progression float64) *locator.Locations {
	return &locator.Locations{Progression: ptr(progression)}
}

func rawLocations(t *testing.T, progression float64) string {
	t.Helper()
	raw, err := locator.MarshalLocations(locationsAt(progression))
	require.NoError(t, err)
	return raw
}

// assertSingleLink fails when a server bookmark id is held by more than one local row.
func assertSingleLink(t *testing.T, rows []entities.Bookmark) {
	t.Helper()
	seen := map[string]string{}
	for _, b := range rows {
		if !b.IsLinked() {
			continue
		}
		key := b.ServerID + "/" + *b.ServerBookmarkID
		if other, dup := seen[key]; dup {
			t.Fatalf("server bookmark %s linked to both %s and %s", key, other, b.ID)
		}
		seen[key] = b.ID
	}
}

func TestPullBookmarks_InsertsServerBookmarks(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{
		{ID: "srv-1", Href: "/ch1.xhtml", Locations: locationsAt(0.1), PreviewContent: ptr("Call me")},
	}

	result := newTestEngine("s1", rem, store, nil).PullBookmarks(context.Background())
	assert.Equal(t, 1, result.Pulled)

	rows := store.allBookmarks()
	require.Len(t, rows, 1)
	assert.Equal(t, "srv-1", *rows[0].ServerBookmarkID)
	assert.Equal(t, entities.SyncStatusSynced, rows[0].SyncStatus)
	assert.Equal(t, "Call me", *rows[0].PreviewContent)

	locs, ok := locator.ParseLocations(rows[0].Locations).Get()
	require.True(t, ok)
	assert.Equal(t, 0.1, *locs.Progression)
}

func TestPullBookmarks_LinksMatchingLocalRow(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	localID := seedBookmark(t, store, entities.Bookmark{
		BookID: "b1", ServerID: "s1", Href: "/ch1.xhtml",
		Locations: rawLocations(t, 0.5), PreviewContent: ptr("local preview"),
	})

	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{
		{ID: "srv-1", Href: "/ch1.xhtml", Locations: locationsAt(0.5), PreviewContent: ptr("server preview")},
	}

	result := newTestEngine("s1", rem, store, nil).PullBookmarks(context.Background())
	assert.Equal(t, 1, result.Pulled)

	rows := store.allBookmarks()
	require.Len(t, rows, 1)
	assert.Equal(t, localID, rows[0].ID)
	assert.Equal(t, "srv-1", *rows[0].ServerBookmarkID)
	assert.Equal(t, entities.SyncStatusSynced, rows[0].SyncStatus)
	assert.Equal(t, "local preview", *rows[0].PreviewContent)
}

func TestPullBookmarks_SingleLinkWithDuplicateCandidates(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	first := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", Locations: rawLocations(t, 0.2)})
	second := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", Locations: rawLocations(t, 0.2)})

	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{{ID: "srv-1", Href: "/a", Locations: locationsAt(0.2)}}

	newTestEngine("s1", rem, store, nil).PullBookmarks(context.Background())

	rows := store.allBookmarks()
	assertSingleLink(t, rows)
	for _, b := range rows {
		switch b.ID {
		case first:
			assert.True(t, b.IsLinked())
		case second:
			assert.False(t, b.IsLinked())
			assert.Equal(t, entities.SyncStatusUnsynced, b.SyncStatus)
		}
	}
}

func TestPullBookmarks_TwoServerRowsMatchTwoLocals(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", Locations: rawLocations(t, 0.2)})
	seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", Locations: rawLocations(t, 0.2)})

	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{
		{ID: "srv-1", Href: "/a", Locations: locationsAt(0.2)},
		{ID: "srv-2", Href: "/a", Locations: locationsAt(0.2)},
	}

	result := newTestEngine("s1", rem, store, nil).PullBookmarks(context.Background())
	assert.Empty(t, result.FailedBookIDs)

	rows := store.allBookmarks()
	require.Len(t, rows, 2)
	assertSingleLink(t, rows)
	for _, b := range rows {
		assert.True(t, b.IsLinked())
	}
}

func TestPullBookmarks_Idempotent(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{{ID: "srv-1", Href: "/a"}, {ID: "srv-2", Href: "/b"}}
	engine := newTestEngine("s1", rem, store, nil)

	engine.PullBookmarks(context.Background())
	second := engine.PullBookmarks(context.Background())
	assert.Zero(t, second.Pulled)
	assert.Len(t, store.allBookmarks(), 2)
}

func TestPullBookmarks_PurgesRemotelyDeleted(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	synced := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", ServerBookmarkID: ptr("gone"), SyncStatus: entities.SyncStatusSynced})
	pending := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b", ServerBookmarkID: ptr("also-gone"), SyncStatus: entities.SyncStatusUnsynced})
	unlinked := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/c"})

	rem := newFakeRemote()
	result := newTestEngine("s1", rem, store, nil).PullBookmarks(context.Background())
	assert.Equal(t, 1, result.Deleted)

	var ids []string
	for _, b := range store.allBookmarks() {
		ids = append(ids, b.ID)
	}
	assert.NotContains(t, ids, synced)
	assert.ElementsMatch(t, []string{pending, unlinked}, ids)
}

func TestPullBookmarks_DoesNotResurrectPendingDelete(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	id := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", ServerBookmarkID: ptr("srv-1"), SyncStatus: entities.SyncStatusSynced})
	store.softDeleteBookmark(id)

	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{{ID: "srv-1", Href: "/a"}}

	result := newTestEngine("s1", rem, store, nil).PullBookmarks(context.Background())
	assert.Empty(t, result.FailedBookIDs)
	assert.Zero(t, result.Pulled)
	assert.Len(t, store.allBookmarks(), 1)
}

func TestPullBookmarks_PartialIsolation(t *testing.T) {
	store := newMemStore()
	store.download("s1", "A", "B")
	rem := newFakeRemote()
	rem.bookmarksErr["A"] = remote.ErrRateLimited
	rem.bookmarks["B"] = []remote.Bookmark{{ID: "srv-b", Href: "/b"}}

	result := newTestEngine("s1", rem, store, &recordingReporter{}).PullBookmarks(context.Background())
	assert.Equal(t, []string{"A"}, result.FailedBookIDs)
	assert.Equal(t, 1, result.Pulled)
}

func TestPushBookmarks_RoundTrip(t *testing.T) {
	store := newMemStore()
	store.download("s1", "b1")
	id := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/ch3.xhtml", Locations: rawLocations(t, 0.75)})

	rem := newFakeRemote()
	engine := newTestEngine("s1", rem, store, nil)
	ctx := context.Background()

	push := engine.PushBookmarks(ctx, nil)
	assert.Equal(t, 1, push.Synced)

	rows := store.allBookmarks()
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	require.True(t, rows[0].IsLinked())
	assert.Equal(t, entities.SyncStatusSynced, rows[0].SyncStatus)

	require.Len(t, rem.bookmarks["b1"], 1)
	assert.Equal(t, 0.75, *rem.bookmarks["b1"][0].Locations.Progression)

	pull := engine.PullBookmarks(ctx)
	assert.Zero(t, pull.Pulled)
	assert.Len(t, store.allBookmarks(), 1)

	again := engine.PushBookmarks(ctx, nil)
	assert.Zero(t, again.Synced)
	assert.Equal(t, []string{"CreateBookmark"}, rem.mutations())
}

func TestPushBookmarks_LinkedRowIsNotRecreated(t *testing.T) {
	store := newMemStore()
	seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", ServerBookmarkID: ptr("srv-1"), SyncStatus: entities.SyncStatusError})

	rem := newFakeRemote()
	result := newTestEngine("s1", rem, store, nil).PushBookmarks(context.Background(), nil)
	assert.Equal(t, 1, result.Synced)
	assert.Empty(t, rem.mutations())
	assert.Equal(t, entities.SyncStatusSynced, store.allBookmarks()[0].SyncStatus)
}

func TestPushBookmarks_CreateFailureMarksError(t *testing.T) {
	store := newMemStore()
	seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a"})
	seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b", Locations: "{broken"})

	rem := newFakeRemote()
	rem.createErr = errBoom
	reporter := &recordingReporter{}
	engine := newTestEngine("s1", rem, store, reporter)

	result := engine.PushBookmarks(context.Background(), nil)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, reporter.count())
	for _, b := range store.allBookmarks() {
		assert.Equal(t, entities.SyncStatusError, b.SyncStatus)
		assert.False(t, b.IsLinked())
	}

	rem.createErr = nil
	retry := engine.PushBookmarks(context.Background(), nil)
	assert.Equal(t, 1, retry.Synced)
	assert.Equal(t, 1, retry.Failed)
}

func TestPushBookmarks_Deletes(t *testing.T) {
	store := newMemStore()
	linked := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", ServerBookmarkID: ptr("srv-1"), SyncStatus: entities.SyncStatusSynced})
	local := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b"})
	store.softDeleteBookmark(linked)
	store.softDeleteBookmark(local)

	rem := newFakeRemote()
	rem.bookmarks["b1"] = []remote.Bookmark{{ID: "srv-1", Href: "/a"}}

	result := newTestEngine("s1", rem, store, nil).PushBookmarks(context.Background(), nil)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, []string{"DeleteBookmark"}, rem.mutations())
	assert.Empty(t, store.allBookmarks())
	assert.Empty(t, rem.bookmarks["b1"])
}

func TestPushBookmarks_DeleteFailureKeepsRow(t *testing.T) {
	store := newMemStore()
	id := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", ServerBookmarkID: ptr("srv-1"), SyncStatus: entities.SyncStatusSynced})
	other := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b", ServerBookmarkID: ptr("srv-2"), SyncStatus: entities.SyncStatusSynced})
	store.softDeleteBookmark(id)
	store.softDeleteBookmark(other)

	rem := newFakeRemote()
	rem.deleteErr = errBoom
	reporter := &recordingReporter{}

	result := newTestEngine("s1", rem, store, reporter).PushBookmarks(context.Background(), nil)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, reporter.count())
	assert.Len(t, store.allBookmarks(), 2)
}

func TestPushBookmarks_SkipsIgnoredBooks(t *testing.T) {
	store := newMemStore()
	seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a"})
	deleted := seedBookmark(t, store, entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b", ServerBookmarkID: ptr("srv-1")})
	store.softDeleteBookmark(deleted)

	rem := newFakeRemote()
	result := newTestEngine("s1", rem, store, nil).PushBookmarks(context.Background(), []string{"b1"})
	assert.Zero(t, result.Synced)
	assert.Zero(t, result.Deleted)
	assert.Empty(t, rem.mutations())
}
