package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/remote"
)

var errBoom = errors.New("boom")

type progressKey struct{ serverID, bookID string }

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu  sync.Mutex
	seq int

	books       map[string][]string
	progress    map[progressKey]*entities.ReadProgress
	bookmarks   []*entities.Bookmark
	annotations []*entities.Annotation

	failDownloaded     map[string]bool
	failUpsertProgress map[string]bool
	failGetProgress    map[string]bool
	failListBookmarks  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		books:              map[string][]string{},
		progress:           map[progressKey]*entities.ReadProgress{},
		failDownloaded:     map[string]bool{},
		failUpsertProgress: map[string]bool{},
		failGetProgress:    map[string]bool{},
		failListBookmarks:  map[string]bool{},
	}
}

func (m *memStore) stores() Stores {
	return Stores{Books: m, Progress: m, Bookmarks: m, Annotations: m}
}

func (m *memStore) download(serverID string, bookIDs ...string) {
	m.books[serverID] = append(m.books[serverID], bookIDs...)
}

func (m *memStore) DownloadedBookIDs(_ context.Context, serverID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDownloaded[serverID] {
		return nil, errBoom
	}
	return slices.Clone(m.books[serverID]), nil
}

func claimable(status entities.SyncStatus, changed, staleBefore time.Time) bool {
	return status.IsPushCandidate() || (status == entities.SyncStatusSyncing && changed.Before(staleBefore))
}

// progress

func (m *memStore) GetProgress(_ context.Context, serverID, bookID string) (*entities.ReadProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetProgress[bookID] {
		return nil, errBoom
	}
	p, ok := m.progress[progressKey{serverID, bookID}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpsertProgress(_ context.Context, p *entities.ReadProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsertProgress[p.BookID] {
		return errBoom
	}
	key := progressKey{p.ServerID, p.BookID}
	cp := *p
	if existing, ok := m.progress[key]; ok {
		cp.ID = existing.ID
	} else {
		m.seq++
		cp.ID = uint(m.seq)
	}
	if cp.SyncStatus == "" {
		cp.SyncStatus = entities.SyncStatusUnsynced
	}
	if cp.StatusChangedAt.IsZero() {
		cp.StatusChangedAt = time.Now()
	}
	m.progress[key] = &cp
	p.ID = cp.ID
	return nil
}

func (m *memStore) DeleteProgress(_ context.Context, serverID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, progressKey{serverID, bookID})
	return nil
}

func (m *memStore) ClaimProgress(_ context.Context, serverID string, exclude []string, staleBefore time.Time) ([]entities.ReadProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.ReadProgress
	now := time.Now()
	for key, p := range m.progress {
		if key.serverID != serverID || slices.Contains(exclude, key.bookID) {
			continue
		}
		if !claimable(p.SyncStatus, p.StatusChangedAt, staleBefore) {
			continue
		}
		p.SyncStatus = entities.SyncStatusSyncing
		p.StatusChangedAt = now
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b entities.ReadProgress) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (m *memStore) SetProgressStatus(_ context.Context, id uint, status entities.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.progress {
		if p.ID == id {
			p.SyncStatus = status
			p.StatusChangedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("progress %d not found", id)
}

func (m *memStore) progressRow(serverID, bookID string) *entities.ReadProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[progressKey{serverID, bookID}]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// bookmarks

func (m *memStore) findBookmark(id string) *entities.Bookmark {
	for _, b := range m.bookmarks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (m *memStore) ListBookmarks(_ context.Context, serverID, bookID string) ([]entities.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListBookmarks[bookID] {
		return nil, errBoom
	}
	var out []entities.Bookmark
	for _, b := range m.bookmarks {
		if b.ServerID == serverID && b.BookID == bookID && b.DeletedAt == nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) InsertBookmark(_ context.Context, b *entities.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.IsLinked() {
		for _, other := range m.bookmarks {
			if other.ServerID == b.ServerID && other.IsLinked() && *other.ServerBookmarkID == *b.ServerBookmarkID {
				return fmt.Errorf("unique constraint: bookmark link %s", *b.ServerBookmarkID)
			}
		}
	}
	m.seq++
	if b.ID == "" {
		b.ID = fmt.Sprintf("bm-%d", m.seq)
	}
	if b.SyncStatus == "" {
		b.SyncStatus = entities.SyncStatusUnsynced
	}
	if b.StatusChangedAt.IsZero() {
		b.StatusChangedAt = time.Now()
	}
	cp := *b
	m.bookmarks = append(m.bookmarks, &cp)
	return nil
}

func (m *memStore) LinkBookmark(_ context.Context, id, serverBookmarkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.findBookmark(id)
	if b == nil {
		return fmt.Errorf("bookmark %s not found", id)
	}
	for _, other := range m.bookmarks {
		if other.ID != id && other.ServerID == b.ServerID && other.IsLinked() && *other.ServerBookmarkID == serverBookmarkID {
			return fmt.Errorf("unique constraint: bookmark link %s", serverBookmarkID)
		}
	}
	sid := serverBookmarkID
	b.ServerBookmarkID = &sid
	b.SyncStatus = entities.SyncStatusSynced
	b.StatusChangedAt = time.Now()
	return nil
}

func (m *memStore) DeleteBookmarks(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookmarks = slices.DeleteFunc(m.bookmarks, func(b *entities.Bookmark) bool {
		return slices.Contains(ids, b.ID)
	})
	return nil
}

func (m *memStore) ClaimBookmarks(_ context.Context, serverID string, exclude []string, staleBefore time.Time) ([]entities.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Bookmark
	now := time.Now()
	for _, b := range m.bookmarks {
		if b.ServerID != serverID || b.DeletedAt != nil || slices.Contains(exclude, b.BookID) {
			continue
		}
		if !claimable(b.SyncStatus, b.StatusChangedAt, staleBefore) {
			continue
		}
		b.SyncStatus = entities.SyncStatusSyncing
		b.StatusChangedAt = now
		out = append(out, *b)
	}
	return out, nil
}

func (m *memStore) ListDeletedBookmarks(_ context.Context, serverID string, exclude []string) ([]entities.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Bookmark
	for _, b := range m.bookmarks {
		if b.ServerID == serverID && b.DeletedAt != nil && !slices.Contains(exclude, b.BookID) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) SetBookmarkStatus(_ context.Context, id string, status entities.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.findBookmark(id)
	if b == nil {
		return fmt.Errorf("bookmark %s not found", id)
	}
	b.SyncStatus = status
	b.StatusChangedAt = time.Now()
	return nil
}

func (m *memStore) softDeleteBookmark(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b := m.findBookmark(id)
	b.DeletedAt = &now
	b.SyncStatus = entities.SyncStatusUnsynced
}

func (m *memStore) allBookmarks() []entities.Bookmark {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Bookmark, len(m.bookmarks))
	for i, b := range m.bookmarks {
		out[i] = *b
	}
	return out
}

// annotations

func (m *memStore) findAnnotation(id string) *entities.Annotation {
	for _, a := range m.annotations {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *memStore) ListAnnotations(_ context.Context, serverID, bookID string) ([]entities.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Annotation
	for _, a := range m.annotations {
		if a.ServerID == serverID && a.BookID == bookID && a.DeletedAt == nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) InsertAnnotation(_ context.Context, a *entities.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("an-%d", m.seq)
	}
	if a.SyncStatus == "" {
		a.SyncStatus = entities.SyncStatusUnsynced
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	cp := *a
	m.annotations = append(m.annotations, &cp)
	return nil
}

func (m *memStore) SaveAnnotation(_ context.Context, a *entities.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.findAnnotation(a.ID)
	if stored == nil {
		return fmt.Errorf("annotation %s not found", a.ID)
	}
	if a.IsLinked() {
		for _, other := range m.annotations {
			if other.ID != a.ID && other.ServerID == a.ServerID && other.IsLinked() && *other.ServerAnnotationID == *a.ServerAnnotationID {
				return fmt.Errorf("unique constraint: annotation link %s", *a.ServerAnnotationID)
			}
		}
	}
	stored.ServerAnnotationID = a.ServerAnnotationID
	stored.AnnotationText = a.AnnotationText
	stored.UpdatedAt = a.UpdatedAt
	stored.SyncStatus = a.SyncStatus
	stored.StatusChangedAt = time.Now()
	return nil
}

func (m *memStore) DeleteAnnotations(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations = slices.DeleteFunc(m.annotations, func(a *entities.Annotation) bool {
		return slices.Contains(ids, a.ID)
	})
	return nil
}

func (m *memStore) ClaimAnnotations(_ context.Context, serverID string, exclude []string, staleBefore time.Time) ([]entities.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Annotation
	now := time.Now()
	for _, a := range m.annotations {
		if a.ServerID != serverID || a.DeletedAt != nil || slices.Contains(exclude, a.BookID) {
			continue
		}
		if !claimable(a.SyncStatus, a.StatusChangedAt, staleBefore) {
			continue
		}
		a.SyncStatus = entities.SyncStatusSyncing
		a.StatusChangedAt = now
		out = append(out, *a)
	}
	return out, nil
}

func (m *memStore) ListDeletedAnnotations(_ context.Context, serverID string, exclude []string) ([]entities.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Annotation
	for _, a := range m.annotations {
		if a.ServerID == serverID && a.DeletedAt != nil && !slices.Contains(exclude, a.BookID) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) SetAnnotationStatus(_ context.Context, id string, status entities.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAnnotation(id)
	if a == nil {
		return fmt.Errorf("annotation %s not found", id)
	}
	a.SyncStatus = status
	a.StatusChangedAt = time.Now()
	return nil
}

func (m *memStore) softDeleteAnnotation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	a := m.findAnnotation(id)
	a.DeletedAt = &now
	a.SyncStatus = entities.SyncStatusUnsynced
}

func (m *memStore) annotation(id string) *entities.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAnnotation(id)
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func (m *memStore) allAnnotations() []entities.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Annotation, len(m.annotations))
	for i, a := range m.annotations {
		out[i] = *a
	}
	return out
}

// fakeRemote is an in-memory server.
type fakeRemote struct {
	mu  sync.Mutex
	seq int

	media       map[string]remote.MediaProgress
	bookmarks   map[string][]remote.Bookmark
	annotations map[string][]remote.Annotation

	progressErr     error
	updateErr       map[string]error
	bookmarksErr    map[string]error
	createErr       error
	annotationErr   error
	deleteErr       error
	panicOnProgress bool

	calls          []string
	progressPushes map[string]remote.MediaProgressInput
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		media:          map[string]remote.MediaProgress{},
		bookmarks:      map[string][]remote.Bookmark{},
		annotations:    map[string][]remote.Annotation{},
		updateErr:      map[string]error{},
		bookmarksErr:   map[string]error{},
		progressPushes: map[string]remote.MediaProgressInput{},
	}
}

func (f *fakeRemote) record(call string) {
	f.calls = append(f.calls, call)
}

// mutations returns the recorded calls that change server state.
func (f *fakeRemote) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		switch c {
		case "UpdateProgress", "CreateBookmark", "DeleteBookmark", "CreateAnnotation", "UpdateAnnotation", "DeleteAnnotation":
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) MediaProgress(_ context.Context, ids []string) ([]remote.MediaProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MediaProgress")
	if f.panicOnProgress {
		panic("server exploded")
	}
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	var out []remote.MediaProgress
	for _, id := range ids {
		if m, ok := f.media[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRemote) UpdateProgress(_ context.Context, mediaID string, input remote.MediaProgressInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateProgress")
	if err := f.updateErr[mediaID]; err != nil {
		return err
	}
	f.progressPushes[mediaID] = input
	return nil
}

func (f *fakeRemote) Bookmarks(_ context.Context, mediaID string) ([]remote.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Bookmarks")
	if err := f.bookmarksErr[mediaID]; err != nil {
		return nil, err
	}
	return slices.Clone(f.bookmarks[mediaID]), nil
}

func (f *fakeRemote) CreateBookmark(_ context.Context, input remote.CreateBookmarkInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateBookmark")
	if f.createErr != nil {
		return "", f.createErr
	}
	f.seq++
	id := fmt.Sprintf("srv-bm-%d", f.seq)
	f.bookmarks[input.MediaID] = append(f.bookmarks[input.MediaID], remote.Bookmark{
		ID:             id,
		Href:           input.Href,
		Locations:      input.Locations,
		PreviewContent: input.PreviewContent,
	})
	return id, nil
}

func (f *fakeRemote) DeleteBookmark(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteBookmark")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for book, list := range f.bookmarks {
		f.bookmarks[book] = slices.DeleteFunc(list, func(b remote.Bookmark) bool { return b.ID == id })
	}
	return nil
}

func (f *fakeRemote) Annotations(_ context.Context, mediaID string) ([]remote.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Annotations")
	return slices.Clone(f.annotations[mediaID]), nil
}

func (f *fakeRemote) CreateAnnotation(_ context.Context, input remote.CreateAnnotationInput) (*remote.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAnnotation")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	now := time.Now()
	a := remote.Annotation{
		ID:             fmt.Sprintf("srv-an-%d", f.seq),
		Locator:        input.Locator,
		AnnotationText: input.AnnotationText,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.annotations[input.MediaID] = append(f.annotations[input.MediaID], a)
	return &a, nil
}

func (f *fakeRemote) UpdateAnnotation(_ context.Context, id string, text *string) (*remote.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateAnnotation")
	if f.annotationErr != nil {
		return nil, f.annotationErr
	}
	for book, list := range f.annotations {
		for i := range list {
			if list[i].ID == id {
				list[i].AnnotationText = text
				list[i].UpdatedAt = time.Now()
				a := list[i]
				f.annotations[book] = list
				return &a, nil
			}
		}
	}
	return nil, fmt.Errorf("annotation %s not found", id)
}

func (f *fakeRemote) DeleteAnnotation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteAnnotation")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for book, list := range f.annotations {
		f.annotations[book] = slices.DeleteFunc(list, func(a remote.Annotation) bool { return a.ID == id })
	}
	return nil
}

// recordingReporter collects reported errors.
type recordingReporter struct {
	mu      sync.Mutex
	reports []map[string]any
}

func (r *recordingReporter) Report(err error, ctx map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := map[string]any{"error": err.Error()}
	for k, v := range ctx {
		entry[k] = v
	}
	r.reports = append(r.reports, entry)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func newTestEngine(serverID string, rem *fakeRemote, store *memStore, reporter Reporter) *Engine {
	return NewEngine(serverID, rem, store.stores(), reporter, Options{})
}

func ptr[T any](v T) *T { return &v }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
