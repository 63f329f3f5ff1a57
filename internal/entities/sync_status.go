package entities

// SyncStatus tracks whether a locally cached record matches its server.
type SyncStatus string

const (
	SyncStatusUnsynced SyncStatus = "UNSYNCED" // created or edited locally
	SyncStatusSyncing  SyncStatus = "SYNCING"  // claimed by an in-flight push batch
	SyncStatusSynced   SyncStatus = "SYNCED"
	SyncStatusError    SyncStatus = "ERROR" // last push failed, retried next cycle
)

// PushCandidateStatuses are the statuses a push batch claims.
var PushCandidateStatuses = []SyncStatus{SyncStatusUnsynced, SyncStatusError}

// IsValid reports whether s is one of the known statuses.
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusUnsynced, SyncStatusSyncing, SyncStatusSynced, SyncStatusError:
		return true
	}
	return false
}

// IsPushCandidate reports whether a record in this status should be pushed.
// ERROR rejoins the UNSYNCED pool, it is never terminal.
func (s SyncStatus) IsPushCandidate() bool {
	return s == SyncStatusUnsynced || s == SyncStatusError
}

// CanTransition reports whether moving from s to next is allowed.
//
//	any      -> UNSYNCED  local create/edit
//	any      -> SYNCED    pull overwrite
//	UNSYNCED -> SYNCING   push claim
//	ERROR    -> SYNCING   push claim
//	SYNCING  -> SYNCED    push success
//	SYNCING  -> ERROR     push failure
func (s SyncStatus) CanTransition(next SyncStatus) bool {
	switch next {
	case SyncStatusUnsynced, SyncStatusSynced:
		return true
	case SyncStatusSyncing:
		return s.IsPushCandidate()
	case SyncStatusError:
		return s == SyncStatusSyncing
	}
	return false
}
