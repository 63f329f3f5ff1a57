package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/shelfsync/internal/database/audit"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/syncer"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

var _ syncer.Reporter = (*Service)(nil)

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(context.Background(), event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Flush waits for pending background writes.
func (s *Service) Flush() {
	s.wg.Wait()
}

// Report records a sync failure. Known context keys fill the matching event
// columns and everything else is kept as metadata.
func (s *Service) Report(err error, context map[string]any) {
	if err == nil {
		return
	}

	event := &entities.AuditEvent{
		EventType: entities.AuditEventError,
		Status:    entities.AuditStatusFailed,
		ErrorMsg:  truncate(err.Error(), 500),
	}

	extra := map[string]any{}
	for k, v := range context {
		switch k {
		case "server_id":
			event.ServerID = fmt.Sprint(v)
		case "operation":
			event.Action = fmt.Sprint(v)
		case "entity_type":
			event.EntityType = fmt.Sprint(v)
		case "entity_id":
			event.EntityID = fmt.Sprint(v)
		default:
			extra[k] = v
		}
	}
	event.Description = truncate(describe(event.Action, extra), 500)

	if len(extra) > 0 {
		if md, e := json.Marshal(extra); e == nil {
			event.Metadata = string(md)
		}
	}

	s.LogAsync(event)
}

// LogCycle records one sync event per server in a finished cycle.
func (s *Service) LogCycle(report *syncer.CycleReport) {
	ids := make([]string, 0, len(report.Servers))
	for id := range report.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := report.Servers[id]
		t := r.Totals()
		event := &entities.AuditEvent{
			ServerID:  id,
			EventType: entities.AuditEventSync,
			Action:    report.Trigger + "_sync",
			Description: fmt.Sprintf("Pulled %d, pushed %d, deleted %d, failed %d",
				t.Pulled, t.Pushed, t.Deleted, t.Failed),
			Status: entities.AuditStatusSuccess,
		}
		if md, err := json.Marshal(r); err == nil {
			event.Metadata = string(md)
		}
		if len(r.Errors) > 0 {
			event.Status = entities.AuditStatusFailed
			event.ErrorMsg = truncate(r.Errors[0], 500)
		}
		s.LogAsync(event)
	}
}

// LogSettings records a settings change event.
func (s *Service) LogSettings(serverID, action, description string) {
	event := &entities.AuditEvent{
		ServerID:    serverID,
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, serverID string, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, serverID, eventType, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func describe(action string, extra map[string]any) string {
	if action == "" {
		action = "sync"
	}
	if book, ok := extra["book_id"]; ok {
		return fmt.Sprintf("%s failed for book %v", action, book)
	}
	return action + " failed"
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
