// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LevelAudit is a custom audit log level - between Info and Warn
const LevelAudit = slog.Level(2)

// DefaultAuditLogSize bounds the in-memory audit store.
const DefaultAuditLogSize = 1000

// NewAuditLogger creates a new structured audit logger that writes to the
// specified writer.
func NewAuditLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: LevelAudit,
	})

	return slog.New(handler)
}

// Action classifies an audited operation.
type Action string

// Audited actions.
const (
	ActionSearch Action = "search"
	ActionAccess Action = "access"
	ActionExport Action = "export"
	ActionModify Action = "modify"
)

// AuditEntry records one governed operation.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	UserRole  string    `json:"user_role"`
	Action    Action    `json:"action"`
	Resource  string    `json:"resource"`

	// Query is stored redacted; raw queries never reach a sink.
	Query string `json:"query,omitempty"`

	ResultCount  int    `json:"result_count"`
	SearchTimeMs int64  `json:"search_time_ms"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`

	SessionID     string `json:"session_id,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	InstitutionID string `json:"institution_id,omitempty"`

	SensitiveDataAccessed bool     `json:"sensitive_data_accessed"`
	ComplianceFlags       []string `json:"compliance_flags,omitempty"`
}

// NewAuditEntry mints an entry with a fresh id and UTC timestamp.
func NewAuditEntry(action Action, resource string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Resource:  resource,
	}
}

// LogTo logs the audit entry to the provided slog.Logger using the custom
// audit level.
func (e *AuditEntry) LogTo(ctx context.Context, logger *slog.Logger, level slog.Level) {
	attrs := []slog.Attr{
		slog.String("audit_id", e.ID),
		slog.Time("timestamp", e.Timestamp),
		slog.String("user_id", e.UserID),
		slog.String("user_role", e.UserRole),
		slog.String("action", string(e.Action)),
		slog.String("resource", e.Resource),
		slog.Int("result_count", e.ResultCount),
		slog.Int64("search_time_ms", e.SearchTimeMs),
		slog.Bool("success", e.Success),
		slog.Bool("sensitive_data_accessed", e.SensitiveDataAccessed),
	}

	if e.Query != "" {
		attrs = append(attrs, slog.String("query", e.Query))
	}
	if e.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error_message", e.ErrorMessage))
	}
	if e.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", e.SessionID))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", e.IPAddress))
	}
	if len(e.ComplianceFlags) > 0 {
		attrs = append(attrs, slog.Any("compliance_flags", e.ComplianceFlags))
	}

	logger.LogAttrs(ctx, level, "audit_entry", attrs...)
}

// AuditSink receives finished audit entries. Sinks must not retain the
// entry past Record.
type AuditSink interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// SlogSink emits audit entries as structured log lines.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing JSON audit lines to w (stdout when
// nil).
func NewSlogSink(w io.Writer) *SlogSink {
	return &SlogSink{logger: NewAuditLogger(w)}
}

// Record implements AuditSink.
func (s *SlogSink) Record(ctx context.Context, entry *AuditEntry) error {
	entry.LogTo(ctx, s.logger, LevelAudit)
	return nil
}

// MemoryStore keeps the most recent audit entries so audit ids returned to
// callers can be resolved back to entries. It is a bounded window, not
// durable storage.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*AuditEntry
	order    []string
}

// NewMemoryStore creates a store holding at most capacity entries
// (DefaultAuditLogSize when non-positive).
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultAuditLogSize
	}
	return &MemoryStore{
		capacity: capacity,
		entries:  make(map[string]*AuditEntry),
	}
}

// Record implements AuditSink, evicting the oldest entry once full.
func (s *MemoryStore) Record(_ context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; !exists {
		s.order = append(s.order, entry.ID)
	}
	s.entries[entry.ID] = entry

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	return nil
}

// GetEntry returns the stored entry for an audit id.
func (s *MemoryStore) GetEntry(id string) (*AuditEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return entry, ok
}

// Len reports the number of retained entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
