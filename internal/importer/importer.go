// Package importer turns a CSV time sheet into unsaved time entries.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
	"github.com/google/uuid"
)

// Columns, matched case-insensitively. project and description may be omitted.
const (
	colClient      = "client"
	colProject     = "project"
	colStart       = "start"
	colEnd         = "end"
	colDescription = "description"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Lookup resolves names in the sheet to stored rows. Unknown names return domain.ErrNotFound.
type Lookup interface {
	ClientByName(name string) (*domain.Client, error)
	ProjectByName(clientID int64, name string) (*domain.Project, error)
}

// Result is one parsed sheet. Entries are stopped and unsaved; rows that
// could not be turned into an entry are described in Errors.
type Result struct {
	BatchID uuid.UUID
	Entries []*domain.TimeEntry
	Errors  []string
}

// Parse reads a CSV with a header row. Row-level problems are collected and
// never stop the batch; only an unreadable header fails the whole parse.
func Parse(r io.Reader, lookup Lookup) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.Invalid("empty CSV: header row required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{BatchID: uuid.New()}
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		if blank(record) {
			continue
		}
		entry, err := parseRow(cols, record, lookup)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func indexHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, required := range []string{colClient, colStart, colEnd} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalid("CSV header missing column(s): %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func field(cols map[string]int, record []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(cols map[string]int, record []string, lookup Lookup) (*domain.TimeEntry, error) {
	clientName := field(cols, record, colClient)
	if clientName == "" {
		return nil, errors.New("client is required")
	}
	client, err := lookup.ClientByName(clientName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown client %q", clientName)
		}
		return nil, err
	}

	var projectID *int64
	if name := field(cols, record, colProject); name != "" {
		project, err := lookup.ProjectByName(client.ID, name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("unknown project %q for client %q", name, clientName)
			}
			return nil, err
		}
		projectID = &project.ID
	}

	start, err := parseTime(field(cols, record, colStart))
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(field(cols, record, colEnd))
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if !end.After(start) {
		return nil, errors.New("end must be after start")
	}

	entry := domain.NewTimeEntry(client.ID, projectID, field(cols, record, colDescription), start)
	entry.Stop(end)
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

// parseTime accepts RFC3339 or a zone-less date-time read as UTC.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing value")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// RepositoryLookup resolves names through the repositories, caching hits for one import.
type RepositoryLookup struct {
	ctx      context.Context
	clients  repository.ClientRepository
	projects repository.ProjectRepository
	cache    map[string]*domain.Client
}

func NewRepositoryLookup(ctx context.Context, clients repository.ClientRepository, projects repository.ProjectRepository) *RepositoryLookup {
	return &RepositoryLookup{
		ctx:      ctx,
		clients:  clients,
		projects: projects,
		cache:    make(map[string]*domain.Client),
	}
}

func (l *RepositoryLookup) ClientByName(name string) (*domain.Client, error) {
	if c, ok := l.cache[name]; ok {
		return c, nil
	}
	c, err := l.clients.GetByName(l.ctx, name)
	if err != nil {
		return nil, err
	}
	l.cache[name] = c
	return c, nil
}

func (l *RepositoryLookup) ProjectByName(clientID int64, name string) (*domain.Project, error) {
	return l.projects.GetByName(l.ctx, clientID, name)
}
