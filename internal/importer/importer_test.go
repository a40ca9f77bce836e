package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
	"github.com/andy/billable/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup struct {
	clients  map[string]*domain.Client
	projects map[string]*domain.Project
}

func (m mapLookup) ClientByName(name string) (*domain.Client, error) {
	if c, ok := m.clients[name]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (m mapLookup) ProjectByName(_ int64, name string) (*domain.Project, error) {
	if p, ok := m.projects[name]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func testLookup() mapLookup {
	return mapLookup{
		clients:  map[string]*domain.Client{"Acme": {ID: 1, Name: "Acme"}},
		projects: map[string]*domain.Project{"Site": {ID: 7, ClientID: 1, Name: "Site"}},
	}
}

func TestParseCollectsEntriesAndRowErrors(t *testing.T) {
	sheet := strings.Join([]string{
		"Client,Project,Start,End,Description",
		"Acme,Site,2026-03-02T09:00:00Z,2026-03-02T10:30:00Z,Kickoff",
		"Acme,,2026-03-03 13:00,2026-03-03 15:00,Review",
		"Nobody,,2026-03-03 13:00,2026-03-03 15:00,x",
		"Acme,Missing,2026-03-03 13:00,2026-03-03 15:00,x",
		"Acme,,2026-03-03 15:00,2026-03-03 13:00,backwards",
		"Acme,,yesterday,2026-03-03 13:00,bad time",
		",,,,",
	}, "\n")

	res, err := Parse(strings.NewReader(sheet), testLookup())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.BatchID)

	require.Len(t, res.Entries, 2)
	first := res.Entries[0]
	assert.Equal(t, int64(1), first.ClientID)
	require.NotNil(t, first.ProjectID)
	assert.Equal(t, int64(7), *first.ProjectID)
	assert.Equal(t, "Kickoff", first.Description)
	assert.True(t, first.Hours().Equal(testutil.Dec("1.5")))
	assert.False(t, first.IsRunning())
	assert.Nil(t, first.InvoicedDate)

	second := res.Entries[1]
	assert.Nil(t, second.ProjectID)
	assert.True(t, second.Hours().Equal(testutil.Dec("2")))

	require.Len(t, res.Errors, 4)
	assert.Equal(t, `row 4: unknown client "Nobody"`, res.Errors[0])
	assert.Contains(t, res.Errors[1], `row 5: unknown project "Missing"`)
	assert.Equal(t, "row 6: end must be after start", res.Errors[2])
	assert.Contains(t, res.Errors[3], "row 7: start:")
}

func TestParseHeaderErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""), testLookup())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Parse(strings.NewReader("client,description\nAcme,x\n"), testLookup())
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "start, end")
}

func TestParseWithoutOptionalColumns(t *testing.T) {
	res, err := Parse(strings.NewReader("end,start,client\n2026-03-02T10:00:00Z,2026-03-02T09:00:00Z,Acme\n"), testLookup())
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Entries[0].Description)
}

func TestRepositoryLookup(t *testing.T) {
	database := testutil.NewTestDB(t)
	stores := repository.NewStores(database)
	ctx := context.Background()

	client := testutil.NewTestClient("Acme", "25")
	require.NoError(t, stores.Clients.Create(ctx, client))
	project := testutil.NewTestProject(client.ID, "Site")
	require.NoError(t, stores.Projects.Create(ctx, project))

	l := NewRepositoryLookup(ctx, stores.Clients, stores.Projects)
	res, err := Parse(strings.NewReader("client,project,start,end\nAcme,Site,2026-03-02T09:00:00Z,2026-03-02T10:00:00Z\nGlobex,,2026-03-02T09:00:00Z,2026-03-02T10:00:00Z\n"), l)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, client.ID, res.Entries[0].ClientID)
	assert.Equal(t, project.ID, *res.Entries[0].ProjectID)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Globex")
}
