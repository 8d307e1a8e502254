package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/domain/query"
)

func seedProjects(r *fakeRemote) {
	r.projects = []entity.Project{
		{ID: 10, ClientID: 1, Name: "Website", Status: entity.ProjectStatusInProgress},
		{ID: 11, ClientID: 1, Name: "Hosting", Status: entity.ProjectStatusInProgress},
		{ID: 12, ClientID: 2, Name: "Audit", Status: entity.ProjectStatusFinished},
	}
}

func TestProjectService_SetStatus(t *testing.T) {
	h := newHarness(t)
	seedProjects(h.remote)
	svc := h.projects()
	clients := h.clients()
	ctx := context.Background()

	_, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	_, err = clients.Projects(ctx, 1)
	require.NoError(t, err)
	_, err = clients.Projects(ctx, 2)
	require.NoError(t, err)

	var during []entity.Project
	h.remote.during = func(method string) {
		if method == "SetProjectStatus" {
			during, _ = cached[[]entity.Project](h.cache, query.ClientProjects(1))
		}
	}
	otherCalls := h.remote.count("ListProjects")

	change, err := svc.SetStatus(ctx, 11, entity.ProjectStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusPaused, change.Value.Status)

	require.Len(t, during, 2)
	assert.Equal(t, entity.ProjectStatusPaused, during[1].Status)

	// projects(all) and client_projects(1) are refetched, client 2 is not
	assert.Equal(t, otherCalls+2, h.remote.count("ListProjects"))
	assert.Contains(t, change.Refetched, query.ClientProjects(1).String())
	assert.NotContains(t, change.Refetched, query.ClientProjects(2).String())
}

func TestProjectService_SetStatusRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	_, err := h.projects().SetStatus(context.Background(), 10, entity.ProjectStatus("ARCHIVED"))
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindValidation))
	assert.Zero(t, h.remote.count("SetProjectStatus"))
}

func TestProjectService_DeleteFailureRestores(t *testing.T) {
	h := newHarness(t)
	seedProjects(h.remote)
	svc := h.projects()
	ctx := context.Background()

	view, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, view.Data, 3)

	h.remote.failWith("DeleteProject", errUnreachable)
	_, err = svc.Delete(ctx, 10)
	require.Error(t, err)

	projects, _ := cached[[]entity.Project](h.cache, query.Projects("", 0))
	assert.Equal(t, view.Data, projects)
}

func TestProjectService_DeleteRefetchesInvoices(t *testing.T) {
	h := newHarness(t)
	seedProjects(h.remote)
	website := int64(10)
	h.remote.invoices = []entity.Invoice{
		{ID: 7, ClientID: 1, ProjectID: &website, Status: entity.InvoiceStatusOpen, Total: 100},
	}
	ctx := context.Background()

	view, err := h.invoices(fakeInspector{}).List(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, view.Data[0].ProjectID)
	listed := h.remote.count("ListInvoices")

	change, err := h.projects().Delete(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, listed+1, h.remote.count("ListInvoices"))
	assert.Contains(t, change.Refetched, query.Invoices("").String())

	invoices, ok := cached[[]entity.Invoice](h.cache, query.Invoices(""))
	require.True(t, ok)
	require.Len(t, invoices, 1)
	assert.Nil(t, invoices[0].ProjectID, "the deleted project is no longer referenced")
}

func TestProjectService_UpdateMovesProject(t *testing.T) {
	h := newHarness(t)
	seedProjects(h.remote)
	svc := h.projects()
	clients := h.clients()
	ctx := context.Background()

	_, err := clients.Projects(ctx, 1)
	require.NoError(t, err)
	_, err = clients.Projects(ctx, 2)
	require.NoError(t, err)

	var oldOwner []entity.Project
	h.remote.during = func(method string) {
		if method == "UpdateProject" {
			oldOwner, _ = cached[[]entity.Project](h.cache, query.ClientProjects(1))
		}
	}

	change, err := svc.Update(ctx, 10, form.ProjectForm{ClientID: 2, Name: " Website v2 "})
	require.NoError(t, err)
	assert.Equal(t, "Website v2", change.Value.Name)
	assert.Equal(t, entity.ProjectStatusInProgress, change.Value.Status)

	require.Len(t, oldOwner, 1, "old owner loses the project optimistically")

	moved, _ := cached[[]entity.Project](h.cache, query.ClientProjects(2))
	require.Len(t, moved, 2, "both owners are refetched")
}

func TestProjectService_Create(t *testing.T) {
	h := newHarness(t)
	svc := h.projects()

	_, err := svc.Create(context.Background(), form.ProjectForm{
		ClientID:        1,
		Name:            "Migration",
		StartDate:       entity.MustDate("2024-05-01"),
		ExpectedEndDate: entity.MustDate("2024-04-01"),
	})
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindValidation))

	change, err := svc.Create(context.Background(), form.ProjectForm{ClientID: 1, Name: "Migration"})
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusInProgress, change.Value.Status)
	assert.Equal(t, 1, h.remote.count("CreateProject"))
}
