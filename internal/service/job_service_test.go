package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/worker"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type fakeQueue struct {
	tasks []worker.Task
	err   error
	// reject refuses tasks whose name has this prefix.
	reject string
}

func (q *fakeQueue) Enqueue(task worker.Task) error {
	if q.err != nil {
		return q.err
	}
	if q.reject != "" && strings.HasPrefix(task.Name, q.reject) {
		return worker.ErrQueueFull
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) drain(t *testing.T) {
	t.Helper()
	for len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		require.NoError(t, task.Run(context.Background()), task.Name)
	}
}

type fakeExports struct {
	repository.ExportJobRepository
	items map[string]*domain.ExportJob
}

func (f *fakeExports) Create(_ context.Context, job *domain.ExportJob) error {
	job.ID = fmt.Sprintf("export-%d", len(f.items)+1)
	job.CreatedAt = testNow
	return f.Save(context.Background(), job)
}

func (f *fakeExports) Save(_ context.Context, job *domain.ExportJob) error {
	cp := *job
	f.items[job.ID] = &cp
	return nil
}

func (f *fakeExports) GetByID(_ context.Context, tenantID, id string) (*domain.ExportJob, error) {
	job, ok := f.items[id]
	if !ok || job.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (f *fakeExports) ListUnfinished(context.Context) ([]domain.ExportJob, error) {
	var out []domain.ExportJob
	for _, job := range f.items {
		if job.Status == domain.JobStatusPending || job.Status == domain.JobStatusRunning {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeExports) Claim(_ context.Context, tenantID, id string, now, staleBefore time.Time) (bool, error) {
	job, ok := f.items[id]
	if !ok || job.TenantID != tenantID || !claimable(job.Status, job.UpdatedAt, staleBefore) {
		return false, nil
	}
	job.Status = domain.JobStatusRunning
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.UpdatedAt = now
	return true, nil
}

func claimable(status domain.JobStatus, updatedAt, staleBefore time.Time) bool {
	return status == domain.JobStatusPending || (status == domain.JobStatusRunning && updatedAt.Before(staleBefore))
}

func (f *fakeExports) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.ExportJob, error) {
	var out []domain.ExportJob
	for _, job := range f.items {
		if job.Status == domain.JobStatusCompleted && job.ExpiresAt != nil && job.ExpiresAt.Before(now) && len(out) < limit {
			out = append(out, *job)
		}
	}
	return out, nil
}

type fakeImports struct {
	repository.ImportJobRepository
	items map[string]*domain.ImportJob
}

func (f *fakeImports) Create(_ context.Context, job *domain.ImportJob) error {
	job.ID = fmt.Sprintf("import-%d", len(f.items)+1)
	job.CreatedAt = testNow
	return f.Save(context.Background(), job)
}

func (f *fakeImports) Save(_ context.Context, job *domain.ImportJob) error {
	cp := *job
	cp.Errors = append([]domain.RowError(nil), job.Errors...)
	f.items[job.ID] = &cp
	return nil
}

func (f *fakeImports) GetByID(_ context.Context, tenantID, id string) (*domain.ImportJob, error) {
	job, ok := f.items[id]
	if !ok || job.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (f *fakeImports) ListUnfinished(context.Context) ([]domain.ImportJob, error) {
	var out []domain.ImportJob
	for _, job := range f.items {
		if job.Status == domain.JobStatusPending || job.Status == domain.JobStatusRunning {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeImports) Claim(_ context.Context, tenantID, id string, now, staleBefore time.Time) (bool, error) {
	job, ok := f.items[id]
	if !ok || job.TenantID != tenantID || !claimable(job.Status, job.UpdatedAt, staleBefore) {
		return false, nil
	}
	job.Status = domain.JobStatusRunning
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.UpdatedAt = now
	return true, nil
}

type jobFixture struct {
	exports    *fakeExports
	imports    *fakeImports
	contacts   *fakeContacts
	files      *storage.Local
	queue      *fakeQueue
	dispatcher *recordingDispatcher
	svc        *JobService
	actor      domain.Actor
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	f := &jobFixture{
		exports:    &fakeExports{items: map[string]*domain.ExportJob{}},
		imports:    &fakeImports{items: map[string]*domain.ImportJob{}},
		contacts:   newFakeContacts(domain.Contact{ID: "contact-1", TenantID: tenantA, FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}),
		files:      files,
		queue:      &fakeQueue{},
		dispatcher: &recordingDispatcher{},
		actor:      userActor(tenantA, "agent-1"),
	}
	f.svc = NewJobService(JobDependencies{
		ExportRepo:     f.exports,
		ImportRepo:     f.imports,
		ContactRepo:    f.contacts,
		ContactService: NewContactService(ContactDependencies{ContactRepo: f.contacts}),
		Storage:        files,
		Queue:          f.queue,
		Dispatcher:     f.dispatcher,
		Config:         config.JobsConfig{ProgressEvery: 2, ExportRetentionHours: 72},
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func TestCreateExport_Validates(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.svc.CreateExport(context.Background(), f.actor, CreateExportInput{EntityType: "widgets", Format: "pdf"})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "entity_type")
	assert.Contains(t, fields, "format")

	_, err = f.svc.CreateExport(context.Background(), domain.SystemActor(tenantA), CreateExportInput{EntityType: domain.EntityContacts})
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestExportContacts_CompletesAndDownloads(t *testing.T) {
	f := newJobFixture(t)

	job, err := f.svc.CreateExport(context.Background(), f.actor, CreateExportInput{EntityType: domain.EntityContacts})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, domain.FormatCSV, job.Format)

	_, _, err = f.svc.DownloadExport(context.Background(), f.actor, job.ID)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)

	f.queue.drain(t)

	done, err := f.svc.GetExport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 1, done.TotalRows)
	assert.Equal(t, 1, done.ProcessedRows)
	assert.Equal(t, testNow.Add(72*time.Hour), *done.ExpiresAt)
	assert.Equal(t, []events.EventType{events.EventExportReady}, f.dispatcher.types())
	assert.Equal(t, "contacts-20260302-100000.csv", ExportFileName(done))

	rc, _, err := f.svc.DownloadExport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "first_name,last_name,email,phone,company,notes,created_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Ada,Byron,ada@example.com"))
}

func TestExport_ExpiresAndCleansUp(t *testing.T) {
	f := newJobFixture(t)
	job, err := f.svc.CreateExport(context.Background(), f.actor, CreateExportInput{EntityType: domain.EntityContacts, Format: domain.FormatXLSX})
	require.NoError(t, err)
	f.queue.drain(t)
	done, err := f.svc.GetExport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	key := *done.FileKey

	f.svc.now = func() time.Time { return testNow.Add(73 * time.Hour) }
	_, _, err = f.svc.DownloadExport(context.Background(), f.actor, job.ID)
	assert.Equal(t, "export has expired", apperrors.ToDomainError(err).Message)

	expired, err := f.svc.CleanupExports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	after, err := f.svc.GetExport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusExpired, after.Status)
	assert.Nil(t, after.FileKey)
	_, err = f.files.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateExport_FullQueueFailsJob(t *testing.T) {
	f := newJobFixture(t)
	f.queue.err = errors.New("queue full")

	_, err := f.svc.CreateExport(context.Background(), f.actor, CreateExportInput{EntityType: domain.EntityContacts})
	assert.Equal(t, "SERVICE_UNAVAILABLE", apperrors.ToDomainError(err).Code)
	require.Len(t, f.exports.items, 1)
	for _, job := range f.exports.items {
		assert.Equal(t, domain.JobStatusFailed, job.Status)
	}
}

func TestImportContacts_RecordsRowErrors(t *testing.T) {
	f := newJobFixture(t)
	upload := "\ufefffirst_name,Last_Name,email\n" +
		"Grace,Hopper,grace@example.com\n" +
		",,bad\n" +
		"\n" +
		"Alan,Turing,ada@example.com\n"

	job, err := f.svc.CreateImport(context.Background(), f.actor, CreateImportInput{
		EntityType: domain.EntityContacts,
		FileName:   "../../people list.CSV",
		Content:    strings.NewReader(upload),
	})
	require.NoError(t, err)
	assert.Equal(t, "people_list.csv", job.FileName)
	assert.Equal(t, domain.FormatCSV, job.Format)

	f.queue.drain(t)

	done, err := f.svc.GetImport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 3, done.TotalRows)
	assert.Equal(t, 3, done.ProcessedRows)
	assert.Equal(t, 1, done.SucceededRows)
	assert.Equal(t, 2, done.FailedRows)
	assert.Equal(t, []domain.RowError{
		{Row: 3, Message: "email: must be a valid email address; first_name: first or last name is required"},
		{Row: 4, Message: "contact email already in use"},
	}, done.Errors)

	_, err = f.contacts.GetByEmail(context.Background(), tenantA, "grace@example.com")
	assert.NoError(t, err)
	assert.Equal(t, []events.EventType{events.EventImportFinished}, f.dispatcher.types())
}

func TestImport_MissingColumnFailsJob(t *testing.T) {
	f := newJobFixture(t)

	job, err := f.svc.CreateImport(context.Background(), f.actor, CreateImportInput{
		EntityType: domain.EntityContacts,
		FileName:   "x.csv",
		Content:    strings.NewReader("email\nx@example.com\n"),
	})
	require.NoError(t, err)
	task := f.queue.tasks[0]
	assert.Error(t, task.Run(context.Background()))

	failed, err := f.svc.GetImport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "first_name")
}

func TestCreateImport_Validates(t *testing.T) {
	f := newJobFixture(t)

	_, err := f.svc.CreateImport(context.Background(), f.actor, CreateImportInput{
		EntityType: domain.EntityUsers,
		FileName:   "notes.txt",
		Content:    strings.NewReader("x"),
	})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "entity_type")
	assert.Equal(t, "must be a .csv or .xlsx file", fields["file"])
	assert.Empty(t, f.imports.items)
}

func seedUpload(t *testing.T, f *jobFixture, name, body string) string {
	t.Helper()
	key := storage.Key("tenants", tenantA, "imports", "seeded", name)
	require.NoError(t, f.files.Put(context.Background(), key, strings.NewReader(body), domain.FormatCSV.ContentType()))
	return key
}

func TestResumePending_ContinuesImportAfterProcessedRows(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	_, err := f.svc.contacts.CreateContact(ctx, f.actor, ContactInput{FirstName: "Grace", Email: "grace@example.com"})
	require.NoError(t, err)

	key := seedUpload(t, f, "people.csv", "first_name,email\n"+
		"Grace,grace@example.com\n"+
		"Alan,alan@example.com\n"+
		"Edsger,edsger@example.com\n")
	started := testNow.Add(-2 * time.Hour)
	f.imports.items["import-7"] = &domain.ImportJob{
		ID: "import-7", TenantID: tenantA, EntityType: domain.EntityContacts, Format: domain.FormatCSV,
		FileKey: key, FileName: "people.csv", Status: domain.JobStatusRunning, RequestedBy: "agent-1",
		TotalRows: 3, ProcessedRows: 1, SucceededRows: 1, StartedAt: &started,
		UpdatedAt: testNow.Add(-time.Hour),
	}

	require.NoError(t, f.svc.ResumePending(ctx))
	require.Len(t, f.queue.tasks, 1)
	f.queue.drain(t)

	done, err := f.svc.GetImport(ctx, f.actor, "import-7")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 3, done.ProcessedRows)
	assert.Equal(t, 3, done.SucceededRows)
	assert.Zero(t, done.FailedRows)
	assert.Empty(t, done.Errors)
	assert.Equal(t, started, *done.StartedAt)

	_, err = f.contacts.GetByEmail(ctx, tenantA, "edsger@example.com")
	assert.NoError(t, err)
}

func TestResumePending_SkipsJobsStillInProgress(t *testing.T) {
	f := newJobFixture(t)
	key := seedUpload(t, f, "busy.csv", "first_name\nAlan\n")
	f.imports.items["import-3"] = &domain.ImportJob{
		ID: "import-3", TenantID: tenantA, EntityType: domain.EntityContacts, Format: domain.FormatCSV,
		FileKey: key, Status: domain.JobStatusRunning, RequestedBy: "agent-1",
		UpdatedAt: testNow.Add(-time.Minute),
	}

	require.NoError(t, f.svc.ResumePending(context.Background()))
	assert.Empty(t, f.queue.tasks)
}

func TestImport_RunsOnceWhenQueuedTwice(t *testing.T) {
	f := newJobFixture(t)
	job, err := f.svc.CreateImport(context.Background(), f.actor, CreateImportInput{
		EntityType: domain.EntityContacts,
		FileName:   "twice.csv",
		Content:    strings.NewReader("first_name,email\nAlan,alan@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, f.queue.tasks, 1)
	task := f.queue.tasks[0]

	// Another worker holds the job and reported progress moments ago.
	f.imports.items[job.ID].Status = domain.JobStatusRunning
	f.imports.items[job.ID].UpdatedAt = testNow
	require.NoError(t, task.Run(context.Background()))
	held, err := f.svc.GetImport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, held.Status)
	assert.Zero(t, held.ProcessedRows)

	f.imports.items[job.ID].Status = domain.JobStatusPending
	f.queue.tasks = append(f.queue.tasks, task)
	f.queue.drain(t)

	done, err := f.svc.GetImport(context.Background(), f.actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 1, done.SucceededRows)
	assert.Zero(t, done.FailedRows)
	assert.Equal(t, []events.EventType{events.EventImportFinished}, f.dispatcher.types())
}

func TestResumePending_ContinuesPastEnqueueFailure(t *testing.T) {
	f := newJobFixture(t)
	stale := testNow.Add(-time.Hour)
	f.exports.items["export-1"] = &domain.ExportJob{
		ID: "export-1", TenantID: tenantA, EntityType: domain.EntityContacts, Format: domain.FormatCSV,
		Status: domain.JobStatusPending, RequestedBy: "agent-1", UpdatedAt: stale,
	}
	key := seedUpload(t, f, "later.csv", "first_name\nAlan\n")
	f.imports.items["import-1"] = &domain.ImportJob{
		ID: "import-1", TenantID: tenantA, EntityType: domain.EntityContacts, Format: domain.FormatCSV,
		FileKey: key, Status: domain.JobStatusPending, RequestedBy: "agent-1", UpdatedAt: stale,
	}
	f.queue.reject = "export."

	require.NoError(t, f.svc.ResumePending(context.Background()))
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, "import.contacts", f.queue.tasks[0].Name)
}
