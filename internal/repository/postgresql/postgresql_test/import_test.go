package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/repository/postgresql"
)

func berlin(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func TestImportRepository_CreateAndGet(t *testing.T) {
	db := newTestDatabase(t)
	loc := berlin(t)
	repo := postgresql.NewImportRepository(db, loc)
	ctx := context.Background()

	imp := absence.Import{
		ID:        uuid.NewString(),
		Source:    absence.SourceFile,
		FileName:  "export.csv",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Stats:     absence.NormalizeStats{TotalRows: 3, Accepted: 2, InvalidDate: 1},
		Records: []absence.Record{
			{
				StudentKey: "Müller, Anna", LastName: "Müller", FirstName: "Anna", ClassName: "5a",
				Date: time.Date(2024, 9, 20, 0, 0, 0, 0, loc), Kind: absence.KindTardiness,
				ReasonLabel: "Verspätung", StartTime: "08:00", EndTime: "08:15", RawStatus: absence.StatusExcused,
			},
			{
				StudentKey: "Schmidt", LastName: "Schmidt", ClassName: "5b",
				Date: time.Date(2024, 9, 23, 0, 0, 0, 0, loc), Kind: absence.KindAbsence,
				ReasonLabel: absence.DefaultFullDayLabel,
			},
		},
	}
	require.NoError(t, repo.Create(ctx, imp))

	got, err := repo.GetByID(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, imp.Stats, got.Stats)
	assert.Equal(t, imp.FileName, got.FileName)
	require.Len(t, got.Records, 2)
	assert.Equal(t, imp.Records[0].StudentKey, got.Records[0].StudentKey)
	assert.True(t, imp.Records[0].Date.Equal(got.Records[0].Date))
	assert.Equal(t, absence.KindTardiness, got.Records[0].Kind)
	assert.Equal(t, absence.StatusEmpty, got.Records[1].RawStatus)
}

func TestImportRepository_NotFound(t *testing.T) {
	db := newTestDatabase(t)
	repo := postgresql.NewImportRepository(db, time.UTC)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, absence.ErrImportNotFound)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, absence.ErrImportNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.NewString()), absence.ErrImportNotFound)
}

func TestImportRepository_DeleteCreatedBefore(t *testing.T) {
	db := newTestDatabase(t)
	repo := postgresql.NewImportRepository(db, time.UTC)
	ctx := context.Background()
	now := time.Now().UTC()

	old := absence.Import{ID: uuid.NewString(), Source: absence.SourceFile, ArchivePath: "imports/old/a.csv", CreatedAt: now.Add(-24 * time.Hour)}
	fresh := absence.Import{ID: uuid.NewString(), Source: absence.SourceRemote, CreatedAt: now}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	deleted, err := repo.DeleteCreatedBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, old.ID, deleted[0].ID)
	assert.Equal(t, "imports/old/a.csv", deleted[0].ArchivePath)

	_, err = repo.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
}
