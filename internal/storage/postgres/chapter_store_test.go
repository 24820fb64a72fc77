package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"storyvault/internal/archive"
)

func TestUpsertChapterInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	ch := archive.Chapter{
		StoryID:   "story-uuid",
		Number:    1,
		Title:     "Chương 1",
		SourceURL: "https://truyenfull.vision/tien-nghich/chuong-1/",
	}

	mock.ExpectExec("INSERT INTO chapters").
		WithArgs(ch.StoryID, ch.Number, ch.Title, ch.SourceURL, ch.Body).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertChapter(context.Background(), ch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertChaptersBindsEveryRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	chapters := []archive.Chapter{
		{StoryID: "story-uuid", Number: 1, Title: "Chương 1", SourceURL: "u1"},
		{StoryID: "story-uuid", Number: 2, Title: "Chương 2", SourceURL: "u2"},
	}

	mock.ExpectExec("INSERT INTO chapters").
		WithArgs(
			"story-uuid", 1, "Chương 1", "u1", "",
			"story-uuid", 2, "Chương 2", "u2", "",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, store.BulkUpsertChapters(context.Background(), chapters))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertChaptersEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	require.NoError(t, store.BulkUpsertChapters(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChapterScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM chapters").
		WithArgs("story-uuid", 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"story_id", "chapter_number", "title", "source_url", "body", "is_archived", "created_at",
		}).AddRow("story-uuid", 5, "Chương 5", "u5", "", true, now))

	ch, err := store.GetChapter(context.Background(), "story-uuid", 5)
	require.NoError(t, err)
	require.Equal(t, 5, ch.Number)
	require.True(t, ch.IsArchived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChapterMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM chapters").
		WithArgs("story-uuid", 404).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetChapter(context.Background(), "story-uuid", 404)
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetChapterArchivedClearsBody(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE chapters SET is_archived = (.+), body = ''").
		WithArgs("story-uuid", 1, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetChapterArchived(context.Background(), "story-uuid", 1, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetChapterBodyMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewChapterStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE chapters SET body").
		WithArgs("story-uuid", 9, "văn bản").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.SetChapterBody(context.Background(), "story-uuid", 9, "văn bản")
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
