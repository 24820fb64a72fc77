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

func TestUpsertStoryReturnsStoredIdentity(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoryStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	story := archive.Story{
		Slug:          "tien-nghich",
		Title:         "Tiên Nghịch",
		Author:        "Nhĩ Căn",
		Genres:        []string{"Tiên Hiệp"},
		Status:        archive.StoryOngoing,
		TotalChapters: 100,
		SourceURL:     "https://truyenfull.vision/tien-nghich/",
	}

	mock.ExpectQuery("INSERT INTO stories").
		WithArgs(
			story.Slug,
			story.Title,
			story.Author,
			story.Description,
			story.Genres,
			string(story.Status),
			story.TotalChapters,
			story.CoverURL,
			story.SourceURL,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("story-uuid", now, now))

	stored, err := store.UpsertStory(context.Background(), story)
	require.NoError(t, err)
	require.Equal(t, "story-uuid", stored.ID)
	require.Equal(t, now, stored.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStoryRequiresSlug(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoryStoreWithPool(mock)
	require.NoError(t, err)

	_, err = store.UpsertStory(context.Background(), archive.Story{Title: "no slug"})
	require.Error(t, err)
}

func TestGetStoryBySlugMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoryStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM stories").
		WithArgs("khong-ton-tai").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetStoryBySlug(context.Background(), "khong-ton-tai")
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStoryByIDScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoryStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT (.+) FROM stories").
		WithArgs("story-uuid").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "slug", "title", "author", "description", "genres", "status",
			"total_chapters", "cover_url", "source_url", "created_at", "updated_at",
		}).AddRow(
			"story-uuid", "tien-nghich", "Tiên Nghịch", "Nhĩ Căn", "",
			[]string{"Tiên Hiệp"}, "completed", 2089, "", "https://truyenfull.vision/tien-nghich/",
			now, now,
		))

	story, err := store.GetStoryByID(context.Background(), "story-uuid")
	require.NoError(t, err)
	require.Equal(t, "tien-nghich", story.Slug)
	require.Equal(t, archive.StoryCompleted, story.Status)
	require.Equal(t, 2089, story.TotalChapters)
	require.NoError(t, mock.ExpectationsWereMet())
}
