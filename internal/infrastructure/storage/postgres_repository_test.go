package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
)

var (
	itemRowColumns   = []string{"id", "origin_id", "source_name", "title", "raw_text", "short_description", "published_at", "scraped_at", "metadata"}
	digestRowColumns = []string{"id", "item_id", "title", "summary", "url", "source_name", "created_at"}
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func sampleItem() domain.CandidateItem {
	return domain.CandidateItem{
		OriginID:         "https://blog.test/a",
		SourceName:       "OpenAI Blog",
		Title:            "Post A",
		ShortDescription: "AI news",
		PublishedAt:      time.Date(2025, time.December, 8, 10, 0, 0, 0, time.UTC),
		Metadata:         map[string]string{"category": "Research"},
	}
}

func TestPostgresRepository_IngestItem_Created(t *testing.T) {
	repo, mock := newMockRepo(t)
	item := sampleItem()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO items (origin_id,source_name,title,raw_text,short_description,published_at,metadata)")).
		WithArgs(item.OriginID, item.SourceName, item.Title, "", "AI news", item.PublishedAt, []byte(`{"category":"Research"}`)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	outcome, err := repo.IngestItem(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_IngestItem_DuplicateMapsToAlreadyExists(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO items")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	outcome, err := repo.IngestItem(context.Background(), sampleItem())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyExists, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_IngestItem_OtherErrorsPropagate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO items")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.IngestItem(context.Background(), sampleItem())
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ItemsBySource(t *testing.T) {
	repo, mock := newMockRepo(t)
	published := time.Date(2025, time.December, 8, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE source_name = $1 ORDER BY published_at DESC, id DESC LIMIT 5")).
		WithArgs("OpenAI Blog").
		WillReturnRows(pgxmock.NewRows(itemRowColumns).
			AddRow(int64(7), "https://blog.test/a", "OpenAI Blog", "Post A", "", "AI news", published, published, []byte(`{"category":"Research"}`)))

	items, err := repo.ItemsBySource(context.Background(), "OpenAI Blog", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, "Research", items[0].Metadata["category"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RecentItemsWithoutLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Date(2025, time.December, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE published_at >= $1 ORDER BY published_at DESC, id DESC")).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows(itemRowColumns))

	items, err := repo.RecentItems(context.Background(), since, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CountBySource(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM items WHERE source_name = $1")).
		WithArgs("YouTube").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountBySource(context.Background(), "YouTube")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DigestExists(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM digests WHERE item_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.DigestExists(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveDigest(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, time.December, 9, 13, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO digests (item_id,title,summary,url)")).
		WithArgs(int64(7), "Title", "Summary.", "https://blog.test/a").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), created))

	saved, outcome, err := repo.SaveDigest(context.Background(), domain.DigestEntry{
		SourceItemID: 7, Title: "Title", Summary: "Summary.", URL: "https://blog.test/a",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, outcome)
	assert.Equal(t, int64(3), saved.ID)
	assert.Equal(t, created, saved.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveDigestDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO digests")).
		WithArgs(int64(7), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, outcome, err := repo.SaveDigest(context.Background(), domain.DigestEntry{SourceItemID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyExists, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveDigestUnknownItem(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO digests")).
		WithArgs(int64(42), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	_, outcome, err := repo.SaveDigest(context.Background(), domain.DigestEntry{SourceItemID: 42})
	require.ErrorIs(t, err, ErrUnknownItem)
	assert.Empty(t, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DigestByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, time.December, 9, 13, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM digests d JOIN items i ON i.id = d.item_id WHERE d.id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(digestRowColumns).
			AddRow(int64(3), int64(7), "Title", "Summary.", "https://blog.test/a", "OpenAI Blog", created))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows(digestRowColumns))

	entry, found, err := repo.DigestByID(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "OpenAI Blog", entry.SourceName)
	assert.Equal(t, int64(7), entry.SourceItemID)

	_, found, err = repo.DigestByID(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RecentDigests(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Date(2025, time.December, 7, 13, 30, 0, 0, time.UTC)
	created := since.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.created_at >= $1 ORDER BY d.created_at DESC, d.id DESC LIMIT 25")).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows(digestRowColumns).
			AddRow(int64(2), int64(5), "B", "b.", "https://b", "YouTube", created).
			AddRow(int64(1), int64(4), "A", "a.", "https://a", "OpenAI Blog", created.Add(-time.Hour)))

	entries, err := repo.RecentDigests(context.Background(), since, 25)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for range schema {
		mock.ExpectExec("CREATE (TABLE|INDEX) IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, Migrate(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilDatabase(t *testing.T) {
	repo := NewPostgresRepository(nil)

	_, err := repo.IngestItem(context.Background(), sampleItem())
	require.Error(t, err)
	_, err = repo.AllDigests(context.Background(), 0)
	require.Error(t, err)
}
