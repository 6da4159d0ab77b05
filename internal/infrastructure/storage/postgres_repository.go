package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// ErrUnknownItem is returned when a digest references an item the store does not hold.
var ErrUnknownItem = errors.New("digest references unknown item")

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	itemColumns = []string{
		"id", "origin_id", "source_name", "title", "raw_text",
		"short_description", "published_at", "scraped_at", "metadata",
	}
	digestColumns = []string{
		"d.id", "d.item_id", "d.title", "d.summary", "d.url", "i.source_name", "d.created_at",
	}
)

// PostgresRepository persists items and digests into Postgres.
type PostgresRepository struct {
	db DB
}

var _ ports.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a pgx pool (or any compatible executor).
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IngestItem inserts the item; a unique violation on origin_id means it already exists.
func (r *PostgresRepository) IngestItem(ctx context.Context, item domain.CandidateItem) (domain.IngestOutcome, error) {
	if r.db == nil {
		return "", errors.New("database connection not available")
	}

	metadata, err := encodeMetadata(item.Metadata)
	if err != nil {
		return "", err
	}

	query, args, err := psql.Insert("items").
		Columns("origin_id", "source_name", "title", "raw_text", "short_description", "published_at", "metadata").
		Values(item.OriginID, item.SourceName, item.Title, item.RawText, item.ShortDescription, item.PublishedAt.UTC(), metadata).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert item: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return domain.OutcomeAlreadyExists, nil
		}
		return "", fmt.Errorf("insert item %s: %w", item.OriginID, err)
	}
	return domain.OutcomeCreated, nil
}

// ItemsBySource returns items of one source, newest first. A non-positive limit means no limit.
func (r *PostgresRepository) ItemsBySource(ctx context.Context, source string, limit int) ([]domain.CandidateItem, error) {
	return r.selectItems(ctx, psql.Select(itemColumns...).From("items").Where(sq.Eq{"source_name": source}), limit)
}

// RecentItems returns items published at or after since, newest first.
func (r *PostgresRepository) RecentItems(ctx context.Context, since time.Time, limit int) ([]domain.CandidateItem, error) {
	return r.selectItems(ctx, psql.Select(itemColumns...).From("items").Where(sq.GtOrEq{"published_at": since.UTC()}), limit)
}

// AllItems returns every stored item, newest first.
func (r *PostgresRepository) AllItems(ctx context.Context, limit int) ([]domain.CandidateItem, error) {
	return r.selectItems(ctx, psql.Select(itemColumns...).From("items"), limit)
}

// CountBySource counts stored items of one source.
func (r *PostgresRepository) CountBySource(ctx context.Context, source string) (int, error) {
	if r.db == nil {
		return 0, errors.New("database connection not available")
	}

	query, args, err := psql.Select("COUNT(*)").From("items").Where(sq.Eq{"source_name": source}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items of %s: %w", source, err)
	}
	return count, nil
}

// DigestExists reports whether a digest was already produced for the item.
func (r *PostgresRepository) DigestExists(ctx context.Context, itemID int64) (bool, error) {
	if r.db == nil {
		return false, errors.New("database connection not available")
	}

	query, args, err := psql.Select("1").From("digests").Where(sq.Eq{"item_id": itemID}).
		Prefix("SELECT EXISTS(").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build digest exists: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("digest exists for item %d: %w", itemID, err)
	}
	return exists, nil
}

// SaveDigest stores a digest; a unique violation on item_id maps to already-exists.
func (r *PostgresRepository) SaveDigest(ctx context.Context, entry domain.DigestEntry) (domain.DigestEntry, domain.IngestOutcome, error) {
	if r.db == nil {
		return entry, "", errors.New("database connection not available")
	}

	query, args, err := psql.Insert("digests").
		Columns("item_id", "title", "summary", "url").
		Values(entry.SourceItemID, entry.Title, entry.Summary, entry.URL).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return entry, "", fmt.Errorf("build insert digest: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return entry, domain.OutcomeAlreadyExists, nil
		}
		if hasCode(err, foreignKeyViolation) {
			return entry, "", fmt.Errorf("insert digest for item %d: %w", entry.SourceItemID, ErrUnknownItem)
		}
		return entry, "", fmt.Errorf("insert digest for item %d: %w", entry.SourceItemID, err)
	}
	return entry, domain.OutcomeCreated, nil
}

// DigestByID loads one digest joined with its item's source name.
func (r *PostgresRepository) DigestByID(ctx context.Context, id int64) (domain.DigestEntry, bool, error) {
	if r.db == nil {
		return domain.DigestEntry{}, false, errors.New("database connection not available")
	}

	query, args, err := digestSelect().Where(sq.Eq{"d.id": id}).ToSql()
	if err != nil {
		return domain.DigestEntry{}, false, fmt.Errorf("build digest by id: %w", err)
	}

	entry, err := scanDigest(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DigestEntry{}, false, nil
	}
	if err != nil {
		return domain.DigestEntry{}, false, fmt.Errorf("digest %d: %w", id, err)
	}
	return entry, true, nil
}

// RecentDigests returns digests created at or after since, newest first.
func (r *PostgresRepository) RecentDigests(ctx context.Context, since time.Time, limit int) ([]domain.DigestEntry, error) {
	return r.selectDigests(ctx, digestSelect().Where(sq.GtOrEq{"d.created_at": since.UTC()}), limit)
}

// AllDigests returns every digest, newest first.
func (r *PostgresRepository) AllDigests(ctx context.Context, limit int) ([]domain.DigestEntry, error) {
	return r.selectDigests(ctx, digestSelect(), limit)
}

func (r *PostgresRepository) selectItems(ctx context.Context, builder sq.SelectBuilder, limit int) ([]domain.CandidateItem, error) {
	if r.db == nil {
		return nil, errors.New("database connection not available")
	}

	builder = builder.OrderBy("published_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CandidateItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) selectDigests(ctx context.Context, builder sq.SelectBuilder, limit int) ([]domain.DigestEntry, error) {
	if r.db == nil {
		return nil, errors.New("database connection not available")
	}

	builder = builder.OrderBy("d.created_at DESC", "d.id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build digest query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.DigestEntry, 0)
	for rows.Next() {
		entry, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

func digestSelect() sq.SelectBuilder {
	return psql.Select(digestColumns...).From("digests d").Join("items i ON i.id = d.item_id")
}

func scanItem(row pgx.Row) (domain.CandidateItem, error) {
	var (
		item     domain.CandidateItem
		metadata []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.OriginID,
		&item.SourceName,
		&item.Title,
		&item.RawText,
		&item.ShortDescription,
		&item.PublishedAt,
		&item.ScrapedAt,
		&metadata,
	); err != nil {
		return item, fmt.Errorf("scan item: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return item, fmt.Errorf("decode metadata of item %d: %w", item.ID, err)
		}
	}
	return item, nil
}

func scanDigest(row pgx.Row) (domain.DigestEntry, error) {
	var entry domain.DigestEntry
	err := row.Scan(
		&entry.ID,
		&entry.SourceItemID,
		&entry.Title,
		&entry.Summary,
		&entry.URL,
		&entry.SourceName,
		&entry.CreatedAt,
	)
	return entry, err
}

func encodeMetadata(meta map[string]string) ([]byte, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return encoded, nil
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
