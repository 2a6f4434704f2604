package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adportal/internal/config"
	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/pkg/redis"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	areasCacheKey = "areas:catalog"
	areasCacheTTL = time.Hour
	statsCacheKey = "quote_stats"
	statsCacheTTL = 5 * time.Minute
)

type PostgresStorage struct {
	db     *sqlx.DB
	redis  *redis.Client
	logger *zap.Logger
}

var _ quote.Repository = (*PostgresStorage)(nil)

type areaRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Circulation int    `db:"circulation"`
	Households  int    `db:"households"`
}

type priceRow struct {
	AreaID string          `db:"area_id"`
	AdSize string          `db:"ad_size"`
	Price  decimal.Decimal `db:"price"`
}

type quoteRow struct {
	ID        int64           `db:"id"`
	Ref       string          `db:"ref"`
	Source    string          `db:"source"`
	ChatID    int64           `db:"chat_id"`
	Status    string          `db:"status"`
	Product   string          `db:"product"`
	Contact   string          `db:"contact_name"`
	Total     decimal.Decimal `db:"total"`
	Details   []byte          `db:"details"`
	Synced    bool            `db:"synced"`
	BackendID string          `db:"backend_id"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// quoteDetails is the JSONB part of a quote row.
type quoteDetails struct {
	Draft   quote.Draft   `json:"draft"`
	Contact quote.Contact `json:"contact"`
	Price   pricing.Quote `json:"price"`
}

func NewPostgresStorage(ctx context.Context, cfg config.DatabaseConfig, redisClient *redis.Client, logger *zap.Logger) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	var db *sqlx.DB
	var err error

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...")

	err = backoff.RetryNotify(
		func() error {
			db, err = sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			if err = db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, duration time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", duration))
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresStorage{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}, nil
}

// DB exposes the pool for migrations.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Areas returns the active catalog, cached in Redis.
func (s *PostgresStorage) Areas(ctx context.Context) ([]pricing.Area, error) {
	const operation = "storage.Areas"

	var cached []pricing.Area
	if err := s.redis.GetJSON(ctx, areasCacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, redis.ErrNotFound) {
		s.logger.Warn("Area cache read failed", zap.Error(err))
	}

	var rows []areaRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, circulation, households
		FROM areas
		WHERE active = TRUE
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get areas: %w", operation, err)
	}

	var prices []priceRow
	err = s.db.SelectContext(ctx, &prices, `
		SELECT p.area_id, p.ad_size, p.price
		FROM area_prices p
		JOIN areas a ON a.id = p.area_id
		WHERE a.active = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get area prices: %w", operation, err)
	}

	areas := buildAreas(rows, prices)

	if err := s.redis.SetJSON(ctx, areasCacheKey, areas, areasCacheTTL); err != nil {
		s.logger.Warn("Area cache write failed", zap.Error(err))
	}
	return areas, nil
}

func buildAreas(rows []areaRow, prices []priceRow) []pricing.Area {
	byID := make(map[string]map[pricing.AdSize]decimal.Decimal, len(rows))
	for _, p := range prices {
		if byID[p.AreaID] == nil {
			byID[p.AreaID] = make(map[pricing.AdSize]decimal.Decimal)
		}
		byID[p.AreaID][pricing.AdSize(p.AdSize)] = p.Price
	}

	areas := make([]pricing.Area, 0, len(rows))
	for _, r := range rows {
		prices := byID[r.ID]
		if prices == nil {
			prices = map[pricing.AdSize]decimal.Decimal{}
		}
		areas = append(areas, pricing.Area{
			ID:          r.ID,
			Name:        r.Name,
			Circulation: r.Circulation,
			Households:  r.Households,
			Prices:      prices,
		})
	}
	return areas
}

// InvalidateAreas drops the cached catalog after an area or price change.
func (s *PostgresStorage) InvalidateAreas(ctx context.Context) error {
	return s.redis.Del(ctx, areasCacheKey)
}

func (s *PostgresStorage) VouchersByCode(ctx context.Context, codes []string) ([]pricing.Voucher, error) {
	const query = `
		SELECT code, kind, value, max_discount, min_spend, product, stackable,
		       active, valid_from, valid_until, max_uses, used
		FROM vouchers
		WHERE code = ANY($1)
	`

	var vouchers []pricing.Voucher
	if err := s.db.SelectContext(ctx, &vouchers, query, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("failed to get vouchers: %w", err)
	}
	return vouchers, nil
}

func (s *PostgresStorage) CreateQuote(ctx context.Context, q *quote.Quote, redeem []string) error {
	const operation = "storage.CreateQuote"

	details, err := json.Marshal(quoteDetails{Draft: q.Draft, Contact: q.Contact, Price: q.Price})
	if err != nil {
		return fmt.Errorf("%s: marshal details: %w", operation, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", operation, err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(redeem) > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE vouchers
			SET used = used + 1
			WHERE code = ANY($1) AND (max_uses = 0 OR used < max_uses)
		`, pq.Array(redeem))
		if err != nil {
			return fmt.Errorf("%s: redeem vouchers: %w", operation, err)
		}
		if n, err := res.RowsAffected(); err == nil && n < int64(len(redeem)) {
			return quote.ErrVoucherExhausted
		}
	}

	const query = `
		INSERT INTO quotes (
			ref, source, chat_id, status, product, contact_name, total, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowxContext(ctx, query,
		q.Ref,
		q.Source,
		q.ChatID,
		q.Status,
		q.Draft.Product,
		q.Contact.Name,
		q.Price.Total,
		string(details),
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: failed to save quote: %w", operation, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", operation, err)
	}

	// Invalidate statistics cache
	s.dropStats(ctx)
	return nil
}

const quoteColumns = `
	id, ref, source, chat_id, status, product, contact_name, total,
	details, synced, backend_id, created_at, updated_at
`

func (s *PostgresStorage) QuoteByID(ctx context.Context, id int64) (*quote.Quote, error) {
	return s.getQuote(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
}

func (s *PostgresStorage) QuoteByRef(ctx context.Context, ref string) (*quote.Quote, error) {
	return s.getQuote(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE ref = $1`, ref)
}

func (s *PostgresStorage) getQuote(ctx context.Context, query string, arg any) (*quote.Quote, error) {
	var row quoteRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, quote.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return row.toQuote()
}

func (s *PostgresStorage) ListQuotes(ctx context.Context, limit int) ([]quote.Quote, error) {
	return s.listQuotes(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresStorage) UnsyncedQuotes(ctx context.Context, limit int) ([]quote.Quote, error) {
	return s.listQuotes(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE synced = FALSE AND status <> 'cancelled'
		ORDER BY created_at
		LIMIT $1
	`, limit)
}

func (s *PostgresStorage) listQuotes(ctx context.Context, query string, limit int) ([]quote.Quote, error) {
	var rows []quoteRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	quotes := make([]quote.Quote, 0, len(rows))
	for _, row := range rows {
		q, err := row.toQuote()
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, nil
}

func (r quoteRow) toQuote() (*quote.Quote, error) {
	var details quoteDetails
	if err := json.Unmarshal(r.Details, &details); err != nil {
		return nil, fmt.Errorf("quote %d: bad details: %w", r.ID, err)
	}
	return &quote.Quote{
		ID:        r.ID,
		Ref:       r.Ref,
		Source:    quote.Source(r.Source),
		ChatID:    r.ChatID,
		Status:    quote.Status(r.Status),
		Draft:     details.Draft,
		Contact:   details.Contact,
		Price:     details.Price,
		Synced:    r.Synced,
		BackendID: r.BackendID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func (s *PostgresStorage) UpdateQuoteStatus(ctx context.Context, id int64, status quote.Status) error {
	const query = `UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2`

	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update quote status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quote.ErrNotFound
	}

	s.dropStats(ctx)
	return nil
}

func (s *PostgresStorage) MarkSynced(ctx context.Context, id int64, backendID string) error {
	const query = `UPDATE quotes SET synced = TRUE, backend_id = $1, updated_at = NOW() WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, backendID, id); err != nil {
		return fmt.Errorf("failed to mark quote synced: %w", err)
	}
	s.dropStats(ctx)
	return nil
}

func (s *PostgresStorage) dropStats(ctx context.Context) {
	if err := s.redis.Del(ctx, statsCacheKey); err != nil {
		s.logger.Warn("Stats cache invalidation failed", zap.Error(err))
	}
}

func (s *PostgresStorage) Stats(ctx context.Context) (*quote.Stats, error) {
	const operation = "storage.Stats"

	var cached quote.Stats
	if err := s.redis.GetJSON(ctx, statsCacheKey, &cached); err == nil {
		return &cached, nil
	}

	stats := &quote.Stats{StatusCounts: make(map[quote.Status]int)}

	type countValue struct {
		Count int             `db:"count"`
		Value decimal.Decimal `db:"value"`
	}

	periods := []struct {
		where string
		count *int
		value *decimal.Decimal
	}{
		{"TRUE", &stats.TotalQuotes, &stats.TotalValue},
		{"created_at >= CURRENT_DATE", &stats.TodayQuotes, &stats.TodayValue},
		{"created_at >= CURRENT_DATE - INTERVAL '7 days'", &stats.WeekQuotes, &stats.WeekValue},
		{"created_at >= CURRENT_DATE - INTERVAL '30 days'", &stats.MonthQuotes, &stats.MonthValue},
	}
	for _, p := range periods {
		var cv countValue
		err := s.db.GetContext(ctx, &cv, `
			SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS value
			FROM quotes
			WHERE status <> 'cancelled' AND `+p.where)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		*p.count, *p.value = cv.Count, cv.Value
	}

	err := s.db.GetContext(ctx, &stats.BookedValue,
		`SELECT COALESCE(SUM(total), 0) FROM quotes WHERE status = 'booked'`)
	if err != nil {
		return nil, fmt.Errorf("%s: booked value: %w", operation, err)
	}

	err = s.db.GetContext(ctx, &stats.Unsynced,
		`SELECT COUNT(*) FROM quotes WHERE synced = FALSE AND status <> 'cancelled'`)
	if err != nil {
		return nil, fmt.Errorf("%s: unsynced: %w", operation, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM quotes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get status counts: %w", operation, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: failed to scan status count: %w", operation, err)
		}
		stats.StatusCounts[quote.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	if err := s.redis.SetJSON(ctx, statsCacheKey, stats, statsCacheTTL); err != nil {
		s.logger.Warn("Stats cache write failed", zap.Error(err))
	}
	return stats, nil
}

// CheckRateLimit counts one action by subject in a fixed window and reports
// whether the limit is exceeded.
func (s *PostgresStorage) CheckRateLimit(ctx context.Context, subject, action string, limit int64, window time.Duration) (bool, error) {
	return CheckRateLimit(ctx, s.redis, subject, action, limit, window)
}

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

func CheckRateLimit(ctx context.Context, c counter, subject, action string, limit int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", action, subject)

	count, err := c.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set expiry if this is the first increment
	if count == 1 {
		if _, err := c.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count > limit, nil
}
