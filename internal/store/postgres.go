package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/efreitasn/bidengine/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL      string
	MinConns int
	MaxConns int
}

// Connect creates a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresStore is a Repository backed by Postgres. Version checks are
// enforced by the UPDATE's WHERE clause; the ledger append and the auction
// update share one transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return domain.StorageError("migrate", err)
	}
	return nil
}

const auctionColumns = `auction_id, seller_id, title, currency, starting_price, current_price,
	bid_increment, reserve_price, start_time, end_time, state, leading_bidder_id,
	leading_bid_id, bid_count, anti_sniping, extensions, version, created_at, closed_at`

const bidColumns = `b.bid_id, b.auction_id, b.bidder_id, b.submitted_amount, b.is_proxy,
	b.resulting_price, b.accepted_at, b.sequence, b.outcome, a.currency`

func (s *PostgresStore) CreateAuction(ctx context.Context, a *domain.Auction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO auctions (`+auctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		a.AuctionID, a.SellerID, a.Title, a.StartingPrice.Currency,
		a.StartingPrice.Amount, a.CurrentPrice.Amount, a.BidIncrement.Amount, a.ReservePrice.Amount,
		a.StartTime, a.EndTime, string(a.State), a.LeadingBidderID, a.LeadingBidID,
		a.BidCount, a.AntiSniping, a.Extensions, a.Version, a.CreatedAt, a.ClosedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAuctionAlreadyExists
		}
		return domain.StorageError("create auction", err)
	}
	return nil
}

func (s *PostgresStore) LoadAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE auction_id = $1`, auctionID)
	a, err := scanAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, domain.StorageError("load auction", err)
	}
	return a, nil
}

func (s *PostgresStore) LoadLeadingBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	var leadingBidID string
	err := s.db.QueryRow(ctx, `SELECT leading_bid_id FROM auctions WHERE auction_id = $1`, auctionID).Scan(&leadingBidID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, domain.StorageError("load leading bid", err)
	}
	if leadingBidID == "" {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bids b JOIN auctions a ON a.auction_id = b.auction_id
		WHERE b.bid_id = $1`, leadingBidID)
	if err != nil {
		return nil, domain.StorageError("load leading bid", err)
	}
	bids, err := collectBids(rows)
	if err != nil {
		return nil, domain.StorageError("load leading bid", err)
	}
	if len(bids) == 0 {
		return nil, nil
	}
	return bids[0], nil
}

func (s *PostgresStore) AppendBidAndUpdateAuction(ctx context.Context, auctionID string, expectedVersion int64, bid *domain.Bid, updated *domain.Auction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.StorageError("begin", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := updateAuction(ctx, tx, auctionID, expectedVersion, updated); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bids (bid_id, auction_id, bidder_id, submitted_amount, is_proxy,
			resulting_price, accepted_at, sequence, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		bid.BidID, auctionID, bid.BidderID, bid.SubmittedAmount.Amount, bid.IsProxy,
		bid.ResultingPrice.Amount, bid.AcceptedAt, bid.Sequence, string(bid.Outcome),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrVersionConflict
		}
		return domain.StorageError("append bid", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit", err)
	}
	updated.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) UpdateAuction(ctx context.Context, auctionID string, expectedVersion int64, updated *domain.Auction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.StorageError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := updateAuction(ctx, tx, auctionID, expectedVersion, updated); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit", err)
	}
	updated.Version = expectedVersion + 1
	return nil
}

// updateAuction performs the version-checked write. Zero affected rows
// means either the version moved or the auction does not exist.
func updateAuction(ctx context.Context, tx pgx.Tx, auctionID string, expectedVersion int64, a *domain.Auction) error {
	tag, err := tx.Exec(ctx, `
		UPDATE auctions SET
			current_price = $3, end_time = $4, state = $5, leading_bidder_id = $6,
			leading_bid_id = $7, bid_count = $8, extensions = $9, closed_at = $10,
			start_time = $11, version = version + 1
		WHERE auction_id = $1 AND version = $2`,
		auctionID, expectedVersion, a.CurrentPrice.Amount, a.EndTime, string(a.State),
		a.LeadingBidderID, a.LeadingBidID, a.BidCount, a.Extensions, a.ClosedAt, a.StartTime,
	)
	if err != nil {
		return domain.StorageError("update auction", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE auction_id = $1)`, auctionID).Scan(&exists); err != nil {
		return domain.StorageError("update auction", err)
	}
	if !exists {
		return domain.ErrAuctionNotFound
	}
	return domain.ErrVersionConflict
}

func (s *PostgresStore) ListActiveAuctionsPastEndTime(ctx context.Context, now time.Time) ([]string, error) {
	return s.listIDs(ctx, `
		SELECT auction_id FROM auctions
		WHERE state = $1 AND end_time <= $2
		ORDER BY end_time, auction_id`, domain.AuctionStateActive, now)
}

func (s *PostgresStore) ListScheduledAuctionsPastStartTime(ctx context.Context, now time.Time) ([]string, error) {
	return s.listIDs(ctx, `
		SELECT auction_id FROM auctions
		WHERE state = $1 AND start_time <= $2
		ORDER BY start_time, auction_id`, domain.AuctionStateScheduled, now)
}

func (s *PostgresStore) listIDs(ctx context.Context, query string, state domain.AuctionState, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, query, string(state), now)
	if err != nil {
		return nil, domain.StorageError("list auctions", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.StorageError("list auctions", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *PostgresStore) ListAuctions(ctx context.Context, state *domain.AuctionState, page, limit int) ([]*domain.Auction, int, error) {
	var filter any
	if state != nil {
		filter = string(*state)
	}

	var total int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM auctions WHERE $1::text IS NULL OR state = $1`, filter).Scan(&total)
	if err != nil {
		return nil, 0, domain.StorageError("count auctions", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE $1::text IS NULL OR state = $1
		ORDER BY created_at DESC, auction_id DESC
		LIMIT $2 OFFSET $3`, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, domain.StorageError("list auctions", err)
	}
	defer rows.Close()

	auctions := make([]*domain.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, 0, domain.StorageError("list auctions", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.StorageError("list auctions", err)
	}
	return auctions, total, nil
}

func (s *PostgresStore) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE auction_id = $1)`, auctionID).Scan(&exists); err != nil {
		return nil, domain.StorageError("list bids", err)
	}
	if !exists {
		return nil, domain.ErrAuctionNotFound
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bids b JOIN auctions a ON a.auction_id = b.auction_id
		WHERE b.auction_id = $1
		ORDER BY b.sequence`, auctionID)
	if err != nil {
		return nil, domain.StorageError("list bids", err)
	}
	bids, err := collectBids(rows)
	if err != nil {
		return nil, domain.StorageError("list bids", err)
	}
	return bids, nil
}

func (s *PostgresStore) ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bids b JOIN auctions a ON a.auction_id = b.auction_id
		WHERE b.bidder_id = $1
		ORDER BY b.accepted_at DESC, b.sequence DESC`, bidderID)
	if err != nil {
		return nil, domain.StorageError("list bidder bids", err)
	}
	bids, err := collectBids(rows)
	if err != nil {
		return nil, domain.StorageError("list bidder bids", err)
	}
	return bids, nil
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var (
		a        domain.Auction
		currency string
		state    string
	)
	err := row.Scan(
		&a.AuctionID, &a.SellerID, &a.Title, &currency,
		&a.StartingPrice.Amount, &a.CurrentPrice.Amount, &a.BidIncrement.Amount, &a.ReservePrice.Amount,
		&a.StartTime, &a.EndTime, &state, &a.LeadingBidderID, &a.LeadingBidID,
		&a.BidCount, &a.AntiSniping, &a.Extensions, &a.Version, &a.CreatedAt, &a.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	a.State = domain.AuctionState(state)
	a.StartingPrice.Currency = currency
	a.CurrentPrice.Currency = currency
	a.BidIncrement.Currency = currency
	a.ReservePrice.Currency = currency
	return &a, nil
}

func collectBids(rows pgx.Rows) ([]*domain.Bid, error) {
	defer rows.Close()

	bids := make([]*domain.Bid, 0)
	for rows.Next() {
		var (
			b        domain.Bid
			outcome  string
			currency string
		)
		err := rows.Scan(
			&b.BidID, &b.AuctionID, &b.BidderID, &b.SubmittedAmount.Amount, &b.IsProxy,
			&b.ResultingPrice.Amount, &b.AcceptedAt, &b.Sequence, &outcome, &currency,
		)
		if err != nil {
			return nil, err
		}
		b.Outcome = domain.BidOutcome(outcome)
		b.SubmittedAmount.Currency = currency
		b.ResultingPrice.Currency = currency
		bids = append(bids, &b)
	}
	return bids, rows.Err()
}
