package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bidhaus/auction-engine/configs"
	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

// Sentinel errors every Service implementation maps its backend errors to.
var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyResolved = errors.New("auction already resolved")
)

// Service represents a service that interacts with the auction record store.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	// USER METHODS
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	GetUserByID(ctx context.Context, id string) (types.User, error)

	// AUCTION METHODS
	CreateAuction(ctx context.Context, auction types.Auction) (types.Auction, error)
	GetAuctionByID(ctx context.Context, auctionID string) (types.Auction, error)
	// ListLiveAuctions returns every auction that has not been resolved yet,
	// regardless of whether its window has opened.
	ListLiveAuctions(ctx context.Context) ([]types.Auction, error)
	// UpdateAuctionState applies a partial update to the mutable auction
	// fields. Setting IsResolved is guarded: resolving an already-resolved
	// auction returns ErrAlreadyResolved and changes nothing.
	UpdateAuctionState(ctx context.Context, auctionID string, upd types.AuctionStateUpdate) error

	// BID METHODS
	AppendBid(ctx context.Context, bid types.Bid) (types.Bid, error)
	// ListBids returns the auction's bids in arrival order.
	ListBids(ctx context.Context, auctionID string) ([]types.Bid, error)
}

type service struct {
	db *sql.DB
}

// New opens a Postgres-backed Service from the configuration. database/sql
// pools connections itself, so callers share one Service per process.
func New(cfg *configs.Config) Service {
	dbConfig := cfg.Database
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.Name,
		dbConfig.SSLMode,
	)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatal("Error opening database connection: ", err)
	}

	return &service{db: db}
}

// NewFromDB wraps an existing connection. Used by integration tests.
func NewFromDB(db *sql.DB) Service {
	return &service{db: db}
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	// Ping the database
	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	// Database is up, add more statistics
	stats["status"] = "up"
	stats["message"] = "It's healthy"

	// Get database stats (like open connections, in use, idle, etc.)
	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Info("Disconnected from database")
	return s.db.Close()
}

func (s *service) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role FROM users WHERE email = $1`, email,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("error getting user by email: %w", err)
	}
	return user, nil
}

func (s *service) GetUserByID(ctx context.Context, id string) (types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("error getting user by id: %w", err)
	}
	return user, nil
}

const auctionColumns = `
	id,
	seller_id,
	item_name,
	description,
	starting_price,
	bid_increment,
	go_live_time,
	duration,
	current_price,
	winner_id,
	is_resolved,
	created_at
`

func (s *service) scanAuction(row interface{ Scan(...any) error }) (types.Auction, error) {
	var (
		auction     types.Auction
		rawDuration []byte
	)
	err := row.Scan(
		&auction.ID,
		&auction.SellerID,
		&auction.ItemName,
		&auction.Description,
		&auction.StartingPrice,
		&auction.BidIncrement,
		&auction.GoLiveTime,
		&rawDuration,
		&auction.CurrentPrice,
		&auction.WinnerID,
		&auction.IsResolved,
		&auction.CreatedAt,
	)
	if err != nil {
		return types.Auction{}, err
	}
	if err := json.Unmarshal(rawDuration, &auction.Duration); err != nil {
		return types.Auction{}, fmt.Errorf("error decoding auction duration: %w", err)
	}
	return auction, nil
}

func (s *service) CreateAuction(ctx context.Context, auction types.Auction) (types.Auction, error) {
	rawDuration, err := json.Marshal(auction.Duration)
	if err != nil {
		return types.Auction{}, fmt.Errorf("error encoding auction duration: %w", err)
	}

	query := `
        INSERT INTO auctions
            (seller_id, item_name, description, starting_price, bid_increment, go_live_time, duration, current_price)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $4)
        RETURNING ` + auctionColumns
	created, err := s.scanAuction(s.db.QueryRowContext(ctx, query,
		auction.SellerID,
		auction.ItemName,
		auction.Description,
		auction.StartingPrice,
		auction.BidIncrement,
		auction.GoLiveTime,
		rawDuration,
	))
	if err != nil {
		return types.Auction{}, fmt.Errorf("error creating auction: %w", err)
	}
	return created, nil
}

func (s *service) GetAuctionByID(ctx context.Context, auctionID string) (types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	auction, err := s.scanAuction(s.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Auction{}, ErrNotFound
	}
	if err != nil {
		return types.Auction{}, fmt.Errorf("error getting auction by id: %w", err)
	}
	return auction, nil
}

func (s *service) ListLiveAuctions(ctx context.Context) ([]types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE NOT is_resolved ORDER BY go_live_time ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing live auctions: %w", err)
	}
	defer rows.Close()

	var auctions []types.Auction
	for rows.Next() {
		auction, err := s.scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over auctions: %w", err)
	}
	return auctions, nil
}

func (s *service) UpdateAuctionState(ctx context.Context, auctionID string, upd types.AuctionStateUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.CurrentPrice != nil {
		add("current_price", *upd.CurrentPrice)
	}
	if upd.WinnerID != nil {
		add("winner_id", *upd.WinnerID)
	}
	resolving := upd.IsResolved != nil && *upd.IsResolved
	if upd.IsResolved != nil {
		add("is_resolved", *upd.IsResolved)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, auctionID)
	query := fmt.Sprintf(`UPDATE auctions SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	if resolving {
		// Resolution happens at most once.
		query += ` AND NOT is_resolved`
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating auction state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading update result: %w", err)
	}
	if n == 0 {
		if !resolving {
			return ErrNotFound
		}
		// Distinguish a missing auction from a lost resolution race.
		var resolved bool
		err := s.db.QueryRowContext(ctx, `SELECT is_resolved FROM auctions WHERE id = $1`, auctionID).Scan(&resolved)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("error checking auction state: %w", err)
		}
		if resolved {
			return ErrAlreadyResolved
		}
		return ErrNotFound
	}

	log.Debugf("Auction %s state updated", auctionID)
	return nil
}

func (s *service) AppendBid(ctx context.Context, bid types.Bid) (types.Bid, error) {
	var created types.Bid
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, auction_id, bidder_id, amount, created_at
    `
	err := s.db.QueryRowContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt,
	).Scan(
		&created.ID,
		&created.AuctionID,
		&created.BidderID,
		&created.Amount,
		&created.CreatedAt,
	)
	if err != nil {
		return types.Bid{}, fmt.Errorf("error appending bid: %w", err)
	}
	return created, nil
}

func (s *service) ListBids(ctx context.Context, auctionID string) ([]types.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY seq ASC
    `
	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("error listing bids: %w", err)
	}
	defer rows.Close()

	var bids []types.Bid
	for rows.Next() {
		var bid types.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning bid: %w", err)
		}
		bids = append(bids, bid)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over bids: %w", err)
	}
	return bids, nil
}
