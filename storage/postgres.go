package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"propertyguru-scraper/models"
	"propertyguru-scraper/utils"
)

// PostgresStore persists listings in PostgreSQL behind the Store interface.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection, waits for the server to become
// reachable, runs schema migration, and returns a ready store.
func NewPostgresStore(dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                       BIGSERIAL PRIMARY KEY,
			external_id              VARCHAR(255) NOT NULL,
			selling_type             VARCHAR(8)   NOT NULL,
			unit_type                VARCHAR(16)  NOT NULL,
			title                    VARCHAR(255) NOT NULL,
			address                  VARCHAR(255),
			listing_url              TEXT         NOT NULL,
			availability             TEXT,
			project_year             INT,
			closest_mrt              VARCHAR(255),
			distance_to_closest_mrt  INT,
			is_verified_listing      BOOLEAN,
			is_everyone_welcomed     BOOLEAN,
			listed_date              DATE,
			agent_name               VARCHAR(255),
			agent_rating             DOUBLE PRECISION,
			selling_price            NUMERIC(12,2),
			selling_price_text       VARCHAR(255),
			description              TEXT,
			property_category        VARCHAR(16),
			property_category_text   VARCHAR(255),
			tenure                   VARCHAR(16),
			tenure_text              VARCHAR(255),
			bedroom_count            INT,
			bathroom_count           INT,
			furnishing               VARCHAR(32),
			floor_size_sqft          INT,
			land_size_sqft           INT,
			psf_floor                NUMERIC(12,2),
			psf_land                 NUMERIC(12,2),
			raw_details_text         TEXT,
			raw_amenities_text       TEXT,
			raw_facilities_text      TEXT,
			details_fetched          BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at               TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at               TIMESTAMPTZ,
			updated_fields           TEXT,
			updated_old_values       TEXT,
			CONSTRAINT unique_listing UNIQUE (external_id, selling_type, unit_type)
		);

		CREATE INDEX IF NOT EXISTS idx_listings_details_fetched ON listings(details_fetched);
		CREATE INDEX IF NOT EXISTS idx_listings_listed_date     ON listings(listed_date);
	`)
	return err
}

const listingColumns = `
	id, external_id, selling_type, unit_type, title, address, listing_url,
	availability, project_year, closest_mrt, distance_to_closest_mrt,
	is_verified_listing, is_everyone_welcomed, listed_date, agent_name,
	agent_rating, selling_price, selling_price_text, description,
	property_category, property_category_text, tenure, tenure_text,
	bedroom_count, bathroom_count, furnishing, floor_size_sqft,
	land_size_sqft, psf_floor, psf_land, raw_details_text,
	raw_amenities_text, raw_facilities_text, details_fetched, created_at,
	updated_at, updated_fields, updated_old_values`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(r rowScanner) (*models.Listing, error) {
	l := &models.Listing{}
	err := r.Scan(
		&l.ID, &l.ExternalID, &l.SellingType, &l.UnitType, &l.Title,
		&l.Address, &l.URL, &l.Availability, &l.ProjectYear, &l.ClosestMRT,
		&l.DistanceToMRT, &l.Verified, &l.EveryoneWelcomed, &l.ListedDate,
		&l.AgentName, &l.AgentRating, &l.SellingPrice, &l.SellingPriceText,
		&l.Description, &l.PropertyCategory, &l.PropertyCategoryText,
		&l.Tenure, &l.TenureText, &l.BedroomCount, &l.BathroomCount,
		&l.Furnishing, &l.FloorSizeSqft, &l.LandSizeSqft, &l.PSFFloor,
		&l.PSFLand, &l.RawDetailsText, &l.RawAmenitiesText,
		&l.RawFacilitiesText, &l.DetailsFetched, &l.CreatedAt, &l.UpdatedAt,
		&l.UpdatedFields, &l.UpdatedOldValues,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

func fetchByKey(q querier, key models.ListingKey) (*models.Listing, error) {
	row := q.QueryRow(`
		SELECT `+listingColumns+`
		FROM listings
		WHERE external_id = $1 AND selling_type = $2 AND unit_type = $3
	`, key.ExternalID, key.SellingType, key.UnitType)

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", key, err)
	}
	return l, nil
}

func insertListing(q querier, l *models.Listing) error {
	err := q.QueryRow(`
		INSERT INTO listings (
			external_id, selling_type, unit_type, title, address, listing_url,
			availability, project_year, closest_mrt, distance_to_closest_mrt,
			is_verified_listing, is_everyone_welcomed, listed_date, agent_name,
			agent_rating, selling_price, selling_price_text, description,
			property_category, property_category_text, tenure, tenure_text,
			bedroom_count, bathroom_count, furnishing, floor_size_sqft,
			land_size_sqft, psf_floor, psf_land, raw_details_text,
			raw_amenities_text, raw_facilities_text, details_fetched,
			updated_at, updated_fields, updated_old_values
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36
		)
		RETURNING id, created_at
	`,
		l.ExternalID, l.SellingType, l.UnitType, l.Title, l.Address, l.URL,
		l.Availability, l.ProjectYear, l.ClosestMRT, l.DistanceToMRT,
		l.Verified, l.EveryoneWelcomed, l.ListedDate, l.AgentName,
		l.AgentRating, l.SellingPrice, l.SellingPriceText, l.Description,
		l.PropertyCategory, l.PropertyCategoryText, l.Tenure, l.TenureText,
		l.BedroomCount, l.BathroomCount, l.Furnishing, l.FloorSizeSqft,
		l.LandSizeSqft, l.PSFFloor, l.PSFLand, l.RawDetailsText,
		l.RawAmenitiesText, l.RawFacilitiesText, l.DetailsFetched,
		l.UpdatedAt, l.UpdatedFields, l.UpdatedOldValues,
	).Scan(&l.ID, &l.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, l.Key())
	}
	if err != nil {
		return fmt.Errorf("postgres: insert %s: %w", l.Key(), err)
	}
	return nil
}

func updateListing(q querier, l *models.Listing) error {
	res, err := q.Exec(`
		UPDATE listings SET
			title = $4, address = $5, listing_url = $6, availability = $7,
			project_year = $8, closest_mrt = $9, distance_to_closest_mrt = $10,
			is_verified_listing = $11, is_everyone_welcomed = $12,
			listed_date = $13, agent_name = $14, agent_rating = $15,
			selling_price = $16, selling_price_text = $17, description = $18,
			property_category = $19, property_category_text = $20,
			tenure = $21, tenure_text = $22, bedroom_count = $23,
			bathroom_count = $24, furnishing = $25, floor_size_sqft = $26,
			land_size_sqft = $27, psf_floor = $28, psf_land = $29,
			raw_details_text = $30, raw_amenities_text = $31,
			raw_facilities_text = $32, details_fetched = $33,
			updated_at = $34, updated_fields = $35, updated_old_values = $36
		WHERE external_id = $1 AND selling_type = $2 AND unit_type = $3
	`,
		l.ExternalID, l.SellingType, l.UnitType, l.Title, l.Address, l.URL,
		l.Availability, l.ProjectYear, l.ClosestMRT, l.DistanceToMRT,
		l.Verified, l.EveryoneWelcomed, l.ListedDate, l.AgentName,
		l.AgentRating, l.SellingPrice, l.SellingPriceText, l.Description,
		l.PropertyCategory, l.PropertyCategoryText, l.Tenure, l.TenureText,
		l.BedroomCount, l.BathroomCount, l.Furnishing, l.FloorSizeSqft,
		l.LandSizeSqft, l.PSFFloor, l.PSFLand, l.RawDetailsText,
		l.RawAmenitiesText, l.RawFacilitiesText, l.DetailsFetched,
		l.UpdatedAt, l.UpdatedFields, l.UpdatedOldValues,
	)
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", l.Key(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("postgres: update %s: %w", l.Key(), ErrNotFound)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) FetchByKey(key models.ListingKey) (*models.Listing, error) {
	return fetchByKey(t.tx, key)
}

func (t *pgTx) Insert(l *models.Listing) error {
	return insertListing(t.tx, l)
}

func (t *pgTx) Update(l *models.Listing) error {
	return updateListing(t.tx, l)
}

// WithTx runs fn inside a transaction scoped to a single reconciliation
// call, committing when fn returns nil and rolling back otherwise.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("[postgres] rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchByKey(ctx context.Context, key models.ListingKey) (*models.Listing, error) {
	return fetchByKey(stdQuerier{ctx: ctx, db: s.db}, key)
}

func (s *PostgresStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()
	return collectListings(rows)
}

func (s *PostgresStore) PendingDetails(ctx context.Context, limit int) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE details_fetched = FALSE`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending details: %w", err)
	}
	defer rows.Close()
	return collectListings(rows)
}

func collectListings(rows *sql.Rows) ([]*models.Listing, error) {
	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// stdQuerier adapts *sql.DB to the querier shape used by the shared
// fetch/insert/update helpers, threading the caller's context.
type stdQuerier struct {
	ctx context.Context
	db  *sql.DB
}

func (q stdQuerier) QueryRow(query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(q.ctx, query, args...)
}

func (q stdQuerier) Query(query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(q.ctx, query, args...)
}

func (q stdQuerier) Exec(query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(q.ctx, query, args...)
}
