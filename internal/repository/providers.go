package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/provider-directory/internal/entity"
)

// ErrProviderNotFound indicates there is no provider row for the given id.
var ErrProviderNotFound = errors.New("provider not found")

const providersTable = "providers"

var dialect = goqu.Dialect("postgres")

// pgxPool is the subset of *pgxpool.Pool the repository relies on.
type pgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// ProvidersRepository describes persistence operations for directory providers.
type ProvidersRepository interface {
	List(ctx context.Context) ([]entity.Provider, error)
	GetByID(ctx context.Context, id string) (*entity.Provider, error)
	Upsert(ctx context.Context, provider *entity.Provider) error
	BulkUpsert(ctx context.Context, providers []entity.Provider) (BulkUpsertResult, error)
}

// BulkUpsertResult summarises the number of rows inserted or updated.
type BulkUpsertResult struct {
	Inserted int
	Updated  int
	Total    int
}

// PGXProvidersRepository implements ProvidersRepository using pgx and goqu.
type PGXProvidersRepository struct {
	pool pgxPool
}

// NewPGXProvidersRepository wires a pgx backed repository.
func NewPGXProvidersRepository(pool *pgxpool.Pool) *PGXProvidersRepository {
	return &PGXProvidersRepository{pool: pool}
}

var providerColumns = []any{
	"id", "name", "business_name", "description", "category", "sub_category",
	"city", "state", "pincode", "latitude", "longitude",
	"phone", "email", "website",
	"rating_average", "rating_count",
	"is_gst_verified", "is_trust_seal", "is_verified_supplier", "years_in_business",
	"response_rate", "services", "specializations", "tags",
	"price_min", "price_max", "is_premium", "created_at", "updated_at",
}

// List returns every provider in catalogue order.
func (r *PGXProvidersRepository) List(ctx context.Context) ([]entity.Provider, error) {
	query, args, err := dialect.From(providersTable).
		Prepared(true).
		Select(providerColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list providers query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// GetByID fetches a single provider.
func (r *PGXProvidersRepository) GetByID(ctx context.Context, id string) (*entity.Provider, error) {
	query, args, err := dialect.From(providersTable).
		Prepared(true).
		Select(providerColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get provider query: %w", err)
	}

	provider, err := scanProvider(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("fetch provider %q: %w", id, err)
	}
	return provider, nil
}

// Upsert inserts or updates a provider keyed by id.
func (r *PGXProvidersRepository) Upsert(ctx context.Context, provider *entity.Provider) error {
	if provider == nil {
		return fmt.Errorf("provider payload is nil")
	}

	ds, err := upsertDataset(provider)
	if err != nil {
		return err
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert provider query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert provider %q: %w", provider.ID, err)
	}
	return nil
}

// BulkUpsert persists a batch of providers in one transaction.
func (r *PGXProvidersRepository) BulkUpsert(ctx context.Context, providers []entity.Provider) (BulkUpsertResult, error) {
	var result BulkUpsertResult
	if len(providers) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start bulk upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range providers {
		ds, err := upsertDataset(&providers[i])
		if err != nil {
			return result, err
		}
		query, args, err := ds.Returning(goqu.L("(xmax = 0)")).ToSQL()
		if err != nil {
			return result, fmt.Errorf("build bulk upsert query: %w", err)
		}

		var inserted bool
		if err := tx.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
			return result, fmt.Errorf("bulk upsert provider %q: %w", providers[i].ID, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit bulk upsert tx: %w", err)
	}
	return result, nil
}

func upsertDataset(p *entity.Provider) (*goqu.InsertDataset, error) {
	record, err := providerRecord(p)
	if err != nil {
		return nil, err
	}

	update := goqu.Record{"updated_at": goqu.L("NOW()")}
	for column := range record {
		if column == "id" || column == "created_at" || column == "updated_at" {
			continue
		}
		update[column] = goqu.L("EXCLUDED." + column)
	}

	return dialect.Insert(providersTable).
		Prepared(true).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", update)), nil
}

func providerRecord(p *entity.Provider) (goqu.Record, error) {
	services, err := marshalList(p.Services)
	if err != nil {
		return nil, fmt.Errorf("marshal services: %w", err)
	}
	specializations, err := marshalList(p.Specializations)
	if err != nil {
		return nil, fmt.Errorf("marshal specializations: %w", err)
	}
	tags, err := marshalList(p.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	record := goqu.Record{
		"id":                   p.ID,
		"name":                 p.Name,
		"business_name":        p.BusinessName,
		"description":          p.Description,
		"category":             p.Category,
		"sub_category":         p.SubCategory,
		"city":                 p.Location.City,
		"state":                p.Location.State,
		"pincode":              p.Location.Pincode,
		"latitude":             nil,
		"longitude":            nil,
		"phone":                stringOrNil(p.Contact.Phone),
		"email":                stringOrNil(p.Contact.Email),
		"website":              stringOrNil(p.Contact.Website),
		"rating_average":       p.Rating.Average,
		"rating_count":         p.Rating.Count,
		"is_gst_verified":      p.Verification.IsGSTVerified,
		"is_trust_seal":        p.Verification.IsTrustSEAL,
		"is_verified_supplier": p.Verification.IsVerifiedSupplier,
		"years_in_business":    p.Verification.YearsInBusiness,
		"response_rate":        p.ResponseRate,
		"services":             services,
		"specializations":      specializations,
		"tags":                 tags,
		"price_min":            nil,
		"price_max":            nil,
		"is_premium":           p.IsPremium,
		"updated_at":           goqu.L("NOW()"),
	}
	if p.Location.Coordinates != nil {
		record["latitude"] = p.Location.Coordinates.Lat
		record["longitude"] = p.Location.Coordinates.Lng
	}
	if p.PriceRange != nil {
		record["price_min"] = p.PriceRange.Min
		record["price_max"] = p.PriceRange.Max
	}
	if !p.CreatedAt.IsZero() {
		record["created_at"] = p.CreatedAt
	}
	return record, nil
}

func scanProviders(rows pgx.Rows) ([]entity.Provider, error) {
	providers := []entity.Provider{}
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *provider)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return providers, nil
}

func scanProvider(row pgx.Row) (*entity.Provider, error) {
	var (
		p               entity.Provider
		latitude        sql.NullFloat64
		longitude       sql.NullFloat64
		phone           sql.NullString
		email           sql.NullString
		website         sql.NullString
		services        []byte
		specializations []byte
		tags            []byte
		priceMin        sql.NullFloat64
		priceMax        sql.NullFloat64
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.BusinessName,
		&p.Description,
		&p.Category,
		&p.SubCategory,
		&p.Location.City,
		&p.Location.State,
		&p.Location.Pincode,
		&latitude,
		&longitude,
		&phone,
		&email,
		&website,
		&p.Rating.Average,
		&p.Rating.Count,
		&p.Verification.IsGSTVerified,
		&p.Verification.IsTrustSEAL,
		&p.Verification.IsVerifiedSupplier,
		&p.Verification.YearsInBusiness,
		&p.ResponseRate,
		&services,
		&specializations,
		&tags,
		&priceMin,
		&priceMax,
		&p.IsPremium,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan provider: %w", err)
	}

	if latitude.Valid && longitude.Valid {
		p.Location.Coordinates = &entity.Coordinates{Lat: latitude.Float64, Lng: longitude.Float64}
	}
	p.Contact.Phone = phone.String
	p.Contact.Email = email.String
	p.Contact.Website = website.String
	if priceMin.Valid && priceMax.Valid {
		p.PriceRange = &entity.PriceRange{Min: priceMin.Float64, Max: priceMax.Float64}
	}

	if p.Services, err = unmarshalList(services); err != nil {
		return nil, fmt.Errorf("unmarshal services: %w", err)
	}
	if p.Specializations, err = unmarshalList(specializations); err != nil {
		return nil, fmt.Errorf("unmarshal specializations: %w", err)
	}
	if p.Tags, err = unmarshalList(tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	return &p, nil
}

// marshalList encodes a string sequence for a jsonb column.
func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func stringOrNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}
