package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/sivanlv/pharmassist/pharmacy"
)

// collectionRow holds one whole collection as a JSONB document, mirroring
// the file layout: load and replace the full document, no partial updates.
type collectionRow struct {
	bun.BaseModel `bun:"table:collections"`

	Name      string          `bun:"name,pk"`
	Document  json.RawMessage `bun:"document,type:jsonb"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero,default:now()"`
}

type Postgres struct {
	db *bun.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*collectionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("ensure collections table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) LoadMedications(ctx context.Context) ([]pharmacy.Medication, error) {
	return loadCollection[pharmacy.Medication](ctx, p.db, "medications")
}

func (p *Postgres) LoadInventory(ctx context.Context) ([]pharmacy.InventoryRecord, error) {
	return loadCollection[pharmacy.InventoryRecord](ctx, p.db, "inventory")
}

func (p *Postgres) LoadUsers(ctx context.Context) ([]pharmacy.User, error) {
	return loadCollection[pharmacy.User](ctx, p.db, "users")
}

func (p *Postgres) LoadFeedback(ctx context.Context) ([]pharmacy.Feedback, error) {
	return loadCollection[pharmacy.Feedback](ctx, p.db, "feedback")
}

func (p *Postgres) SaveInventory(ctx context.Context, records []pharmacy.InventoryRecord) error {
	return saveCollection(ctx, p.db, "inventory", records)
}

func (p *Postgres) SaveUsers(ctx context.Context, users []pharmacy.User) error {
	return saveCollection(ctx, p.db, "users", users)
}

func (p *Postgres) SaveFeedback(ctx context.Context, entries []pharmacy.Feedback) error {
	return saveCollection(ctx, p.db, "feedback", entries)
}

// SeedMedications writes the immutable reference collection; used by
// bootstrap when the row is missing.
func (p *Postgres) SeedMedications(ctx context.Context, medications []pharmacy.Medication) error {
	return saveCollection(ctx, p.db, "medications", medications)
}

func loadCollection[T any](ctx context.Context, db *bun.DB, name string) ([]T, error) {
	row := new(collectionRow)
	err := db.NewSelect().Model(row).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", name, err)
	}
	var out []T
	if err := json.Unmarshal(row.Document, &out); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return out, nil
}

func saveCollection[T any](ctx context.Context, db *bun.DB, name string, data []T) error {
	if data == nil {
		data = []T{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	row := &collectionRow{
		Name:      name,
		Document:  raw,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = db.NewInsert().
		Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("document = EXCLUDED.document").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save collection %s: %w", name, err)
	}
	return nil
}
