package db

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/NedPK/ai-retrieval-audit/internal/config"
)

// Document is one ingested source file.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID     int64  `bun:"id,pk,autoincrement" json:"id"`
	Source string `bun:"source,notnull" json:"source"`
}

// Chunk is one embedded span of a document. Score is filled only by
// similarity queries.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	DocumentID int64     `bun:"document_id,notnull" json:"document_id"`
	ChunkIndex int       `bun:"chunk_index,notnull" json:"chunk_index"`
	Content    string    `bun:"content,notnull" json:"content"`
	Embedding  []float32 `bun:"embedding,notnull,type:vector(1536)" json:"-"`
	Score      float64   `bun:"score,scanonly" json:"score"`
}

// Connect opens the underlying connection. A configured password routes
// through the pgdriver connector; otherwise the DSN is handed to lib/pq
// unchanged so standard postgres:// URLs keep working.
func Connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL
	if !strings.Contains(dsn, "?") {
		dsn += "?sslmode=disable"
	}
	if cfg.Password != "" {
		return sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithPassword(cfg.Password),
		)), nil
	}
	return sql.Open("postgres", dsn)
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitSchema creates the document store tables when missing. Audit tables
// are provisioned by audit.Store.InitTables.
func InitSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Document)(nil), (*Chunk)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Healthcheck verifies connectivity with a round trip.
func Healthcheck(ctx context.Context, db *bun.DB) error {
	var one int
	return db.NewRaw("SELECT 1").Scan(ctx, &one)
}
