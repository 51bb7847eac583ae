// Package sqlitevec implements memindex.Index on SQLite with the
// sqlite-vec extension, giving a memory node a durable index that
// survives restarts.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/memindex"
)

// Index is a sqlite-vec backed chunk index. One database file per memory
// node; the vec0 virtual table is created with cosine distance so scores
// match the in-memory driver's ranking.
type Index struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding vector length. Required.
	Dimensions uint
}

// NewIndex opens (or creates) a sqlite-vec index.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids; chunk ids are strings, so a
	// mapping table carries id, text and metadata.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS mem_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS mem_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec memory index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB
// format sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert merges chunks by id. Chunks without an embedding are stored in
// the mapping table only and never participate in search.
func (x *Index) Upsert(ctx context.Context, chunks []memindex.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		if c.Embedding != nil && uint(len(c.Embedding)) != x.dimensions {
			return fmt.Errorf("chunk %s has %d dimensions, index expects %d: %w",
				c.ID, len(c.Embedding), x.dimensions, memindex.ErrDimensionMismatch)
		}

		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %s: %w", c.ID, err)
		}

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM mem_chunks WHERE chunk_id = ?`, c.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE mem_chunks SET text = ?, metadata = ? WHERE rowid = ?`,
				c.Text, string(meta), existingRowID,
			); err != nil {
				return fmt.Errorf("updating chunk %s: %w", c.ID, err)
			}

			// vec0 does not support UPDATE; replace via DELETE + INSERT.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM mem_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for chunk %s: %w", c.ID, err)
			}
			if c.Embedding != nil {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO mem_embeddings(rowid, embedding) VALUES (?, ?)`,
					existingRowID, serializeFloat32(c.Embedding),
				); err != nil {
					return fmt.Errorf("re-inserting embedding for chunk %s: %w", c.ID, err)
				}
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO mem_chunks(chunk_id, text, metadata) VALUES (?, ?, ?)`,
				c.ID, c.Text, string(meta),
			)
			if err != nil {
				return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
			}
			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for chunk %s: %w", c.ID, err)
			}
			if c.Embedding != nil {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO mem_embeddings(rowid, embedding) VALUES (?, ?)`,
					rowID, serializeFloat32(c.Embedding),
				); err != nil {
					return fmt.Errorf("inserting embedding for chunk %s: %w", c.ID, err)
				}
			}
		default:
			return fmt.Errorf("checking for existing chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.logger.Debug("upserted chunks into sqlite-vec index",
		zap.Int("count", len(chunks)),
	)
	return nil
}

// Remove deletes chunks by id.
func (x *Index) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM mem_chunks WHERE chunk_id IN (%s)`, inClause), args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM mem_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM mem_chunks WHERE chunk_id IN (%s)`, inClause), args...,
	); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search runs a KNN query via vec0 MATCH and joins back for chunk content.
// With distance_metric=cosine the reported distance is 1 - similarity.
func (x *Index) Search(ctx context.Context, query []float32, topK int) ([]memindex.Result, error) {
	if topK <= 0 {
		return nil, nil
	}
	if uint(len(query)) != x.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d: %w",
			len(query), x.dimensions, memindex.ErrDimensionMismatch)
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.text,
			c.metadata,
			me.distance
		FROM mem_embeddings me
		INNER JOIN mem_chunks c ON c.rowid = me.rowid
		WHERE me.embedding MATCH ?
			AND me.k = ?
		ORDER BY me.distance
	`, serializeFloat32(query), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []memindex.Result
	for rows.Next() {
		var chunkID, text, metaJSON string
		var distance float64
		if err := rows.Scan(&chunkID, &text, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for chunk %s: %w", chunkID, err)
		}

		results = append(results, memindex.Result{
			Chunk: memindex.Chunk{
				ID:       chunkID,
				Text:     text,
				Metadata: meta,
			},
			Score: 1.0 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mem_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Close releases the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}
