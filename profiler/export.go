package profiler

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const exportBatchSize = 1000

// Row is one exported count set.
type Row struct {
	bun.BaseModel `bun:"table:profile_counts"`

	Address          uint32 `bun:",pk"`
	Area             string `bun:",notnull"`
	InstructionFetch uint64
	InstrFetchMiss   uint64
	DataReadAccess   uint64
	DataReadMiss     uint64
	DataWriteAccess  uint64
	DataWriteMiss    uint64
	Cycles           uint64
}

// Counts returns the row as a CountSet.
func (r *Row) Counts() CountSet {
	return CountSet{
		InstructionFetch: r.InstructionFetch,
		InstrFetchMiss:   r.InstrFetchMiss,
		DataReadAccess:   r.DataReadAccess,
		DataReadMiss:     r.DataReadMiss,
		DataWriteAccess:  r.DataWriteAccess,
		DataWriteMiss:    r.DataWriteMiss,
		Cycles:           r.Cycles,
	}
}

func newRow(e Entry) Row {
	return Row{
		Address:          e.Address,
		Area:             e.Area.String(),
		InstructionFetch: e.Counts.InstructionFetch,
		InstrFetchMiss:   e.Counts.InstrFetchMiss,
		DataReadAccess:   e.Counts.DataReadAccess,
		DataReadMiss:     e.Counts.DataReadMiss,
		DataWriteAccess:  e.Counts.DataWriteAccess,
		DataWriteMiss:    e.Counts.DataWriteMiss,
		Cycles:           e.Counts.Cycles,
	}
}

// OpenDB opens a SQLite database for profile export. With debug set every
// query is logged.
func OpenDB(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithEnabled(true),
		))
	}

	return db, nil
}

// Export replaces the profile_counts table with the non-zero count sets of
// p. It returns the number of rows written.
func (p *Profiler) Export(ctx context.Context, db *bun.DB) (int, error) {
	_, err := db.NewCreateTable().
		Model((*Row)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("creating profile table: %w", err)
	}

	entries := p.Entries()

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Row)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clearing profile table: %w", err)
		}

		for start := 0; start < len(entries); start += exportBatchSize {
			end := min(start+exportBatchSize, len(entries))
			rows := make([]Row, 0, end-start)
			for _, e := range entries[start:end] {
				rows = append(rows, newRow(e))
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("inserting profile rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(entries), nil
}

// Top returns the n exported rows with the most cycles.
func Top(ctx context.Context, db *bun.DB, n int) ([]Row, error) {
	var rows []Row
	err := db.NewSelect().
		Model(&rows).
		OrderExpr("cycles DESC, address ASC").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying top rows: %w", err)
	}
	return rows, nil
}
