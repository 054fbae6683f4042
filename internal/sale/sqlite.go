package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists state in a SQLite database: one header row plus one
// row per minting address.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore creates or opens the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Immediate transactions take the write lock up front, so a commit's
	// sequence check and its writes see no other writer in between.
	db, err := sql.Open("sqlite", path+"?_txlock=immediate&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sale_header (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		early_root TEXT NOT NULL,
		general_root TEXT NOT NULL,
		phase INTEGER NOT NULL,
		paused INTEGER NOT NULL,
		early_issued INTEGER NOT NULL,
		total_supply INTEGER NOT NULL,
		proceeds_wei TEXT NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS mint_records (
		address TEXT PRIMARY KEY,
		early_minted INTEGER NOT NULL DEFAULT 0,
		general_count INTEGER NOT NULL DEFAULT 0,
		open_count INTEGER NOT NULL DEFAULT 0,
		granted_count INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Databases created before seq existed get the column added.
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('sale_header') WHERE name = 'seq'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = s.db.ExecContext(ctx, `ALTER TABLE sale_header ADD COLUMN seq INTEGER NOT NULL DEFAULT 0`)
	}
	return err
}

// Load returns the stored state, or nil if the header row was never written.
func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	var (
		earlyRoot, generalRoot, proceeds string
		phase                            uint8
		paused                           bool
		earlyIssued, totalSupply, seq    int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT early_root, general_root, phase, paused, early_issued, total_supply, proceeds_wei, seq
		FROM sale_header WHERE id = 1`).
		Scan(&earlyRoot, &generalRoot, &phase, &paused, &earlyIssued, &totalSupply, &proceeds, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	p := Phase(phase)
	if !p.Valid() {
		return nil, fmt.Errorf("stored phase %d is invalid", phase)
	}
	amount, err := uint256.FromDecimal(proceeds)
	if err != nil {
		return nil, fmt.Errorf("stored proceeds %q: %w", proceeds, err)
	}

	st := &State{
		Header: Header{
			EarlyRoot:   common.HexToHash(earlyRoot),
			GeneralRoot: common.HexToHash(generalRoot),
			Phase:       p,
			Paused:      paused,
			EarlyIssued: uint64(earlyIssued),
			TotalSupply: uint64(totalSupply),
			Proceeds:    amount,
			Seq:         uint64(seq),
		},
		Records: make(map[common.Address]*Record),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT address, early_minted, general_count, open_count, granted_count
		FROM mint_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			addr                   string
			early                  bool
			general, open, granted int64
		)
		if err := rows.Scan(&addr, &early, &general, &open, &granted); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		a := common.HexToAddress(addr)
		st.Records[a] = &Record{
			Address:     a,
			EarlyMinted: early,
			General:     uint64(general),
			Open:        uint64(open),
			Granted:     uint64(granted),
		}
	}
	return st, rows.Err()
}

// Apply writes the header and the touched record in one transaction, after
// checking the stored sequence number inside it.
func (s *SQLiteStore) Apply(ctx context.Context, c Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM sale_header WHERE id = 1`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read seq: %w", err)
	}
	if err := checkSeq(uint64(stored), c); err != nil {
		return err
	}

	h := c.Header
	proceeds := "0"
	if h.Proceeds != nil {
		proceeds = h.Proceeds.Dec()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sale_header (id, early_root, general_root, phase, paused, early_issued, total_supply, proceeds_wei, seq)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			early_root = excluded.early_root,
			general_root = excluded.general_root,
			phase = excluded.phase,
			paused = excluded.paused,
			early_issued = excluded.early_issued,
			total_supply = excluded.total_supply,
			proceeds_wei = excluded.proceeds_wei,
			seq = excluded.seq`,
		h.EarlyRoot.Hex(), h.GeneralRoot.Hex(), uint8(h.Phase), h.Paused,
		int64(h.EarlyIssued), int64(h.TotalSupply), proceeds, int64(h.Seq))
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if r := c.Record; r != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mint_records (address, early_minted, general_count, open_count, granted_count)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET
				early_minted = excluded.early_minted,
				general_count = excluded.general_count,
				open_count = excluded.open_count,
				granted_count = excluded.granted_count`,
			r.Address.Hex(), r.EarlyMinted, int64(r.General), int64(r.Open), int64(r.Granted))
		if err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return tx.Commit()
}
