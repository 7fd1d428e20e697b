// Package seed loads the sample music catalog into any supported database
// through versioned up/down scripts.
package seed

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/querybot/querybot/internal/database"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const versionTable = "querybot_seed_versions"

var scriptNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

type Runner struct {
	fsys    fs.FS
	dialect database.Dialect
}

func NewRunner(dialect database.Dialect) *Runner {
	return &Runner{fsys: embeddedFS, dialect: dialect}
}

type script struct {
	Version int64
	Up      []string
	Down    []string
}

// Up applies pending scripts in version order. steps <= 0 applies all of them.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	scripts, err := loadScripts(r.fsys)
	if err != nil {
		return 0, err
	}
	if err := r.ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	applied, err := listAppliedVersions(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}

	appliedSet := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		appliedSet[version] = struct{}{}
	}

	runCount := 0
	for _, item := range scripts {
		if _, ok := appliedSet[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		mark := `INSERT INTO ` + versionTable + ` (version) VALUES (` + r.dialect.Placeholder(1) + `)`
		if err := runInTx(ctx, db, item.Up, mark, item.Version); err != nil {
			return runCount, fmt.Errorf("apply seed %d: %w", item.Version, err)
		}
		runCount++
	}
	return runCount, nil
}

// Down reverts the most recently applied scripts. steps <= 0 reverts one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	scripts, err := loadScripts(r.fsys)
	if err != nil {
		return 0, err
	}
	if err := r.ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	applied, err := listAppliedVersions(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}

	lookup := make(map[int64]script, len(scripts))
	for _, item := range scripts {
		lookup[item.Version] = item
	}

	runCount := 0
	for _, version := range applied {
		if runCount >= steps {
			break
		}
		item, ok := lookup[version]
		if !ok {
			return runCount, fmt.Errorf("applied seed %d is missing from source", version)
		}
		unmark := `DELETE FROM ` + versionTable + ` WHERE version = ` + r.dialect.Placeholder(1)
		if err := runInTx(ctx, db, item.Down, unmark, item.Version); err != nil {
			return runCount, fmt.Errorf("revert seed %d: %w", item.Version, err)
		}
		runCount++
	}
	return runCount, nil
}

func (r *Runner) ensureVersionTable(ctx context.Context, db *sql.DB) error {
	create := `CREATE TABLE IF NOT EXISTS ` + versionTable + ` (version BIGINT NOT NULL PRIMARY KEY)`
	if r.dialect.Name == database.DriverSQLServer {
		create = `IF OBJECT_ID(N'` + versionTable + `', N'U') IS NULL CREATE TABLE ` + versionTable + ` (version BIGINT NOT NULL PRIMARY KEY)`
	}
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("ensure seed version table: %w", err)
	}
	return nil
}

func runInTx(ctx context.Context, db *sql.DB, statements []string, bookkeeping string, version int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func listAppliedVersions(ctx context.Context, db *sql.DB, order string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+versionTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func loadScripts(fsys fs.FS) ([]script, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}

	items := map[int64]script{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := scriptNamePattern.FindStringSubmatch(base)
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse seed version for %q: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read seed %q: %w", entry.Name(), err)
		}

		item := items[version]
		item.Version = version
		switch matches[2] {
		case "up":
			item.Up = splitStatements(string(raw))
		case "down":
			item.Down = splitStatements(string(raw))
		}
		items[version] = item
	}

	versions := make([]int64, 0, len(items))
	for version := range items {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	scripts := make([]script, 0, len(versions))
	for _, version := range versions {
		item := items[version]
		if len(item.Up) == 0 {
			return nil, fmt.Errorf("seed %d missing up SQL", version)
		}
		if len(item.Down) == 0 {
			return nil, fmt.Errorf("seed %d missing down SQL", version)
		}
		scripts = append(scripts, item)
	}
	return scripts, nil
}

// splitStatements splits a script on semicolons outside single-quoted
// literals and drops empty statements.
func splitStatements(raw string) []string {
	var statements []string
	var current strings.Builder
	inQuote := false
	for _, r := range raw {
		switch {
		case r == '\'':
			inQuote = !inQuote
			current.WriteRune(r)
		case r == ';' && !inQuote:
			if statement := strings.TrimSpace(current.String()); statement != "" {
				statements = append(statements, statement)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if statement := strings.TrimSpace(current.String()); statement != "" {
		statements = append(statements, statement)
	}
	return statements
}
