// Package migrations embeds and applies the SQL schema for both storage
// backends. Migration files are idempotent and applied in lexical order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	chstore "token-replay-lab/internal/storage/clickhouse"
	"token-replay-lab/internal/storage/postgres"
)

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// RunPostgresMigrations applies all embedded PostgreSQL migrations.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, name := range files.names {
		if _, err := pool.Exec(ctx, files.byName[name]); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// RunClickhouseMigrations ensures the target database exists and applies all
// embedded ClickHouse migrations. Returns a connection to the target
// database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	files, err := readMigrations(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, err
	}

	for _, name := range files.names {
		// The driver does not support multiquery Exec; statements are split
		// on semicolons. Migration files must not put semicolons inside
		// string literals.
		for _, stmt := range splitStatements(files.byName[name]) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
	}
	return conn, nil
}

type migrationSet struct {
	names  []string
	byName map[string]string
}

func readMigrations(fsys fs.FS, dir string) (*migrationSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	set := &migrationSet{byName: make(map[string]string)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		set.names = append(set.names, entry.Name())
		set.byName[entry.Name()] = string(data)
	}
	sort.Strings(set.names)
	return set, nil
}

// splitStatements splits SQL content on semicolons, dropping -- comment
// lines and blank statements.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
