package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/loanbook/store"
	"github.com/xraph/loanbook/store/memory"
	"github.com/xraph/loanbook/store/mongo"
	"github.com/xraph/loanbook/store/postgres"
	"github.com/xraph/loanbook/store/sqlite"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSQLite   backend = "sqlite"
	backendPostgres backend = "postgres"
	backendMongo    backend = "mongo"
)

const sqliteBusyPragma = "_pragma=busy_timeout(5000)"

// parseDSN picks the store backend for dsn and returns the connection string
// its driver expects. An empty dsn or "memory" selects the in-memory store.
func parseDSN(dsn string) (backend, string, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return backendMemory, "", nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return backendSQLite, sqliteDSN("file:" + strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "file:"):
		return backendSQLite, sqliteDSN(dsn), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return backendPostgres, dsn, nil
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return backendMongo, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported -db %q: want memory, sqlite://, file:, postgres:// or mongodb://", dsn)
	}
}

// sqliteDSN adds a busy timeout unless the caller already chose pragmas.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyPragma
	}
	return dsn + "?" + sqliteBusyPragma
}

// openStore connects the backend named by dsn. The ledger migrates it on
// Start and closes it on Stop.
func openStore(ctx context.Context, dsn string, poolSize int) (store.Store, backend, error) {
	kind, conn, err := parseDSN(dsn)
	if err != nil {
		return nil, "", err
	}

	var opts []driver.Option
	if poolSize > 0 {
		opts = append(opts, driver.WithPoolSize(poolSize))
	}

	switch kind {
	case backendSQLite:
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, conn, opts...); err != nil {
			return nil, kind, err
		}
		db, err := grove.Open(drv)
		if err != nil {
			_ = drv.Close()
			return nil, kind, err
		}
		return sqlite.New(db), kind, nil

	case backendPostgres:
		drv := pgdriver.New()
		if err := drv.Open(ctx, conn, opts...); err != nil {
			return nil, kind, err
		}
		db, err := grove.Open(drv)
		if err != nil {
			_ = drv.Close()
			return nil, kind, err
		}
		return postgres.New(db), kind, nil

	case backendMongo:
		drv := mongodriver.New()
		if err := drv.Open(ctx, conn); err != nil {
			return nil, kind, err
		}
		db, err := grove.Open(drv)
		if err != nil {
			_ = drv.Close()
			return nil, kind, err
		}
		return mongo.New(db), kind, nil

	default:
		return memory.New(), kind, nil
	}
}
