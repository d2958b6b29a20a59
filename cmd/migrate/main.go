package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"virtual_trader/pkg/db"
)

const (
	defaultConfigName = ".migrate"
	versionsTable     = `CREATE TABLE IF NOT EXISTS vt_schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
)

// migration: файл NNNN_name.up.sql и парный .down.sql.
type migration struct {
	version string
	up      string
	down    string
}

func loadMigrations(dir string) ([]migration, error) {
	ups, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, errors.Wrap(err, "glob migrations")
	}
	sort.Strings(ups)

	out := make([]migration, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(filepath.Base(up), ".up.sql")
		out = append(out, migration{
			version: version,
			up:      up,
			down:    strings.TrimSuffix(up, ".up.sql") + ".down.sql",
		})
	}
	return out, nil
}

func applied(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	if _, err := pool.Exec(ctx, versionsTable); err != nil {
		return nil, errors.Wrap(err, "create versions table")
	}
	rows, err := pool.Query(ctx, `SELECT version FROM vt_schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "select versions")
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan version")
		}
		out[v] = true
	}
	return out, errors.Wrap(rows.Err(), "read versions")
}

func exec(ctx context.Context, pool *pgxpool.Pool, file, record string, version string) error {
	sql, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "read "+file)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, string(sql)); err != nil {
		return errors.Wrap(err, "exec "+file)
	}
	if _, err = tx.Exec(ctx, record, version); err != nil {
		return errors.Wrap(err, "record version")
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func up(ctx context.Context, pool *pgxpool.Pool, list []migration) error {
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}
	for _, m := range list {
		if done[m.version] {
			continue
		}
		if err := exec(ctx, pool, m.up, `INSERT INTO vt_schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return err
		}
		fmt.Printf("%s applied\n", m.version)
	}
	return nil
}

// down откатывает последнюю применённую миграцию.
func down(ctx context.Context, pool *pgxpool.Pool, list []migration) error {
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if !done[m.version] {
			continue
		}
		if err := exec(ctx, pool, m.down, `DELETE FROM vt_schema_migrations WHERE version = $1`, m.version); err != nil {
			return err
		}
		fmt.Printf("%s rolled back\n", m.version)
		return nil
	}
	fmt.Println("nothing to roll back")
	return nil
}

func main() {
	viper.SetConfigName(defaultConfigName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetDefault("dir", "migrations")
	viper.SetDefault("timeout", "60s")
	viper.AutomaticEnv()
	_ = viper.BindEnv("dsn", "DATABASE_DSN")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	dsn := viper.GetString("dsn")
	if dsn == "" {
		panic("has no dsn: set DATABASE_DSN or dsn in .migrate.yaml")
	}

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
	defer cancel()

	list, err := loadMigrations(viper.GetString("dir"))
	if err != nil {
		panic(err)
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		panic(fmt.Errorf("connect: %w", err))
	}
	defer pool.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	start := time.Now()
	switch cmd {
	case "up":
		err = up(ctx, pool, list)
	case "down":
		err = down(ctx, pool, list)
	default:
		err = errors.Errorf("unknown command %q, want up or down", cmd)
	}
	if err != nil {
		panic(err)
	}
	fmt.Printf("done in %s\n", time.Since(start).Round(time.Millisecond))
}
