//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"listing_price/internal/domain"
	mysqlrepo "listing_price/internal/storage/mysql"
)

func pint(i int) *int { return &i }

func migrationsDir(t *testing.T) string {
	t.Helper()
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return dir
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=listings"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/listings?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		if db, e = sql.Open("mysql", dsn); e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

func TestRepo_MySQL_UpsertCleanListings(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	rows := []domain.CleanListing{
		{Source: "nyc.csv", Row: 0, Price: 75, Category: pint(0), Columns: []byte(`{"room_type":"Private room"}`)},
		{Source: "nyc.csv", Row: 1, Price: 250, Category: pint(2), Columns: []byte(`{"room_type":"Entire home/apt"}`)},
		{Source: "nyc.csv", Row: 2, Price: 5000, Category: nil},
	}
	if err := repo.UpsertCleanListings(ctx, rows); err != nil {
		t.Fatalf("UpsertCleanListings: %v", err)
	}
	// rerun overwrites by (source, row)
	rows[0].Category = pint(1)
	if err := repo.UpsertCleanListings(ctx, rows); err != nil {
		t.Fatalf("UpsertCleanListings rerun: %v", err)
	}

	n, err := repo.CountCleanListings(ctx)
	if err != nil {
		t.Fatalf("CountCleanListings: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	byCat, err := repo.CountByCategory(ctx)
	if err != nil {
		t.Fatalf("CountByCategory: %v", err)
	}
	if byCat[0] != 0 || byCat[1] != 1 || byCat[2] != 1 {
		t.Fatalf("unexpected distribution %v", byCat)
	}
}
