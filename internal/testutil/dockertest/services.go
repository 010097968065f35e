package dockertest

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Redis is a redis:7 server on 127.0.0.1:6390. LSBIBLE_TEST_REDIS_ADDR
// points tests at an existing server instead.
var Redis = &Container{
	Name:          "go-lsbible-redis-test",
	Image:         "redis:7-alpine",
	ImageEnv:      "LSBIBLE_TEST_REDIS_IMAGE",
	External:      "LSBIBLE_TEST_REDIS_ADDR",
	HostPort:      "6390",
	ContainerPort: "6379",
	Ready:         pingRedis,
	ReadyTimeout:  10 * time.Second,
}

const (
	pgUser     = "lsbible"
	pgPassword = "secret"
	pgDatabase = "lsbible_test"
)

// Postgres is a postgres:16 server on 127.0.0.1:55432. Connect with
// PostgresDSN rather than Addr.
var Postgres = &Container{
	Name:          "go-lsbible-postgres-test",
	Image:         "postgres:16-alpine",
	ImageEnv:      "LSBIBLE_TEST_POSTGRES_IMAGE",
	External:      "LSBIBLE_TEST_POSTGRES_DSN",
	HostPort:      "55432",
	ContainerPort: "5432",
	Env: []string{
		"POSTGRES_USER=" + pgUser,
		"POSTGRES_PASSWORD=" + pgPassword,
		"POSTGRES_DB=" + pgDatabase,
	},
}

// Ready is assigned in init because it refers back to Postgres through
// PostgresDSN, which a package-level initializer cannot do.
func init() {
	Postgres.Ready = func(ctx context.Context, _ string) error { return pingPostgres(ctx, PostgresDSN()) }
}

// PostgresDSN is the lib/pq connection string for Postgres.
// LSBIBLE_TEST_POSTGRES_DSN replaces it and skips the container.
func PostgresDSN() string {
	if dsn := os.Getenv("LSBIBLE_TEST_POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, Postgres.Addr(), pgDatabase)
}

func pingRedis(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if _, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "+PONG") {
		return fmt.Errorf("unexpected PING reply %q", strings.TrimSpace(line))
	}
	return nil
}

func pingPostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
