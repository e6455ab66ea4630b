// Command hranad runs a standalone Hrana server backed by a single SQLite
// database file (or an in-memory database when -db is omitted).
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/libsql/libsql-extended/hrana"
	"github.com/libsql/libsql-extended/hrana/auth"
	"github.com/libsql/libsql-extended/hrana/exec/sqliteexec"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:8080", "address to listen on")
		dsn         = flag.String("db", ":memory:", "SQLite data source name")
		jwtKey      = flag.String("jwt-key", "", "HMAC key used to verify bearer tokens; auth is disabled when empty")
		maxStreams  = flag.Int("max-streams", 16, "maximum concurrently open streams per connection")
		maxInFlight = flag.Int("max-inflight", 64, "maximum in-flight requests per connection")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	executor, err := sqliteexec.Open(*dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err, "dsn", *dsn)
		os.Exit(1)
	}
	defer executor.Close()

	options := []hrana.OptionFn{
		hrana.WithLogger(logger),
		hrana.WithExecutor(executor),
		hrana.WithMaxStreamsPerConn(*maxStreams),
		hrana.WithMaxInFlightRequests(*maxInFlight),
		hrana.WithHandshakeTimeout(10 * time.Second),
	}

	if *jwtKey != "" {
		options = append(options, hrana.WithAuth(auth.JWT(auth.StaticKey([]byte(*jwtKey)), jwt.WithValidMethods([]string{"HS256"}))))
	}

	server, err := hrana.NewServer(options...)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	logger.Info("hrana server is up and running", "addr", *addr, "db", *dsn)
	if err := server.ListenAndServe(*addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
