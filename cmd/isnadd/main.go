// Command isnadd is the Isnad relay auth daemon. It serves the agent
// verification endpoints and a Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	"github.com/harbormesh/isnad"
	"github.com/harbormesh/isnad/internal"
	"github.com/harbormesh/isnad/lib/httpapi"
	"github.com/harbormesh/isnad/lib/oracle"
	"github.com/harbormesh/isnad/lib/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bind          = flag.String("bind", ":8923", "network address to bind the auth API to")
	metricsBind   = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	slogLevel     = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	challengeTTL  = flag.Duration("challenge-ttl", isnad.DefaultChallengeTTL, "how long a pending challenge stays solvable")
	tokenTTL      = flag.Duration("token-ttl", isnad.DefaultTokenTTL, "how long a verified-agent token stays valid")
	sweepInterval = flag.Duration("sweep-interval", session.DefaultSweepInterval, "how often expired challenges and tokens are purged")
	oracleMethod  = flag.String("oracle", "builtin", "which registered challenge oracle to use")
	policyFname   = flag.String("policy-fname", "", "full path to an acceptance policy YAML document (defaults to the built-in policy)")
	versionFlag   = flag.Bool("version", false, "print the version and exit")
)

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("isnadd", isnad.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if err := run(); err != nil {
		slog.Error("daemon failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orc, err := buildOracle()
	if err != nil {
		return err
	}

	store, err := session.New(session.Options{
		Oracle:        orc,
		ChallengeTTL:  *challengeTTL,
		TokenTTL:      *tokenTTL,
		SweepInterval: *sweepInterval,
	})
	if err != nil {
		return err
	}
	store.StartSweeper(ctx)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		slog.Debug("starting metrics server", "bind", *metricsBind)
		if err := http.ListenAndServe(*metricsBind, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:     *bind,
		Handler:  httpapi.New(store).Handler(),
		ErrorLog: internal.GetFilteredHTTPLogger(),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("can't shut down cleanly", "err", err)
		}
	}()

	slog.Info("isnadd is ready",
		"version", isnad.Version,
		"bind", *bind,
		"metrics_bind", *metricsBind,
		"oracle", *oracleMethod,
		"challenge_ttl", challengeTTL.String(),
		"token_ttl", tokenTTL.String())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func buildOracle() (oracle.Interface, error) {
	if *policyFname != "" {
		policy, err := oracle.LoadPolicyFile(*policyFname)
		if err != nil {
			return nil, err
		}
		return oracle.NewBuiltin(policy), nil
	}

	orc, ok := oracle.Get(*oracleMethod)
	if !ok {
		return nil, fmt.Errorf("unknown oracle %q, have: %v", *oracleMethod, oracle.Methods())
	}

	return orc, nil
}
