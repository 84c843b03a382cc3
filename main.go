package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/biscuit/pkg/audit"
	"github.com/certen/biscuit/pkg/authorizer"
	"github.com/certen/biscuit/pkg/chain"
	"github.com/certen/biscuit/pkg/config"
	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/metrics"
	"github.com/certen/biscuit/pkg/revocation"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// multiFlag collects repeated -fact flags.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))

	var (
		tokenPath   = flag.String("token", "", "path to an encoded biscuit token")
		rootPubHex  = flag.String("root-pubkey", "", "hex-encoded Ed25519 root public key")
		showHelp    = flag.Bool("help", false, "show help message")
		allowPolicy = flag.Bool("allow-all", false, "append a catch-all allow policy (for smoke testing)")
	)
	var facts multiFlag
	flag.Var(&facts, "fact", "authorizer-side fact as name:arg1,arg2 (repeatable)")
	flag.Parse()

	if *showHelp || *tokenPath == "" || *rootPubHex == "" {
		printHelp()
		if *showHelp {
			return
		}
		os.Exit(2)
	}

	logger.Info("loading configuration")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsCollector *metrics.Collector
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(registry)
		if err != nil {
			log.Fatalf("create metrics collector: %v", err)
		}
		metricsCollector = collector

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var revocationStore revocation.Store
	if cfg.RevocationKVDir != "" || cfg.RevocationDatabaseURL != "" {
		var cache *revocation.KVStore
		if cfg.RevocationKVDir != "" {
			db, err := dbm.NewGoLevelDB("revocation", cfg.RevocationKVDir)
			if err != nil {
				logger.Error("open revocation cache, running without it", "err", err)
			} else {
				cache = revocation.NewKVStore(db, revocation.WithKVLogger(logger.With("module", "revocation-cache")))
				defer db.Close()
			}
		}
		if cfg.RevocationDatabaseURL != "" {
			durable, err := revocation.NewPGStore(ctx, revocation.PGConfig{
				DatabaseURL:  cfg.RevocationDatabaseURL,
				MaxOpenConns: cfg.RevocationMaxOpenConns,
				MaxIdleConns: cfg.RevocationMaxIdleConns,
				ConnMaxLife:  cfg.RevocationConnMaxLife,
			}, revocation.WithPGLogger(logger.With("module", "revocation-store")))
			if err != nil {
				logger.Error("connect revocation store, running without durable persistence", "err", err)
				if cache != nil {
					revocationStore = cache
				}
			} else {
				defer durable.Close()
				if cache != nil {
					revocationStore = revocation.NewLayered(cache, durable)
				} else {
					revocationStore = durable
				}
			}
		} else if cache != nil {
			revocationStore = cache
		}
	}

	var observers []authorizer.Observer
	if metricsCollector != nil {
		observers = append(observers, metricsCollector)
	}
	if cfg.AuditEnabled {
		sink, err := audit.NewSink(ctx, audit.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentials,
			Collection:      cfg.AuditCollection,
			Enabled:         true,
			Logger:          log.New(log.Writer(), "[audit] ", log.LstdFlags),
		})
		if err != nil {
			logger.Error("initialize audit sink, continuing without it", "err", err)
		} else {
			defer sink.Close()
			observers = append(observers, sink)
		}
	}

	limits := datalog.DefaultRunLimits()
	if cfg.LimitsFilePath != "" {
		lf, err := authorizer.LoadLimitsFile(cfg.LimitsFilePath)
		if err != nil {
			log.Fatalf("load limits file: %v", err)
		}
		limits, err = lf.RunLimits(cfg.LimitsProfile)
		if err != nil {
			log.Fatalf("resolve limits profile %q: %v", cfg.LimitsProfile, err)
		}
	}

	tokenBytes, err := os.ReadFile(*tokenPath)
	if err != nil {
		log.Fatalf("read token: %v", err)
	}
	tok, err := chain.DecodeToken(tokenBytes)
	if err != nil {
		log.Fatalf("decode token: %v", err)
	}

	rootBytes, err := hex.DecodeString(*rootPubHex)
	if err != nil {
		log.Fatalf("decode root public key: %v", err)
	}
	rootKey := symbol.Key{Algorithm: symbol.AlgorithmEd25519, Bytes: rootBytes}

	if err := tok.Verify(rootKey); err != nil {
		log.Fatalf("token verification failed: %v", err)
	}
	logger.Info("token verified", "blocks", tok.BlockCount())

	if revocationStore != nil {
		for _, id := range tok.RevocationIDs() {
			revoked, err := revocationStore.Contains(id)
			if err != nil {
				logger.Error("revocation lookup failed", "err", err)
				continue
			}
			if revoked {
				log.Fatalf("token rejected: block revoked (id %s)", hex.EncodeToString(id))
			}
		}
	}

	opts := []authorizer.Option{authorizer.WithLogger(logger.With("module", "authorizer"))}
	for _, obs := range observers {
		opts = append(opts, authorizer.WithObserver(obs))
	}
	az := authorizer.New(limits, opts...)
	if err := az.LoadToken(tok, rootKey); err != nil {
		log.Fatalf("load token into authorizer: %v", err)
	}

	for _, raw := range facts {
		pred, err := parseFact(az, raw)
		if err != nil {
			log.Fatalf("parse fact %q: %v", raw, err)
		}
		if err := az.AddFact(pred); err != nil {
			log.Fatalf("add fact %q: %v", raw, err)
		}
	}

	if *allowPolicy {
		trueExpr := term.Expression{term.PushValue(term.Bool(true))}
		az.AddPolicy(datalog.Policy{
			Kind: datalog.PolicyAllow,
			Queries: []datalog.Rule{{
				Head:        term.Predicate{Name: az.Symbols().Insert("ok")},
				Expressions: []term.Expression{trueExpr},
			}},
		})
	}

	result, err := az.Authorize()
	cancel() // stop the metrics server goroutine before exiting
	if err != nil {
		fmt.Printf("DENIED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ALLOWED: policy %d (run %s)\n", result.PolicyIndex, result.RunID)
}

// parseFact parses "name:arg1,arg2" into a string-valued predicate
// interned against az's symbol table.
func parseFact(az *authorizer.Authorizer, raw string) (term.Predicate, error) {
	name, argsPart, ok := strings.Cut(raw, ":")
	if !ok {
		return term.Predicate{}, fmt.Errorf("expected name:arg1,arg2")
	}
	pred := term.Predicate{Name: az.Symbols().Insert(name)}
	if argsPart != "" {
		for _, arg := range strings.Split(argsPart, ",") {
			pred.Terms = append(pred.Terms, term.String(az.Symbols().Insert(arg)))
		}
	}
	return pred, nil
}

func printHelp() {
	fmt.Println("biscuit-authorize — verify and authorize a biscuit token")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  biscuit-authorize -token FILE -root-pubkey HEX [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -token FILE          encoded biscuit token to load")
	fmt.Println("  -root-pubkey HEX     hex-encoded Ed25519 root public key")
	fmt.Println("  -fact name:a,b       authorizer-side fact, repeatable")
	fmt.Println("  -allow-all           append a catch-all allow policy")
	fmt.Println("  -help                show this help message")
	fmt.Println()
	fmt.Println("Optional ambient services (pkg/config): revocation store,")
	fmt.Println("audit sink, and a Prometheus /metrics listener, each enabled")
	fmt.Println("through environment variables; see pkg/config.Load.")
}
