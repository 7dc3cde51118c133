// Package cli implements the ledgerctl operator commands.
package cli

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tokenart/internal/auth"
	"tokenart/internal/domain"
	"tokenart/internal/infra"
	"tokenart/internal/ledger"
	"tokenart/internal/storage"
)

// Env carries the flags shared by every command and the output streams.
type Env struct {
	// Store holds the store settings. Flags start from the values the API
	// server would read from the environment.
	Store infra.StoreConfig

	Out    io.Writer
	Err    io.Writer
	Logger zerolog.Logger

	scale       int
	goalSetters string
	loadErr     error

	open    func(ctx context.Context) (domain.Store, error)
	printer *message.Printer
}

// NewEnv registers the global flags on fs.
func NewEnv(fs *flag.FlagSet) *Env {
	e := &Env{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Logger:  zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger(),
		printer: message.NewPrinter(language.English),
	}
	e.Store, e.loadErr = infra.LoadStoreConfig()

	fs.StringVar(&e.Store.StoreDriver, "driver", e.Store.StoreDriver, "store driver: sqlite, postgres or memory ($STORE_DRIVER)")
	fs.StringVar(&e.Store.SQLitePath, "sqlite", e.Store.SQLitePath, "SQLite database file ($SQLITE_PATH)")
	fs.StringVar(&e.Store.DatabaseURL, "database-url", e.Store.DatabaseURL, "PostgreSQL connection string ($DATABASE_URL)")
	fs.IntVar(&e.scale, "scale", int(e.Store.DisplayScale), "fractional digits of the display unit ($AMOUNT_DISPLAY_SCALE)")
	fs.StringVar(&e.goalSetters, "goal-setters", strings.Join(e.Store.GoalSetters, ","), "comma separated principals allowed to set goals, empty for anyone ($GOAL_SETTERS)")
	return e
}

// Register adds every ledgerctl command to c.
func (e *Env) Register(c *subcommands.Commander) {
	c.Register(&keygenCmd{env: e}, "identity")
	c.Register(&tokenCmd{env: e}, "identity")

	c.Register(&contributeCmd{env: e}, "ledger")
	c.Register(&setGoalCmd{env: e}, "ledger")

	c.Register(&totalCmd{env: e}, "queries")
	c.Register(&lastInvestorCmd{env: e}, "queries")
	c.Register(&goalCmd{env: e}, "queries")
	c.Register(&fundedCmd{env: e}, "queries")
	c.Register(&summaryCmd{env: e}, "queries")
	c.Register(&historyCmd{env: e}, "queries")
	c.Register(&exportCmd{env: e}, "queries")
}

// storeConfig applies the flags to the environment settings and validates
// the result the same way the API server does.
func (e *Env) storeConfig() (infra.StoreConfig, error) {
	if e.loadErr != nil {
		return infra.StoreConfig{}, e.loadErr
	}
	if e.scale < 0 || e.scale > infra.MaxDisplayScale {
		return infra.StoreConfig{}, fmt.Errorf("-scale must be between 0 and %d", infra.MaxDisplayScale)
	}
	sc := e.Store
	sc.DisplayScale = int32(e.scale)
	sc.GoalSetters = strings.Split(e.goalSetters, ",")
	if err := sc.Normalize(); err != nil {
		return infra.StoreConfig{}, err
	}
	return sc, nil
}

// service opens the store and returns a ledger bound to authz. The returned
// func closes the store.
func (e *Env) service(ctx context.Context, authz domain.Authorizer) (*ledger.Service, func(), error) {
	sc, err := e.storeConfig()
	if err != nil {
		return nil, nil, err
	}
	var store domain.Store
	if e.open != nil {
		store, err = e.open(ctx)
	} else {
		store, err = storage.Open(ctx, sc, e.Logger)
	}
	if err != nil {
		return nil, nil, err
	}
	setters := make([]domain.Principal, 0, len(sc.GoalSetters))
	for _, p := range sc.GoalSetters {
		setters = append(setters, domain.Principal(p))
	}
	svc := ledger.New(store, authz,
		ledger.WithGoalSetters(setters...),
		ledger.WithLogger(e.Logger),
	)
	return svc, func() { _ = store.Close() }, nil
}

func (e *Env) displayScale() int32 {
	return int32(e.scale)
}

// amount renders v with digit grouping followed by its display form.
func (e *Env) amount(v domain.Amount) string {
	return e.printer.Sprintf("%d stroops (%s)", uint64(v), v.Display(e.displayScale()))
}

func (e *Env) printf(format string, args ...any) {
	e.printer.Fprintf(e.Out, format, args...)
}

func (e *Env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func (e *Env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, format+"\n", args...)
	return subcommands.ExitUsageError
}

// parseAmount reads raw as stroops, or as major units when major is set.
func (e *Env) parseAmount(raw string, major bool) (domain.Amount, error) {
	if major {
		if _, err := e.storeConfig(); err != nil {
			return 0, err
		}
		return domain.ParseAmount(raw, e.displayScale())
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(raw, "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a whole number of stroops", raw)
	}
	return domain.Amount(v), nil
}

// keyOracle authorizes the principal of the wallet key at path. An empty
// path authorizes nobody.
func keyOracle(path string) (auth.StaticOracle, ed25519.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return auth.StaticOracle{}, nil, nil
	}
	priv, err := auth.LoadKey(path)
	if err != nil {
		return auth.StaticOracle{}, nil, fmt.Errorf("load wallet key: %w", err)
	}
	return auth.StaticOracle{Principal: auth.PrincipalOf(priv.Public().(ed25519.PublicKey))}, priv, nil
}
