package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/subcommands"

	"tokenart/internal/auth"
	"tokenart/internal/domain"
	"tokenart/internal/storage"
	"tokenart/pkg/zip"
)

// keygenCmd creates (or shows) a wallet key.
type keygenCmd struct {
	env *Env
	key string
}

func (*keygenCmd) Name() string     { return "keygen" }
func (*keygenCmd) Synopsis() string { return "create a wallet key and print its principal" }
func (*keygenCmd) Usage() string {
	return `ledgerctl keygen [-key <file>]

  Creates an ed25519 wallet key if the file does not exist and prints the
  principal (hex public key) it authorizes.
`
}

func (c *keygenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.key, "key", "wallet.pem", "wallet key file")
}

func (c *keygenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	priv, created, err := auth.LoadOrCreateKey(c.key)
	if err != nil {
		return c.env.fail(err)
	}
	state := "existing"
	if created {
		state = "new"
	}
	c.env.printf("%s key %s\nprincipal: %s\n", state, c.key, auth.PrincipalOf(priv.Public().(ed25519.PublicKey)))
	return subcommands.ExitSuccess
}

// tokenCmd issues a bearer token for the API.
type tokenCmd struct {
	env     *Env
	key     string
	subject string
	secret  string
	issuer  string
	ttl     time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API bearer token" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token (-key <file> | -sub <principal>) [-secret <s>] [-issuer <iss>] [-ttl <d>]

  Prints an HS256 token whose subject is the given principal.
`
}

// tokenDefaults are the token settings of the API server.
type tokenDefaults struct {
	Secret string        `env:"JWT_SECRET"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"tokenart"`
	TTL    time.Duration `env:"JWT_TTL"    envDefault:"1h"`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	def := tokenDefaults{Issuer: "tokenart", TTL: time.Hour}
	if err := env.Parse(&def); err != nil {
		c.env.Logger.Warn().Err(err).Msg("ignoring malformed token settings in the environment")
	}
	f.StringVar(&c.key, "key", "", "wallet key file whose principal becomes the subject")
	f.StringVar(&c.subject, "sub", "", "explicit subject principal")
	f.StringVar(&c.secret, "secret", def.Secret, "signing secret ($JWT_SECRET)")
	f.StringVar(&c.issuer, "issuer", def.Issuer, "token issuer ($JWT_ISSUER)")
	f.DurationVar(&c.ttl, "ttl", def.TTL, "token lifetime ($JWT_TTL)")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	subject := domain.Principal(c.subject)
	if c.key != "" {
		oracle, _, err := keyOracle(c.key)
		if err != nil {
			return c.env.fail(err)
		}
		subject = oracle.Principal
	}
	if subject == "" {
		return c.env.usage("either -key or -sub is required")
	}
	token, err := auth.SignToken(auth.TokenConfig{Secret: c.secret, Issuer: c.issuer, TTL: c.ttl}, subject)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintln(c.env.Out, token)
	return subcommands.ExitSuccess
}

// contributeCmd records a contribution signed by a wallet key.
type contributeCmd struct {
	env   *Env
	key   string
	major bool
}

func (*contributeCmd) Name() string     { return "contribute" }
func (*contributeCmd) Synopsis() string { return "record a contribution to a target" }
func (*contributeCmd) Usage() string {
	return `ledgerctl contribute -key <file> [-major] <target> <amount>

  Records <amount> toward <target> on behalf of the key's principal. Amounts
  are stroops unless -major is given.
`
}

func (c *contributeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.key, "key", "wallet.pem", "wallet key file of the contributor")
	f.BoolVar(&c.major, "major", false, "amount is in major units (for example 1.5)")
}

func (c *contributeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.env.usage("usage: %s", c.Usage())
	}
	target := domain.ParseTargetID(f.Arg(0))
	amount, err := c.env.parseAmount(f.Arg(1), c.major)
	if err != nil {
		return c.env.usage("%v", err)
	}
	oracle, _, err := keyOracle(c.key)
	if err != nil {
		return c.env.fail(err)
	}

	svc, done, err := c.env.service(ctx, oracle)
	if err != nil {
		return c.env.fail(err)
	}
	defer done()

	if err := svc.RecordContribution(ctx, target, oracle.Principal, amount); err != nil {
		return c.env.fail(err)
	}
	sum, err := svc.Summary(ctx, target)
	if err != nil {
		return c.env.fail(err)
	}
	c.env.printf("recorded %s from %s\n", c.env.amount(amount), oracle.Principal)
	printSummary(c.env, sum)
	return subcommands.ExitSuccess
}

// setGoalCmd sets the write-once funding goal.
type setGoalCmd struct {
	env   *Env
	key   string
	major bool
}

func (*setGoalCmd) Name() string     { return "set-goal" }
func (*setGoalCmd) Synopsis() string { return "set the funding goal of a target (once)" }
func (*setGoalCmd) Usage() string {
	return `ledgerctl set-goal [-key <file>] [-major] <target> <amount>

  Sets the funding goal unless one exists. When goal setters are configured,
  -key must hold one of their keys.
`
}

func (c *setGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.key, "key", "", "wallet key file of the goal setter")
	f.BoolVar(&c.major, "major", false, "amount is in major units")
}

func (c *setGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.env.usage("usage: %s", c.Usage())
	}
	target := domain.ParseTargetID(f.Arg(0))
	goal, err := c.env.parseAmount(f.Arg(1), c.major)
	if err != nil {
		return c.env.usage("%v", err)
	}
	oracle, _, err := keyOracle(c.key)
	if err != nil {
		return c.env.fail(err)
	}

	svc, done, err := c.env.service(ctx, oracle)
	if err != nil {
		return c.env.fail(err)
	}
	defer done()

	if err := svc.SetFundingGoal(ctx, target, goal); err != nil {
		return c.env.fail(err)
	}
	stored, _, err := svc.FundingGoal(ctx, target)
	if err != nil {
		return c.env.fail(err)
	}
	if stored != goal {
		c.env.printf("goal of %s already set to %s, unchanged\n", target, c.env.amount(stored))
		return subcommands.ExitSuccess
	}
	c.env.printf("goal of %s set to %s\n", target, c.env.amount(stored))
	return subcommands.ExitSuccess
}

// queryCmd is the shape shared by the single-target read commands.
type queryCmd struct {
	env *Env
}

func (q queryCmd) run(ctx context.Context, f *flag.FlagSet, usage string, fn func(svc ledgerReader, target domain.TargetID) error) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return q.env.usage("usage: %s", usage)
	}
	svc, done, err := q.env.service(ctx, auth.StaticOracle{})
	if err != nil {
		return q.env.fail(err)
	}
	defer done()
	if err := fn(svc, domain.ParseTargetID(f.Arg(0))); err != nil {
		return q.env.fail(err)
	}
	return subcommands.ExitSuccess
}

type totalCmd struct{ env *Env }

func (*totalCmd) Name() string             { return "total" }
func (*totalCmd) Synopsis() string         { return "print the total invested in a target" }
func (*totalCmd) Usage() string            { return "ledgerctl total <target>\n" }
func (*totalCmd) SetFlags(_ *flag.FlagSet) {}

func (c *totalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		total, err := svc.TotalInvested(ctx, target)
		if err != nil {
			return err
		}
		c.env.printf("%s\n", c.env.amount(total))
		return nil
	})
}

type lastInvestorCmd struct{ env *Env }

func (*lastInvestorCmd) Name() string             { return "last-investor" }
func (*lastInvestorCmd) Synopsis() string         { return "print the most recent contributor of a target" }
func (*lastInvestorCmd) Usage() string            { return "ledgerctl last-investor <target>\n" }
func (*lastInvestorCmd) SetFlags(_ *flag.FlagSet) {}

func (c *lastInvestorCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		p, ok, err := svc.LastInvestor(ctx, target)
		if err != nil {
			return err
		}
		if !ok {
			c.env.printf("none\n")
			return nil
		}
		c.env.printf("%s\n", p)
		return nil
	})
}

type goalCmd struct{ env *Env }

func (*goalCmd) Name() string             { return "goal" }
func (*goalCmd) Synopsis() string         { return "print the funding goal of a target" }
func (*goalCmd) Usage() string            { return "ledgerctl goal <target>\n" }
func (*goalCmd) SetFlags(_ *flag.FlagSet) {}

func (c *goalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		goal, ok, err := svc.FundingGoal(ctx, target)
		if err != nil {
			return err
		}
		if !ok {
			c.env.printf("not set\n")
			return nil
		}
		c.env.printf("%s\n", c.env.amount(goal))
		return nil
	})
}

type fundedCmd struct{ env *Env }

func (*fundedCmd) Name() string             { return "funded" }
func (*fundedCmd) Synopsis() string         { return "report whether a target reached its goal" }
func (*fundedCmd) Usage() string            { return "ledgerctl funded <target>\n" }
func (*fundedCmd) SetFlags(_ *flag.FlagSet) {}

func (c *fundedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		funded, err := svc.IsFullyFunded(ctx, target)
		if err != nil {
			return err
		}
		c.env.printf("%t\n", funded)
		return nil
	})
}

type summaryCmd struct {
	env    *Env
	asJSON bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print the state of a target" }
func (*summaryCmd) Usage() string    { return "ledgerctl summary [-json] <target>\n" }
func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print JSON")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		sum, err := svc.Summary(ctx, target)
		if err != nil {
			return err
		}
		if c.asJSON {
			enc := json.NewEncoder(c.env.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(summaryDocument(c.env, sum))
		}
		printSummary(c.env, sum)
		return nil
	})
}

type historyCmd struct {
	env   *Env
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list contributions to a target, newest first" }
func (*historyCmd) Usage() string    { return "ledgerctl history [-n <limit>] <target>\n" }
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of entries (0 for all)")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		items, err := svc.Contributions(ctx, target, c.limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			c.env.printf("no contributions\n")
			return nil
		}
		for _, it := range items {
			c.env.printf("#%d  %s  %s  %s  total %s\n",
				it.Seq, it.CreatedAt.Format(time.RFC3339), it.Principal, c.env.amount(it.Amount), c.env.amount(it.Total))
		}
		return nil
	})
}

// exportCmd writes a target's summary and journal as JSON files.
type exportCmd struct {
	env     *Env
	dir     string
	archive bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a target's summary and journal to JSON files" }
func (*exportCmd) Usage() string {
	return `ledgerctl export [-dir <path>] [-zip] <target>

  Writes <dir>/<target>/summary.json and <dir>/<target>/contributions.json,
  or a single <dir>/<target>.zip holding both with -zip.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "exports", "export directory")
	f.BoolVar(&c.archive, "zip", false, "bundle the files into one zip archive")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out, err := storage.NewExportDir(c.dir)
	if err != nil {
		return c.env.fail(err)
	}
	return queryCmd{c.env}.run(ctx, f, c.Usage(), func(svc ledgerReader, target domain.TargetID) error {
		name := target.String()
		if name == "" {
			return errors.New("cannot export an empty target identifier")
		}
		sum, err := svc.Summary(ctx, target)
		if err != nil {
			return err
		}
		items, err := svc.Contributions(ctx, target, 0)
		if err != nil {
			return err
		}

		files := make([]zip.File, 0, 2)
		for _, doc := range []struct {
			name string
			v    any
		}{
			{"summary.json", summaryDocument(c.env, sum)},
			{"contributions.json", items},
		} {
			data, err := json.MarshalIndent(doc.v, "", "  ")
			if err != nil {
				return err
			}
			files = append(files, zip.File{Name: name + "/" + doc.name, Data: append(data, '\n'), Modified: time.Now()})
		}

		if c.archive {
			data, err := zip.Archive(files)
			if err != nil {
				return err
			}
			key, err := out.WriteFile(ctx, name+".zip", data)
			if err != nil {
				return err
			}
			c.env.printf("wrote %s/%s\n", out.Root(), key)
			return nil
		}
		for _, file := range files {
			key, err := out.WriteFile(ctx, file.Name, file.Data)
			if err != nil {
				return err
			}
			c.env.printf("wrote %s/%s\n", out.Root(), key)
		}
		return nil
	})
}
