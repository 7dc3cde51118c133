package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"tokenart/internal/cli"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	cli.NewEnv(flag.CommandLine).Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
