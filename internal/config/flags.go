package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/glucolink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-r string   account region, e.g. eu or us (default from Config)
//	-d string   data directory for config and encrypted stores
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-r", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Region, "r", cfg.Region, "account region, e.g. eu or us")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for config and encrypted stores")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

// dataDirFromFlags peeks at -d before the JSON stage runs, so an overridden
// data dir is honored when resolving the default config file path.
func dataDirFromFlags() string {
	var dir string

	args := flagx.FilterArgs(os.Args[1:], []string{"-d"})

	fs := flag.NewFlagSet("datadir", flag.ContinueOnError)
	fs.StringVar(&dir, "d", "", "data directory")
	_ = fs.Parse(args)

	return dir
}
