package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"aichat/internal/config"
	"aichat/internal/provider"
	providerfactory "aichat/internal/provider/factory"
)

const modelsUsage = `Usage:
  aichat models --config <path>

Flags:
  --config string   Path to YAML configuration file (required)`

func listModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, modelsUsage)
	}

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse models flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("models command requires --config <path>")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	registry, err := providerfactory.NewRegistry(cfg)
	if err != nil {
		return err
	}

	return writeCatalogue(os.Stdout, registry.Profiles())
}

func writeCatalogue(out io.Writer, profiles []*provider.Profile) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tNAME\tADAPTER\tAPI KEY")
	for _, p := range profiles {
		key := "client"
		switch {
		case !p.RequiresAuth():
			key = "none"
		case p.HasConfiguredKey():
			key = "configured"
		}
		for _, m := range p.Catalogue() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, m.ID, m.DisplayName, p.Adapter, key)
		}
	}
	return w.Flush()
}
