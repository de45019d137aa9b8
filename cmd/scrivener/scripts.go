package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/script"
)

func newScriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Inspect item loader scripts",
	}
	cmd.AddCommand(newScriptsListCmd(), newScriptsCheckCmd())
	return cmd
}

func newScriptsListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the loader scripts the daemon would register",
		Long: `Scans the scripts directory and lists every script that evaluates
successfully and exposes a loader object. Scripts that fail to load are
reported as warnings on stderr and skipped, exactly as "scrivener serve"
would skip them.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runScriptsList(v) },
	}

	cmd.Flags().String("scripts-dir", defaultScriptsDir(), "directory scanned for loader scripts (*.js)")
	addConfigFlag(cmd)

	return cmd
}

func runScriptsList(v *viper.Viper) error {
	dir := v.GetString("scripts-dir")
	loaders := script.Discover(dir)
	if len(loaders) == 0 {
		fmt.Printf("No loader scripts in %s\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tNAME\tAUTHOR\tHOOKS\tFILE\n")
	_, _ = fmt.Fprintf(tw, "--\t----\t------\t-----\t----\n")
	for _, l := range loaders {
		hooks := "-"
		if h := l.Hooks(); len(h) > 0 {
			hooks = strings.Join(h, ",")
		}
		author := l.Author()
		if author == "" {
			author = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.ID(), l.Name(), author, hooks, l.Path())
	}
	return tw.Flush()
}

func newScriptsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <script.js>",
		Short: "Load one script and report what it exposes",
		Long: `Evaluates a single script file the way the daemon would and reports the
loader metadata it exposes. Also starts a throwaway per-item runtime from
the same source to verify the script tolerates re-evaluation.

Exits non-zero if the script does not produce a loader object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error { return runScriptsCheck(args[0]) },
	}
}

func runScriptsCheck(path string) error {
	l := script.Open(path)
	if !l.Loaded() {
		return fmt.Errorf("%s: script did not produce a loader object", path)
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", l.ID())
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", l.Name())
	if a := l.Author(); a != "" {
		_, _ = fmt.Fprintf(tw, "Author:\t%s\n", a)
	}
	if d := l.Description(); d != "" {
		_, _ = fmt.Fprintf(tw, "Description:\t%s\n", d)
	}

	formats := "* (everything the item carries)"
	if f := l.FormatsToSave(); len(f) > 0 {
		formats = strings.Join(f, ", ")
	}
	_, _ = fmt.Fprintf(tw, "Saved formats:\t%s\n", formats)

	hooks := "none"
	if h := l.Hooks(); len(h) > 0 {
		hooks = strings.Join(h, ", ")
	}
	_, _ = fmt.Fprintf(tw, "Save hooks:\t%s\n", hooks)

	rerun := "ok"
	if !l.Scriptable().Start() {
		rerun = "failed (see warnings above)"
	}
	_, _ = fmt.Fprintf(tw, "Re-evaluation:\t%s\n", rerun)

	return tw.Flush()
}
