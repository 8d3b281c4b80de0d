// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main defines the CLI interface for specgrep.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/specgrep/internal/config"
	"github.com/GoogleCloudPlatform/specgrep/internal/mocha"
	"github.com/GoogleCloudPlatform/specgrep/internal/version"
	"github.com/GoogleCloudPlatform/specgrep/pkg/specgrep"
)

var (
	stdout = os.Stdout
	stderr = os.Stderr
)

// flags are the settings shared by every command. Option flags override the
// config file only when given.
type flags struct {
	configPath  string
	logLevel    string
	concurrency int
	asJSON      bool

	grep             string
	grepTags         string
	grepBurn         int
	grepUntagged     bool
	grepOmitFiltered bool
	grepFilterSpecs  bool
	folder           string
	specPattern      []string
	excludePattern   []string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "specgrep",
		Short:         "Select tests and spec files by title and tag expressions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", os.Getenv("SPECGREP_CONFIG"), "Config file (YAML or JSON)")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVar(&f.asJSON, "json", false, "Write JSON output")
	pf.IntVar(&f.concurrency, "concurrency", 0, "Number of spec files read in parallel (0 means one per CPU)")
	pf.StringVar(&f.grep, "grep", "", "Title expression, alternatives separated by ';', '-' negates")
	pf.StringVar(&f.grepTags, "grep-tags", "", "Tag expression, groups joined by '+', alternatives by ',', '-' negates")
	pf.IntVar(&f.grepBurn, "grep-burn", 0, "Repeat count for matched tests")
	pf.BoolVar(&f.grepUntagged, "grep-untagged", false, "Run untagged tests when a tag expression is given")
	pf.BoolVar(&f.grepOmitFiltered, "grep-omit-filtered", false, "Leave filtered tests out of the output")
	pf.BoolVar(&f.grepFilterSpecs, "grep-filter-specs", false, "Filter whole spec files")
	pf.StringVar(&f.folder, "integration-folder", "", "Base folder for spec discovery (default: working directory)")
	pf.StringSliceVar(&f.specPattern, "spec", nil, "Spec file glob, repeatable")
	pf.StringSliceVar(&f.excludePattern, "exclude-spec", nil, "Excluded spec file glob, repeatable")

	cmd.AddCommand(specsCmd(f))
	cmd.AddCommand(listCmd(f))
	cmd.AddCommand(matchCmd(f))
	cmd.AddCommand(parseCmd(f))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, version.HumanVersion)
		},
	})

	return cmd
}

func specsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "specs",
		Short: "Print the spec files that should run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, logger, err := f.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "incompatible config")
			}

			selector, err := specgrep.NewSelector(mocha.Resolver(), f.concurrency, logger)
			if err != nil {
				return errors.Wrap(err, "failed to create selector")
			}

			selectOpts := &specgrep.SelectOptions{
				SpecPattern:        cfg.SpecPattern,
				ExcludeSpecPattern: cfg.Excludes(),
				IntegrationFolder:  opts.GrepIntegrationFolder,
			}
			// Without spec filtering every spec is handed over and the tests
			// are filtered at run time.
			if opts.GrepFilterSpecs {
				selectOpts.Grep = opts.Grep
				selectOpts.GrepTags = opts.GrepTags
				selectOpts.GrepUntagged = opts.GrepUntagged
			}

			sel, err := selector.Select(cmd.Context(), selectOpts)
			if err != nil {
				return errors.Wrap(err, "failed to select specs")
			}

			if f.asJSON {
				out := &specsOutput{
					Specs:      displayPaths(opts.GrepIntegrationFolder, sel.Specs),
					Total:      len(sel.Discovered),
					Filtered:   sel.Filtered,
					FellBack:   sel.FellBack,
					FailedOpen: displayPaths(opts.GrepIntegrationFolder, sel.FailedOpen),
				}
				if sel.Diagnostics != nil {
					out.Diagnostics = sel.Diagnostics.Error()
				}
				return writeJSON(out)
			}
			for _, spec := range sel.Specs {
				fmt.Fprintln(stdout, displayPath(opts.GrepIntegrationFolder, spec))
			}
			return nil
		},
	}
}

func listCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every test with its run decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, opts, logger, err := f.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "incompatible config")
			}

			folder := opts.GrepIntegrationFolder
			if folder == "" {
				folder = "."
			}
			specs, err := specgrep.Discover(folder, cfg.SpecPattern, cfg.Excludes())
			if err != nil {
				return errors.Wrap(err, "failed to discover specs")
			}

			reporter, err := specgrep.NewReporter(mocha.Resolver(), f.concurrency, logger)
			if err != nil {
				return errors.Wrap(err, "failed to create reporter")
			}

			reports, err := reporter.Report(cmd.Context(), specs, &specgrep.ReportOptions{
				Grep:         opts.Grep,
				GrepTags:     opts.GrepTags,
				GrepUntagged: opts.GrepUntagged,
				GrepBurn:     opts.GrepBurn,
				OmitFiltered: opts.GrepOmitFiltered,
			})
			if err != nil {
				return errors.Wrap(err, "failed to list tests")
			}

			if f.asJSON {
				return writeJSON(reports)
			}
			for _, r := range reports {
				spec := displayPath(opts.GrepIntegrationFolder, r.Spec)
				if r.Error != nil {
					fmt.Fprintf(stdout, "%s: runs in full (%s)\n", spec, r.Error)
					continue
				}
				for _, t := range r.Tests {
					status := "skip"
					if t.Run {
						status = fmt.Sprintf("run x%d", t.Burn)
					}
					fmt.Fprintf(stdout, "%s\t%s: %s [%s]\n", status, spec, t.Title, strings.Join(t.EffectiveTags, " "))
				}
			}
			return nil
		},
	}
}

func matchCmd(f *flags) *cobra.Command {
	var (
		title        string
		tags         []string
		requiredTags []string
		forceTags    []string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Evaluate one test title and tag set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, opts, _, err := f.load(cmd)
			if err != nil {
				return err
			}

			parsed := specgrep.ParseGrep(opts.Grep, opts.GrepTags)
			if !cmd.Flags().Changed("force-tags") {
				forceTags = parsed.Tags().Positive()
			}

			run := specgrep.ShouldTestRun(parsed, specgrep.Candidate{
				Title:         title,
				Tags:          tags,
				EffectiveTags: tags,
				RequiredTags:  requiredTags,
			}, specgrep.MatchOptions{
				GrepUntagged: opts.GrepUntagged,
				RequiredTags: forceTags,
			})

			if f.asJSON {
				return writeJSON(map[string]bool{"run": run})
			}
			fmt.Fprintln(stdout, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Full test title")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Effective tags of the test")
	cmd.Flags().StringSliceVar(&requiredTags, "required-tags", nil, "Required tags of the test")
	cmd.Flags().StringSliceVar(&forceTags, "force-tags", nil, "Forced-inclusion tags (default: the tags named in --grep-tags)")
	return cmd
}

func parseCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Print the parsed grep and tag expressions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, opts, _, err := f.load(cmd)
			if err != nil {
				return err
			}

			parsed := specgrep.ParseGrep(opts.Grep, opts.GrepTags)
			return writeJSON(map[string]any{
				"kind":          parsed.Kind().String(),
				"words":         parsed.Title().Words(),
				"negated_words": parsed.Title().NegatedWords(),
				"tags":          parsed.Tags().Groups(),
				"inverted_tags": parsed.Tags().InvertedTags(),
			})
		},
	}
}

// load reads the config file, applies CYPRESS_ variables and flags, and
// echoes the active options.
func (f *flags) load(cmd *cobra.Command) (*config.Config, *config.Options, *specgrep.Logger, error) {
	logger, err := specgrep.NewLogger(f.logLevel, stderr, stderr)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := &config.Config{Env: map[string]any{}}
	if f.configPath != "" {
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, nil, nil, err
		}
	}
	cfg.ApplyEnviron(os.Environ())

	fl := cmd.Flags()
	if fl.Changed("spec") {
		cfg.SpecPattern = f.specPattern
	}
	if fl.Changed("exclude-spec") {
		cfg.ExcludeSpecPattern = f.excludePattern
	}
	overrides := map[string]any{
		"grep":               f.grep,
		"grep-tags":          f.grepTags,
		"grep-burn":          f.grepBurn,
		"grep-untagged":      f.grepUntagged,
		"grep-omit-filtered": f.grepOmitFiltered,
		"grep-filter-specs":  f.grepFilterSpecs,
		"integration-folder": f.folder,
	}
	keys := map[string]string{
		"grep":               "grep",
		"grep-tags":          "grepTags",
		"grep-burn":          "grepBurn",
		"grep-untagged":      "grepUntagged",
		"grep-omit-filtered": "grepOmitFiltered",
		"grep-filter-specs":  "grepFilterSpecs",
		"integration-folder": "grepIntegrationFolder",
	}
	for flag, v := range overrides {
		if fl.Changed(flag) {
			cfg.Env[keys[flag]] = v
		}
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "invalid grep options")
	}

	logger.Debug("starting", "version", version.HumanVersion, "config", f.configPath)
	logOptions(logger, opts)
	return cfg, opts, logger, nil
}

func logOptions(logger *specgrep.Logger, opts *config.Options) {
	if opts.Grep != "" {
		logger.Info(fmt.Sprintf("tests with %q in their names", opts.Grep))
	}
	if opts.GrepTags != "" {
		parsed := specgrep.ParseTagsGrep(opts.GrepTags)
		logger.Info(fmt.Sprintf("filtering using tag(s) %q", opts.GrepTags),
			"groups", parsed.Groups(),
			"inverted", parsed.InvertedTags())
	}
	if opts.GrepBurn > 0 {
		logger.Info(fmt.Sprintf("running filtered tests %d times", opts.GrepBurn))
	}
	if opts.GrepUntagged {
		logger.Info("running untagged tests")
	}
	if opts.GrepOmitFiltered {
		logger.Info("will omit filtered tests")
	}
}

type specsOutput struct {
	Specs       []string `json:"specs"`
	Total       int      `json:"total"`
	Filtered    bool     `json:"filtered"`
	FellBack    bool     `json:"fell_back"`
	FailedOpen  []string `json:"failed_open,omitempty"`
	Diagnostics string   `json:"diagnostics,omitempty"`
}

func displayPaths(folder string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, displayPath(folder, p))
	}
	return out
}

func displayPath(folder, path string) string {
	if folder == "" {
		folder = "."
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(abs, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to write JSON")
	}
	return nil
}
