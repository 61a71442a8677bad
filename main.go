package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kyleking/gh-prwatch/internal/app"
	"github.com/kyleking/gh-prwatch/internal/config"
	"github.com/kyleking/gh-prwatch/internal/github"
	"github.com/kyleking/gh-prwatch/internal/rule"
	"github.com/kyleking/gh-prwatch/internal/throttle"
	"github.com/kyleking/gh-prwatch/internal/watcher"
)

var version = "dev"

type repoFlags []string

func (r *repoFlags) String() string { return fmt.Sprint(*r) }

func (r *repoFlags) Set(value string) error {
	*r = append(*r, value)
	return nil
}

func main() {
	var (
		showVersion bool
		showHelp    bool
		configPath  string
		myPRs       bool
		repos       repoFlags
	)

	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help")
	flag.BoolVar(&showHelp, "h", false, "Show help (shorthand)")
	flag.StringVar(&configPath, "config", "", "Path to config file (default .github/prwatch.yml)")
	flag.BoolVar(&myPRs, "my-prs", false, "Also watch PRs you authored, in any repo")
	flag.Var(&repos, "repo", "Repository to watch (owner/name, repeatable)")
	flag.Parse()

	if showVersion {
		fmt.Printf("gh-prwatch %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg == nil {
		cfg = &config.WatchConfig{Version: 1, Interval: config.DefaultInterval}
		budget := config.DefaultRequestsPerHour
		cfg.RequestsPerHour = &budget
	}

	if len(repos) > 0 {
		cfg.Repos = repos
	}

	if myPRs {
		cfg.MyPRs = true
	}

	if len(cfg.Repos) == 0 && !cfg.MyPRs {
		fmt.Fprintln(os.Stderr, "No repositories to watch. Pass -repo owner/name or create .github/prwatch.yml.")
		os.Exit(1)
	}

	client, err := github.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating GitHub client: %v\n", err)
		os.Exit(1)
	}

	opts := watcher.Options{
		Repos:            cfg.Repos,
		Interval:         cfg.Interval,
		MyPRs:            cfg.MyPRs,
		StalePRThreshold: cfg.StalePRThreshold,
	}

	if *cfg.RequestsPerHour > 0 {
		opts.Throttle = throttle.New(*cfg.RequestsPerHour, 10)
	}

	if len(cfg.Rules) > 0 {
		rules, err := rule.Compile(cfg.Rules)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error compiling status rules: %v\n", err)
			os.Exit(1)
		}

		opts.Classify = rule.Classifier(rules)
	}

	w, err := watcher.New(client, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating watcher: %v\n", err)
		os.Exit(1)
	}

	initial := w.Start()
	defer w.Stop()

	model := app.New(w, initial)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.WatchConfig, error) {
	if path != "" {
		return config.LoadFrom(path)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return config.Load(cwd)
}

func printHelp() {
	fmt.Println(`gh-prwatch - Watch GitHub pull requests from the terminal

Usage:
  gh prwatch [flags]

Description:
  Polls the configured repositories for pull request activity and shows a
  live dashboard: new PRs, comments, reviews, check runs, merges, pushes,
  and rule-derived status transitions.

Flags:
  -h, --help       Show this help message
  -v, --version    Show version
      --config     Path to config file (default .github/prwatch.yml)
      --repo       Repository to watch (owner/name, repeatable)
      --my-prs     Also watch PRs you authored, in any repo

Keyboard Shortcuts:
  ↑/k, ↓/j           Navigate the PR list
  /                  Fuzzy-filter PRs
  o, Enter           Open the selected PR in the browser
  y                  Copy the selected PR's URL
  q, Ctrl+C          Quit

Configuration (.github/prwatch.yml):
  version: 1
  repos: [owner/name]
  interval: 30s
  my_prs: false
  stale_pr_threshold: 10m
  requests_per_hour: 5000
  rules:
    - status: draft
      when: {draft: true}
    - status: failing
      when: {checks_conclusion: failure}
    - status: approved
      when: {review_state: approved, checks_conclusion: success}
    - status: needs_review`)
}
