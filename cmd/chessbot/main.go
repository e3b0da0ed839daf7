// Package main implements chessbot, an issue-driven multiplayer chess bot.
// Each invocation handles one issue; all state lives in workspace files.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"chessbot/cmd/chessbot/cli"
	"chessbot/internal/client"
	"chessbot/internal/config"
	"chessbot/internal/http"
	"chessbot/internal/processor"
	"chessbot/internal/selftest"
	"chessbot/internal/service"
	"chessbot/internal/storage"
	"chessbot/internal/tracker"

	console "chessbot/internal/cli"
)

const (
	gracefulShutdownTimeout = time.Second * 5

	exitRejected = 1
	exitFatal    = 2
)

// exitError carries a process exit code out of a subcommand
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) ExitCode() int { return e.code }

func (e *exitError) Unwrap() error { return e.err }

func main() {
	err := dispatch(os.Args[1:])
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", ee.err)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(exitFatal)
}

func dispatch(args []string) error {
	if len(args) == 0 {
		printUsage()
		return &exitError{code: exitFatal, err: errors.New("subcommand required")}
	}

	switch args[0] {
	case "run":
		return runInvocation(args[1:])
	case "serve":
		return runServe(args[1:])
	case "selftest":
		return runSelftest(args[1:])
	case "play":
		return runPlay(args[1:])
	case "leaderboard":
		return runLeaderboard(args[1:])
	case "send":
		return runSend(args[1:])
	case "db":
		return cli.Run(args[1:], os.Stdout)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return &exitError{code: exitFatal, err: fmt.Errorf("unknown subcommand: %s", args[0])}
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: chessbot <command> [flags]

Commands:
  run           Handle one issue (ISSUE_NUMBER) and exit
  serve         Receive GitHub issue webhooks
  selftest DIR  Replay scenario files against a scratch workspace
  play          Rehearse locally with an in-memory tracker
  leaderboard   Print the top movers
  send TITLE    Deliver a signed issue event to a running serve instance
  db            Manage the archive index (init|query|delete)`)
}

// workspaceFlags are shared by every subcommand touching a workspace
type workspaceFlags struct {
	workdir   string
	settings  string
	indexPath string
	owner     string
	repo      string
	logFormat string
}

func (w *workspaceFlags) register(fs *pflag.FlagSet, env config.Env) {
	fs.StringVar(&w.workdir, "workdir", env.Workdir, "Workspace root holding games/ and data/")
	fs.StringVar(&w.settings, "settings", "", "Settings file (default <workdir>/data/settings.yaml)")
	fs.StringVar(&w.indexPath, "index-path", "", "SQLite archive index (disabled if empty)")
	fs.StringVar(&w.owner, "owner", env.OwnerIdentity(), "Owner identity allowed to restart a match")
	fs.StringVar(&w.repo, "repo", env.Repository, "Repository slug owner/repo")
	fs.StringVar(&w.logFormat, "log-format", "json", "Log format: json or text")
}

// workspace is the assembled pipeline for one workspace root
type workspace struct {
	store    *storage.Store
	settings *config.Settings
	index    *storage.Index
	proc     *processor.Processor
	logger   *slog.Logger
}

func (w *workspaceFlags) open(logger *slog.Logger) (*workspace, error) {
	root, err := filepath.Abs(w.workdir)
	if err != nil {
		return nil, err
	}
	layout := storage.NewLayout(root)
	settingsPath := w.settings
	if settingsPath == "" {
		settingsPath = layout.Settings
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		store:    storage.NewStore(layout),
		settings: settings,
		logger:   logger,
	}

	if w.indexPath != "" {
		ws.index, err = storage.NewIndex(w.indexPath)
		if err != nil {
			return nil, err
		}
		if err := ws.index.InitDB(); err != nil {
			ws.index.Close()
			return nil, err
		}
	}

	ws.proc, err = processor.New(ws.store, processor.Config{
		Owner:      config.Identity(w.owner),
		Repository: w.repo,
		Settings:   settings,
		Index:      ws.index,
		Logger:     logger,
	})
	if err != nil {
		ws.close()
		return nil, err
	}
	return ws, nil
}

func (ws *workspace) close() {
	if ws.index != nil {
		if err := ws.index.Close(); err != nil {
			ws.logger.Warn("failed to close archive index", "error", err)
		}
	}
}

func newLogger(format string) *slog.Logger {
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, nil)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	return slog.New(handler).With("run_id", uuid.NewString())
}

func runInvocation(args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	var wf workspaceFlags
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	wf.register(fs, env)
	issue := fs.Int("issue", env.IssueNumber, "Issue number to handle")
	if err := fs.Parse(args); err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	if *issue <= 0 {
		return &exitError{code: exitFatal, err: errors.New("issue number required (--issue or ISSUE_NUMBER)")}
	}

	logger := newLogger(wf.logFormat).With("issue", *issue)
	ws, err := wf.open(logger)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer ws.close()

	gh, err := tracker.NewGitHub(tracker.GitHubConfig{
		BaseURL:    env.APIURL,
		Repository: wf.repo,
		Token:      env.Token,
		Logger:     logger,
	})
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	svc := service.New(ws.proc, gh, ws.store, ws.settings, wf.repo, logger)
	out, err := svc.Handle(context.Background(), *issue)
	if err != nil {
		logger.Error("invocation failed", "error", err)
		return &exitError{code: exitFatal, err: err}
	}
	if !out.Success {
		return &exitError{code: exitRejected, err: fmt.Errorf("%s: %s", out.Code, out.Reason)}
	}
	return nil
}

func runServe(args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	var wf workspaceFlags
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	wf.register(fs, env)
	addr := fs.String("addr", "localhost:8080", "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(wf.logFormat)
	ws, err := wf.open(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	gh, err := tracker.NewGitHub(tracker.GitHubConfig{
		BaseURL:    env.APIURL,
		Repository: wf.repo,
		Token:      env.Token,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	if env.WebhookSecret == "" {
		logger.Warn("webhook signature verification disabled, CHESSBOT_WEBHOOK_SECRET is empty")
	}

	svc := service.New(ws.proc, gh, ws.store, ws.settings, wf.repo, logger)
	app := http.NewFiberApp(svc, env.WebhookSecret)

	go func() {
		logger.Info("webhook server starting", "addr", *addr, "workdir", wf.workdir)
		if err := app.Listen(*addr); err != nil {
			logger.Error("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Warn("server forced to shutdown", "error", err)
	}
	return nil
}

func runSelftest(args []string) error {
	fs := pflag.NewFlagSet("selftest", pflag.ContinueOnError)
	settingsPath := fs.String("settings", "data/settings.yaml", "Settings file")
	verbose := fs.BoolP("verbose", "v", false, "Log pipeline activity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := "selftests"
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}

	runner := &selftest.Runner{Settings: settings, Out: os.Stdout}
	if *verbose {
		runner.Logger = newLogger("text")
	}
	sum, err := runner.RunDir(context.Background(), dir)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return &exitError{code: exitRejected}
	}
	return nil
}

func runPlay(args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	var wf workspaceFlags
	fs := pflag.NewFlagSet("play", pflag.ContinueOnError)
	wf.register(fs, env)
	identity := fs.String("as", "@player", "Identity filing issues")
	scratch := fs.Bool("scratch", true, "Play in a throwaway workspace instead of --workdir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if wf.settings == "" {
		wf.settings = filepath.Join(wf.workdir, storage.DefaultSettingsPath)
	}
	if wf.owner == "" {
		wf.owner = *identity
	}
	if *scratch {
		dir, err := os.MkdirTemp("", "chessbot-play-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		wf.workdir = dir
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ws, err := wf.open(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	mem := tracker.NewMemory()
	svc := service.New(ws.proc, mem, ws.store, ws.settings, wf.repo, logger)

	rl, err := console.NewReadline(filepath.Join(os.TempDir(), ".chessbot_history"))
	if err != nil {
		return err
	}
	defer rl.Close()

	c := console.New(svc, mem, ws.store, rl.Stdout(), *identity)
	if console.IsTerminal(os.Stdout) {
		c.SetTheme(console.ThemeBrown)
	}
	return c.Run(context.Background(), rl)
}

func runLeaderboard(args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("leaderboard", pflag.ContinueOnError)
	workdir := fs.String("workdir", env.Workdir, "Workspace root")
	n := fs.IntP("top", "n", 5, "Entries to print (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	root, err := filepath.Abs(*workdir)
	if err != nil {
		return err
	}
	store := storage.NewStore(storage.NewLayout(root))
	entries, err := store.TopN(*n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No moves recorded")
		return nil
	}
	for i, e := range entries {
		fmt.Printf("%2d. %-40s %d\n", i+1, e.Identity, e.Count)
	}
	return nil
}

func runSend(args []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	url := fs.String("url", "http://localhost:8080", "Webhook server base URL")
	as := fs.String("as", "player", "Login of the issue author")
	number := fs.Int("issue", int(time.Now().Unix()%100000), "Issue number to report")
	ping := fs.Bool("ping", false, "Send a ping event instead of an issue")
	verbose := fs.BoolP("verbose", "v", false, "Print request and response bodies")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := client.New(*url, env.WebhookSecret, os.Stdout)
	c.SetVerbose(*verbose)
	ctx := context.Background()

	if *ping {
		return c.Ping(ctx)
	}
	if fs.NArg() != 1 {
		return errors.New("send requires one issue title argument")
	}

	resp, err := c.OpenIssue(ctx, *number, fs.Arg(0), *as)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &exitError{code: exitRejected, err: fmt.Errorf("%s: %s", resp.Code, resp.Reason)}
	}
	if resp.GameOver {
		fmt.Printf("game over: %s\n", resp.Outcome)
	}
	return nil
}
