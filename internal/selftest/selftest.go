// Package selftest replays scripted scenarios against a scratch workspace
// and an in-memory tracker, checking the labels and comments each issue
// receives.
package selftest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"chessbot/internal/config"
	"chessbot/internal/processor"
	"chessbot/internal/service"
	"chessbot/internal/storage"
	"chessbot/internal/tracker"
)

// Step is one issue filed during a scenario. The flags describe what the
// bot should answer; explicit Labels or Comments replace the derived
// expectations. A step giving both is checked verbatim and does not advance
// the expected turn.
type Step struct {
	Move          string   `yaml:"move"`
	Author        string   `yaml:"author"`
	IsCapture     bool     `yaml:"is_capture"`
	IsConsecutive bool     `yaml:"is_consecutive"`
	IsInvalid     bool     `yaml:"is_invalid"`
	IsWinner      bool     `yaml:"is_winner"`
	IsDraw        bool     `yaml:"is_draw"`
	Labels        []string `yaml:"labels"`
	Comments      []string `yaml:"comments"`
}

// Scenario is one self-test file
type Scenario struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
	Moves []Step `yaml:"moves"`
}

// Summary counts checked steps
type Summary struct {
	Passed int
	Failed int
}

func (s Summary) Total() int {
	return s.Passed + s.Failed
}

func (s *Summary) add(o Summary) {
	s.Passed += o.Passed
	s.Failed += o.Failed
}

// Runner executes scenarios
type Runner struct {
	Settings *config.Settings
	Out      io.Writer
	Logger   *slog.Logger
}

// LoadScenario reads one scenario file
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	sc.Owner = config.Identity(sc.Owner)
	for i := range sc.Moves {
		sc.Moves[i].Author = config.Identity(sc.Moves[i].Author)
	}
	return sc, nil
}

// RunDir runs every *.yml and *.yaml file in dir in name order
func (r *Runner) RunDir(ctx context.Context, dir string) (Summary, error) {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return Summary{}, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	var total Summary
	for _, f := range files {
		sc, err := LoadScenario(f)
		if err != nil {
			return total, err
		}
		s, err := r.Run(ctx, sc)
		if err != nil {
			return total, err
		}
		total.add(s)
	}

	fmt.Fprintln(r.out())
	fmt.Fprintf(r.out(), "    %d total\n", total.Total())
	fmt.Fprintf(r.out(), "    %d passed\n", total.Passed)
	fmt.Fprintf(r.out(), "    %d failed\n", total.Failed)
	return total, nil
}

// Run plays one scenario in a fresh scratch workspace
func (r *Runner) Run(ctx context.Context, sc Scenario) (Summary, error) {
	root, err := os.MkdirTemp("", "chessbot-selftest-*")
	if err != nil {
		return Summary{}, err
	}
	defer os.RemoveAll(root)

	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	repo := strings.TrimPrefix(sc.Owner, "@") + "/" + strings.TrimPrefix(sc.Owner, "@")
	store := storage.NewStore(storage.NewLayout(root))
	proc, err := processor.New(store, processor.Config{
		Owner:      sc.Owner,
		Repository: repo,
		Settings:   r.Settings,
		Logger:     logger,
	})
	if err != nil {
		return Summary{}, err
	}
	mem := tracker.NewMemory()
	svc := service.New(proc, mem, store, r.Settings, repo, logger)

	fmt.Fprintln(r.out(), sc.Name)

	var sum Summary
	exp := expectations{settings: r.Settings, owner: sc.Owner}
	for _, step := range sc.Moves {
		labels, comments := exp.next(step)

		number := mem.Open(step.Move, strings.TrimPrefix(step.Author, "@"))
		if _, err := svc.Handle(ctx, number); err != nil {
			return sum, fmt.Errorf("%s: %q by %s: %w", sc.Name, step.Move, step.Author, err)
		}
		issue, _ := mem.Get(number)

		if reason := check(issue, labels, comments); reason != "" {
			fmt.Fprintf(r.out(), "    ✗ %s by %s → %s\n", step.Move, step.Author, reason)
			sum.Failed++
		} else {
			fmt.Fprintf(r.out(), "    ✓ %s by %s\n", step.Move, step.Author)
			sum.Passed++
		}
	}
	return sum, nil
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return io.Discard
	}
	return r.Out
}

// expectations derives the labels and comment patterns a step should
// produce. It tracks whether a match is running and which side moves next.
type expectations struct {
	settings *config.Settings
	owner    string
	active   bool
	accepted int
}

func (e *expectations) next(step Step) ([]string, []string) {
	if step.Labels != nil && step.Comments != nil {
		return step.Labels, step.Comments
	}

	s := e.settings
	var labels, comments []string

	switch {
	case strings.Contains(strings.ToLower(step.Move), "start new game"):
		if !e.active || step.Author == e.owner {
			comments = append(comments, pattern(s.Comments.SuccessfulNewGame))
			e.active = true
			e.accepted = 0
		} else {
			comments = append(comments, pattern(s.Comments.InvalidNewGame))
		}
	case !e.active:
		comments = append(comments, pattern(s.Comments.NoActiveGame))
	case !step.IsConsecutive && !step.IsInvalid:
		if e.accepted%2 == 0 {
			labels = append(labels, s.Labels.White)
		} else {
			labels = append(labels, s.Labels.Black)
		}
		e.accepted++
		comments = append(comments, pattern(s.Comments.SuccessfulMove))
	}

	if step.IsWinner {
		labels = append(labels, s.Labels.Winner)
		comments = append(comments, pattern(s.Comments.GameOver))
		e.active = false
	}
	if step.IsDraw {
		labels = append(labels, s.Labels.Draw)
		comments = append(comments, pattern(s.Comments.GameOver))
		e.active = false
	}
	if step.IsCapture {
		labels = append(labels, s.Labels.Capture)
	}
	if step.IsConsecutive {
		labels = append(labels, s.Labels.Invalid)
		comments = append(comments, pattern(s.Comments.ConsecutiveMoves))
	}
	if step.IsInvalid {
		labels = append(labels, s.Labels.Invalid)
		comments = append(comments, pattern(s.Comments.InvalidMove))
	}

	if step.Labels != nil {
		labels = step.Labels
	}
	if step.Comments != nil {
		comments = step.Comments
	}
	return labels, comments
}

// pattern turns a comment template into an anchored regular expression
func pattern(tmpl string) string {
	p := regexp.QuoteMeta(tmpl)
	p = strings.NewReplacer(
		`\{author\}`, `@.+`,
		`\{move\}`, `.....?`,
		`\{outcome\}`, `.+`,
		`\{num_moves\}`, `\d+`,
		`\{num_players\}`, `\d+`,
		`\{players\}`, `(@.+, )*@.+`,
	).Replace(p)
	return "^" + p + "$"
}

// check compares what the issue received against the expectations and
// returns the first mismatch, or "" when everything matched
func check(issue tracker.MemoryIssue, labels, comments []string) string {
	if !issue.Closed {
		return "issue left open"
	}

	got := append([]string(nil), issue.Labels...)
	want := append([]string(nil), labels...)
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		return fmt.Sprintf("labels %v, want %v", issue.Labels, labels)
	}

	if len(issue.Comments) != len(comments) {
		return fmt.Sprintf("%d comments, want %d", len(issue.Comments), len(comments))
	}
	for i, p := range comments {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Sprintf("bad comment pattern %q: %v", p, err)
		}
		if !re.MatchString(issue.Comments[i]) {
			return fmt.Sprintf("comment %d %q does not match %q", i+1, issue.Comments[i], p)
		}
	}
	return ""
}
