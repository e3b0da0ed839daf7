// Package cli is the local rehearsal console: it files issues as a chosen
// identity against an in-memory tracker and shows the resulting board.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"chessbot/internal/board"
	"chessbot/internal/config"
	"chessbot/internal/processor"
	"chessbot/internal/rules"
	"chessbot/internal/storage"
	"chessbot/internal/tracker"
)

type CommandType int

const (
	CmdNone CommandType = iota
	CmdNew
	CmdMove
	CmdTitle
	CmdAs
	CmdBoard
	CmdHistory
	CmdTop
	CmdColor
	CmdHelp
	CmdQuit
)

type Command struct {
	Type CommandType
	Args []string
	Raw  string
}

type ColorTheme string

const (
	ThemeOff   ColorTheme = "off"
	ThemeBrown ColorTheme = "brown"
	ThemeGreen ColorTheme = "green"
	ThemeGray  ColorTheme = "gray"
)

type themeColors struct {
	lightBg string
	darkBg  string
	white   string
	black   string
	reset   string
}

var themes = map[ColorTheme]themeColors{
	ThemeOff: {},
	ThemeBrown: {
		lightBg: "\033[48;5;230m", // Beige
		darkBg:  "\033[48;5;94m",  // Brown
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
	ThemeGreen: {
		lightBg: "\033[48;5;157m",
		darkBg:  "\033[48;5;22m",
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
	ThemeGray: {
		lightBg: "\033[48;5;251m",
		darkBg:  "\033[48;5;240m",
		white:   "\033[97m",
		black:   "\033[30m",
		reset:   "\033[0m",
	},
}

// IssueRunner runs the pipeline for one issue number
type IssueRunner interface {
	Handle(ctx context.Context, number int) (processor.Outcome, error)
}

// LineReader is the subset of readline the console needs
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type CLI struct {
	runner   IssueRunner
	issues   *tracker.Memory
	store    *storage.Store
	output   io.Writer
	identity string
	theme    ColorTheme
}

func New(runner IssueRunner, issues *tracker.Memory, store *storage.Store, output io.Writer, identity string) *CLI {
	return &CLI{
		runner:   runner,
		issues:   issues,
		store:    store,
		output:   output,
		identity: config.Identity(identity),
		theme:    ThemeOff,
	}
}

// NewReadline opens a line editor on the terminal
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          "chessbot> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ParseCommand maps one console line to a command
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return Command{Type: CmdNone}
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "new":
		return Command{Type: CmdNew}
	case "as":
		return Command{Type: CmdAs, Args: args}
	case "title":
		return Command{Type: CmdTitle, Raw: strings.TrimSpace(strings.TrimPrefix(input, parts[0]))}
	case "board":
		return Command{Type: CmdBoard}
	case "history":
		return Command{Type: CmdHistory}
	case "top":
		return Command{Type: CmdTop, Args: args}
	case "color":
		return Command{Type: CmdColor, Args: args}
	case "help", "?":
		return Command{Type: CmdHelp}
	case "quit", "exit":
		return Command{Type: CmdQuit}
	default:
		return Command{Type: CmdMove, Args: []string{cmd}}
	}
}

// MoveTitle turns "e2e4" into the issue title for that move
func MoveTitle(move string) string {
	move = strings.ToUpper(move)
	if len(move) < 4 {
		return "Chess: Move " + move
	}
	return fmt.Sprintf("Chess: Move %s to %s", move[:2], move[2:4])
}

// Run reads commands until quit or end of input
func (c *CLI) Run(ctx context.Context, rl LineReader) error {
	c.ShowWelcome()
	for {
		rl.SetPrompt(fmt.Sprintf("chessbot [%s]> ", c.identity))
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		if quit := c.Execute(ctx, ParseCommand(line)); quit {
			return nil
		}
	}
}

// Execute runs one command and reports whether the console should exit
func (c *CLI) Execute(ctx context.Context, cmd Command) bool {
	switch cmd.Type {
	case CmdNone:
	case CmdQuit:
		return true
	case CmdHelp:
		c.ShowHelp()
	case CmdAs:
		if len(cmd.Args) != 1 {
			c.ShowMessage("usage: as <identity>")
			break
		}
		c.identity = config.Identity(cmd.Args[0])
		c.ShowMessage("now playing as " + c.identity)
	case CmdColor:
		if len(cmd.Args) != 1 {
			c.ShowMessage("usage: color off|brown|green|gray")
			break
		}
		if err := c.SetTheme(ColorTheme(cmd.Args[0])); err != nil {
			c.ShowError(err)
		}
	case CmdNew:
		c.submit(ctx, "Chess: Start new game")
	case CmdMove:
		c.submit(ctx, MoveTitle(cmd.Args[0]))
	case CmdTitle:
		c.submit(ctx, cmd.Raw)
	case CmdBoard:
		c.showCurrentBoard()
	case CmdHistory:
		c.showHistory()
	case CmdTop:
		c.showTop()
	}
	return false
}

func (c *CLI) submit(ctx context.Context, title string) {
	number := c.issues.Open(title, strings.TrimPrefix(c.identity, "@"))
	out, err := c.runner.Handle(ctx, number)
	if err != nil {
		c.ShowError(err)
		return
	}

	issue, _ := c.issues.Get(number)
	for _, comment := range issue.Comments {
		c.ShowMessage("  " + comment)
	}
	if len(issue.Labels) > 0 {
		c.ShowMessage("  labels: " + strings.Join(issue.Labels, ", "))
	}
	if !out.Success {
		c.ShowMessage(fmt.Sprintf("  rejected: %s (%s)", out.Reason, out.Code))
		return
	}
	if out.Match != nil {
		if b, err := out.Match.Board(); err == nil {
			c.DisplayBoard(b)
		}
	}
	if out.GameOver != nil {
		c.ShowMessage(fmt.Sprintf("\nGame Over: %s by %s, archived to %s\n",
			out.GameOver.State, out.GameOver.Termination, out.GameOver.ArchivePath))
		c.ShowMessage("Start a new game with 'new'.")
	}
}

func (c *CLI) showCurrentBoard() {
	raw, err := c.store.ReadMatch()
	if err != nil {
		c.ShowMessage("no game in progress")
		return
	}
	m, err := rules.Decode(strings.NewReader(string(raw)))
	if err != nil {
		c.ShowError(err)
		return
	}
	b, err := m.Board()
	if err != nil {
		c.ShowError(err)
		return
	}
	c.DisplayBoard(b)
	c.ShowMessage(fmt.Sprintf("%s to move", m.Turn()))
}

func (c *CLI) showHistory() {
	lines, err := c.store.HistoryLines()
	if err != nil {
		c.ShowError(err)
		return
	}
	if len(lines) == 0 {
		c.ShowMessage("no history")
		return
	}
	for i, line := range lines {
		c.ShowMessage(fmt.Sprintf("%3d  %s", i, line))
	}
}

func (c *CLI) showTop() {
	entries, err := c.store.TopN(10)
	if err != nil {
		c.ShowError(err)
		return
	}
	for i, e := range entries {
		c.ShowMessage(fmt.Sprintf("%2d. %-40s %d", i+1, e.Identity, e.Count))
	}
}

func (c *CLI) SetTheme(theme ColorTheme) error {
	if _, ok := themes[theme]; !ok {
		return fmt.Errorf("invalid theme: %s (use: off, brown, green, gray)", theme)
	}
	c.theme = theme
	return nil
}

func (c *CLI) ShowMessage(msg string) {
	fmt.Fprintln(c.output, msg)
}

func (c *CLI) ShowError(err error) {
	c.ShowMessage(fmt.Sprintf("Error: %v", err))
}

func (c *CLI) DisplayBoard(b *board.Board) {
	if c.theme == ThemeOff {
		c.ShowMessage("\n" + b.ToASCII() + "\n")
		return
	}

	theme := themes[c.theme]
	var sb strings.Builder

	sb.WriteString("\n  a b c d e f g h\n")

	for r := 0; r < 8; r++ {
		sb.WriteString(fmt.Sprintf("%d ", 8-r))
		for f := 0; f < 8; f++ {
			square := fmt.Sprintf("%c%c", 'a'+f, '8'-r)
			piece := b.GetPieceAt(square)

			bg := theme.darkBg
			if (r+f)%2 == 0 {
				bg = theme.lightBg
			}
			if piece == 0 {
				sb.WriteString(fmt.Sprintf("%s  %s", bg, theme.reset))
			} else {
				color := theme.black
				if piece >= 'A' && piece <= 'Z' {
					color = theme.white
				}
				sb.WriteString(fmt.Sprintf("%s%s%c %s", bg, color, piece, theme.reset))
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", 8-r))
	}
	sb.WriteString("  a b c d e f g h\n")

	c.ShowMessage(sb.String())
}

func (c *CLI) ShowHelp() {
	help := `Commands:
  new              - File "Chess: Start new game"
  <move>           - File a move issue (e.g., e2e4, g1f3)
  title <text>     - File an issue with an arbitrary title
  as <identity>    - Switch the identity filing issues
  board            - Show the current board
  history          - Show the move-history log
  top              - Show the leaderboard
  color <theme>    - Set board color theme (off|brown|green|gray)
  quit/exit        - Exit the console
  help/?           - Show this help message`

	c.ShowMessage(help)
}

func (c *CLI) ShowWelcome() {
	c.ShowMessage("chessbot rehearsal console")
	c.ShowMessage("Issues are filed against an in-memory tracker; the workspace files are real.")
	c.ShowMessage("Type 'help' for commands.")
	c.ShowMessage("")
}
