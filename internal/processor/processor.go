// Package processor runs one command through the match pipeline and reports
// a single outcome. Rejections are outcomes; errors are reserved for
// conditions the pipeline cannot report on (corrupt artifacts, I/O).
package processor

import (
	"fmt"
	"log/slog"
	"time"

	"chessbot/internal/config"
	"chessbot/internal/core"
	"chessbot/internal/rules"
	"chessbot/internal/session"
	"chessbot/internal/storage"
)

const (
	dateFormat   = "2006.01.02"
	defaultRound = "1"
)

// Config carries the invocation-independent inputs of the pipeline
type Config struct {
	// Owner is the identity allowed to restart a match in progress
	Owner string
	// Repository is the owner/repo slug used in the Site header
	Repository string
	Settings   *config.Settings
	// Index is optional; archived matches are catalogued when set
	Index  *storage.Index
	Now    func() time.Time
	Logger *slog.Logger
}

// Processor executes commands against one workspace
type Processor struct {
	store    *storage.Store
	settings *config.Settings
	owner    string
	repo     string
	index    *storage.Index
	now      func() time.Time
	logger   *slog.Logger
}

// GameOver describes a match that ended on the accepted command
type GameOver struct {
	State       core.State
	Result      string
	Termination rules.Termination
	Players     []string
	NumMoves    int
	ArchivePath string
	// History is the log of the finished match, deleted from disk by now
	History []string
}

// Outcome is the single result of one invocation
type Outcome struct {
	Success  bool
	Code     string
	Reason   string
	Command  core.Command
	Identity string
	// Move is the recorded move, including an adopted promotion suffix
	Move     string
	Capture  bool
	Comments []string
	Labels   []string
	Close    bool
	GameOver *GameOver
	// Match is the position after the command, nil when unchanged or absent
	Match *rules.Match
}

// New creates a processor bound to store
func New(store *storage.Store, cfg Config) (*Processor, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("processor: settings are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		store:    store,
		settings: cfg.Settings,
		owner:    cfg.Owner,
		repo:     cfg.Repository,
		index:    cfg.Index,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Execute parses title and runs it on behalf of identity
func (p *Processor) Execute(title, identity string) (Outcome, error) {
	cmd := ParseTitle(title)
	p.logger.Info("command parsed", "type", cmd.Type.String(), "move", cmd.Move(), "identity", identity)

	var (
		out Outcome
		err error
	)
	switch cmd.Type {
	case core.CmdStartNewGame:
		out, err = p.handleStartNewGame(identity)
	case core.CmdMove:
		out, err = p.handleMove(cmd, identity)
	default:
		out = p.reject(core.ErrMalformedCommand, "unknown command",
			p.format(p.settings.Comments.UnknownCommand, identity, ""), true)
	}
	if err != nil {
		return Outcome{}, err
	}

	out.Command = cmd
	out.Identity = identity
	if out.Success {
		p.logger.Info("command accepted", "move", out.Move, "capture", out.Capture, "game_over", out.GameOver != nil)
	} else {
		p.logger.Info("command rejected", "code", out.Code, "reason", out.Reason)
	}
	return out, nil
}

// handleStartNewGame creates a fresh match unless one is running and the
// requester is not the owner
func (p *Processor) handleStartNewGame(identity string) (Outcome, error) {
	active, err := p.store.MatchExists()
	if err != nil {
		return Outcome{}, err
	}
	if active && identity != p.owner {
		return p.reject(core.ErrUnauthorizedNewGame,
			"a game is in progress, only the owner can start a new game",
			p.format(p.settings.Comments.InvalidNewGame, identity, ""), false), nil
	}
	if active {
		p.logger.Warn("owner override, replacing match in progress", "identity", identity)
	}

	m := rules.New(rules.Headers{
		Event: p.owner + "'s Online Open Chess Tournament",
		Site:  "https://github.com/" + p.repo,
		Date:  p.now().Format(dateFormat),
		Round: defaultRound,
	})

	if err := p.store.WriteMatch(m.Encode()); err != nil {
		return Outcome{}, err
	}
	if err := p.store.ResetHistory(identity); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Success:  true,
		Close:    true,
		Comments: []string{p.format(p.settings.Comments.SuccessfulNewGame, identity, "")},
		Match:    m,
	}
	if err := p.finish(&out, m); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// handleMove validates and commits one move. Checks run in a fixed order
// and the first failure is the outcome.
func (p *Processor) handleMove(cmd core.Command, identity string) (Outcome, error) {
	sess, err := session.Load(p.store, p.logger)
	if err != nil {
		return Outcome{}, err
	}
	if !sess.Active {
		return p.reject(core.ErrNoActiveMatch, "there is no game in progress",
			p.format(p.settings.Comments.NoActiveGame, identity, ""), false), nil
	}

	match := sess.Match
	move := cmd.Move()

	if len(move) == 4 && move[:2] == move[2:] {
		return p.reject(core.ErrSelfTargetingMove, "source and destination are the same square",
			p.format(p.settings.Comments.InvalidMove, identity, move), true), nil
	}

	if move != "" && match.IsLegal(move+"q") {
		move += "q"
	}

	if sess.LastMover != "" && identity == sess.LastMover && !sess.LastIsStart {
		return p.reject(core.ErrConsecutiveMove, "two moves in a row",
			p.format(p.settings.Comments.ConsecutiveMoves, identity, move), true), nil
	}

	if !match.IsLegal(move) {
		return p.reject(core.ErrIllegalMove, "move is not legal",
			p.format(p.settings.Comments.InvalidMove, identity, move), true), nil
	}

	next, err := match.Clone()
	if err != nil {
		return Outcome{}, err
	}
	if err := next.Apply(move); err != nil {
		return Outcome{}, fmt.Errorf("apply legal move %s: %w", move, err)
	}
	if !next.Valid() {
		return p.reject(core.ErrInvalidPosition, "resulting position is invalid",
			p.format(p.settings.Comments.InvalidBoard, identity, move), true), nil
	}

	capture := match.IsCapture(move)
	mover := match.Turn()

	if err := p.store.WriteMatch(next.Encode()); err != nil {
		return Outcome{}, err
	}
	if err := p.store.AppendHistory(storage.HistoryEntry{Move: move, Identity: identity}); err != nil {
		return Outcome{}, err
	}
	if _, err := p.store.IncrementLeaderboard(identity); err != nil {
		return Outcome{}, err
	}

	var labels []string
	if capture {
		labels = append(labels, p.settings.Labels.Capture)
	}
	if mover == core.ColorWhite {
		labels = append(labels, p.settings.Labels.White)
	} else {
		labels = append(labels, p.settings.Labels.Black)
	}

	out := Outcome{
		Success:  true,
		Move:     move,
		Capture:  capture,
		Close:    true,
		Labels:   labels,
		Comments: []string{p.format(p.settings.Comments.SuccessfulMove, identity, move)},
		Match:    next,
	}
	if err := p.finish(&out, next); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// reject builds a rejection outcome. The issue is always closed; the
// invalid label is attached only for move-level rejections.
func (p *Processor) reject(code, reason, comment string, invalid bool) Outcome {
	out := Outcome{
		Success:  false,
		Code:     code,
		Reason:   reason,
		Comments: []string{comment},
		Close:    true,
	}
	if invalid {
		out.Labels = []string{p.settings.Labels.Invalid}
	}
	return out
}

func (p *Processor) format(tmpl, identity, move string) string {
	return config.Format(tmpl, "author", identity, "move", move)
}
