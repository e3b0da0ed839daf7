// Package service runs one invocation end to end: lock the workspace, read
// the issue, execute the command, deliver feedback and refresh the README.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"chessbot/internal/config"
	"chessbot/internal/processor"
	"chessbot/internal/render"
	"chessbot/internal/storage"
	"chessbot/internal/tracker"
)

// Service serializes invocations against one workspace. The mutex covers
// callers inside this process; the file lock covers other processes.
type Service struct {
	proc     *processor.Processor
	tracker  tracker.Tracker
	store    *storage.Store
	settings *config.Settings
	repo     string
	logger   *slog.Logger
	mu       sync.Mutex
}

// New creates a service instance
func New(proc *processor.Processor, t tracker.Tracker, store *storage.Store, settings *config.Settings, repo string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proc:     proc,
		tracker:  t,
		store:    store,
		settings: settings,
		repo:     repo,
		logger:   logger,
	}
}

// Handle processes the issue with the given number. The returned error is
// fatal: no feedback has been delivered for it.
func (s *Service) Handle(ctx context.Context, number int) (processor.Outcome, error) {
	issue, err := s.tracker.Issue(ctx, number)
	if err != nil {
		return processor.Outcome{}, err
	}
	return s.HandleIssue(ctx, issue)
}

// HandleIssue processes an issue the caller already holds, as delivered by
// a webhook payload
func (s *Service) HandleIssue(ctx context.Context, issue *tracker.Issue) (processor.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := storage.AcquireLock(s.store.Layout().Lock)
	if err != nil {
		return processor.Outcome{}, err
	}
	defer lock.Release()

	logger := s.logger.With("issue", issue.Number)
	identity := config.Identity(issue.Author)

	out, err := s.proc.Execute(issue.Title, identity)
	if err != nil {
		logger.Error("invocation failed", "error", err)
		return processor.Outcome{}, err
	}

	if err := s.deliver(ctx, issue.Number, out); err != nil {
		return out, err
	}

	if out.Success {
		if err := s.refreshReadme(out); err != nil {
			// The move is committed; a stale README is repaired by the next run.
			logger.Warn("readme not refreshed", "error", err)
		}
	}
	return out, nil
}

func (s *Service) deliver(ctx context.Context, number int, out processor.Outcome) error {
	for _, body := range out.Comments {
		if err := s.tracker.Comment(ctx, number, body); err != nil {
			return fmt.Errorf("deliver comment: %w", err)
		}
	}
	if out.Close {
		if err := s.tracker.Close(ctx, number, out.Labels); err != nil {
			return fmt.Errorf("deliver close: %w", err)
		}
	} else if len(out.Labels) > 0 {
		if err := s.tracker.AddLabels(ctx, number, out.Labels); err != nil {
			return fmt.Errorf("deliver labels: %w", err)
		}
	}
	return nil
}

func (s *Service) refreshReadme(out processor.Outcome) error {
	path := s.store.Layout().Readme
	doc, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	history, err := s.store.HistoryLines()
	if err != nil {
		return err
	}
	if out.GameOver != nil {
		history = out.GameOver.History
	}
	top, err := s.store.TopN(s.settings.Misc.MaxTopMoves)
	if err != nil {
		return err
	}

	updated, err := render.Readme(string(doc), s.settings, render.View{
		Match:      out.Match,
		Repository: s.repo,
		History:    history,
		Top:        top,
	})
	if err != nil {
		return err
	}
	if updated == string(doc) {
		return nil
	}
	return os.WriteFile(path, []byte(updated), 0o644)
}
