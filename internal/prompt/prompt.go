// Package prompt loads the system prompts from disk and hot-reloads them on
// change, so prompt tuning doesn't need a redeploy.
package prompt

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const defaultTrafficPrompt = `You are Dot, the traffic controller for a design studio. You read one inbound
email and decide where it goes.

Respond with a single JSON object and nothing else. Fields:
- "type": one of the routes below, or "clarify", "confirm", "answer", "redirect"
- "route": the route name when type is a route
- "confidence": "high", "medium", or "low"
- "reasoning": one short sentence
- "jobNumber": like "LAB 055" when the message concerns a specific job
- "clientCode": the three-letter client code when known
- "message": what to say back to the sender (clarify, confirm, answer)
- "clarifyType", "possibleJobs", "suggestedJob": for clarifications
- "redirectTo", "redirectParams", "originalIntent": for redirects

Routes: file, update, triage, new-job, wip, todo, tracker, work-to-client,
feedback.

Use the tools to look up jobs and clients before deciding. If a message could
mean several jobs, clarify with the candidates. If you're fairly sure of one
job but not certain, confirm it. Only answer directly when the sender asked a
question you can answer from the records.`

const defaultHubPrompt = `You are Dot, answering a quick chat from the studio Hub. The user's job list
is included in the conversation. Respond with a single JSON object:
- "type": "answer" or "redirect"
- "message": your reply, short and friendly
- "confidence": "high", "medium", or "low"
- "nextPrompt": an optional suggestion for what to ask next
Keep answers to a couple of sentences. Never invent job numbers.`

// Store holds the current prompt texts behind a lock so reloads are safe
// against concurrent reads.
type Store struct {
	mu          sync.RWMutex
	traffic     string
	hub         string
	trafficPath string
	hubPath     string
	logger      *slog.Logger
}

func NewStore(trafficPath, hubPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		trafficPath: trafficPath,
		hubPath:     hubPath,
		logger:      logger.With("component", "prompt"),
	}
	s.traffic = loadOrDefault(trafficPath, defaultTrafficPrompt, s.logger)
	s.hub = loadOrDefault(hubPath, defaultHubPrompt, s.logger)
	return s
}

func (s *Store) Traffic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traffic
}

func (s *Store) Hub() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// Watch reloads prompts when their files change. It blocks until ctx is
// done. Missing files are fine; the embedded defaults stay active.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]struct{}{}
	for _, path := range []string{s.trafficPath, s.hubPath} {
		if path == "" {
			continue
		}
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			s.logger.Info("prompt dir not watchable", "dir", dir, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.maybeReload(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("prompt watcher error", "error", err)
		}
	}
}

func (s *Store) maybeReload(changed string) {
	switch {
	case samePath(changed, s.trafficPath):
		if text := loadOrDefault(s.trafficPath, defaultTrafficPrompt, s.logger); text != "" {
			s.mu.Lock()
			s.traffic = text
			s.mu.Unlock()
			s.logger.Info("prompt reloaded", "file", s.trafficPath)
		}
	case samePath(changed, s.hubPath):
		if text := loadOrDefault(s.hubPath, defaultHubPrompt, s.logger); text != "" {
			s.mu.Lock()
			s.hub = text
			s.mu.Unlock()
			s.logger.Info("prompt reloaded", "file", s.hubPath)
		}
	}
}

func samePath(a, b string) bool {
	if b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func loadOrDefault(path, fallback string, logger *slog.Logger) string {
	if path == "" {
		return fallback
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("prompt file unreadable", "file", path, "error", err)
		}
		return fallback
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fallback
	}
	return text
}
