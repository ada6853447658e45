// ABOUTME: Cross-process session-state coordinator
// ABOUTME: Lock-guarded per-session bookkeeping with at-most-once summary saves
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/lockfile"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// Coordinator answers "has this session's summary been saved?" and "how many
// facts has it recorded?" correctly across concurrent processes. All state
// lives in one small JSON file per session, guarded by a per-session lock.
type Coordinator struct {
	cfg *config.Config
}

// New returns a Coordinator over the configured data root.
func New(cfg *config.Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// ReadState loads a session's state without locking. It never fails: on any
// read or parse error it returns an empty state, which callers must treat as
// "not yet saved". A false "already saved" would drop data; a false "not
// saved" only risks a duplicate the atomic save path prevents anyway.
func (c *Coordinator) ReadState(sessionID string) *models.SessionState {
	state := &models.SessionState{SessionID: sessionID}
	data, err := os.ReadFile(c.cfg.SessionStatePath(sessionID))
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil {
		return &models.SessionState{SessionID: sessionID}
	}
	state.SessionID = sessionID
	return state
}

// MarkSummarySaved records that a summary has been persisted for the session
// and which save layer produced it.
func (c *Coordinator) MarkSummarySaved(sessionID, source string) error {
	return c.update(sessionID, func(state *models.SessionState) {
		state.SummarySaved = true
		state.SummarySource = source
	})
}

// IncrementFactCount bumps the session's fact counter, or the stage-summary
// counter for S-type saves.
func (c *Coordinator) IncrementFactCount(sessionID, memoryType string) error {
	return c.update(sessionID, func(state *models.SessionState) {
		if memoryType == models.MemoryStageSummary {
			state.StageSummaryCount++
		} else {
			state.FactCount++
		}
	})
}

// SaveSummaryAtomic persists a session summary at most once across any
// number of concurrent callers. Inside the per-session lock it re-checks
// summary_saved; the first caller through takes the global ledger lock, runs
// writeFn, and marks the state saved before releasing anything. Everyone
// else gets Exists without writeFn ever running.
func (c *Coordinator) SaveSummaryAtomic(sessionID, source string, writeFn func() error) models.SaveResult {
	result := models.SaveResult{Status: models.SaveError}

	err := lockfile.WithLock(c.cfg.SessionLockPath(sessionID), c.cfg.LockTimeout, func() error {
		state, err := c.load(sessionID)
		if err != nil {
			return err
		}
		if state.SummarySaved {
			result = models.SaveResult{Status: models.SaveExists, Reason: state.SummarySource}
			return nil
		}
		return lockfile.WithLock(c.cfg.LedgerLockPath(), c.cfg.LockTimeout, func() error {
			if err := writeFn(); err != nil {
				return fmt.Errorf("io_error: %w", err)
			}
			state.SummarySaved = true
			state.SummarySource = source
			if err := c.store(sessionID, state); err != nil {
				return fmt.Errorf("io_error: %w", err)
			}
			result = models.SaveResult{Status: models.SaveSaved}
			return nil
		})
	})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, memerr.ErrLockTimeout) {
			reason = "lock_timeout: " + reason
		}
		return models.SaveResult{Status: models.SaveError, Reason: reason}
	}
	return result
}

// ListStates returns every persisted session state.
func (c *Coordinator) ListStates() ([]*models.SessionState, error) {
	entries, err := os.ReadDir(c.cfg.StateDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state dir: %w", err)
	}
	var states []*models.SessionState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name[0] == '.' || len(name) < 6 || name[len(name)-5:] != ".json" {
			continue
		}
		states = append(states, c.ReadState(name[:len(name)-5]))
	}
	return states, nil
}

// update runs mutate over a session's state under its lock.
func (c *Coordinator) update(sessionID string, mutate func(*models.SessionState)) error {
	return lockfile.WithLock(c.cfg.SessionLockPath(sessionID), c.cfg.LockTimeout, func() error {
		state, err := c.load(sessionID)
		if err != nil {
			return err
		}
		mutate(state)
		return c.store(sessionID, state)
	})
}

// load reads a state file under an already-held lock. Missing files yield an
// empty state; unreadable or unparsable ones are a real error here, unlike
// the lock-free ReadState.
func (c *Coordinator) load(sessionID string) (*models.SessionState, error) {
	state := &models.SessionState{SessionID: sessionID}
	data, err := os.ReadFile(c.cfg.SessionStatePath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, fmt.Errorf("%w: reading session state: %v", memerr.ErrIOFailure, err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%w: session state %s: %v", memerr.ErrParseFailure, sessionID, err)
	}
	state.SessionID = sessionID
	return state, nil
}

// store writes a state file under an already-held lock.
func (c *Coordinator) store(sessionID string, state *models.SessionState) error {
	now := util.IsoNow()
	if state.CreatedAt == "" {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	if err := os.MkdirAll(c.cfg.StateDir(), 0o755); err != nil {
		return fmt.Errorf("%w: creating state dir: %v", memerr.ErrIOFailure, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	path := c.cfg.SessionStatePath(sessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing session state: %v", memerr.ErrIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: replacing session state: %v", memerr.ErrIOFailure, err)
	}
	return nil
}
