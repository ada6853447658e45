// ABOUTME: Open registry of entry types observed in the ledger
// ABOUTME: New types are recorded as data in types.json, never rejected
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/lockfile"
	"github.com/recallhq/recall/internal/util"
)

// TypeInfo records when a type was first observed and how often since.
type TypeInfo struct {
	FirstSeen string `json:"first_seen"`
	Count     int    `json:"count"`
}

// Registry tracks entry types in a JSON file beside the ledger. Any string
// is a valid type; unseen ones are added on first write.
type Registry struct {
	cfg *config.Config
}

// New returns a Registry over the configured data root.
func New(cfg *config.Config) *Registry {
	return &Registry{cfg: cfg}
}

// Record notes one occurrence of the given type, creating its entry if this
// is the first time it appears. The registry file is guarded by a lock so
// concurrent writers do not lose counts.
func (r *Registry) Record(typeName string) error {
	if typeName == "" {
		return nil
	}
	lockPath := r.cfg.TypesPath() + ".lock"
	return lockfile.WithLock(lockPath, r.cfg.LockTimeout, func() error {
		types, err := r.load()
		if err != nil {
			return err
		}
		info := types[typeName]
		if info.FirstSeen == "" {
			info.FirstSeen = util.IsoNow()
		}
		info.Count++
		types[typeName] = info
		return r.save(types)
	})
}

// Known returns the registered types sorted by name.
func (r *Registry) Known() ([]string, error) {
	types, err := r.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// All returns the full registry map.
func (r *Registry) All() (map[string]TypeInfo, error) {
	return r.load()
}

func (r *Registry) load() (map[string]TypeInfo, error) {
	data, err := os.ReadFile(r.cfg.TypesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]TypeInfo{}, nil
		}
		return nil, fmt.Errorf("reading type registry: %w", err)
	}
	types := map[string]TypeInfo{}
	if err := json.Unmarshal(data, &types); err != nil {
		// A corrupt registry is not worth failing a save over; start fresh.
		return map[string]TypeInfo{}, nil
	}
	return types, nil
}

func (r *Registry) save(types map[string]TypeInfo) error {
	data, err := json.MarshalIndent(types, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding type registry: %w", err)
	}
	tmp := r.cfg.TypesPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing type registry: %w", err)
	}
	if err := os.Rename(tmp, r.cfg.TypesPath()); err != nil {
		return fmt.Errorf("replacing type registry: %w", err)
	}
	return nil
}
