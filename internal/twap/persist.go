package twap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the on-disk form of the calculator state.
type snapshot struct {
	Windows map[string][]observation `msgpack:"windows"`
}

// Save writes the current windows to path as a msgpack blob so the rolling
// window survives restarts. The write goes through a temp file and rename.
func (c *Calculator) Save(path string) error {
	c.mu.Lock()
	snap := snapshot{Windows: make(map[string][]observation, len(c.windows))}
	for asset, obs := range c.windows {
		cp := make([]observation, len(obs))
		copy(cp, obs)
		snap.Windows[asset] = cp
	}
	c.mu.Unlock()

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal twap snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write twap snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace twap snapshot: %w", err)
	}
	return nil
}

// Load replaces the calculator state with the snapshot at path, pruning
// samples that have left the window in the meantime. A missing file is not
// an error; the calculator simply starts empty.
func (c *Calculator) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read twap snapshot: %w", err)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal twap snapshot: %w", err)
	}

	c.mu.Lock()
	c.windows = snap.Windows
	if c.windows == nil {
		c.windows = make(map[string][]observation)
	}
	for asset := range c.windows {
		c.pruneLocked(asset)
	}
	c.mu.Unlock()
	return nil
}
