package envguard

import (
	"errors"
	"fmt"
	"os"
)

// entry records one key's state at capture time. present distinguishes an
// empty value from an unset variable; restore must reproduce both exactly.
type entry struct {
	key     string
	value   string
	present bool
}

// Snapshot holds the captured prior state of a set of environment keys.
// A Snapshot restores each key at most to the state observed at Capture
// time; it is single-use in spirit, though Restore is idempotent.
type Snapshot struct {
	entries []entry
}

// Capture records the current value (or absence) of each key. Duplicate
// keys are captured once, first occurrence wins, so a later Restore does
// not write the same key twice.
func Capture(keys ...string) *Snapshot {
	seen := make(map[string]struct{}, len(keys))
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		v, ok := os.LookupEnv(k)
		entries = append(entries, entry{key: k, value: v, present: ok})
	}
	return &Snapshot{entries: entries}
}

// Restore resets every captured key to its exact prior state: Setenv for
// keys that existed, Unsetenv for keys that did not. All keys are attempted
// even when some fail; failures are collected with errors.Join so a single
// bad key cannot leave the rest of the environment dirty.
func (s *Snapshot) Restore() error {
	var errs []error
	for _, e := range s.entries {
		var err error
		if e.present {
			err = os.Setenv(e.key, e.value)
		} else {
			err = os.Unsetenv(e.key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", e.key, err))
		}
	}
	return errors.Join(errs...)
}

// Keys returns the captured key names in capture order. Used for logging
// which variables a delegated launch touched.
func (s *Snapshot) Keys() []string {
	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.key
	}
	return keys
}
