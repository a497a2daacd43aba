package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/giantswarm/appenv/internal/config"
)

// Compute returns the fingerprint of a server configuration: a SHA256 over
// a canonical serialization of the semantically relevant fields, encoded as
// lowercase hex and truncated to 16 characters (64 bits).
//
// Included, in fixed order: launch kind, normalized base URL, normalized
// working directory, build target, command, ordered args, merged
// environment overrides (last-write-wins, names sorted), health paths
// (sorted; their order is not semantic).
//
// Excluded on purpose: the slot name (a slot's identity, not its
// configuration), startup timeout and probe tunings (retry policy must not
// force a restart), and the orchestrator instance (mechanism, not
// identity). Tests pin both lists.
//
// The config must have passed Validate; the only failure modes left are
// normalization errors (e.g. resolving a relative dir).
func Compute(cfg config.ServerConfig) (string, error) {
	baseURL, err := cfg.NormalizedBaseURL()
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", cfg.Slot, err)
	}
	dir, err := cfg.NormalizedDir()
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", cfg.Slot, err)
	}

	h := sha256.New()
	writeField(h, "kind", cfg.Launch.String())
	writeField(h, "url", baseURL)
	writeField(h, "dir", dir)
	writeField(h, "target", cfg.BuildTarget)
	writeField(h, "cmd", cfg.Command)
	for _, arg := range cfg.Args {
		writeField(h, "arg", arg)
	}

	merged := cfg.MergedEnv()
	for _, name := range config.SortedEnvNames(merged) {
		writeField(h, "env", name+"="+merged[name])
	}

	paths := append([]string(nil), cfg.EffectiveHealthPaths()...)
	sort.Strings(paths)
	for _, p := range paths {
		writeField(h, "health", p)
	}

	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// writeField hashes one named field with NUL framing so adjacent fields and
// list entries cannot collide ("ab"+"c" vs "a"+"bc").
func writeField(h hash.Hash, name, value string) {
	h.Write([]byte(name))     // hash.Hash.Write never returns an error
	h.Write([]byte{0})
	h.Write([]byte(value))
	h.Write([]byte{0})
}
