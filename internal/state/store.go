// Package state persists the install pipeline's progress. The state file is a
// plain text file: the first line is the current-step token, every following
// line an append-only KEY=VALUE fact. The file is the single durable record the
// resumable installer relies on, so every mutation rewrites it atomically.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// Token is the value of the persisted step pointer. Besides the two sentinels
// and the reboot marker, any step name registered with the installer is a valid
// token. The store itself does not know the step registry; resolving a token to
// an ordinal is the orchestrator's job.
type Token string

const (
	// TokenStart is the sentinel for "nothing completed yet". Missing state
	// files and unrecognized tokens load as TokenStart.
	TokenStart Token = "START"

	// TokenComplete is the sentinel for "every step completed".
	TokenComplete Token = "COMPLETE"

	// TokenRebootRequired marks that the pipeline stopped deliberately to let
	// the operating system restart before the remaining steps run.
	TokenRebootRequired Token = "REBOOT_REQUIRED"
)

const stateFilePerms = 0600

// Store is the durable record of the last completed step plus the append-only
// facts written along the way. It assumes single-process usage; callers take an
// advisory lock (util.Lockfile) before mutating it.
type Store struct {
	path     string
	current  Token
	facts    map[string]string
	factKeys []string
}

// Open loads the state file at the given path. A missing file is not an error:
// it loads as TokenStart with no facts, which is exactly the state of a machine
// that has never run the installer.
func Open(path string) (*Store, error) {
	store := &Store{
		path:    path,
		current: TokenStart,
		facts:   map[string]string{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	} else if err != nil {
		return nil, errors.New(err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	if token := strings.TrimSpace(lines[0]); token != "" {
		store.current = Token(token)
	}

	for i, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			return nil, errors.New(MalformedStateFileError{Path: path, LineNum: i + 2, Line: line})
		}

		if _, exists := store.facts[key]; !exists {
			store.factKeys = append(store.factKeys, key)
		}

		store.facts[key] = value
	}

	return store, nil
}

// Path returns the location of the state file.
func (store *Store) Path() string {
	return store.path
}

// Current returns the persisted step pointer.
func (store *Store) Current() Token {
	return store.current
}

// Advance persists the given token as the new step pointer. Facts are preserved.
func (store *Store) Advance(token Token) error {
	previous := store.current
	store.current = token

	if err := store.write(); err != nil {
		store.current = previous
		return err
	}

	return nil
}

// Fact returns the value of the given fact and whether it was ever written.
func (store *Store) Fact(key string) (string, bool) {
	value, ok := store.facts[key]
	return value, ok
}

// Facts returns all facts in the order they were first written.
func (store *Store) Facts() []Fact {
	facts := make([]Fact, 0, len(store.factKeys))

	for _, key := range store.factKeys {
		facts = append(facts, Fact{Key: key, Value: store.facts[key]})
	}

	return facts
}

// SetFact records a KEY=VALUE fact. Facts are write-once: setting a fact to the
// value it already has is a no-op, setting it to a different value is an error.
// Later steps and the removal subsystem read facts to recover decisions made
// earlier, so silently rewriting one would falsify history.
func (store *Store) SetFact(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\n") || strings.Contains(value, "\n") {
		return errors.Errorf("invalid fact %q=%q: keys must be non-empty and free of '=' and newlines", key, value)
	}

	if existing, ok := store.facts[key]; ok {
		if existing == value {
			return nil
		}

		return errors.New(FactAlreadySetError{Key: key, Existing: existing, New: value})
	}

	store.facts[key] = value
	store.factKeys = append(store.factKeys, key)

	if err := store.write(); err != nil {
		delete(store.facts, key)
		store.factKeys = store.factKeys[:len(store.factKeys)-1]

		return err
	}

	return nil
}

// Reset deletes the state file and clears the in-memory record, restarting the
// pipeline from TokenStart.
func (store *Store) Reset() error {
	if err := os.Remove(store.path); err != nil && !os.IsNotExist(err) {
		return errors.New(err)
	}

	store.current = TokenStart
	store.facts = map[string]string{}
	store.factKeys = nil

	return nil
}

func (store *Store) write() error {
	if err := util.EnsureDirectory(filepath.Dir(store.path)); err != nil {
		return err
	}

	var sb strings.Builder

	sb.WriteString(string(store.current))
	sb.WriteString("\n")

	for _, key := range store.factKeys {
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(store.facts[key])
		sb.WriteString("\n")
	}

	return util.WriteFileAtomic(store.path, []byte(sb.String()), stateFilePerms)
}

// Fact is a single KEY=VALUE entry from the state file.
type Fact struct {
	Key   string
	Value string
}

// MalformedStateFileError is returned when a facts line cannot be parsed. The
// operator must repair or reset the state file.
type MalformedStateFileError struct {
	Path    string
	LineNum int
	Line    string
}

func (err MalformedStateFileError) Error() string {
	return fmt.Sprintf("malformed state file %s: line %d %q is not KEY=VALUE; repair the file or run reset", err.Path, err.LineNum, err.Line)
}

// FactAlreadySetError is returned on an attempt to rewrite a write-once fact.
type FactAlreadySetError struct {
	Key      string
	Existing string
	New      string
}

func (err FactAlreadySetError) Error() string {
	return fmt.Sprintf("fact %s is already recorded as %q and cannot be rewritten to %q", err.Key, err.Existing, err.New)
}
