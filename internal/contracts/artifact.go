// Package contracts loads compiled contract artifacts produced by forge or hardhat.
package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotFound is returned when no artifact exists for a contract name.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a compiled contract with ABI and creation bytecode.
type Artifact struct {
	Name     string
	Path     string
	ABI      abi.ABI
	Bytecode []byte
}

// artifactJSON covers both layouts: forge writes bytecode as {"object": "0x.."},
// hardhat writes it as a plain hex string.
type artifactJSON struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     bytecodeField   `json:"bytecode"`
}

type bytecodeField struct {
	Object string `json:"object"`
}

func (b *bytecodeField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bytecode must be a string or {object}: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// Parse decodes an artifact JSON document.
func Parse(name string, data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", name, err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("artifact %s has no abi", name)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("parse abi for %s: %w", name, err)
	}

	code := strings.TrimSpace(raw.Bytecode.Object)
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	if code == "0x" {
		return nil, fmt.Errorf("artifact %s has empty bytecode (abstract contract or interface?)", name)
	}
	if strings.Contains(code, "__") {
		return nil, fmt.Errorf("artifact %s has unlinked library placeholders", name)
	}
	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode for %s: %w", name, err)
	}

	return &Artifact{Name: name, ABI: parsed, Bytecode: bytecode}, nil
}

// Store finds artifacts by contract name under a root directory and caches them.
type Store struct {
	root  string
	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewStore creates a store rooted at dir (e.g. "out" or "artifacts").
func NewStore(dir string) *Store {
	return &Store{root: dir, cache: map[string]*Artifact{}}
}

// Root returns the directory searched for artifacts.
func (s *Store) Root() string { return s.root }

// Add registers an already parsed artifact, shadowing anything on disk.
func (s *Store) Add(a *Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[a.Name] = a
}

// Get returns the artifact for name, searching for <name>.json on first use.
func (s *Store) Get(name string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.cache[name]; ok {
		return a, nil
	}

	path, err := s.find(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	a, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	a.Path = path
	s.cache[name] = a
	return a, nil
}

// find prefers <name>.sol/<name>.json, the layout both toolchains use,
// over a bare <name>.json anywhere under root. Debug files (*.dbg.json)
// are never matched.
func (s *Store) find(name string) (string, error) {
	if s.root == "" {
		return "", fmt.Errorf("%w: %s (no artifacts directory configured)", ErrNotFound, name)
	}
	target := name + ".json"
	var preferred, fallback string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" || d.Name() == "cache" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != target {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == name+".sol" {
			preferred = path
			return filepath.SkipAll
		}
		if fallback == "" {
			fallback = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search artifacts in %s: %w", s.root, err)
	}
	switch {
	case preferred != "":
		return preferred, nil
	case fallback != "":
		return fallback, nil
	}
	return "", fmt.Errorf("%w: %s under %s", ErrNotFound, name, s.root)
}
