// Package artifacts reads compiled contracts from a Hardhat artifacts
// directory: ABI and bytecode per contract, plus the build-info files that
// carry the standard-JSON compiler input used for source verification.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kiko1842/vaultwire/internal/verify"
)

var (
	ErrUnknownContract = errors.New("unknown contract")
	ErrAmbiguousName   = errors.New("ambiguous contract name")
	ErrNoBuildInfo     = errors.New("no build info")
	ErrNotDeployable   = errors.New("contract has no bytecode")
)

// Contract is one compiled contract.
type Contract struct {
	Name             string
	SourceName       string
	ABI              abi.ABI
	Bytecode         []byte
	DeployedBytecode []byte

	buildInfo string
}

// FullyQualifiedName is "<source>:<contract>".
func (c *Contract) FullyQualifiedName() string {
	return c.SourceName + ":" + c.Name
}

// BuildInfo is the compiler invocation a contract came from.
type BuildInfo struct {
	SolcVersion     string          `json:"solcVersion"`
	SolcLongVersion string          `json:"solcLongVersion"`
	Input           json.RawMessage `json:"input"`
}

type artifactFile struct {
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}

type debugFile struct {
	BuildInfo string `json:"buildInfo"`
}

// Store indexes the contracts of one artifacts directory. It is safe for
// concurrent use.
type Store struct {
	byName map[string][]*Contract
	byFQN  map[string]*Contract

	mu     sync.Mutex
	builds map[string]*BuildInfo
}

// Load walks dir and parses every contract artifact in it. Build-info
// files are read lazily.
func Load(dir string) (*Store, error) {
	s := &Store{
		byName: make(map[string][]*Contract),
		byFQN:  make(map[string]*Contract),
		builds: make(map[string]*BuildInfo),
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}
		c, err := readArtifact(path)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", path, err)
		}
		if c == nil {
			return nil
		}
		s.byName[c.Name] = append(s.byName[c.Name], c)
		s.byFQN[c.FullyQualifiedName()] = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading artifacts from %s: %w", dir, err)
	}
	if len(s.byFQN) == 0 {
		return nil, fmt.Errorf("no contract artifacts found in %s", dir)
	}
	return s, nil
}

func readArtifact(path string) (*Contract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a artifactFile
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	if a.ContractName == "" || a.ABI == nil {
		// Not a contract artifact.
		return nil, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return nil, fmt.Errorf("abi: %w", err)
	}
	c := &Contract{Name: a.ContractName, SourceName: a.SourceName, ABI: parsed}
	if c.Bytecode, err = decodeHex(a.Bytecode); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	if c.DeployedBytecode, err = decodeHex(a.DeployedBytecode); err != nil {
		return nil, fmt.Errorf("deployedBytecode: %w", err)
	}

	dbgPath := strings.TrimSuffix(path, ".json") + ".dbg.json"
	if dbgRaw, err := os.ReadFile(dbgPath); err == nil {
		var dbg debugFile
		if err := json.Unmarshal(dbgRaw, &dbg); err != nil {
			return nil, fmt.Errorf("%s: %w", dbgPath, err)
		}
		if dbg.BuildInfo != "" {
			c.buildInfo = filepath.Join(filepath.Dir(path), dbg.BuildInfo)
		}
	}
	return c, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

// Contract finds a contract by bare or fully qualified name.
func (s *Store) Contract(name string) (*Contract, error) {
	if c, ok := s.byFQN[name]; ok {
		return c, nil
	}
	matches := s.byName[name]
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.FullyQualifiedName()
	}
	sort.Strings(names)
	return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousName, name, strings.Join(names, ", "))
}

// Deployable is Contract for contracts that must carry creation code.
func (s *Store) Deployable(name string) (*Contract, error) {
	c, err := s.Contract(name)
	if err != nil {
		return nil, err
	}
	if len(c.Bytecode) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployable, c.FullyQualifiedName())
	}
	return c, nil
}

// BuildInfo returns the compiler input and version of a contract.
func (s *Store) BuildInfo(name string) (*BuildInfo, error) {
	c, err := s.Contract(name)
	if err != nil {
		return nil, err
	}
	if c.buildInfo == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoBuildInfo, c.FullyQualifiedName())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.builds[c.buildInfo]; ok {
		return b, nil
	}

	raw, err := os.ReadFile(c.buildInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoBuildInfo, c.FullyQualifiedName(), err)
	}
	var b BuildInfo
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("build info %s: %w", c.buildInfo, err)
	}
	s.builds[c.buildInfo] = &b
	return &b, nil
}

// Source implements verify.SourceProvider.
func (s *Store) Source(name string) (verify.Source, error) {
	c, err := s.Contract(name)
	if err != nil {
		return verify.Source{}, err
	}
	b, err := s.BuildInfo(name)
	if err != nil {
		return verify.Source{}, err
	}
	version := b.SolcLongVersion
	if version == "" {
		version = b.SolcVersion
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return verify.Source{
		ContractName:    c.FullyQualifiedName(),
		CompilerVersion: version,
		StandardJSON:    string(b.Input),
	}, nil
}

var _ verify.SourceProvider = (*Store)(nil)
