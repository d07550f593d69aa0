package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

const (
	defaultInitializer      = "initialize"
	defaultAllocationMethod = "setStrategy(address,uint256)"
	defaultMaxWeight        = 1_000_000
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	converter *Converter
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{converter: NewConverter()}
}

// Load parses every .hcl file under the given paths and merges their blocks
// into one model. Blocks keep file order, then declaration order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{
		Networks:  make(map[string]*config.NetworkDefinition),
		Constants: make(map[string]cty.Value),
	}

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(hclFiles) == 0 {
		return nil, nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if err := l.merge(ctx, model, &root); err != nil {
			return nil, nil, fmt.Errorf("in %s: %w", file, err)
		}
	}

	if len(model.Settings.HeldAuthorities) == 0 {
		model.Settings.HeldAuthorities = []string{config.AuthorityDeployer}
	}
	if err := model.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid deployment configuration: %w", err)
	}
	if err := l.validateReferences(model); err != nil {
		return nil, nil, fmt.Errorf("invalid deployment configuration: %w", err)
	}

	logger.Debug("HCL loading complete.",
		"networks", len(model.Networks),
		"components", len(model.Components),
		"wires", len(model.Wires),
		"upgrades", len(model.Upgrades),
		"checks", len(model.Checks),
	)
	return model, l.converter, nil
}

// merge translates the blocks of one file into the model.
func (l *Loader) merge(ctx context.Context, model *config.Model, root *fileRoot) error {
	for _, s := range root.Settings {
		model.Settings.HeldAuthorities = append(model.Settings.HeldAuthorities, s.HeldAuthorities...)
	}
	for _, n := range root.Networks {
		if _, dup := model.Networks[n.Name]; dup {
			return fmt.Errorf("network %q declared twice", n.Name)
		}
		model.Networks[n.Name] = translateNetwork(n)
	}
	for _, c := range root.Constants {
		if err := l.mergeConstants(model, c); err != nil {
			return err
		}
	}
	for _, c := range root.Components {
		desc, err := translateComponent(ctx, c)
		if err != nil {
			return err
		}
		model.Components = append(model.Components, desc)
	}
	for _, a := range root.Allocations {
		if model.Allocation != nil {
			return errors.New("only one allocation block is allowed")
		}
		model.Allocation = translateAllocation(ctx, a)
	}
	for _, w := range root.Wires {
		step, err := translateWire(ctx, w)
		if err != nil {
			return err
		}
		model.Wires = append(model.Wires, step)
	}
	for _, u := range root.Upgrades {
		model.Upgrades = append(model.Upgrades, &config.UpgradeDescriptor{
			Name:      u.Name,
			Contract:  u.Contract,
			Proxy:     u.Proxy,
			Authority: u.Authority,
		})
	}
	for _, c := range root.Checks {
		check, err := translateCheck(ctx, c)
		if err != nil {
			return err
		}
		model.Checks = append(model.Checks, check)
	}
	return nil
}

func (l *Loader) mergeConstants(model *config.Model, block *constantsBlock) error {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("constants: %w", diags)
	}
	for name, attr := range attrs {
		if _, dup := model.Constants[name]; dup {
			return fmt.Errorf("constant %q declared twice", name)
		}
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("constant %q must be a literal: %w", name, diags)
		}
		model.Constants[name] = val
	}
	return nil
}

// validateReferences rejects expressions that read unknown roots or name
// components, upgrades or constants that are never declared. Whether a
// declared component exists yet is only known at run time.
func (l *Loader) validateReferences(model *config.Model) error {
	declared := make(map[string]bool)
	for _, c := range model.Components {
		declared[c.Name] = true
	}
	staged := make(map[string]bool)
	for _, u := range model.Upgrades {
		staged[u.Name] = true
	}

	var errs []error
	for _, expr := range model.Expressions() {
		for _, ref := range l.converter.References(expr) {
			var ok bool
			switch ref.Root {
			case config.RootDeployer:
				ok = ref.Name == ""
			case config.RootNetwork:
				ok = ref.Name != ""
			case config.RootConst:
				_, ok = model.Constants[ref.Name]
			case config.RootComponent:
				ok = declared[ref.Name]
			case config.RootImplementation:
				ok = declared[ref.Name] || staged[ref.Name]
			}
			if !ok {
				errs = append(errs, fmt.Errorf("%s: unknown reference %s", expr.Range(), ref))
			}
		}
	}
	return errors.Join(errs...)
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			add(path)
			continue
		}

		var found []string
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.Sort(found)
		for _, p := range found {
			add(p)
		}
	}
	return allFiles, nil
}

var _ config.Loader = (*Loader)(nil)

