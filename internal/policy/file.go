package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/claimline/internal/claim"
)

// FileDirectory serves policies from a YAML file holding a list of policies
// under a top-level "policies" key. The file is re-read when its
// modification time changes.
type FileDirectory struct {
	path string

	mu       sync.RWMutex
	policies []Policy
	modTime  time.Time
}

type policyFile struct {
	Policies []Policy `yaml:"policies"`
}

// NewFileDirectory creates a directory backed by the YAML file at path. A
// missing file behaves as an empty directory.
func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{path: path}
}

func (d *FileDirectory) load() ([]Policy, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat policy file: %w", err)
	}

	d.mu.RLock()
	if info.ModTime().Equal(d.modTime) && d.policies != nil {
		defer d.mu.RUnlock()
		return d.policies, nil
	}
	d.mu.RUnlock()

	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if f.Policies == nil {
		f.Policies = []Policy{}
	}

	d.mu.Lock()
	d.policies = f.Policies
	d.modTime = info.ModTime()
	d.mu.Unlock()
	slog.Debug("policy file loaded", "path", d.path, "count", len(f.Policies))
	return f.Policies, nil
}

func (d *FileDirectory) filter(match func(*Policy) bool) ([]Policy, error) {
	all, err := d.load()
	if err != nil {
		return nil, err
	}
	var out []Policy
	for i := range all {
		if match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (d *FileDirectory) FindByCitizenID(_ context.Context, kind claim.Type, citizenID string) ([]Policy, error) {
	return d.filter(func(p *Policy) bool {
		return p.Kind == kind && p.CitizenID == citizenID
	})
}

func (d *FileDirectory) FindByPlate(_ context.Context, plate string) ([]Policy, error) {
	want := NormalizePlate(plate)
	if want == "" {
		return nil, nil
	}
	return d.filter(func(p *Policy) bool {
		return p.Kind == claim.TypeCD && NormalizePlate(p.Plate) == want
	})
}

func (d *FileDirectory) FindByName(_ context.Context, kind claim.Type, query string) ([]Policy, error) {
	return d.filter(func(p *Policy) bool {
		return p.Kind == kind && matchesName(p, query)
	})
}

// Save writes policies to the file atomically, replacing its contents.
func (d *FileDirectory) Save(policies []Policy) error {
	data, err := yaml.Marshal(policyFile{Policies: policies})
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write policy file: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename policy file: %w", err)
	}
	return nil
}
