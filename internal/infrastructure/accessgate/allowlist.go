package accessgate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is a static uploader gate fed by an externally managed YAML file
// and/or an environment override. Membership is the whole policy: no roles,
// no hierarchy.
type Allowlist struct {
	ids map[string]struct{}
}

type allowlistFile struct {
	Uploaders []string `yaml:"uploaders"`
}

// New builds a gate from explicit identities.
func New(identities []string) *Allowlist {
	ids := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ids[id] = struct{}{}
	}
	return &Allowlist{ids: ids}
}

// Load reads the YAML allow-list at path and merges extra identities (the
// comma-separated env override). A missing path with a non-empty override is
// not an error; an empty gate denies everyone.
func Load(path string, extra []string) (*Allowlist, error) {
	gate := New(extra)
	if path == "" {
		return gate, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && len(gate.ids) > 0 {
			return gate, nil
		}
		return nil, fmt.Errorf("read allowlist %s: %w", path, err)
	}

	var file allowlistFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	for _, id := range file.Uploaders {
		id = strings.TrimSpace(id)
		if id != "" {
			gate.ids[id] = struct{}{}
		}
	}
	return gate, nil
}

func (a *Allowlist) IsAuthorized(_ context.Context, identity string) bool {
	_, ok := a.ids[identity]
	return ok
}

func (a *Allowlist) Size() int {
	return len(a.ids)
}
