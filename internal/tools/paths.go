package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathPolicy restricts filesystem access to an allow-list minus a deny-list.
// Deny takes precedence over allow. An empty allow-list permits everything
// not denied.
type PathPolicy struct {
	Allow []string
	Deny  []string
}

// Check returns an error when the path falls outside the policy. Paths are
// compared after Clean; a prefix entry covers its whole subtree.
func (p PathPolicy) Check(path string) error {
	cleaned := filepath.Clean(path)
	for _, deny := range p.Deny {
		if underPrefix(cleaned, deny) {
			return fmt.Errorf("path %s is denied by policy", cleaned)
		}
	}
	if len(p.Allow) == 0 {
		return nil
	}
	for _, allow := range p.Allow {
		if underPrefix(cleaned, allow) {
			return nil
		}
	}
	return fmt.Errorf("path %s is outside the allowed paths", cleaned)
}

func underPrefix(path, prefix string) bool {
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
