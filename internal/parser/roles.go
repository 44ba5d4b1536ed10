package parser

import (
	"path"
	"strings"
)

// Role is the architectural role suggested by a class name
type Role string

const (
	RoleNone       Role = ""
	RoleEngine     Role = "engine"
	RoleStore      Role = "store"
	RoleIndex      Role = "index"
	RoleServer     Role = "server"
	RoleContext    Role = "context"
	RoleWatcher    Role = "watcher"
	RoleConfig     Role = "config"
	RoleManager    Role = "manager"
	RoleHandler    Role = "handler"
	RoleProcessor  Role = "processor"
	RoleRepository Role = "repository"
	RoleService    Role = "service"
)

// roleKeywords is ordered: the first keyword found in a name wins
var roleKeywords = []struct {
	keyword string
	role    Role
}{
	{"repository", RoleRepository},
	{"repo", RoleRepository},
	{"service", RoleService},
	{"handler", RoleHandler},
	{"engine", RoleEngine},
	{"store", RoleStore},
	{"index", RoleIndex},
	{"server", RoleServer},
	{"context", RoleContext},
	{"watcher", RoleWatcher},
	{"config", RoleConfig},
	{"settings", RoleConfig},
	{"manager", RoleManager},
	{"processor", RoleProcessor},
}

// DetectRole classifies a class by naming convention
func DetectRole(name string) Role {
	lower := strings.ToLower(name)
	for _, rk := range roleKeywords {
		if strings.Contains(lower, rk.keyword) {
			return rk.role
		}
	}
	return RoleNone
}

// testIndicators mark files that exist for tests, debugging or diagnostics
var testIndicators = []string{"test", "debug", "diagnose", "spec", "fixture", "mock"}

// IsTestFile reports whether a path looks like a test or diagnostic file
func IsTestFile(filePath string) bool {
	lower := strings.ToLower(filePath)
	base := path.Base(strings.ReplaceAll(lower, `\`, "/"))
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), "_test") {
		return true
	}
	for _, ind := range testIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
