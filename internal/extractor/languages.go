package extractor

import (
	"path"
	"strings"
)

// DefaultLanguages returns the built-in extension table. Keys include the
// leading dot; lookups try the exact extension first and then its lowercase
// form, so ".R" and ".r" may map independently.
func DefaultLanguages() map[string]string {
	return map[string]string{
		".py":       "python",
		".js":       "javascript",
		".jsx":      "javascript",
		".ts":       "typescript",
		".tsx":      "typescript",
		".java":     "java",
		".cpp":      "cpp",
		".cxx":      "cpp",
		".cc":       "cpp",
		".hpp":      "cpp",
		".c":        "c",
		".h":        "c",
		".cs":       "csharp",
		".go":       "go",
		".rs":       "rust",
		".php":      "php",
		".rb":       "ruby",
		".swift":    "swift",
		".kt":       "kotlin",
		".scala":    "scala",
		".sh":       "bash",
		".bash":     "bash",
		".zsh":      "bash",
		".sql":      "sql",
		".html":     "html",
		".htm":      "html",
		".css":      "css",
		".scss":     "css",
		".sass":     "css",
		".less":     "css",
		".json":     "json",
		".yaml":     "yaml",
		".yml":      "yaml",
		".xml":      "xml",
		".md":       "markdown",
		".markdown": "markdown",
		".rst":      "rst",
		".txt":      "text",
		".r":        "r",
		".R":        "r",
		".ps1":      "powershell",
		".psm1":     "powershell",
	}
}

// AlwaysExcludedDirs are skipped wherever they appear in a path
var AlwaysExcludedDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "__pycache__", "venv", ".venv", "env",
	"dist", "build", "target",
	".idea", ".vscode",
	".pytest_cache", ".mypy_cache", "coverage", "vendor",
}

// languageFor looks up the language of a file by extension
func languageFor(languages map[string]string, filePath string) (string, bool) {
	ext := path.Ext(filePath)
	if ext == "" {
		return "", false
	}
	if lang, ok := languages[ext]; ok {
		return lang, true
	}
	lang, ok := languages[strings.ToLower(ext)]
	return lang, ok
}
