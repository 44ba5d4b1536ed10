package types

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeIDChars = regexp.MustCompile(`[^\w\s-]`)
)

// NormalizePath canonicalizes a relative path: forward slashes, no leading "./",
// no duplicate separators. It is applied both when writing and when querying.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "." {
		return ""
	}
	return p
}

// FileStem returns the base name of a path without its extension
func FileStem(p string) string {
	base := path.Base(NormalizePath(p))
	if ext := path.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// ElementID derives the deterministic id of an element from its kind, file, name and line.
func ElementID(kind ElementKind, filePath, name string, line int) string {
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	return fmt.Sprintf("%s_%s_%s_%d", kind, NormalizePath(filePath), name, line)
}

// ModuleID is the id of the module element summarizing a parsed file
func ModuleID(filePath string) string {
	return "module_" + NormalizePath(filePath)
}

// FileID is the id of the whole-file fallback element
func FileID(filePath string) string {
	return "file_" + NormalizePath(filePath)
}

// MethodID embeds the owning class name so equal method names in different classes never collide
func MethodID(filePath, className, name string, line int) string {
	return fmt.Sprintf("method_%s_%s_%s_%d", NormalizePath(filePath), className, name, line)
}

// ImportID derives an import id from the import class and its names. Names are
// sorted first, so their order on the line does not matter.
func ImportID(filePath string, line int, importClass string, names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	key := importClass + "_" + strings.Join(sorted, ",")
	sum := md5.Sum([]byte(key))
	suffix, _ := strconv.ParseUint(hex.EncodeToString(sum[:2]), 16, 32)
	return fmt.Sprintf("import_%s_%d_%d", NormalizePath(filePath), line, suffix)
}

// HeadingID derives the id of a document heading
func HeadingID(filePath string, level int, text string, line int) string {
	p := strings.ReplaceAll(NormalizePath(filePath), "/", "_")
	return fmt.Sprintf("heading_%s_%d_%s_%d", p, level, SafeText(text), line)
}

// SafeText drops punctuation, turns spaces into underscores and lowercases text
func SafeText(text string) string {
	s := unsafeIDChars.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}
