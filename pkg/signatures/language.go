package signatures

import (
	"path/filepath"
	"strings"
)

var languageAliases = map[string]string{
	"js":         "javascript",
	"jsx":        "javascript",
	"node":       "javascript",
	"nodejs":     "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"python3":    "python",
	"golang":     "go",
	"rb":         "ruby",
	"c#":         "csharp",
	"cs":         "csharp",
	"c++":        "cpp",
	"cc":         "cpp",
	"cxx":        "cpp",
	"kt":         "kotlin",
	"sh":         "shell",
	"bash":       "shell",
	"zsh":        "shell",
	"yml":        "yaml",
	"php3":       "php",
	"plaintext":  "",
	"plain text": "",
}

// NormalizeLanguage lowercases a language tag and folds common aliases, so
// "JS", "jsx" and "JavaScript" all become "javascript". The wildcard is kept.
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if alias, ok := languageAliases[tag]; ok {
		return alias
	}
	return tag
}

var extensionLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyw":   "python",
	".js":    "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".php":   "php",
	".rb":    "ruby",
	".cs":    "csharp",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".html":  "html",
	".htm":   "html",
}

// LanguageFromFilename maps a file extension to a language tag. It returns ""
// for unknown extensions.
func LanguageFromFilename(filename string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(filename))]
}
