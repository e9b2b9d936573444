package agents

import (
	"path"
	"strings"
)

var extensionLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".jsx":   "javascript",
	".tsx":   "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".go":    "go",
	".rs":    "rust",
	".php":   "php",
	".rb":    "ruby",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".r":     "r",
	".m":     "matlab",
	".sh":    "bash",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sass":  "sass",
	".less":  "less",
	".xml":   "xml",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".md":    "markdown",
	".txt":   "text",
}

// DetectLanguage maps a file path to a language name by extension.
func DetectLanguage(filePath string) string {
	if lang, ok := extensionLanguages[strings.ToLower(path.Ext(filePath))]; ok {
		return lang
	}
	return "unknown"
}
