package mdcodec

import "strings"

// Code-block language identifiers as the document API numbers them.
var languageCodes = map[string]int{
	"plaintext":  1,
	"bash":       7,
	"csharp":     8,
	"cpp":        9,
	"c":          10,
	"css":        12,
	"dockerfile": 16,
	"go":         22,
	"html":       24,
	"java":       28,
	"javascript": 29,
	"json":       30,
	"kotlin":     32,
	"php":        39,
	"python":     43,
	"ruby":       46,
	"rust":       47,
	"shell":      51,
	"sql":        54,
	"swift":      55,
	"toml":       58,
	"typescript": 63,
	"xml":        66,
	"yaml":       67,
}

var languageNames = func() map[int]string {
	names := make(map[int]string, len(languageCodes))
	for name, code := range languageCodes {
		names[code] = name
	}
	return names
}()

var languageAliases = map[string]string{
	"sh":   "shell",
	"zsh":  "shell",
	"js":   "javascript",
	"ts":   "typescript",
	"py":   "python",
	"yml":  "yaml",
	"c++":  "cpp",
	"cs":   "csharp",
	"text": "plaintext",
	"txt":  "plaintext",
}

func languageCode(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := languageAliases[name]; ok {
		name = canonical
	}
	if code, ok := languageCodes[name]; ok {
		return code
	}
	return languageCodes["plaintext"]
}

func languageName(code int) string {
	name := languageNames[code]
	if name == "plaintext" {
		return ""
	}
	return name
}
