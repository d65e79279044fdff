package scans

import "strings"

// Mode enum: how the scanner process is launched
type Mode string

const (
	ModeBinary Mode = "binary"
	ModeDocker Mode = "docker"
)

// Bahasa -> ekstensi file snippet
var extensionByLanguage = map[string]string{
	"js":         "js",
	"javascript": "js",
	"ts":         "ts",
	"typescript": "ts",
	"java":       "java",
	"python":     "py",
	"py":         "py",
	"php":        "php",
	"cs":         "cs",
	"csharp":     "cs",
}

// SourceExtension maps a language identifier to the snippet file extension.
// Unknown languages fall back to "txt".
func SourceExtension(language string) string {
	if ext, ok := extensionByLanguage[strings.ToLower(strings.TrimSpace(language))]; ok {
		return ext
	}
	return "txt"
}

// SourceFileName is the name the snippet is written under in the scratch dir.
func SourceFileName(language string) string {
	return "source_code." + SourceExtension(language)
}

// ManifestFileName is the scanner manifest written next to the snippet.
const ManifestFileName = "sonar-project.properties"
