package artifact

import "strings"

// GenericExtension is used when neither the block's language tag nor the
// mode names an extension.
const GenericExtension = "txt"

var extensions = map[string]string{
	"python": "py", "py": "py", "python3": "py",
	"c": "c", "h": "c",
	"cpp": "cpp", "c++": "cpp", "cc": "cpp", "cxx": "cpp", "hpp": "cpp",
	"java": "java",
	"javascript": "js", "js": "js", "node": "js", "jsx": "js",
	"typescript": "ts", "ts": "ts", "tsx": "ts",
	"go": "go", "golang": "go",
	"rust": "rs", "rs": "rs",
	"shell": "sh", "bash": "sh", "sh": "sh", "zsh": "sh", "console": "sh",
	"markdown": "md", "md": "md",
	"json": "json",
	"yaml": "yaml", "yml": "yaml",
	"toml": "toml",
	"html": "html", "xml": "xml",
	"css": "css",
	"sql": "sql",
	"kotlin": "kt", "kt": "kt",
	"ruby": "rb", "rb": "rb",
	"php": "php",
	"csharp": "cs", "cs": "cs", "c#": "cs",
	"swift": "swift",
	"text": "txt", "txt": "txt", "plaintext": "txt",
}

// Extension resolves the file extension for a block: a recognised language
// tag wins, then the mode's extension, then GenericExtension.
func Extension(language, modeExtension string) string {
	if ext, ok := extensions[strings.ToLower(strings.TrimSpace(language))]; ok {
		return ext
	}
	if modeExtension != "" {
		return modeExtension
	}
	return GenericExtension
}
