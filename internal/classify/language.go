package classify

import "strings"

// Language is the detected content type of streamed text. The empty value
// means the type has not been determined yet (only whitespace so far).
type Language string

const (
	Unknown    Language = ""
	HTML       Language = "html"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
	CSS        Language = "css"
	JSON       Language = "json"
	Go         Language = "go"
	Bash       Language = "bash"
	Java       Language = "java"
	SQL        Language = "sql"
	Markdown   Language = "markdown"
	Plaintext  Language = "plaintext"
)

// marker maps a fence tag to a language.
type marker struct {
	tag  string
	lang Language
}

// markers is ordered longest tag first so that "javascript" wins over
// "java" and "json" over "js".
var markers = []marker{
	{"typescript", TypeScript},
	{"javascript", JavaScript},
	{"markdown", Markdown},
	{"golang", Go},
	{"python", Python},
	{"shell", Bash},
	{"html", HTML},
	{"json", JSON},
	{"java", Java},
	{"bash", Bash},
	{"htm", HTML},
	{"jsx", JavaScript},
	{"tsx", TypeScript},
	{"css", CSS},
	{"sql", SQL},
	{"js", JavaScript},
	{"ts", TypeScript},
	{"py", Python},
	{"go", Go},
	{"sh", Bash},
	{"md", Markdown},
}

// lookupFence matches the tag following an opening fence against the known
// markers, longest first. A marker only matches on a word boundary.
func lookupFence(tag string) (Language, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, m := range markers {
		if !strings.HasPrefix(tag, m.tag) {
			continue
		}
		if len(tag) == len(m.tag) || !isWordByte(tag[len(m.tag)]) {
			return m.lang, true
		}
	}
	return Unknown, false
}

func isWordByte(b byte) bool {
	return b == '_' || b == '-' || b == '+' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// ParseLanguage maps a user-supplied name (or alias) to a Language.
func ParseLanguage(name string) Language {
	if lang, ok := lookupFence(name); ok {
		return lang
	}
	return Plaintext
}
