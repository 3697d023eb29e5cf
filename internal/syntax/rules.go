package syntax

import (
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single rule's scan of a code block.
const matchTimeout = 2 * time.Second

type rule struct {
	re       *regexp2.Regexp
	category Category
}

func newRule(pattern string, category Category) rule {
	return compileRule(pattern, category, 0)
}

func newFoldedRule(pattern string, category Category) rule {
	return compileRule(pattern, category, regexp2.IgnoreCase)
}

func compileRule(pattern string, category Category, extra regexp2.RegexOptions) rule {
	re := regexp2.MustCompile(pattern, regexp2.ECMAScript|regexp2.Multiline|extra)
	re.MatchTimeout = matchTimeout
	return rule{re: re, category: category}
}

const (
	slashComment    = `//[^\n]*`
	hashComment     = `#[^\n]*`
	dashComment     = `--[^\n]*`
	blockComment    = `/\*[\s\S]*?\*/`
	doubleQuoted    = `"[^"\\]*(?:\\.[^"\\]*)*"`
	singleQuoted    = `'[^'\\]*(?:\\.[^'\\]*)*'`
	backtickQuoted  = "`[^`]*`"
	decimal         = `\b\d+(\.\d+)?\b`
	capitalizedName = `\b[A-Z][a-zA-Z0-9]*\b`
)

var (
	genericRules = []rule{
		newRule(slashComment, Comment),
		newRule(hashComment, Comment),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(backtickQuoted, String),
		newRule(decimal, Number),
	}

	scriptRules = []rule{
		newRule(slashComment, Comment),
		newRule(blockComment, Comment),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(backtickQuoted, String),
		newRule(decimal, Number),
		newRule(`\b(const|let|var|function|return|if|else|for|while|import|export|default|class|extends|new|this|typeof|async|await|try|catch|from|of|in|true|false|null|undefined|interface|type|enum|implements)\b`, Keyword),
		newRule(capitalizedName, Type),
		newRule(`\$\w+`, Variable),
		newRule(`=>|===?|!==?|<=|>=|&&|\|\||\?\?|[-+*/%=<>!]`, Operator),
	}

	pythonRules = []rule{
		newRule(hashComment, Comment),
		newRule(`"""[\s\S]*?"""|'''[\s\S]*?'''`, String),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(decimal, Number),
		newRule(`\b(def|class|import|from|return|if|elif|else|for|while|with|as|in|not|and|or|is|True|False|None|pass|raise|try|except|finally|lambda|yield|global|nonlocal|async|await)\b`, Keyword),
		newRule(capitalizedName, Type),
		newRule(`^[ \t]*@[\w.]+`, Attribute),
	}

	shellRules = []rule{
		newRule(hashComment, Comment),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(backtickQuoted, String),
		newRule(decimal, Number),
		newRule(`\b(if|then|fi|else|elif|for|do|done|while|case|esac|in|echo|export|source|cd|ls|grep|awk|sed|curl|wget|sudo|apt|pip|docker|git|npm|yarn|mkdir|rm|cp|mv|cat|tail|head|find|chmod|chown|systemctl|service|pkill|kill|ps|du|df|sort|uniq|wc|ssh|scp|rsync|nmap|tcpdump)\b`, Keyword),
		newRule(`\$\{?[\w@#?!*]+\}?`, Variable),
		newRule(`\B--?[A-Za-z][\w-]*`, Attribute),
	}

	yamlRules = []rule{
		newRule(hashComment, Comment),
		newRule(`"[^"]*"|'[^']*'`, String),
		newRule(`\b(true|false|null|yes|no)\b`, Keyword),
		newRule(`(?<=^[ \t]*(?:- )?)\w[\w.-]*(?=\s*:)`, Attribute),
		newRule(decimal, Number),
		newRule(`\$\{?\w+\}?`, Variable),
	}

	// The key rule precedes the string rule so an equal-length key wins.
	jsonRules = []rule{
		newRule(`"[^"\\]*(?:\\.[^"\\]*)*"(?=\s*:)`, Attribute),
		newRule(doubleQuoted, String),
		newRule(`\b(true|false|null)\b`, Keyword),
		newRule(`-?\b\d+(\.\d+)?([eE][-+]?\d+)?\b`, Number),
	}

	luaRules = []rule{
		newRule(`--\[\[[\s\S]*?\]\]`, Comment),
		newRule(dashComment, Comment),
		newRule(`\[\[[\s\S]*?\]\]`, String),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(decimal, Number),
		newRule(`\b(local|function|return|if|then|else|elseif|end|for|while|do|repeat|until|in|and|or|not|nil|true|false)\b`, Keyword),
	}

	sqlRules = []rule{
		newRule(dashComment, Comment),
		newRule(blockComment, Comment),
		newRule(singleQuoted, String),
		newRule(doubleQuoted, String),
		newRule(decimal, Number),
		newFoldedRule(`\b(SELECT|FROM|WHERE|JOIN|LEFT|RIGHT|INNER|OUTER|ON|GROUP|BY|ORDER|HAVING|INSERT|UPDATE|DELETE|INTO|VALUES|SET|CREATE|TABLE|INDEX|DROP|ALTER|AS|DISTINCT|COUNT|SUM|AVG|MAX|MIN|AND|OR|NOT|NULL|LIMIT|PRIMARY|KEY)\b`, Keyword),
		newRule(`<>|!=|<=|>=|[=<>*+-]`, Operator),
	}

	goRules = []rule{
		newRule(slashComment, Comment),
		newRule(blockComment, Comment),
		newRule(doubleQuoted, String),
		newRule(backtickQuoted, String),
		newRule(singleQuoted, String),
		newRule(decimal, Number),
		newRule(`\b(break|case|chan|const|continue|default|defer|else|fallthrough|for|func|go|goto|if|import|interface|map|package|range|return|select|struct|switch|type|var|nil|true|false|iota)\b`, Keyword),
		newRule(`\b(bool|byte|complex64|complex128|error|float32|float64|int|int8|int16|int32|int64|rune|string|uint|uint8|uint16|uint32|uint64|uintptr|any)\b`, Type),
		newRule(capitalizedName, Type),
		newRule(`:=|<-|==|!=|<=|>=|&&|\|\||[-+*/%=<>!&|^]`, Operator),
	}

	markupRules = []rule{
		newRule(`<!--[\s\S]*?-->`, Comment),
		newRule(`</?[A-Za-z][\w:.-]*|/?>`, Tag),
		newRule(`[A-Za-z_:][\w:.-]*(?=\s*=\s*["'])`, Attribute),
		newRule(`"[^"]*"|'[^']*'`, String),
		newRule(`&[#\w]+;`, Variable),
	}

	dockerfileRules = []rule{
		newRule(hashComment, Comment),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(decimal, Number),
		newFoldedRule(`^[ \t]*(FROM|RUN|CMD|LABEL|EXPOSE|ENV|ADD|COPY|ENTRYPOINT|VOLUME|USER|WORKDIR|ARG|ONBUILD|STOPSIGNAL|HEALTHCHECK|SHELL|AS)\b`, Keyword),
		newRule(`\$\{?\w+\}?`, Variable),
		newRule(`\B--[\w-]+`, Attribute),
	}

	configRules = []rule{
		newRule(hashComment, Comment),
		newRule(`^[ \t]*;[^\n]*`, Comment),
		newRule(doubleQuoted, String),
		newRule(singleQuoted, String),
		newRule(`^[ \t]*\[[^\]\n]+\]`, Tag),
		newRule(`^[ \t]*[\w.-]+(?=[ \t]*=)`, Attribute),
		newRule(`\b(true|false|yes|no|on|off)\b`, Keyword),
		newRule(decimal, Number),
		newRule(`\$\{?\w+\}?`, Variable),
	}
)

var languages = map[string][]rule{
	"bash":       shellRules,
	"yaml":       yamlRules,
	"json":       jsonRules,
	"javascript": scriptRules,
	"python":     pythonRules,
	"lua":        luaRules,
	"sql":        sqlRules,
	"go":         goRules,
	"html":       markupRules,
	"dockerfile": dockerfileRules,
	"ini":        configRules,
}

var aliases = map[string]string{
	"sh":         "bash",
	"shell":      "bash",
	"zsh":        "bash",
	"yml":        "yaml",
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "javascript",
	"typescript": "javascript",
	"tsx":        "javascript",
	"py":         "python",
	"golang":     "go",
	"xml":        "html",
	"svg":        "html",
	"docker":     "dockerfile",
	"toml":       "ini",
	"conf":       "ini",
	"env":        "ini",
}

// Language resolves a fence tag to the name of its rule set. Tags are matched
// case-insensitively. Unknown and empty tags resolve to "".
func Language(tag string) string {
	name := strings.ToLower(strings.TrimSpace(tag))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	if _, ok := languages[name]; ok {
		return name
	}
	return ""
}

// Languages lists every tag Tokenize recognizes, aliases included, sorted.
func Languages() []string {
	names := make([]string, 0, len(languages)+len(aliases))
	for name := range languages {
		names = append(names, name)
	}
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

func rulesFor(tag string) []rule {
	if name := Language(tag); name != "" {
		return languages[name]
	}
	return genericRules
}
