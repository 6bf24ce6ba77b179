package depfile

import (
	"errors"
	"strings"
)

var (
	ErrEmpty    = errors.New("depfile is empty")
	ErrNoColon  = errors.New("expected ':' in depfile")
	ErrNoTarget = errors.New("depfile has no target")
)

// DepfileParser parses the make rule written by the compiler with
// -MMD -MP -MF. Only the first rule is read: its targets become Outs, its
// prerequisites Ins. The phony rules -MP appends after it are ignored.
type DepfileParser struct {
	outs_ []string
	ins_  []string
}

func NewDepfileParser() *DepfileParser {
	return &DepfileParser{}
}

func (this *DepfileParser) Outs() []string { return this.outs_ }
func (this *DepfileParser) Ins() []string  { return this.ins_ }

// / Parse an input file. Anything that does not look like a make rule is
// / rejected so that callers can fall back to rebuilding.
func (this *DepfileParser) Parse(content string) error {
	this.outs_ = this.outs_[:0]
	this.ins_ = this.ins_[:0]

	rule := firstRule(content)
	if rule == "" {
		return ErrEmpty
	}

	parsingTargets := true
	seen := make(map[string]bool)
	for _, tok := range tokenize(rule) {
		if parsingTargets {
			if tok.text == ":" && !tok.escapedColon {
				parsingTargets = false
				continue
			}
			if strings.HasSuffix(tok.text, ":") && !tok.escapedColon {
				if t := tok.text[:len(tok.text)-1]; t != "" {
					this.outs_ = append(this.outs_, t)
				}
				parsingTargets = false
				continue
			}
			this.outs_ = append(this.outs_, tok.text)
			continue
		}
		if !seen[tok.text] {
			seen[tok.text] = true
			this.ins_ = append(this.ins_, tok.text)
		}
	}
	if parsingTargets {
		return ErrNoColon
	}
	if len(this.outs_) == 0 {
		return ErrNoTarget
	}
	return nil
}

// firstRule returns the first non-blank logical line, with backslash
// continuations joined.
func firstRule(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var rule strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, " \t")
		if rule.Len() == 0 && (strings.TrimSpace(trimmed) == "" || strings.HasPrefix(strings.TrimSpace(trimmed), "#")) {
			continue
		}
		if strings.HasSuffix(trimmed, "\\") && !strings.HasSuffix(trimmed, "\\\\") {
			rule.WriteString(trimmed[:len(trimmed)-1])
			rule.WriteByte(' ')
			continue
		}
		rule.WriteString(trimmed)
		break
	}
	return strings.TrimSpace(rule.String())
}

type token struct {
	text         string
	escapedColon bool
}

// tokenize splits on unescaped blanks. "\ " is a space inside a path, "$$"
// is a dollar sign, "\#" a hash; any other backslash is kept.
func tokenize(rule string) []token {
	var toks []token
	var cur strings.Builder
	escapedColon := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, token{text: cur.String(), escapedColon: escapedColon})
		}
		cur.Reset()
		escapedColon = false
	}
	for i := 0; i < len(rule); i++ {
		c := rule[i]
		switch {
		case c == ' ' || c == '\t':
			flush()
		case c == '\\' && i+1 < len(rule) && (rule[i+1] == ' ' || rule[i+1] == '#'):
			cur.WriteByte(rule[i+1])
			i++
		case c == '\\' && i+1 < len(rule) && rule[i+1] == ':':
			cur.WriteByte(':')
			escapedColon = true
			i++
		case c == '$' && i+1 < len(rule) && rule[i+1] == '$':
			cur.WriteByte('$')
			i++
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks
}
