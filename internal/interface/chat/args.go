package chat

import (
	"strings"
	"unicode"
)

// splitCommand separates "!name rest of line" into its name and the rest.
func splitCommand(text string) (name, rest string) {
	text = strings.TrimSpace(strings.TrimPrefix(text, commandPrefix))
	name, rest, _ = strings.Cut(text, " ")
	return name, strings.TrimSpace(rest)
}

// parseArgs splits a command line into arguments. Double-quoted spans,
// including the curly quotes mobile keyboards insert, form one argument.
// An unterminated quote runs to the end of the line.
func parseArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	flush := func() {
		if started {
			args = append(args, current.String())
		}
		current.Reset()
		started = false
	}
	for _, r := range line {
		switch {
		case isQuote(r):
			if quoted {
				quoted = false
				flush()
				continue
			}
			flush()
			quoted = true
			started = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return args
}

func isQuote(r rune) bool {
	return r == '"' || r == '“' || r == '”'
}

// chunkMessages joins parts with sep into messages no longer than limit runes.
// A single part longer than limit is split across messages.
func chunkMessages(parts []string, sep string, limit int) []string {
	var (
		out     []string
		current []rune
	)
	sepRunes := []rune(sep)
	for _, part := range parts {
		runes := []rune(part)
		if len(current) > 0 && len(current)+len(sepRunes)+len(runes) <= limit {
			current = append(append(current, sepRunes...), runes...)
			continue
		}
		if len(current) > 0 {
			out = append(out, string(current))
			current = nil
		}
		for len(runes) > limit {
			out = append(out, string(runes[:limit]))
			runes = runes[limit:]
		}
		current = append(current, runes...)
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}
