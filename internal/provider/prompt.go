package provider

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// HistoryLimit is how many earlier subtitles are sent as context.
const HistoryLimit = 3

const instruction = `You are a subtitle translator.
Translate ALL text visible in this image into %[1]s.
CRITICAL RULES:
- Output ONLY the %[1]s translation
- Do NOT include ANY original characters
- Do NOT include labels or commentary
- If no text is visible, respond with exactly: ` + NoText

const contextHeader = "Context subtitles for consistency only; do not repeat them explicitly:"

// LanguageName returns the English name of a language code, or the code
// itself when it does not parse.
func LanguageName(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// BuildPrompt renders the translation instruction for target followed by the
// most recent non-empty history lines.
func BuildPrompt(target string, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, instruction, LanguageName(target))

	recent := make([]string, 0, len(history))
	for _, line := range history {
		if line = strings.TrimSpace(line); line != "" {
			recent = append(recent, line)
		}
	}
	if len(recent) > HistoryLimit {
		recent = recent[len(recent)-HistoryLimit:]
	}
	if len(recent) == 0 {
		return b.String()
	}
	b.WriteString("\n\n")
	b.WriteString(contextHeader)
	for _, line := range recent {
		b.WriteString("\n- ")
		b.WriteString(line)
	}
	return b.String()
}
