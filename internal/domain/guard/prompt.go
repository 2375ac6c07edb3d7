package guard

import (
	"fmt"
	"strings"
)

func buildRetrievalPrompt(template, channel, sentinel string, rec Record) string {
	faq := fmt.Sprintf("Q: %s\nA: %s", rec.Question, rec.Answer)
	return strings.NewReplacer(
		"{channel}", channel,
		"{sentinel}", sentinel,
		"{faq}", faq,
	).Replace(template)
}

func buildFreeformPrompt(template, channel string) string {
	return strings.ReplaceAll(template, "{channel}", channel)
}
