package ai

import (
	"fmt"
	"regexp"
	"strings"
)

func scenePrompt(theme string, count int) string {
	return fmt.Sprintf(
		"Generate %d specific photo descriptions for a travel photo pack themed %q. "+
			"Each should be one concrete scene or moment in a single sentence. Return them as a numbered list, one per line.",
		count, theme)
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// parseScenes turns a model reply into at most count scene lines.
// Numbering, bullets and quotes are stripped. Blank lines, code fences and
// lead-in lines ending with a colon are dropped.
func parseScenes(reply string, count int) []string {
	out := make([]string, 0, count)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"“”*`)
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out
}

// imagePrompt prefixes the configured character description to a scene.
func imagePrompt(character, scene string) string {
	character = strings.TrimSpace(character)
	if character == "" {
		return scene + ", natural lighting, candid moment, photorealistic travel photography"
	}
	return character + ", " + scene + ", aesthetic travel photography, soft color palette, natural pose"
}
