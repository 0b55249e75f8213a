// Package prompt holds the static instruction text served to the
// orchestrating agent. The text is an artifact, not derived from any
// structured source; schema or tool changes must be mirrored here by hand.
package prompt

import _ "embed"

//go:embed system_prompt.md
var systemPrompt string

// System returns the support agent's operating instructions.
func System() string {
	return systemPrompt
}
