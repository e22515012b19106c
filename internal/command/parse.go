package command

import "strings"

// ParseArgs maps free-form text onto cmd's options. Tokens of the form
// name:value set that option; other tokens fill the remaining options in
// declaration order. Surplus positional tokens are ignored.
func ParseArgs(cmd *Command, text string) map[string]string {
	opts := make(map[string]string)
	known := make(map[string]bool, len(cmd.Options))
	for _, o := range cmd.Options {
		known[o.Name] = true
	}

	var positional []string
	for _, tok := range strings.Fields(text) {
		if name, value, ok := strings.Cut(tok, ":"); ok && known[name] {
			opts[name] = value
			continue
		}
		positional = append(positional, tok)
	}

	for _, o := range cmd.Options {
		if len(positional) == 0 {
			break
		}
		if _, set := opts[o.Name]; set {
			continue
		}
		opts[o.Name] = positional[0]
		positional = positional[1:]
	}
	return opts
}
