package signature

import (
	"path"
	"strings"
)

// Candidates returns the approval patterns offered to the user for a
// signature, most specific first. The first entry is always the exact
// context key; the user never sees a pattern that was not derived here.
func Candidates(sig Signature) []string {
	out := []string{sig.ContextKey}

	switch sig.ToolName {
	case "bash":
		// "cargo test in /project" offers the command and directory
		// generalized independently, then both together.
		if sig.Command != "" && sig.Directory != "" {
			out = append(out,
				sig.Command+" * in "+sig.Directory,
				commandLine(sig)+" in *",
				sig.Command+" * in *",
			)
		}

	case "read", "write", "edit":
		prefix := sig.ToolName + "ing "
		if sig.ToolName == "write" || sig.ToolName == "edit" {
			prefix = "writing "
		}
		if target := strings.TrimPrefix(sig.ContextKey, prefix); target != sig.ContextKey {
			dir := path.Dir(target)
			if dir != "." && dir != "/" {
				out = append(out,
					prefix+dir+"/*",
					prefix+dir+"/**",
				)
			}
			out = append(out, prefix+"**")
		}

	case "webfetch":
		if target := strings.TrimPrefix(sig.ContextKey, "fetching "); target != sig.ContextKey {
			if host := urlPrefix(target); host != "" {
				out = append(out,
					"fetching "+host+"/*",
					"fetching "+host+"/**",
				)
			}
		}
	}

	return dedupe(out)
}

// commandLine reconstructs "command args" from the structured components.
func commandLine(sig Signature) string {
	if sig.Args == "" {
		return sig.Command
	}
	return sig.Command + " " + sig.Args
}

// urlPrefix returns scheme://host for a URL string, or "" when the string
// does not look like one.
func urlPrefix(raw string) string {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return ""
	}
	rest := raw[idx+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	if rest == "" {
		return ""
	}
	return raw[:idx+3] + rest
}

func dedupe(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := patterns[:0]
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
