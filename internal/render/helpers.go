// Package render produces Graphviz DOT output for call graphs and method
// control flow graphs.
package render

import (
	"fmt"
	"sort"
	"strings"
)

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a method or class name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// javaName turns an internal class name into its dotted form.
// "java/lang/String" → "java.lang.String".
func javaName(s string) string { return strings.ReplaceAll(s, "/", ".") }

// stripMethodName removes the owner prefix from a method ID.
// "demo/Util.log()V" → "log()V". Returns the original if no match.
func stripMethodName(id, owner string) string {
	prefix := owner + "."
	if strings.HasPrefix(id, prefix) {
		return id[len(prefix):]
	}
	return id
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
