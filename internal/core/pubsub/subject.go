package pubsub

import "strings"

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// Token makes s usable as one subject token. Dots and wildcards are
// replaced, the empty string becomes "_".
func Token(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// Subject joins tokens into a subject, escaping each of them.
func Subject(tokens ...string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = Token(t)
	}
	return strings.Join(parts, ".")
}

// FullSubject prefixes subject with the stream name.
func FullSubject(stream, subject string) string {
	if stream == "" {
		return subject
	}
	if subject == "" {
		return stream + ".>"
	}
	return stream + "." + subject
}
