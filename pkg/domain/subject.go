package domain

// Subject names the structural entity being visualized (e.g. a simulation project).
// No internal structure is assumed.
type Subject string

// IsZero reports whether no subject is set.
func (s Subject) IsZero() bool {
	return s == ""
}

// Label builds the deterministic display label "{subject}.{format}".
func Label(subject Subject, format string) string {
	return string(subject) + "." + format
}
