package validator

// ValidateAgentPurpose validates the free-text purpose description attached
// to an analysis run. It is kept short and non-empty: the synthesizer
// tokenizes and quotes it verbatim inside finding narratives.
func ValidateAgentPurpose(purpose string) error {
	v := New()
	v.Required("purpose", purpose).
		MaxLength("purpose", purpose, 500, "purpose must not exceed 500 characters")
	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}
