package domain

import dErrors "carp/pkg/domain-errors"

// RegistrationSource records which channel admitted a registration.
// Invariant: the value must be one of the supported sources.
type RegistrationSource string

const (
	SourceOnline RegistrationSource = "online"
	SourceWalkIn RegistrationSource = "walkin"
)

var validSources = map[RegistrationSource]bool{
	SourceOnline: true,
	SourceWalkIn: true,
}

// ParseRegistrationSource constructs a RegistrationSource from external input.
// An empty value defaults to SourceOnline.
//
// Errors: returns CodeInvalidInput when the value is unsupported.
func ParseRegistrationSource(s string) (RegistrationSource, error) {
	if s == "" {
		return SourceOnline, nil
	}
	src := RegistrationSource(s)
	if !src.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid registration source")
	}
	return src, nil
}

func (s RegistrationSource) IsValid() bool {
	return validSources[s]
}

func (s RegistrationSource) String() string {
	return string(s)
}
