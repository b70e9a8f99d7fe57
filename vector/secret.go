package vector

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

const mask = "**********"

// Secret holds a credential. Every textual rendering of a Secret is masked;
// the underlying value is only available through Reveal.
type Secret struct {
	value string
}

// NewSecret wraps s.
func NewSecret(s string) Secret {
	return Secret{value: s}
}

// Reveal returns the unmasked value.
func (s Secret) Reveal() string {
	return s.value
}

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool {
	return s.value == ""
}

func (s Secret) masked() string {
	if s.value == "" {
		return ""
	}
	return mask
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return s.masked()
}

// GoString implements fmt.GoStringer, so %#v stays masked too.
func (s Secret) GoString() string {
	return fmt.Sprintf("vector.Secret(%q)", s.masked())
}

// Format implements fmt.Formatter. All verbs print the mask.
func (s Secret) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = fmt.Fprint(f, s.GoString())
		return
	}
	_, _ = fmt.Fprint(f, s.masked())
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.masked())
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.masked())
}

// MarshalYAML implements yaml.Marshaler.
func (s Secret) MarshalYAML() (any, error) {
	return s.masked(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Secret) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.value = raw
	return nil
}
