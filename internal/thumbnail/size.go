package thumbnail

import (
	"fmt"
	"strings"
)

// Size is a thumbnail size class. Its string form is what gets persisted.
type Size string

const (
	// SizeSmall fits within 128x128.
	SizeSmall Size = "small"
	// SizeMedium fits within 256x256.
	SizeMedium Size = "medium"
	// SizeLarge fits within 512x512.
	SizeLarge Size = "large"
)

// AllSizes returns every size class in ascending order.
func AllSizes() []Size {
	return []Size{SizeSmall, SizeMedium, SizeLarge}
}

// Dimensions returns the bounding box for the size class, or 0 for an
// unknown size.
func (s Size) Dimensions() int {
	switch s {
	case SizeSmall:
		return 128
	case SizeMedium:
		return 256
	case SizeLarge:
		return 512
	}
	return 0
}

// Valid reports whether s is one of the known size classes.
func (s Size) Valid() bool {
	return s.Dimensions() > 0
}

func (s Size) String() string {
	return string(s)
}

// ParseSize parses a size class name. Matching ignores case and surrounding
// whitespace.
func ParseSize(name string) (Size, error) {
	s := Size(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSize, name)
	}
	return s, nil
}

// ParseSizes parses a comma separated list such as "small,large".
// Empty elements are ignored and duplicates are collapsed.
func ParseSizes(list string) ([]Size, error) {
	var sizes []Size
	seen := make(map[Size]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseSize(part)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			sizes = append(sizes, s)
		}
	}
	return sizes, nil
}

// UnmarshalText rejects unknown size names when decoding JSON or config.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
