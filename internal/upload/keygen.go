package upload

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// KeyGenerator produces collision-resistant storage keys of the form
// "<uuid>.<extension>". Extensions are checked against an allow-list before
// they are embedded in any key.
type KeyGenerator struct {
	allowed map[string]struct{}
}

// NewKeyGenerator creates a KeyGenerator accepting the given extensions.
// An empty list allows every extension in the MIME registry.
func NewKeyGenerator(allowed []string) *KeyGenerator {
	if len(allowed) == 0 {
		allowed = KnownExtensions()
	}
	set := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &KeyGenerator{allowed: set}
}

// ValidateExtension normalizes extension and checks it against the allow-list.
func (g *KeyGenerator) ValidateExtension(extension string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	if !extensionPattern.MatchString(ext) {
		return "", ErrInvalidExtension
	}
	if _, ok := g.allowed[ext]; !ok {
		return "", ErrInvalidExtension
	}
	return ext, nil
}

// ValidateKey checks that key is a generated name with an allowed extension.
func (g *KeyGenerator) ValidateKey(key string) error {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 {
		return ErrInvalidExtension
	}
	_, err := g.ValidateExtension(key[i+1:])
	return err
}

// Generate returns a fresh key for extension. The identifier is a random
// (version 4) UUID, which carries 122 bits of entropy.
func (g *KeyGenerator) Generate(extension string) (string, error) {
	ext, err := g.ValidateExtension(extension)
	if err != nil {
		return "", err
	}
	return uuid.New().String() + "." + ext, nil
}
