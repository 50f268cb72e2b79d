// Package loader defines how the keys of a node are persisted. A key is
// generated on the first start and loaded from then on.
package loader

// Generator is the interface to generate the data of a key.
type Generator interface {
	Generate() ([]byte, error)
}

// Loader is the interface to load or create a key.
type Loader interface {
	// LoadOrCreate loads the key if it exists, otherwise it generates and
	// stores a new one.
	LoadOrCreate(Generator) ([]byte, error)

	// Load returns the key, or an error if it does not exist.
	Load() ([]byte, error)
}

// GeneratorFunc is an adapter to use a function as a generator.
type GeneratorFunc func() ([]byte, error)

// Generate implements loader.Generator.
func (fn GeneratorFunc) Generate() ([]byte, error) {
	return fn()
}
