package catalogs

import (
	_ "embed"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the embedded default catalog document
func Default() []byte {
	return defaultCatalog
}
