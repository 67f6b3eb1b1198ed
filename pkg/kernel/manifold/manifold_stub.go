//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. Without the "manifold" build tag this stub is
// compiled instead and callers fall back to the sdfx kernel.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/papercut/pkg/kernel"
)

// Available reports whether the cgo kernel was compiled in.
const Available = false

// New returns an error indicating Manifold is not available.
func New() (kernel.Kernel, error) {
	return nil, errors.New("manifold kernel not available: build with -tags=manifold")
}
