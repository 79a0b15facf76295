package catalog

import "errors"

// ErrUniverseNotFound is returned by ReadUniverse when cache_key has no
// matching document.
var ErrUniverseNotFound = errors.New("catalog: universe not found")

// ErrSymbolNotFound is returned by SymbolInfo when symbol is not in the
// catalog.
var ErrSymbolNotFound = errors.New("catalog: symbol not found")
