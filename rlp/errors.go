package rlp

import "errors"

// ErrUnsupportedType is returned when EncodeToBytes is handed a shape
// this module never produces (anything beyond the byte slices/arrays,
// unsigned integers and structs of those that the traversal and trie
// packages build).
var ErrUnsupportedType = errors.New("rlp: unsupported type")
