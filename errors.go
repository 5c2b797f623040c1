package akaifat

import "github.com/pkg/errors"

// Errors returned by filesystem operations. Callers should match them
// with errors.Is; implementations wrap them with the offending name.
var (
	ErrDuplicateName      = errors.New("name already in use")
	ErrReadOnly           = errors.New("read-only")
	ErrMalformedDirectory = errors.New("malformed directory data")
	ErrShortNameExhausted = errors.New("no free short name")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrDirectoryFull      = errors.New("directory full")
	ErrNoSpace            = errors.New("no free clusters")
	ErrNotDirectory       = errors.New("not a directory")
	ErrNotFile            = errors.New("not a file")
)
