package session

import (
	"fmt"
	"io"
	"strings"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend builds the backend named by kind ("file", "sqlite" or
// "memory"). The returned Closer releases backend resources.
func OpenBackend(kind, path string) (Backend, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "file":
		return NewFileBackend(path), nopCloser{}, nil
	case "sqlite":
		b, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case "memory":
		return &MemoryBackend{}, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", kind)
	}
}
