package filestore

import (
	"context"
	"fmt"
)

// Descriptor identifies a stored upload: which backend holds it, where,
// and the content fingerprint computed while storing it.
type Descriptor struct {
	Storage          string
	Path             string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	ChecksumSHA256   string
}

// Store persists uploaded receipt files and deletes them by descriptor.
type Store interface {
	// Store durably persists the file at sourcePath and returns its descriptor.
	Store(ctx context.Context, sourcePath, originalFilename string) (Descriptor, error)
	// Delete removes a stored file by (backend tag, relative path).
	Delete(ctx context.Context, storage, path string) error
}

// Backend is a Store bound to a single backend tag.
type Backend interface {
	Store
	// Tag is the backend identifier recorded in descriptors ("local", "s3").
	Tag() string
}

// Mux routes Store calls to a default backend and Delete calls to the
// backend named by the descriptor's storage tag, so jobs written under one
// backend remain deletable after the default changes.
type Mux struct {
	def      Backend
	backends map[string]Backend
}

// NewMux builds a mux storing to def and deleting across all given backends.
func NewMux(def Backend, others ...Backend) *Mux {
	m := &Mux{
		def:      def,
		backends: map[string]Backend{def.Tag(): def},
	}
	for _, b := range others {
		m.backends[b.Tag()] = b
	}
	return m
}

func (m *Mux) Store(ctx context.Context, sourcePath, originalFilename string) (Descriptor, error) {
	return m.def.Store(ctx, sourcePath, originalFilename)
}

func (m *Mux) Delete(ctx context.Context, storage, path string) error {
	b, ok := m.backends[storage]
	if !ok {
		return fmt.Errorf("unknown storage backend %q", storage)
	}
	return b.Delete(ctx, storage, path)
}
