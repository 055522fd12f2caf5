package store

// NewMemory returns a store with the file-store semantics and no disk
// backing. Tests substitute it for the real backends.
func NewMemory() *FileStore {
	return &FileStore{}
}
