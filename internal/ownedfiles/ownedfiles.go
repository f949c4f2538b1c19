// Package ownedfiles is the peer-side registry of locally published files
// (spec §4.C): a process-wide map from base file name to the manifest and
// on-disk path the chunk server needs to serve it. Entries are inserted
// after a successful upload and never removed in this design, so readers
// (the chunk server) do not need to lock against concurrent deletion —
// only against concurrent insertion of a different file.
package ownedfiles

import "sync"

// Info describes one file this peer can serve chunks for.
type Info struct {
	FileName  string
	OnDiskPath string
	FileSHA1  string
	Chunks    []string
}

// TotalChunks returns the manifest length.
func (i Info) TotalChunks() int {
	return len(i.Chunks)
}

// Registry is the process-wide owned-file table.
type Registry struct {
	mu    sync.RWMutex
	files map[string]Info
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{files: make(map[string]Info)}
}

// Put records fi, keyed by its base file name. A second Put for the same
// name overwrites the entry whatever its content; the tracker rejects a
// different sha1 under the same name only within one group, so uploading
// the same name to two groups replaces the earlier entry here.
func (r *Registry) Put(fi Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[fi.FileName] = fi
}

// Get looks up a file by base name.
func (r *Registry) Get(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fi, ok := r.files[name]
	return fi, ok
}
