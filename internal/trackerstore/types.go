// Package trackerstore holds the tracker's in-memory metadata tables: users,
// groups, and files (spec §3/§4.F). The tracker never stores file contents,
// only this bookkeeping, and per spec §1 it never persists across restarts —
// everything here lives in memory for the lifetime of the tracker process.
package trackerstore

// Endpoint is a peer's advertised (ip, port), recorded at login and cleared
// on disconnect.
type Endpoint struct {
	IP   string
	Port string
}

// User is keyed by UserID, which is its own identity (spec §3).
type User struct {
	UserID   string
	Password string
	LoggedIn bool
	Endpoint Endpoint
}

// Group holds membership and join-request state (spec §3). The owner is
// always a member; Members and Pending are always disjoint; Pending
// preserves request arrival order.
type Group struct {
	GroupID string
	OwnerID string
	Members map[string]struct{}
	Pending []string
}

// ChunkManifest is the ordered list of per-chunk digests that identifies a
// file's content layout (512 KiB chunks, final chunk may be shorter).
type ChunkManifest []string

// File is keyed by (group ID, file name) with identity also bound to
// FileSHA1: two uploads of the same (name, sha1) collapse into one File,
// adding the second uploader to Owners.
type File struct {
	FileName string
	FileSize int64
	FileSHA1 string
	Chunks   ChunkManifest
	// Owners maps a user ID to the set of chunk indices it owns.
	Owners map[string]map[int]struct{}
}

// TotalChunks returns the number of chunks in the manifest.
func (f *File) TotalChunks() int {
	return len(f.Chunks)
}

// allChunkIndices returns {0, ..., TotalChunks-1} as a fresh set, used when
// an uploader becomes an owner of every chunk.
func allChunkIndices(n int) map[int]struct{} {
	set := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		set[i] = struct{}{}
	}
	return set
}
