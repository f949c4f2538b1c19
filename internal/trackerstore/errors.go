package trackerstore

import "errors"

// Sentinel errors classify failures per spec §7 (protocol, authorization,
// not-found, conflict, integrity). The tracker dispatcher renders any of
// these as "Error: <msg>\n" without tearing down the session.
var (
	ErrUserExists        = errors.New("user already exists")
	ErrNoSuchUser        = errors.New("no such user")
	ErrWrongPassword     = errors.New("wrong password")
	ErrAlreadyLoggedIn   = errors.New("already logged in")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrGroupExists       = errors.New("group already exists")
	ErrNoSuchGroup       = errors.New("no such group")
	ErrNotGroupOwner     = errors.New("not the group owner")
	ErrNotGroupMember    = errors.New("not a member of group")
	ErrAlreadyMember     = errors.New("already a member of group")
	ErrAlreadyPending    = errors.New("already requested to join group")
	ErrNoSuchRequest     = errors.New("no such pending request")
	ErrOwnerCannotLeave  = errors.New("owner cannot leave group")
	ErrNoSuchFile        = errors.New("no such file")
	ErrFileNameConflict  = errors.New("file name already exists in group with different content")
	ErrChunkIndexInvalid = errors.New("chunk index out of range")
)
