package tracker

import (
	"strconv"

	"github.com/vikramjeet-dev/swarmshare/internal/planformat"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerstore"
	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

// dispatch runs one command line for sess and returns the response line to
// write back (never empty — every command gets exactly one response line,
// per spec §4.G) and whether the session should end after writing it.
//
// list-type success responses (list_groups, list_requests, list_files) are
// rendered as a single space-joined line rather than one item per line.
// Spec §4.A leaves list framing unspecified beyond "free-form text ending
// in \n"; collapsing to one line sidesteps the embedded-newline framing
// ambiguity the wire format section calls out, the same way this
// implementation's download_info response already does (see DESIGN.md).
func (s *Server) dispatch(sess *session, tokens []string) (response string, terminate bool) {
	cmd := tokens[0]
	args := tokens[1:]

	if cmd == "create_user" {
		return s.handleCreateUser(args), false
	}
	if cmd == "login" {
		return s.handleLogin(sess, args), false
	}
	if cmd == "quit" {
		return "bye", true
	}
	if cmd == "shutdown" {
		return "Error: shutdown is an admin-only operation; use the tracker console", false
	}

	if sess.userID == "" {
		return errResponse(trackerstore.ErrNotLoggedIn), false
	}

	switch cmd {
	case "create_group":
		return s.handleCreateGroup(sess, args), false
	case "join_group":
		return s.handleJoinGroup(sess, args), false
	case "leave_group":
		return s.handleLeaveGroup(sess, args), false
	case "list_groups":
		return s.handleListGroups(), false
	case "list_requests":
		return s.handleListRequests(sess, args), false
	case "accept_request":
		return s.handleAcceptRequest(sess, args), false
	case "list_files":
		return s.handleListFiles(sess, args), false
	case "upload_file":
		return s.handleUploadFile(sess, args), false
	case "download_file":
		return s.handleDownloadFile(sess, args), false
	default:
		return "Error: unknown command", false
	}
}

func errResponse(err error) string {
	return "Error: " + err.Error()
}

func (s *Server) handleCreateUser(args []string) string {
	if len(args) != 2 {
		return "Error: usage: create_user <user_id> <password>"
	}
	if err := s.store.CreateUser(args[0], args[1]); err != nil {
		return errResponse(err)
	}
	return "ok"
}

func (s *Server) handleLogin(sess *session, args []string) string {
	if len(args) != 4 {
		return "Error: usage: login <user_id> <password> <ip> <port>"
	}
	if sess.userID != "" {
		return errResponse(trackerstore.ErrAlreadyLoggedIn)
	}
	uid, pwd, ip, port := args[0], args[1], args[2], args[3]
	if err := s.store.Login(uid, pwd, ip, port); err != nil {
		return errResponse(err)
	}
	sess.userID = uid
	return "ok"
}

func (s *Server) handleCreateGroup(sess *session, args []string) string {
	if len(args) != 1 {
		return "Error: usage: create_group <group_id>"
	}
	if err := s.store.CreateGroup(args[0], sess.userID); err != nil {
		return errResponse(err)
	}
	return "ok"
}

func (s *Server) handleJoinGroup(sess *session, args []string) string {
	if len(args) != 1 {
		return "Error: usage: join_group <group_id>"
	}
	if err := s.store.JoinGroup(args[0], sess.userID); err != nil {
		return errResponse(err)
	}
	return "ok"
}

func (s *Server) handleLeaveGroup(sess *session, args []string) string {
	if len(args) != 1 {
		return "Error: usage: leave_group <group_id>"
	}
	if err := s.store.LeaveGroup(args[0], sess.userID); err != nil {
		return errResponse(err)
	}
	return "ok"
}

func (s *Server) handleListGroups() string {
	return wire.Join(append([]string{"groups"}, s.store.ListGroups()...)...)
}

func (s *Server) handleListRequests(sess *session, args []string) string {
	if len(args) != 1 {
		return "Error: usage: list_requests <group_id>"
	}
	requests, err := s.store.ListRequests(args[0], sess.userID)
	if err != nil {
		return errResponse(err)
	}
	return wire.Join(append([]string{"requests"}, requests...)...)
}

func (s *Server) handleAcceptRequest(sess *session, args []string) string {
	if len(args) != 2 {
		return "Error: usage: accept_request <group_id> <user_id>"
	}
	if err := s.store.AcceptRequest(args[0], sess.userID, args[1]); err != nil {
		return errResponse(err)
	}
	return "ok"
}

func (s *Server) handleListFiles(sess *session, args []string) string {
	if len(args) != 1 {
		return "Error: usage: list_files <group_id>"
	}
	files, err := s.store.ListFiles(args[0], sess.userID)
	if err != nil {
		return errResponse(err)
	}
	return wire.Join(append([]string{"files"}, files...)...)
}

// handleUploadFile parses:
//
//	upload_file <group_id> <file_name> <file_size> <file_sha1> <chunk_sha1>...
func (s *Server) handleUploadFile(sess *session, args []string) string {
	if len(args) < 4 {
		return "Error: usage: upload_file <group_id> <file_name> <file_size> <file_sha1> [chunk_sha1 ...]"
	}
	gid, fileName := args[0], args[1]
	size, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return "Error: malformed file_size"
	}
	fileSHA1 := args[3]
	chunks := trackerstore.ChunkManifest(args[4:])

	if err := s.store.UploadFile(gid, sess.userID, fileName, size, fileSHA1, chunks); err != nil {
		return errResponse(err)
	}
	return "ok"
}

func (s *Server) handleDownloadFile(sess *session, args []string) string {
	if len(args) != 2 {
		return "Error: usage: download_file <group_id> <file_name>"
	}
	plan, err := s.store.DownloadFile(args[0], sess.userID, args[1])
	if err != nil {
		return errResponse(err)
	}
	return planformat.Encode(toPlanformatPlan(plan))
}

func toPlanformatPlan(plan trackerstore.DownloadPlan) planformat.Plan {
	out := planformat.Plan{
		FileSize:       plan.FileSize,
		TotalChunks:    plan.TotalChunks,
		ChunkSizeBytes: plan.ChunkSizeBytes,
		FileSHA1:       plan.FileSHA1,
		Chunks:         make([]planformat.Chunk, len(plan.Chunks)),
	}
	for i, c := range plan.Chunks {
		holders := make([]planformat.Holder, len(c.Holders))
		for j, h := range c.Holders {
			holders[j] = planformat.Holder{UserID: h.UserID, IP: h.IP, Port: h.Port}
		}
		out.Chunks[i] = planformat.Chunk{Index: c.Index, ExpectedSHA1: c.ExpectedSHA1, Holders: holders}
	}
	return out
}
