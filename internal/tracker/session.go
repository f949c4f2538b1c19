package tracker

import (
	"errors"
	"io"

	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

// handleSession runs the read-dispatch-write loop for one client until it
// disconnects or sends quit (spec §4.G). A logged-in user is logged out
// automatically on disconnect, mirroring an explicit logout.
func (s *Server) handleSession(sess *session) {
	log := s.log.WithField("session", sess.id).WithField("remote", sess.conn.RemoteAddr().String())
	log.Info("client connected")

	defer func() {
		if sess.userID != "" {
			s.store.Logout(sess.userID)
		}
		s.unregister(sess)
		_ = sess.conn.Close()
		log.Info("client disconnected")
	}()

	r := wire.NewReader(sess.conn)
	for {
		line, err := r.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("read error")
			}
			return
		}

		tokens := wire.Tokens(line)
		if len(tokens) == 0 {
			continue
		}

		response, terminate := s.dispatch(sess, tokens)
		if response != "" {
			if err := wire.WriteLine(sess.conn, response); err != nil {
				log.WithError(err).Debug("write error")
				return
			}
		}
		if terminate {
			return
		}
	}
}
