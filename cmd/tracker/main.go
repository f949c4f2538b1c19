// Command tracker runs the tracker process: an in-memory metadata store and
// a command dispatcher for peer sessions (spec §4.F/§4.G/§4.H).
//
// Usage: tracker <tracker_info.txt> <1|2>
//
// The tracker info file holds two "<ip> <port>" lines; the second argument
// selects which line this tracker instance binds to, matching the original
// implementation's two-tracker convention (multi-tracker replication itself
// remains out of scope, per spec §1).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/vikramjeet-dev/swarmshare/internal/logging"
	"github.com/vikramjeet-dev/swarmshare/internal/tracker"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerinfo"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerstore"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <tracker_info.txt> <1|2>\n", os.Args[0])
		os.Exit(1)
	}

	log := logging.New(os.Stderr, "tracker")

	endpoints, err := trackerinfo.Load(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("failed to load tracker info file")
	}
	line, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.WithError(err).Fatal("tracker number must be 1 or 2")
	}
	self, err := trackerinfo.Select(endpoints, line)
	if err != nil {
		log.WithError(err).Fatal("failed to select tracker endpoint")
	}

	store := trackerstore.New()
	srv, err := tracker.NewServer(self.String(), store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to bind tracker listener")
	}
	log.WithField("addr", srv.Addr().String()).Info("tracker listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received termination signal")
		srv.Shutdown()
		cancel()
	}()

	go consoleLoop(srv, log)

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("tracker accept loop exited")
	}
}

// consoleLoop implements spec §9's resolution of the shutdown-authorization
// open question: only the tracker operator, typing at this process's own
// stdin, may trigger a global shutdown. The wire protocol's "shutdown" verb
// sent by a peer session is rejected (internal/tracker/handlers.go).
func consoleLoop(srv *tracker.Server, log *logrus.Entry) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if scanner.Text() == "shutdown" {
			log.Info("console shutdown command received")
			srv.Shutdown()
			return
		}
	}
}
