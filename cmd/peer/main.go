// Command peer runs one peer process: a chunk server (spec §4.D), a tracker
// session (spec §4.G), and an interactive command loop (spec §6, the
// front-end spec §1 treats as an external collaborator).
//
// Usage: peer <clientIp:clientPort> <tracker_info.txt>
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vikramjeet-dev/swarmshare/internal/chunkserver"
	"github.com/vikramjeet-dev/swarmshare/internal/downloader"
	"github.com/vikramjeet-dev/swarmshare/internal/logging"
	"github.com/vikramjeet-dev/swarmshare/internal/ownedfiles"
	"github.com/vikramjeet-dev/swarmshare/internal/peercli"
	"github.com/vikramjeet-dev/swarmshare/internal/sessioncache"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerclient"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerinfo"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <clientIp:clientPort> <tracker_info.txt>\n", os.Args[0])
		os.Exit(1)
	}
	clientAddr := os.Args[1]
	trackerInfoPath := os.Args[2]

	log := logging.New(os.Stderr, "peer")

	endpoints, err := trackerinfo.Load(trackerInfoPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load tracker info file")
	}
	trackerEndpoint, err := trackerinfo.Select(endpoints, 1)
	if err != nil {
		log.WithError(err).Fatal("failed to select tracker endpoint")
	}

	_, port, err := net.SplitHostPort(clientAddr)
	if err != nil {
		log.WithError(err).Fatal("malformed client address")
	}

	registry := ownedfiles.New()
	chunkSrv, err := chunkserver.New(net.JoinHostPort("", port), registry, log)
	if err != nil {
		log.WithError(err).Fatal("failed to bind chunk server")
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		if err := chunkSrv.Serve(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("chunk server exited")
		}
	}()

	tc, err := trackerclient.Dial(trackerEndpoint.String(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to tracker")
	}
	defer func() { _ = tc.Close() }()

	downDir, err := os.Getwd()
	if err != nil {
		log.WithError(err).Fatal("failed to determine working directory")
	}

	cachePath := filepath.Join(downDir, ".swarmshare-cache.sqlite3")
	cache, err := sessioncache.Open(cachePath)
	if err != nil {
		log.WithError(err).Warn("failed to open session cache, resuming downloads is disabled")
		cache = nil
	}

	dl := downloader.New(log)
	if cache != nil {
		dl = dl.WithCache(cache)
	}

	repl := peercli.New(tc, registry, dl, cache, downDir, log)
	defer func() { _ = repl.Close() }()

	log.WithField("tracker", trackerEndpoint.String()).WithField("listen_port", port).Info("peer ready")

	repl.Run(os.Stdin, os.Stdout)
}
