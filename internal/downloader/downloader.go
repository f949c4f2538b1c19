// Package downloader implements the parallel chunk downloader (spec §4.E):
// rarest-first scheduling across a bounded worker pool, per-chunk integrity
// verification, reassembly into the destination file in index order, and a
// whole-file digest check.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/vikramjeet-dev/swarmshare/internal/chunking"
	"github.com/vikramjeet-dev/swarmshare/internal/digest"
	"github.com/vikramjeet-dev/swarmshare/internal/planformat"
	"github.com/vikramjeet-dev/swarmshare/internal/sessioncache"
)

// ErrMissingChunks is returned when one or more chunks could not be fetched
// from any holder (spec §4.E EXHAUSTED state); the destination file is left
// in place with whatever chunks were recovered written to it.
var ErrMissingChunks = errors.New("download incomplete: one or more chunks could not be verified from any holder")

// ErrVerificationFailed is returned when every chunk was recovered but the
// whole-file digest does not match the plan's file_sha1. Per spec §7 this
// is a warning, not a fatal error — the file is left in place.
var ErrVerificationFailed = errors.New("verification failed: reassembled file digest does not match expected file_sha1")

// defaultWorkers bounds the per-chunk worker pool (spec §9 design note:
// "a bounded worker pool ... is cleaner than one thread per chunk").
const defaultWorkers = 8

// Downloader fetches a file described by a DownloadPlan from the swarm.
type Downloader struct {
	fetcher ChunkFetcher
	workers int
	log     *logrus.Entry
	cache   *sessioncache.Cache
	// ShowProgress enables a live progress bar on stderr; disabled by
	// default so tests and headless runs stay quiet.
	ShowProgress bool
}

// New returns a Downloader using the real TCP fetcher.
func New(log *logrus.Entry) *Downloader {
	return &Downloader{fetcher: tcpFetcher{}, workers: defaultWorkers, log: log}
}

// WithFetcher overrides the chunk fetcher, used by tests to inject
// deterministic or adversarial peers.
func (d *Downloader) WithFetcher(f ChunkFetcher) *Downloader {
	d.fetcher = f
	return d
}

// WithWorkers overrides the worker pool size.
func (d *Downloader) WithWorkers(n int) *Downloader {
	d.workers = n
	return d
}

// WithCache enables resumable downloads (SPEC_FULL.md §4 supplement):
// chunks already verified on a prior attempt are read back from disk
// instead of re-fetched, and newly verified chunks are recorded for next
// time.
func (d *Downloader) WithCache(cache *sessioncache.Cache) *Downloader {
	d.cache = cache
	return d
}

// chunkResult is what one worker reports after exhausting a chunk's
// holder list.
type chunkResult struct {
	index int
	data  []byte // nil if every holder failed
}

// Download fetches fileName per plan into destDir/fileName, verifying every
// chunk and the whole file. It returns the destination path even on
// ErrMissingChunks/ErrVerificationFailed, since the file is left in place
// in both cases.
func (d *Downloader) Download(ctx context.Context, plan planformat.Plan, fileName, destDir string) (string, error) {
	downloadID := uuid.New().String()
	log := d.log.WithField("download", downloadID).WithField("file", fileName)
	log.Infof("starting download of %s (%s, %d chunks)", fileName, humanize.Bytes(uint64(plan.FileSize)), plan.TotalChunks)

	var bar *progressbar.ProgressBar
	if d.ShowProgress {
		bar = progressbar.DefaultBytes(plan.FileSize, fmt.Sprintf("downloading %s", fileName))
	}

	destPath := filepath.Join(destDir, fileName)

	var resumed map[int]bool
	if d.cache != nil {
		var err error
		resumed, err = d.cache.VerifiedChunks(plan.FileSHA1, fileName)
		if err != nil {
			log.WithError(err).Warn("failed to read session cache, starting fresh")
			resumed = nil
		} else if len(resumed) > 0 {
			log.Infof("resuming: %d of %d chunks already verified", len(resumed), plan.TotalChunks)
		}
	}

	order := planformat.SortRarestFirst(plan.Chunks)
	chunkData := make(map[int][]byte, len(order))

	var toFetch []planformat.Chunk
	for _, c := range order {
		if resumed[c.Index] {
			if data := loadResumedChunk(destPath, plan, c); data != nil {
				chunkData[c.Index] = data
				continue
			}
		}
		toFetch = append(toFetch, c)
	}

	queue := make(chan planformat.Chunk, len(toFetch))
	for _, c := range toFetch {
		queue <- c
	}
	close(queue)

	results := make(chan chunkResult, len(toFetch))
	workers := d.workers
	if workers > len(toFetch) {
		workers = len(toFetch)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range queue {
				data := d.fetchChunk(ctx, log, plan, fileName, c)
				if data != nil && bar != nil {
					_ = bar.Add(len(data))
				}
				results <- chunkResult{index: c.Index, data: data}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		chunkData[r.index] = r.data
		if r.data != nil && d.cache != nil {
			if err := d.cache.MarkVerified(plan.FileSHA1, fileName, r.index, destPath); err != nil {
				log.WithError(err).Debug("failed to record verified chunk in session cache")
			}
		}
	}

	missing, err := reassemble(destPath, plan, chunkData)
	if err != nil {
		return "", err
	}
	if missing > 0 {
		log.Warnf("reassembly incomplete: %d of %d chunks missing", missing, plan.TotalChunks)
		return destPath, ErrMissingChunks
	}

	gotSHA1, err := digest.File(destPath)
	if err != nil {
		return destPath, err
	}
	if gotSHA1 != plan.FileSHA1 {
		log.Warnf("file digest mismatch: got %s want %s", gotSHA1, plan.FileSHA1)
		return destPath, ErrVerificationFailed
	}

	log.Infof("download of %s complete and verified", fileName)
	return destPath, nil
}

// fetchChunk tries each holder in listed order (spec §4.E scheduling rule
// 3); the first verified fetch wins and remaining holders are abandoned.
// It returns nil if every holder was tried and failed (EXHAUSTED).
func (d *Downloader) fetchChunk(ctx context.Context, log *logrus.Entry, plan planformat.Plan, fileName string, c planformat.Chunk) []byte {
	_, length, err := chunking.Bounds(plan.FileSize, c.Index, plan.TotalChunks)
	if err != nil {
		log.WithError(err).Errorf("invalid chunk bounds for index %d", c.Index)
		return nil
	}

	for _, holder := range c.Holders {
		data, err := d.fetcher.Fetch(ctx, holder, fileName, c.Index, c.ExpectedSHA1, length)
		if err != nil {
			log.WithError(err).Debugf("attempt failed for chunk %d from %s", c.Index, holder.UserID)
			continue
		}
		return data
	}
	log.Warnf("chunk %d exhausted all %d holder(s)", c.Index, len(c.Holders))
	return nil
}

// loadResumedChunk re-reads and re-verifies a chunk previously marked
// verified in the session cache. A failed read or digest mismatch (the file
// was tampered with or truncated between runs) demotes the chunk back to
// "must fetch" rather than trusting stale disk state.
func loadResumedChunk(destPath string, plan planformat.Plan, c planformat.Chunk) []byte {
	offset, length, err := chunking.Bounds(plan.FileSize, c.Index, plan.TotalChunks)
	if err != nil {
		return nil
	}
	f, err := os.Open(destPath)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil
	}
	if digest.Bytes(buf) != c.ExpectedSHA1 {
		return nil
	}
	return buf
}

// reassemble writes chunkData into destPath in ascending index order. It
// does not truncate an existing file — a resumed download's already-verified
// bytes (read back by loadResumedChunk) must survive this pass. It returns
// the count of chunks that had no data (EXHAUSTED) — those are simply not
// written, leaving whatever bytes were already there. A missing chunk is
// never treated as success: the caller reports ErrMissingChunks even though
// writing continues for every chunk that is present.
func reassemble(destPath string, plan planformat.Plan, chunkData map[int][]byte) (missing int, err error) {
	f, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening destination file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for i := 0; i < plan.TotalChunks; i++ {
		data, ok := chunkData[i]
		if !ok || data == nil {
			missing++
			continue
		}
		offset, length, boundsErr := chunking.Bounds(plan.FileSize, i, plan.TotalChunks)
		if boundsErr != nil {
			return missing, boundsErr
		}
		if int64(len(data)) != length {
			return missing, fmt.Errorf("chunk %d has wrong length %d, want %d", i, len(data), length)
		}
		if _, err := f.WriteAt(data, offset); err != nil {
			return missing, fmt.Errorf("writing chunk %d: %w", i, err)
		}
	}

	if plan.TotalChunks == 0 {
		return 0, nil
	}
	return missing, nil
}
