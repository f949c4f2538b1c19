// Package planformat encodes and decodes the download_file response (spec
// §6):
//
//	download_info <file_size> <total_chunks> <chunk_size> <file_sha1>
//	  {<idx> <holder_count> <chunk_sha1> {<uid> <ip> <port>}x holder_count}x total_chunks
//
// all on one whitespace-separated logical line.
package planformat

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

// Holder is a logged-in user known to currently own a chunk.
type Holder struct {
	UserID string
	IP     string
	Port   string
}

// Chunk is one chunk's expected digest and current holders.
type Chunk struct {
	Index        int
	ExpectedSHA1 string
	Holders      []Holder
}

// Plan is the decoded/encoded form of a download_file response.
type Plan struct {
	FileSize       int64
	TotalChunks    int
	ChunkSizeBytes int
	FileSHA1       string
	Chunks         []Chunk
}

// Encode renders plan as the single-line wire response.
func Encode(plan Plan) string {
	fields := []string{
		"download_info",
		strconv.FormatInt(plan.FileSize, 10),
		strconv.Itoa(plan.TotalChunks),
		strconv.Itoa(plan.ChunkSizeBytes),
		plan.FileSHA1,
	}
	for _, c := range plan.Chunks {
		fields = append(fields, strconv.Itoa(c.Index), strconv.Itoa(len(c.Holders)), c.ExpectedSHA1)
		for _, h := range c.Holders {
			fields = append(fields, h.UserID, h.IP, h.Port)
		}
	}
	return wire.Join(fields...)
}

// Decode parses a download_info line back into a Plan.
func Decode(line string) (Plan, error) {
	tokens := wire.Tokens(line)
	if len(tokens) < 5 || tokens[0] != "download_info" {
		return Plan{}, fmt.Errorf("malformed download_info response")
	}

	fileSize, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return Plan{}, fmt.Errorf("malformed file_size: %w", err)
	}
	totalChunks, err := strconv.Atoi(tokens[2])
	if err != nil {
		return Plan{}, fmt.Errorf("malformed total_chunks: %w", err)
	}
	chunkSize, err := strconv.Atoi(tokens[3])
	if err != nil {
		return Plan{}, fmt.Errorf("malformed chunk_size: %w", err)
	}
	fileSHA1 := tokens[4]

	plan := Plan{
		FileSize:       fileSize,
		TotalChunks:    totalChunks,
		ChunkSizeBytes: chunkSize,
		FileSHA1:       fileSHA1,
		Chunks:         make([]Chunk, 0, totalChunks),
	}

	pos := 5
	for len(plan.Chunks) < totalChunks {
		if pos+3 > len(tokens) {
			return Plan{}, fmt.Errorf("truncated download_info response")
		}
		index, err := strconv.Atoi(tokens[pos])
		if err != nil {
			return Plan{}, fmt.Errorf("malformed chunk index: %w", err)
		}
		holderCount, err := strconv.Atoi(tokens[pos+1])
		if err != nil {
			return Plan{}, fmt.Errorf("malformed holder_count: %w", err)
		}
		expected := tokens[pos+2]
		pos += 3

		var holders []Holder
		for i := 0; i < holderCount; i++ {
			if pos+3 > len(tokens) {
				return Plan{}, fmt.Errorf("truncated holder list")
			}
			holders = append(holders, Holder{UserID: tokens[pos], IP: tokens[pos+1], Port: tokens[pos+2]})
			pos += 3
		}

		plan.Chunks = append(plan.Chunks, Chunk{Index: index, ExpectedSHA1: expected, Holders: holders})
	}

	if pos != len(tokens) {
		return Plan{}, fmt.Errorf("trailing tokens in download_info response")
	}
	return plan, nil
}

// SortRarestFirst sorts a copy of chunks by ascending holder count, ties
// preserving original index order (spec §4.E scheduling rule 1).
func SortRarestFirst(chunks []Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Holders) < len(out[j].Holders)
	})
	return out
}
