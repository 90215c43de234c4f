// Package framesource reads compressed video from files and replays it as
// a stream of compressed frames.
package framesource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/framedecode/pkg/ports"
)

var (
	// ErrNoVideoTrack is returned when an MP4 file has no H.264 video track.
	ErrNoVideoTrack = errors.New("framesource: no video track found")

	// ErrNoParameterSets is returned when an elementary stream has no SPS.
	ErrNoParameterSets = errors.New("framesource: no SPS in stream")
)

var startCode = []byte{0, 0, 0, 1}

// Open opens path as MP4 or as a raw H.264 elementary stream, judged by
// extension and then by content.
func Open(path string) (ports.FrameSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return OpenMP4(path)
	case ".h264", ".264", ".avc":
		return openAnnexB(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	head := make([]byte, 12)
	n, _ := io.ReadFull(f, head)
	f.Close()
	if isMP4(head[:n]) {
		return OpenMP4(path)
	}
	return openAnnexB(path)
}

func openAnnexB(path string) (*AnnexB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return NewAnnexB(f)
}

// isMP4 looks for an ISO BMFF box type in the first header.
func isMP4(head []byte) bool {
	if len(head) < 8 {
		return false
	}
	switch string(head[4:8]) {
	case "ftyp", "moov", "styp", "moof", "free", "mdat":
		return true
	}
	return false
}
