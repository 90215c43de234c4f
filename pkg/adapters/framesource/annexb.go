package framesource

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/user/framedecode/pkg/ports"
)

// AnnexB yields the access units of a raw H.264 elementary stream. The
// frame dimensions follow the most recent SPS, so a resolution change in
// the stream shows up as a change in frame size.
type AnnexB struct {
	nalus  [][]byte
	pos    int
	width  int32
	height int32
}

// NewAnnexB reads the whole stream from r.
func NewAnnexB(r io.Reader) (*AnnexB, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	src := &AnnexB{nalus: avc.ExtractNalusFromByteStream(data)}

	// Frames before the first SPS take its dimensions.
	for _, nalu := range src.nalus {
		if len(nalu) > 0 && avc.GetNaluType(nalu[0]) == avc.NALU_SPS {
			if err := src.applySPS(nalu); err != nil {
				return nil, err
			}
			break
		}
	}
	if src.width == 0 {
		return nil, ErrNoParameterSets
	}
	return src, nil
}

func (s *AnnexB) applySPS(nalu []byte) error {
	sps, err := avc.ParseSPSNALUnit(nalu, false)
	if err != nil {
		return fmt.Errorf("parse SPS: %w", err)
	}
	s.width, s.height = int32(sps.Width), int32(sps.Height)
	return nil
}

// Next returns the next access unit.
func (s *AnnexB) Next() (ports.CompressedVideoFrame, error) {
	if s.pos >= len(s.nalus) {
		return ports.CompressedVideoFrame{}, io.EOF
	}

	var buf []byte
	seenVCL := false
	for s.pos < len(s.nalus) {
		nalu := s.nalus[s.pos]
		if len(nalu) == 0 {
			s.pos++
			continue
		}
		if seenVCL && startsAccessUnit(nalu) {
			break
		}
		typ := avc.GetNaluType(nalu[0])
		if typ == avc.NALU_SPS {
			if err := s.applySPS(nalu); err != nil {
				s.pos++
				return ports.CompressedVideoFrame{}, err
			}
		}
		if isVCL(typ) {
			seenVCL = true
		}
		buf = append(buf, startCode...)
		buf = append(buf, nalu...)
		s.pos++
	}
	return ports.CompressedVideoFrame{Width: s.width, Height: s.height, Buffer: buf}, nil
}

// Close does nothing.
func (s *AnnexB) Close() error { return nil }

func isVCL(t avc.NaluType) bool {
	return t >= avc.NALU_NON_IDR && t <= avc.NALU_IDR
}

// startsAccessUnit reports whether nalu opens a new access unit once the
// current one already holds a slice.
func startsAccessUnit(nalu []byte) bool {
	typ := avc.GetNaluType(nalu[0])
	switch {
	case typ == avc.NALU_AUD, typ == avc.NALU_SPS, typ == avc.NALU_PPS, typ == avc.NALU_SEI:
		return true
	case typ >= 14 && typ <= 18:
		return true
	case isVCL(typ):
		// first_mb_in_slice is ue(v); zero is encoded as a single 1 bit.
		return len(nalu) > 1 && nalu[1]&0x80 != 0
	}
	return false
}

var _ ports.FrameSource = (*AnnexB)(nil)
