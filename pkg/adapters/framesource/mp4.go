package framesource

import (
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framedecode/pkg/ports"
)

// MP4 yields the video samples of an MP4 file as Annex-B access units.
// Sync samples are prefixed with the track's SPS and PPS so the decoder can
// start or restart from them.
type MP4 struct {
	r      io.ReadSeeker
	closer io.Closer

	width, height int32
	paramSets     []byte

	// progressive layout
	stbl     *mp4.StblBox
	count    uint32
	syncs    map[uint32]bool
	sampleNr uint32

	// fragmented layout
	samples []mp4.FullSample
	idx     int
}

// OpenMP4 opens an MP4 file.
func OpenMP4(path string) (*MP4, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	src, err := NewMP4(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewMP4 reads the first H.264 video track of r.
func NewMP4(r io.ReadSeeker) (*MP4, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	moov := file.Moov
	if file.IsFragmented() && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return nil, fmt.Errorf("%w: no moov box", ErrNoVideoTrack)
	}
	trak, entry, err := videoTrack(moov)
	if err != nil {
		return nil, err
	}

	src := &MP4{
		r:         r,
		width:     int32(entry.Width),
		height:    int32(entry.Height),
		paramSets: parameterSets(entry),
	}

	if file.IsFragmented() {
		if err := src.loadFragments(file, moov, trak.Tkhd.TrackID); err != nil {
			return nil, err
		}
		return src, nil
	}

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsz == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	src.stbl = trak.Mdia.Minf.Stbl
	src.count = src.stbl.Stsz.SampleNumber
	src.sampleNr = 1
	if src.stbl.Stss != nil {
		src.syncs = make(map[uint32]bool, len(src.stbl.Stss.SampleNumber))
		for _, nr := range src.stbl.Stss.SampleNumber {
			src.syncs[nr] = true
		}
	}
	return src, nil
}

func videoTrack(moov *mp4.MoovBox) (*mp4.TrakBox, *mp4.VisualSampleEntryBox, error) {
	for _, trak := range moov.Traks {
		codec := codecFromTrack(trak)
		switch codec {
		case ports.CodecH264:
			for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
				if entry, ok := child.(*mp4.VisualSampleEntryBox); ok {
					return trak, entry, nil
				}
			}
		case ports.CodecHEVC:
			return nil, nil, fmt.Errorf("%w: hevc in mp4", ports.ErrUnsupportedCodec)
		}
	}
	return nil, nil, ErrNoVideoTrack
}

// codecFromTrack returns the codec of a video track, or "" for anything
// else.
func codecFromTrack(trak *mp4.TrakBox) ports.Codec {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
		return ""
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return ""
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			return ports.CodecH264
		case "hvc1", "hev1":
			return ports.CodecHEVC
		}
	}
	return ""
}

func parameterSets(entry *mp4.VisualSampleEntryBox) []byte {
	if entry.AvcC == nil {
		return nil
	}
	var out []byte
	for _, sps := range entry.AvcC.SPSnalus {
		out = append(out, startCode...)
		out = append(out, sps...)
	}
	for _, pps := range entry.AvcC.PPSnalus {
		out = append(out, startCode...)
		out = append(out, pps...)
	}
	return out
}

func (s *MP4) loadFragments(file *mp4.File, moov *mp4.MoovBox, trackID uint32) error {
	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}
				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return fmt.Errorf("get samples: %w", err)
				}
				s.samples = append(s.samples, samples...)
			}
		}
	}
	return nil
}

// Size returns the picture size from the sample entry.
func (s *MP4) Size() (int32, int32) { return s.width, s.height }

// Next returns the next sample as a compressed frame.
func (s *MP4) Next() (ports.CompressedVideoFrame, error) {
	var (
		data []byte
		sync bool
	)
	if s.stbl != nil {
		if s.sampleNr > s.count {
			return ports.CompressedVideoFrame{}, io.EOF
		}
		nr := s.sampleNr
		s.sampleNr++
		sample, err := readSample(s.stbl, s.r, nr)
		if err != nil {
			return ports.CompressedVideoFrame{}, fmt.Errorf("sample %d: %w", nr, err)
		}
		data = sample
		sync = s.syncs == nil || s.syncs[nr] || nr == 1
	} else {
		if s.idx >= len(s.samples) {
			return ports.CompressedVideoFrame{}, io.EOF
		}
		sample := s.samples[s.idx]
		data = sample.Data
		sync = sample.Flags == mp4.SyncSampleFlags || s.idx == 0
		s.idx++
	}

	annexB := avccToAnnexB(data)
	if sync && len(s.paramSets) > 0 {
		buf := make([]byte, 0, len(s.paramSets)+len(annexB))
		buf = append(buf, s.paramSets...)
		annexB = append(buf, annexB...)
	}
	return ports.CompressedVideoFrame{Width: s.width, Height: s.height, Buffer: annexB}, nil
}

// Close closes the underlying file when the source opened it.
func (s *MP4) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// readSample reads one sample of a progressive file through the chunk
// tables.
func readSample(stbl *mp4.StblBox, r io.ReadSeeker, sampleNr uint32) ([]byte, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("missing stsc or stsz box")
	}
	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return nil, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for nr := uint32(firstSampleInChunk); nr < sampleNr; nr++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(nr)))
	}
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, stbl.Stsz.GetSampleSize(int(sampleNr)))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

// avccToAnnexB replaces the 4-byte length prefix of each NAL unit with a
// start code.
func avccToAnnexB(data []byte) []byte {
	result := make([]byte, 0, len(data))
	offset := 0
	for offset+4 <= len(data) {
		n := int(data[offset])<<24 | int(data[offset+1])<<16 | int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4
		if n < 0 || offset+n > len(data) {
			break
		}
		result = append(result, startCode...)
		result = append(result, data[offset:offset+n]...)
		offset += n
	}
	return result
}

var _ ports.FrameSource = (*MP4)(nil)
