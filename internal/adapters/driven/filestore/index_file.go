package filestore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sort"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// corpus.index layout, little endian:
//
//	magic "QCVX" | version u16 | metric u8 | dims u32 | generation u64 | count u32
//	count x (id length u16 | id | dims x float32)
//	crc32 (IEEE) of everything above
var indexMagic = [4]byte{'Q', 'C', 'V', 'X'}

const (
	indexVersion = 1
	headerSize   = 4 + 2 + 1 + 4 + 8 + 4
)

type indexFile struct {
	generation uint64
	dims       int
	metric     domain.DistanceMetric
	records    []domain.IndexRecord
}

type indexHeader struct {
	generation uint64
	dims       int
	metric     domain.DistanceMetric
	count      int
}

func metricCode(m domain.DistanceMetric) byte {
	if m == domain.MetricCosine {
		return 1
	}
	return 0
}

func metricFromCode(c byte) (domain.DistanceMetric, error) {
	switch c {
	case 0:
		return domain.MetricL2, nil
	case 1:
		return domain.MetricCosine, nil
	default:
		return "", fmt.Errorf("%w: unknown metric code %d", domain.ErrCorruptPersistedState, c)
	}
}

func (x *indexFile) encode(f *os.File) error {
	records := append([]domain.IndexRecord(nil), x.records...)
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	crc := crc32.NewIEEE()
	w := bufio.NewWriter(io.MultiWriter(f, crc))

	var hdr [headerSize]byte
	copy(hdr[0:4], indexMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], indexVersion)
	hdr[6] = metricCode(x.metric)
	binary.LittleEndian.PutUint32(hdr[7:11], uint32(x.dims))
	binary.LittleEndian.PutUint64(hdr[11:19], x.generation)
	binary.LittleEndian.PutUint32(hdr[19:23], uint32(len(records)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	buf := make([]byte, 4*x.dims)
	for _, rec := range records {
		if len(rec.Vector) != x.dims {
			return fmt.Errorf("%w: vector %s has %d dimensions", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector))
		}
		if len(rec.ID) > math.MaxUint16 {
			return fmt.Errorf("%w: id too long", domain.ErrInvalidInput)
		}
		var idLen [2]byte
		binary.LittleEndian.PutUint16(idLen[:], uint16(len(rec.ID)))
		if _, err := w.Write(idLen[:]); err != nil {
			return err
		}
		if _, err := w.WriteString(rec.ID); err != nil {
			return err
		}
		for i, v := range rec.Vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc.Sum32())
	_, err := f.Write(sum[:])
	return err
}

func readHeader(r io.Reader) (*indexHeader, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: short index header: %v", domain.ErrCorruptPersistedState, err)
	}
	if [4]byte(hdr[0:4]) != indexMagic {
		return nil, fmt.Errorf("%w: bad index magic", domain.ErrCorruptPersistedState)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != indexVersion {
		return nil, fmt.Errorf("%w: unsupported index format %d", domain.ErrCorruptPersistedState, v)
	}
	metric, err := metricFromCode(hdr[6])
	if err != nil {
		return nil, err
	}
	return &indexHeader{
		dims:       int(binary.LittleEndian.Uint32(hdr[7:11])),
		generation: binary.LittleEndian.Uint64(hdr[11:19]),
		count:      int(binary.LittleEndian.Uint32(hdr[19:23])),
		metric:     metric,
	}, nil
}

func readIndexFile(path string) (*indexFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("%w: index file truncated", domain.ErrCorruptPersistedState)
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return nil, fmt.Errorf("%w: index checksum mismatch", domain.ErrCorruptPersistedState)
	}

	h, err := readHeader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := &indexFile{
		generation: h.generation,
		dims:       h.dims,
		metric:     h.metric,
		records:    make([]domain.IndexRecord, 0, h.count),
	}
	rest := body[headerSize:]
	for i := 0; i < h.count; i++ {
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: index record %d truncated", domain.ErrCorruptPersistedState, i)
		}
		idLen := int(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
		need := idLen + 4*h.dims
		if len(rest) < need {
			return nil, fmt.Errorf("%w: index record %d truncated", domain.ErrCorruptPersistedState, i)
		}
		id := string(rest[:idLen])
		vec := make([]float32, h.dims)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(rest[idLen+4*j:]))
		}
		out.records = append(out.records, domain.IndexRecord{ID: id, Vector: vec})
		rest = rest[need:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in index", domain.ErrCorruptPersistedState, len(rest))
	}
	return out, nil
}
