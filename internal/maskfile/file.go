package maskfile

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/samcharles93/bandmask/internal/logger"
	"github.com/samcharles93/bandmask/internal/mask"
)

// Write stores m at path. The file is written to a temporary sibling and
// renamed into place, so readers never observe a partial file.
func Write(path string, m *mask.Mask) error {
	if uint64(m.Size()) > math.MaxUint32 {
		return fmt.Errorf("mask capacity %d too large for mask file", m.Size())
	}
	buf := make([]byte, headerSize, headerSize+mask.PackedLen(m.Size()))
	buf = m.AppendBits(buf)
	payload := buf[headerSize:]
	h := Header{
		Version:     CurrentVersion,
		Capacity:    uint32(m.Size()),
		Window:      uint32(m.Window()),
		PayloadSize: uint64(len(payload)),
		Checksum:    crcOf(payload),
	}
	copy(h.Magic[:], Magic)
	h.encode(buf[:headerSize])

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(buf); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// File is an opened mask file whose header and checksum have been verified.
type File struct {
	Header Header

	payload []byte
	unmap   func() error
}

// Open maps a mask file read-only and validates its header and checksum.
// If mmap is unavailable it falls back to reading the file. The returned
// file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < headerSize || size64 > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	size := int(size64)

	data, unmap, err := mapFile(f, size)
	if err != nil {
		// Fallback path that does not require mmap support.
		data = make([]byte, size)
		if _, err := io.ReadFull(io.NewSectionReader(f, 0, size64), data); err != nil {
			return nil, err
		}
		unmap = func() error { return nil }
	}

	h, payload, err := parse(data)
	if err != nil {
		_ = unmap()
		return nil, err
	}
	return &File{Header: h, payload: payload, unmap: unmap}, nil
}

// Mask decodes the stored mask. The result owns its storage and stays valid
// after Close.
func (f *File) Mask() (*mask.Mask, error) {
	if f.payload == nil {
		return nil, errors.New("mask file is closed")
	}
	m, err := mask.FromBits(int(f.Header.Capacity), int(f.Header.Window), f.payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptFile, err)
	}
	return m, nil
}

// Close releases the mapping. It is safe to call more than once.
func (f *File) Close() error {
	if f.unmap == nil {
		return nil
	}
	err := f.unmap()
	f.unmap = nil
	f.payload = nil
	return err
}

// Load reads and validates the mask stored at path.
func Load(path string) (*mask.Mask, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return f.Mask()
}

// parse checks the header and checksum of a whole file image.
func parse(data []byte) (Header, []byte, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return h, nil, err
	}
	payload := data[headerSize:]
	if h.PayloadSize != uint64(len(payload)) {
		return h, nil, ErrCorruptFile
	}
	if h.Capacity == 0 || uint64(h.Capacity) > uint64(math.MaxInt32) {
		return h, nil, ErrCorruptFile
	}
	if uint64(mask.PackedLen(int(h.Capacity))) != h.PayloadSize {
		return h, nil, ErrCorruptFile
	}
	if crcOf(payload) != h.Checksum {
		return h, nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptFile)
	}
	return h, payload, nil
}

// decode parses a whole file image into a mask.
func decode(data []byte) (*mask.Mask, error) {
	h, payload, err := parse(data)
	if err != nil {
		return nil, err
	}
	f := File{Header: h, payload: payload}
	return f.Mask()
}

// Name is the file name LoadOrBuild uses for a capacity and window.
func Name(capacity, window int) string {
	return fmt.Sprintf("mask-s%d-w%d.bmsk", capacity, mask.EffectiveWindow(capacity, window))
}

// LoadOrBuild returns the mask cached in dir, building and storing it when the
// file is missing or unreadable. Failing to store a freshly built mask is
// logged, not returned.
func LoadOrBuild(dir string, capacity, window int, log logger.Logger) (*mask.Mask, error) {
	if log == nil {
		log = logger.Nop()
	}
	// Parameter errors come from the builder, before touching the disk.
	if window <= 0 || capacity < 1 {
		return mask.Build(capacity, window)
	}
	path := filepath.Join(dir, Name(capacity, window))

	m, err := Load(path)
	switch {
	case err == nil:
		if m.Size() == capacity && m.Window() == mask.EffectiveWindow(capacity, window) {
			log.Debug("loaded cached mask", "path", path)
			return m, nil
		}
		log.Warn("cached mask has unexpected shape, rebuilding", "path", path,
			"capacity", m.Size(), "window", m.Window())
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.Warn("ignoring unreadable mask file", "path", path, "error", err)
	}

	m, err = mask.Build(capacity, window)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("cannot create mask cache directory", "dir", dir, "error", err)
		return m, nil
	}
	if err := Write(path, m); err != nil {
		log.Warn("cannot store mask", "path", path, "error", err)
		return m, nil
	}
	log.Debug("stored mask", "path", path)
	return m, nil
}

func crcOf(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}
