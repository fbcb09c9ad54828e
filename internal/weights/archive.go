// Package weights stores and assigns model parameters.
//
// Parameter archives use a small binary container: magic bytes, a
// little-endian version and header length, a JSON header describing the
// stored tensors, alignment padding, then raw float32 tensor data.
package weights

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/manifold-ml/manifold/internal/tensor"
)

const (
	magicBytes    = "MNFD"
	formatVersion = 1
	dataAlignment = 64
	maxHeaderSize = 100 * 1024 * 1024
)

// Header is the JSON header of a parameter archive.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records training state alongside the parameters.
type CheckpointMeta struct {
	Epoch int     `json:"epoch"`
	Step  int64   `json:"step"`
	Loss  float64 `json:"loss"`
}

// TensorMeta describes one stored tensor.
type TensorMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Save writes a named tensor map to path. Tensors are laid out in
// lexicographic name order so archives are reproducible.
func Save(path string, tensors map[string]*tensor.Tensor, checkpoint *CheckpointMeta) error {
	//nolint:gosec // G304: path comes from user configuration
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("weights: create archive: %w", err)
	}
	defer f.Close()

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: formatVersion,
		CreatedAt:     time.Now().UTC(),
		Checkpoint:    checkpoint,
	}
	var offset int64
	for _, name := range names {
		t := tensors[name]
		size := int64(t.NumElements()) * 4
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			Shape:  t.Shape().Clone(),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("weights: marshal header: %w", err)
	}

	if _, err := f.WriteString(magicBytes); err != nil {
		return fmt.Errorf("weights: write magic: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(formatVersion)); err != nil {
		return fmt.Errorf("weights: write version: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("weights: write header size: %w", err)
	}
	if _, err := f.Write(headerJSON); err != nil {
		return fmt.Errorf("weights: write header: %w", err)
	}

	pos := int64(4+4+8) + int64(len(headerJSON))
	if pad := (dataAlignment - pos%dataAlignment) % dataAlignment; pad > 0 {
		if _, err := f.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("weights: write padding: %w", err)
		}
	}

	buf := make([]byte, 0, 4096)
	for _, name := range names {
		buf = buf[:0]
		for _, v := range tensors[name].Data() {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("weights: write tensor %q: %w", name, err)
		}
	}
	return nil
}

// Archive is an opened parameter archive.
type Archive struct {
	header Header
	byName map[string]TensorMeta
	data   []byte
}

// Open reads a parameter archive from path.
func Open(path string) (*Archive, error) {
	//nolint:gosec // G304: path comes from user configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("weights: open archive: %w", err)
	}
	defer f.Close()
	return read(f)
}

func read(r io.Reader) (*Archive, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("weights: read magic: %w", err)
	}
	if string(magic) != magicBytes {
		return nil, fmt.Errorf("weights: invalid magic bytes %q", magic)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("weights: read version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("weights: unsupported format version %d", version)
	}

	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("weights: read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, fmt.Errorf("weights: header size %d exceeds limit", headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("weights: read header: %w", err)
	}
	a := &Archive{byName: make(map[string]TensorMeta)}
	if err := json.Unmarshal(headerJSON, &a.header); err != nil {
		return nil, fmt.Errorf("weights: parse header: %w", err)
	}

	pos := int64(4+4+8) + int64(headerSize)
	if pad := (dataAlignment - pos%dataAlignment) % dataAlignment; pad > 0 {
		if _, err := io.CopyN(io.Discard, r, pad); err != nil {
			return nil, fmt.Errorf("weights: skip padding: %w", err)
		}
	}

	var total int64
	for _, meta := range a.header.Tensors {
		a.byName[meta.Name] = meta
		if end := meta.Offset + meta.Size; end > total {
			total = end
		}
	}
	a.data = make([]byte, total)
	if _, err := io.ReadFull(r, a.data); err != nil {
		return nil, fmt.Errorf("weights: read tensor data: %w", err)
	}
	return a, nil
}

// Checkpoint returns the checkpoint metadata, or nil for plain archives.
func (a *Archive) Checkpoint() *CheckpointMeta {
	return a.header.Checkpoint
}

// Names returns the stored tensor names in lexicographic order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tensor materializes the named tensor.
func (a *Archive) Tensor(name string) (*tensor.Tensor, error) {
	meta, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("weights: tensor %q not found", name)
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(a.data)) {
		return nil, fmt.Errorf("weights: tensor %q extends past data section", name)
	}
	t := tensor.Zeros(meta.Shape)
	if want := int64(t.NumElements()) * 4; want != meta.Size {
		return nil, fmt.Errorf("weights: tensor %q size %d does not match shape %v", name, meta.Size, meta.Shape)
	}
	data := t.Data()
	raw := a.data[meta.Offset : meta.Offset+meta.Size]
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return t, nil
}
