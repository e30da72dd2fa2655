// reader.go - Lesen von Safetensors-Dateien
//
// Enthält:
// - TensorInfo: Header-Eintrag eines Tensors
// - File: gemappte Datei mit Header-Index
// - Open, Load: Datei öffnen bzw. vollständig in Weights laden

package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

const maxHeaderSize = 100 << 20

// TensorInfo describes one tensor entry of the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is an opened safetensors file. Tensor data stays mapped until Close.
type File struct {
	path     string
	tensors  map[string]TensorInfo
	metadata map[string]string
	data     []byte
	body     int64
	unmap    func() error
	f        *os.File
}

// Open maps path and parses its header.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	data, unmap, err := mapFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map %s: %w", path, err)
	}

	sf := &File{path: path, data: data, unmap: unmap, f: f}
	if err := sf.parseHeader(); err != nil {
		sf.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sf, nil
}

func (sf *File) parseHeader() error {
	if len(sf.data) < 8 {
		return fmt.Errorf("%w: file shorter than header length", ErrCorrupt)
	}
	n := binary.LittleEndian.Uint64(sf.data)
	if n > maxHeaderSize || 8+n > uint64(len(sf.data)) {
		return fmt.Errorf("%w: header length %d out of range", ErrCorrupt, n)
	}
	sf.body = int64(8 + n)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(sf.data[8:sf.body], &raw); err != nil {
		return fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}

	sf.tensors = make(map[string]TensorInfo, len(raw))
	bodyLen := int64(len(sf.data)) - sf.body
	for name, msg := range raw {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &sf.metadata); err != nil {
				return fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
			}
			continue
		}

		var info TensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return fmt.Errorf("%w: tensor %s: %v", ErrCorrupt, name, err)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start || end > bodyLen {
			return fmt.Errorf("%w: tensor %s offsets [%d, %d] outside data of %d bytes", ErrCorrupt, name, start, end, bodyLen)
		}
		numel := 1
		for _, d := range info.Shape {
			numel *= d
		}
		if want := int64(numel * info.DType.Size()); want != end-start {
			return fmt.Errorf("%w: tensor %s has %d bytes, shape %v %s needs %d", ErrCorrupt, name, end-start, info.Shape, info.DType, want)
		}
		sf.tensors[name] = info
	}
	return nil
}

// Path returns the file path.
func (sf *File) Path() string { return sf.path }

// Names returns the tensor names in sorted order.
func (sf *File) Names() []string {
	return slices.Sorted(maps.Keys(sf.tensors))
}

// Info returns the header entry for name.
func (sf *File) Info(name string) (TensorInfo, bool) {
	info, ok := sf.tensors[name]
	return info, ok
}

// Metadata returns the __metadata__ map, which may be nil.
func (sf *File) Metadata() map[string]string { return sf.metadata }

// Tensor decodes name into a float32 array.
func (sf *File) Tensor(name string) (*tensor.Array, error) {
	info, ok := sf.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, sf.path)
	}
	raw := sf.data[sf.body+info.DataOffsets[0] : sf.body+info.DataOffsets[1]]
	vals, err := decode(info.DType, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return tensor.New(vals, info.Shape...), nil
}

// Close unmaps the data and closes the file.
func (sf *File) Close() error {
	var err error
	if sf.unmap != nil {
		err = sf.unmap()
		sf.unmap = nil
	}
	sf.data = nil
	if sf.f != nil {
		if cerr := sf.f.Close(); err == nil {
			err = cerr
		}
		sf.f = nil
	}
	return err
}

// Load decodes every tensor of path into memory.
func Load(path string) (*Weights, error) {
	sf, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer sf.Close()

	w := NewWeights()
	for _, name := range sf.Names() {
		t, err := sf.Tensor(name)
		if err != nil {
			return nil, err
		}
		w.Set(name, t)
	}
	w.metadata = sf.Metadata()
	return w, nil
}
