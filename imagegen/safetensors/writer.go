// writer.go - Schreiben von Safetensors-Dateien
//
// Enthält:
// - Save: Tensoren sortiert nach Namen, Header auf 8 Bytes aufgefüllt

package safetensors

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// Save writes tensors to path in dtype. Names are written in sorted order and
// the JSON header is padded with spaces to a multiple of 8 bytes.
func Save(path string, tensors map[string]*tensor.Array, metadata map[string]string, dtype DType) error {
	names := slices.Sorted(maps.Keys(tensors))

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	payloads := make([][]byte, len(names))
	var offset int64
	for i, name := range names {
		t := tensors[name]
		b, err := encode(dtype, t.Data())
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		payloads[i] = b
		header[name] = TensorInfo{
			DType:       dtype,
			Shape:       t.Shape(),
			DataOffsets: [2]int64{offset, offset + int64(len(b))},
		}
		offset += int64(len(b))
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if pad := len(hdr) % 8; pad != 0 {
		hdr = append(hdr, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	for _, b := range payloads {
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
