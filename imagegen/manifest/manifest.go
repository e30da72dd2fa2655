// manifest.go - Integritäts-Manifest für konvertierte Gewichte
//
// Enthält:
// - Manifest, FileRecord: JSON-Format mit createdAt und Dateiliste
// - Timestamp: Sekunden seit 2001-01-01 UTC als JSON-Zahl
// - Read, Write: Manifest laden und atomar schreiben

package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileName is the manifest's name inside a weights directory.
const FileName = "manifest.json"

// FileRecord describes one file relative to the manifest's directory.
type FileRecord struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest lists every file of a weights directory with its digest.
type Manifest struct {
	CreatedAt Timestamp    `json:"createdAt"`
	Files     []FileRecord `json:"files"`
}

// referenceDate is the epoch of the numeric createdAt encoding.
var referenceDate = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Timestamp encodes as fractional seconds since 2001-01-01 UTC. Decoding
// also accepts RFC 3339 strings.
type Timestamp time.Time

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	secs := time.Time(t).Sub(referenceDate).Seconds()
	return strconv.AppendFloat(nil, secs, 'f', -1, 64), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("manifest: createdAt: %w", err)
		}
		*t = Timestamp(parsed)
		return nil
	}

	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("manifest: createdAt: %w", err)
	}
	whole, frac := math.Modf(secs)
	*t = Timestamp(referenceDate.Add(time.Duration(whole)*time.Second + time.Duration(frac*float64(time.Second))))
	return nil
}

// Read decodes the manifest at path.
func Read(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return &m, nil
}

// Write stores m at path through a temporary file and rename.
func Write(path string, m *Manifest) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
