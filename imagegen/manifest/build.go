// build.go - Manifest-Erzeugung über ein Verzeichnis
//
// Enthält:
// - HashFile: SHA-256 einer Datei als Hex-String
// - Build: paralleles Hashen aller regulären Dateien

package manifest

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/emirpasic/gods/v2/lists/arraylist"
	"golang.org/x/sync/errgroup"

	"github.com/mneves75/z-image-go/logutil"
)

// HashFile returns the hex-encoded SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Build hashes every regular file below dir, except the manifest itself, and
// returns the records sorted by slash-separated relative path.
func Build(ctx context.Context, dir string) (*Manifest, error) {
	log := logutil.FromContext(ctx).With("component", "weights")

	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, &MissingError{Path: dir, Err: err}
	}

	var (
		mu      sync.Mutex
		records = arraylist.New[FileRecord]()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == FileName {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		g.Go(func() error {
			sum, err := HashFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			records.Add(FileRecord{Path: rel, SHA256: sum, Size: info.Size()})
			mu.Unlock()
			return nil
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return nil, err
	}

	records.Sort(func(a, b FileRecord) int { return cmp.Compare(a.Path, b.Path) })
	log.Debug("manifest built", "dir", dir, "files", records.Size())
	return &Manifest{CreatedAt: Timestamp(time.Now().UTC()), Files: records.Values()}, nil
}
