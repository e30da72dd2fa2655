package manifest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "hello")

	sum, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "sub", "b.bin"), "\x00\x01\x02\x03")
	writeFile(t, filepath.Join(dir, FileName), "{}")

	m, err := Build(t.Context(), dir)
	require.NoError(t, err)

	var paths []string
	for _, f := range m.Files {
		paths = append(paths, f.Path)
		assert.Len(t, f.SHA256, 64)
	}
	if diff := cmp.Diff([]string{"a.txt", "sub/b.bin"}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	assert.EqualValues(t, 5, m.Files[0].Size)
	assert.EqualValues(t, 4, m.Files[1].Size)
	assert.WithinDuration(t, time.Now(), m.CreatedAt.Time(), time.Minute)
}

func TestBuildMissingDir(t *testing.T) {
	_, err := Build(t.Context(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrMissing)
}

func TestTimestampJSON(t *testing.T) {
	ts := Timestamp(time.Date(2001, 1, 1, 0, 1, 0, 500_000_000, time.UTC))
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "60.5", string(b))

	var back Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, ts.Time().Equal(back.Time()))

	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:00:00Z"`), &back))
	assert.Equal(t, 2024, back.Time().Year())

	assert.Error(t, json.Unmarshal([]byte(`true`), &back))
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "w.bin"), "data")
	m, err := Build(t.Context(), dir)
	require.NoError(t, err)

	path := filepath.Join(dir, FileName)
	require.NoError(t, Write(path, m))
	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, m.Files, back.Files)

	// A second Build must not pick up the manifest.
	again, err := Build(t.Context(), dir)
	require.NoError(t, err)
	assert.Len(t, again.Files, 1)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string)
		wantErr error
	}{
		{
			name: "ok",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "w.bin"), "\x00\x01\x02\x03")
				m, err := Build(t.Context(), dir)
				require.NoError(t, err)
				require.NoError(t, Write(filepath.Join(dir, FileName), m))
			},
		},
		{
			name: "mismatch",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "w.bin"), "\x00\x01\x02\x03")
				m := &Manifest{Files: []FileRecord{{Path: "w.bin", SHA256: "0000000000000000000000000000000000000000000000000000000000000000", Size: 4}}}
				require.NoError(t, Write(filepath.Join(dir, FileName), m))
			},
			wantErr: ErrIntegrity,
		},
		{
			name: "listed file missing",
			setup: func(t *testing.T, dir string) {
				m := &Manifest{Files: []FileRecord{{Path: "gone.bin", SHA256: "x", Size: 1}}}
				require.NoError(t, Write(filepath.Join(dir, FileName), m))
			},
			wantErr: ErrMissing,
		},
		{
			name:    "no manifest",
			setup:   func(*testing.T, string) {},
			wantErr: ErrMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			m, err := Verify(t.Context(), dir, "")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Len(t, m.Files, 1)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIntegrityErrorCarriesDigests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "w.bin"), "abc")
	m := &Manifest{Files: []FileRecord{{Path: "w.bin", SHA256: "deadbeef", Size: 3}}}
	require.NoError(t, Write(filepath.Join(dir, FileName), m))

	_, err := Verify(t.Context(), dir, FileName)
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "deadbeef", ie.Expected)
	assert.Equal(t, filepath.Join(dir, "w.bin"), ie.Path)
	assert.Contains(t, err.Error(), "integrity check failed")
}

func TestRequireComponents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"createdAt":0,"files":[]}`)

	err := RequireComponents(dir)
	var me *MissingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, filepath.Join(dir, "text_encoder.safetensors"), me.Path)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	for _, name := range Components {
		writeFile(t, filepath.Join(dir, name), "")
	}
	assert.NoError(t, RequireComponents(dir))
}
