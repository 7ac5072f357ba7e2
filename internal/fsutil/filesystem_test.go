package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// mutating the returned slice must not leak into the stored file
	data[0] = 'X'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != string(testData) {
		t.Errorf("stored data was aliased: %q", again)
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_, err := mfs.ReadFile("/missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/work/responses/a", 0755)
	_ = mfs.WriteFile("/work/responses/a/000001.json", []byte("{}"), 0644)
	_ = mfs.WriteFile("/work/responses/a/000000.json", []byte("{}"), 0644)
	_ = mfs.MkdirAll("/work/responses/a/sub", 0755)

	names, err := mfs.ReadDir("/work/responses/a")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	want := []string{"000000.json", "000001.json", "sub"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], names[i])
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	testCases := []struct {
		name string
		fsys func(t *testing.T) (FileSystem, string)
	}{
		{"memory", func(t *testing.T) (FileSystem, string) {
			return NewMemoryFileSystem(), "/out"
		}},
		{"os", func(t *testing.T) (FileSystem, string) {
			return OSFileSystem{}, t.TempDir()
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys, dir := tc.fsys(t)
			path := filepath.Join(dir, "nested", "result.bin")

			if err := WriteFileAtomic(fsys, path, []byte{1, 2, 3}, 0644); err != nil {
				t.Fatalf("WriteFileAtomic failed: %v", err)
			}
			if fsys.Exists(path + IncompleteSuffix) {
				t.Error("incomplete file left behind")
			}
			data, err := fsys.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if len(data) != 3 || data[2] != 3 {
				t.Errorf("unexpected content %v", data)
			}

			// overwrite replaces the previous content
			if err := WriteFileAtomic(fsys, path, []byte{9}, 0644); err != nil {
				t.Fatalf("second WriteFileAtomic failed: %v", err)
			}
			data, _ = fsys.ReadFile(path)
			if len(data) != 1 || data[0] != 9 {
				t.Errorf("expected overwrite, got %v", data)
			}
		})
	}
}

func TestMemoryFileSystem_HasIncomplete(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a"+IncompleteSuffix, nil, 0644)
	if !mfs.HasIncomplete() {
		t.Error("expected incomplete file to be reported")
	}
	if err := mfs.Rename("/a"+IncompleteSuffix, "/a"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.HasIncomplete() {
		t.Error("expected no incomplete files after rename")
	}
	if err := mfs.Rename("/missing", "/b"); err == nil {
		t.Error("expected error renaming missing file")
	}
}

func TestOSFileSystem_ReadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	names, err := OSFileSystem{}.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected names %v", names)
	}
}
