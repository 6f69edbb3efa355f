package cover

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"ereader/common"
	"ereader/config"
)

func TestExtractCover_WritesFullAndThumbnailBitmaps(t *testing.T) {
	dir := t.TempDir()
	e := New(
		config.ViewportConfig{Width: 60, Height: 80},
		config.CoverConfig{ThumbnailHeight: 20, PlaneFormat: common.Plane1Bit},
		zaptest.NewLogger(t),
	)

	if err := e.ExtractCover(gif89a1x1, dir); err != nil {
		t.Fatalf("ExtractCover: %v", err)
	}

	full := filepath.Join(dir, "cover.bmp")
	if _, err := os.Stat(full); err != nil {
		t.Errorf("cover.bmp not written: %v", err)
	}
	thumb := filepath.Join(dir, "thumb_20.bmp")
	if _, err := os.Stat(thumb); err != nil {
		t.Errorf("thumb_20.bmp not written: %v", err)
	}

	bmp, err := LoadBitmap(full)
	if err != nil {
		t.Fatalf("LoadBitmap(cover.bmp): %v", err)
	}
	if bmp.Format != common.Plane1Bit {
		t.Errorf("Format = %v, want Plane1Bit", bmp.Format)
	}
	if bmp.Height != 80 {
		t.Errorf("Height = %d, want 80 (resized to screen height)", bmp.Height)
	}
	if len(bmp.Planes) != 1 {
		t.Fatalf("len(Planes) = %d, want 1", len(bmp.Planes))
	}
}

func TestExtractCover_NoThumbnailWhenHeightZero(t *testing.T) {
	dir := t.TempDir()
	e := New(
		config.ViewportConfig{Width: 60, Height: 80},
		config.CoverConfig{ThumbnailHeight: 0, PlaneFormat: common.Plane2Bit},
		zaptest.NewLogger(t),
	)
	if err := e.ExtractCover(gif89a1x1, dir); err != nil {
		t.Fatalf("ExtractCover: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, ent := range entries {
		if ent.Name() != "cover.bmp" {
			t.Errorf("unexpected artifact %q written with ThumbnailHeight=0", ent.Name())
		}
	}
}

func TestExtractCover_UndecodableDataErrors(t *testing.T) {
	e := New(
		config.ViewportConfig{Width: 60, Height: 80},
		config.CoverConfig{PlaneFormat: common.Plane1Bit},
		zaptest.NewLogger(t),
	)
	err := e.ExtractCover([]byte("not an image"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for undecodable cover data")
	}
}

func TestLoadBitmap_BadSignatureErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bmp")
	if err := os.WriteFile(path, []byte("NOPE...garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadBitmap(path); err == nil {
		t.Fatal("expected error for bad signature")
	}
}
