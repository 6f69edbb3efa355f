package reader

import (
	"bytes"
	"path/filepath"
	"testing"

	"ereader/common"
)

func TestPrerenderedRoundTrip_1Bit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.rpgc")
	w, err := CreatePrerendered(path, common.Plane1Bit, 64, 32)
	if err != nil {
		t.Fatalf("CreatePrerendered: %v", err)
	}
	page0 := [][]byte{{0x01, 0x02, 0x03}}
	page1 := [][]byte{{0xff, 0xee}}
	if err := w.WritePage(page0); err != nil {
		t.Fatalf("WritePage(0): %v", err)
	}
	if err := w.WritePage(page1); err != nil {
		t.Fatalf("WritePage(1): %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := OpenPrerendered(path)
	if err != nil {
		t.Fatalf("OpenPrerendered: %v", err)
	}
	if r.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", r.PageCount())
	}
	if r.Width() != 64 || r.Height() != 32 {
		t.Errorf("dims = %dx%d, want 64x32", r.Width(), r.Height())
	}
	if r.Format() != common.Plane1Bit {
		t.Errorf("Format() = %v, want Plane1Bit", r.Format())
	}

	got0, err := r.LoadPage(0)
	if err != nil {
		t.Fatalf("LoadPage(0): %v", err)
	}
	if len(got0) != 1 || !bytes.Equal(got0[0], page0[0]) {
		t.Errorf("LoadPage(0) = %v, want %v", got0, page0)
	}
	got1, err := r.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage(1): %v", err)
	}
	if len(got1) != 1 || !bytes.Equal(got1[0], page1[0]) {
		t.Errorf("LoadPage(1) = %v, want %v", got1, page1)
	}
}

func TestPrerenderedRoundTrip_2BitTwoPlanes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.rpgc")
	w, err := CreatePrerendered(path, common.Plane2Bit, 16, 16)
	if err != nil {
		t.Fatalf("CreatePrerendered: %v", err)
	}
	planes := [][]byte{{0xaa}, {0x55}}
	if err := w.WritePage(planes); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := OpenPrerendered(path)
	if err != nil {
		t.Fatalf("OpenPrerendered: %v", err)
	}
	got, err := r.LoadPage(0)
	if err != nil {
		t.Fatalf("LoadPage(0): %v", err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], planes[0]) || !bytes.Equal(got[1], planes[1]) {
		t.Errorf("LoadPage(0) = %v, want %v", got, planes)
	}
}

func TestPrerenderedLoadPage_OutOfRangeErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.rpgc")
	w, err := CreatePrerendered(path, common.Plane1Bit, 10, 10)
	if err != nil {
		t.Fatalf("CreatePrerendered: %v", err)
	}
	if err := w.WritePage([][]byte{{0x01}}); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	r, err := OpenPrerendered(path)
	if err != nil {
		t.Fatalf("OpenPrerendered: %v", err)
	}
	if _, err := r.LoadPage(5); err == nil {
		t.Fatal("expected error for out-of-range page index")
	}
}
