package cover

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"ereader/common"
	"ereader/rerror"
)

// Bitmap is a decoded cover or thumbnail artifact as written by
// writeBitmap: one plane for Plane1Bit, two (P1, P2) for Plane2Bit.
type Bitmap struct {
	Format common.PlaneFormat
	Width  int
	Height int
	Planes [][]byte
}

// LoadBitmap reads back a bitmap artifact written by Extractor.
func LoadBitmap(path string) (Bitmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bitmap{}, rerror.New(rerror.CoverMissing, "cover.LoadBitmap", path, err)
	}
	r := bytes.NewReader(data)

	sig := make([]byte, len(bitmapSignature))
	if _, err := io.ReadFull(r, sig); err != nil || string(sig) != bitmapSignature {
		return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, fmt.Errorf("bad signature"))
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != bitmapVersion {
		return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, fmt.Errorf("unsupported version %d", version))
	}
	var format uint8
	if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
		return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, err)
	}
	var w, h uint32
	if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
		return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, err)
	}
	var planeCount uint8
	if err := binary.Read(r, binary.LittleEndian, &planeCount); err != nil {
		return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, err)
	}

	bmp := Bitmap{Format: common.PlaneFormat(format), Width: int(w), Height: int(h)}
	for i := uint8(0); i < planeCount; i++ {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Bitmap{}, rerror.New(rerror.CorruptCache, "cover.LoadBitmap", path, err)
		}
		bmp.Planes = append(bmp.Planes, buf)
	}
	return bmp, nil
}
