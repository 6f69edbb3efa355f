package section

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// sniffPeekSize bounds how much of the chapter is buffered to sniff its
// declared encoding before transcoding begins.
const sniffPeekSize = 2048

// transcodeToUTF8 normalizes r to UTF-8 before tokenizing. It sniffs the
// chapter's declared charset from its XML prologue or an HTTP-equiv meta
// tag (golang.org/x/net/html/charset's own BOM/meta/prolog detection);
// absent a declaration, content is assumed already UTF-8.
//
// FB2-derived EPUBs sometimes declare a non-UTF-8 encoding while their
// actual content is valid UTF-8 — a byproduct of the tools that produced
// them. Honoring the declared charset in that case would mangle
// multi-byte sequences, so a peeked sample is checked for valid,
// non-ASCII UTF-8 first; only when that check fails is the declared
// encoding actually applied.
// TranscodeToUTF8 exports transcodeToUTF8 for the plain-text reader
// (§4.8), which transcodes through the same sniffer before word-wrapping
// a source file that has no surrounding markup to carry an encoding
// declaration in the first place.
func TranscodeToUTF8(r io.Reader, log *zap.Logger) (io.Reader, error) {
	return transcodeToUTF8(r, log)
}

func transcodeToUTF8(r io.Reader, log *zap.Logger) (io.Reader, error) {
	buf, err := io.ReadAll(io.LimitReader(r, sniffPeekSize))
	if err != nil {
		return nil, fmt.Errorf("peek chapter content: %w", err)
	}
	restored := io.MultiReader(bytes.NewReader(buf), r)

	checkBuf := trimIncompleteUTF8(buf)
	if utf8.Valid(checkBuf) && containsNonASCII(checkBuf) {
		return restored, nil
	}

	enc, name, certain := charset.DetermineEncoding(buf, "text/html")
	if !certain || name == "utf-8" {
		return restored, nil
	}

	log.Debug("transcoding chapter content to UTF-8", zap.String("declared", name))
	return transform.NewReader(restored, enc.NewDecoder()), nil
}

// trimIncompleteUTF8 returns buf with any trailing incomplete multi-byte
// UTF-8 sequence removed, so a fixed-size peek buffer that splits a
// multi-byte character at its boundary doesn't fail validation spuriously.
func trimIncompleteUTF8(buf []byte) []byte {
	if len(buf) == 0 || buf[len(buf)-1] < 0x80 {
		return buf
	}
	i := len(buf) - 1
	for i > 0 && i > len(buf)-4 && buf[i]&0xC0 == 0x80 {
		i--
	}
	if r, _ := utf8.DecodeRune(buf[i:]); r == utf8.RuneError {
		return buf[:i]
	}
	return buf
}

// containsNonASCII reports whether buf contains at least one byte > 0x7F.
func containsNonASCII(buf []byte) bool {
	for _, b := range buf {
		if b > 0x7F {
			return true
		}
	}
	return false
}
