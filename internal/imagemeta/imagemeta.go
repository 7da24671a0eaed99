// Package imagemeta validates and probes image headers without decoding.
package imagemeta

import "encoding/binary"

// HeaderLen is the number of bytes needed for format sniffing.
const HeaderLen = 8

// Dimensions outside (0, maxDimension) are treated as corrupt data.
const maxDimension = 100000

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47}

// IsImageHeader reports whether b starts with a PNG or JPEG signature.
// Only these two formats are served by the load pipeline; everything else
// is rejected before any decompression happens.
func IsImageHeader(b []byte) bool {
	if len(b) >= 4 &&
		b[0] == pngMagic[0] && b[1] == pngMagic[1] &&
		b[2] == pngMagic[2] && b[3] == pngMagic[3] {
		return true
	}
	if len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF {
		return true
	}
	return false
}

// ProbeDimensions extracts pixel dimensions from a PNG or JPEG header
// without a full decode. b should hold the first bytes of the entry, up to
// the caller's probe budget. Returns ok=false when no recognized header is
// found or the parsed dimensions fail the sanity bound.
func ProbeDimensions(b []byte) (width, height int, ok bool) {
	if !IsImageHeader(b) {
		return 0, 0, false
	}
	if b[0] == pngMagic[0] {
		return probePNG(b)
	}
	return probeJPEG(b)
}

// probePNG reads the IHDR width and height. IHDR is mandated to be the
// first chunk, so the fields sit at fixed offsets 16 and 20.
func probePNG(b []byte) (int, int, bool) {
	if len(b) < 24 {
		return 0, 0, false
	}
	w := int(binary.BigEndian.Uint32(b[16:20]))
	h := int(binary.BigEndian.Uint32(b[20:24]))
	if !saneDimension(w) || !saneDimension(h) {
		return 0, 0, false
	}
	return w, h, true
}

// probeJPEG walks marker segments until a Start-Of-Frame marker carries the
// frame dimensions. Padding bytes between segments are skipped.
func probeJPEG(b []byte) (int, int, bool) {
	i := 2
	for i < len(b) {
		if b[i] == 0xFF || b[i] == 0x00 {
			i++
			continue
		}
		marker := b[i]
		i++
		if isStartOfFrame(marker) {
			// Segment layout: length(2) precision(1) height(2) width(2).
			if i+7 > len(b) {
				return 0, 0, false
			}
			h := int(binary.BigEndian.Uint16(b[i+3 : i+5]))
			w := int(binary.BigEndian.Uint16(b[i+5 : i+7]))
			if !saneDimension(w) || !saneDimension(h) {
				return 0, 0, false
			}
			return w, h, true
		}
		if i+2 > len(b) {
			return 0, 0, false
		}
		i += int(binary.BigEndian.Uint16(b[i : i+2]))
	}
	return 0, 0, false
}

// isStartOfFrame matches all SOF markers: C0-C3, C5-C7, C9-CB, CD-CF.
// C4 (DHT), C8 (JPG extension) and CC (DAC) are not frame headers.
func isStartOfFrame(marker byte) bool {
	if marker < 0xC0 || marker > 0xCF {
		return false
	}
	return marker != 0xC4 && marker != 0xC8 && marker != 0xCC
}

func saneDimension(d int) bool {
	return d > 0 && d < maxDimension
}
