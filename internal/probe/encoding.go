// Package probe guesses the character encoding of an input file from a
// leading byte sample and builds decoders that turn the file into UTF-8.
//
// Detection never fails. When the statistical detector is unsure, or names an
// encoding we cannot decode, the result falls back to ISO-8859-1, which maps
// every byte to a code point and therefore always decodes.
package probe

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// SampleSize is the default number of leading bytes used for detection.
	SampleSize = 10000

	// MinConfidence is the lowest detector confidence (0-100) we accept.
	MinConfidence = 30

	LabelUTF8     = "UTF-8"
	LabelFallback = "ISO-8859-1"
)

// Result is the outcome of DetectEncoding.
type Result struct {
	Label      string
	Confidence int
	// Fallback is true when Label is LabelFallback because detection was
	// inconclusive.
	Fallback bool
}

// detectFn wraps the statistical detector; tests replace it.
var detectFn = func(sample []byte) (string, int, error) {
	r, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return "", 0, err
	}
	return r.Charset, r.Confidence, nil
}

// Sample returns at most n leading bytes of data. n <= 0 means SampleSize.
func Sample(data []byte, n int) []byte {
	if n <= 0 {
		n = SampleSize
	}
	if len(data) > n {
		return data[:n]
	}
	return data
}

// DetectEncoding labels the encoding of sample. BOMs win, then strict UTF-8
// validity, then the statistical detector. The returned label is always
// accepted by Decoder.
func DetectEncoding(sample []byte) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = fallback()
		}
	}()

	switch {
	case len(sample) == 0:
		return Result{Label: LabelUTF8, Confidence: 100}
	case bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}):
		return Result{Label: LabelUTF8, Confidence: 100}
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE}):
		return Result{Label: "UTF-16LE", Confidence: 100}
	case bytes.HasPrefix(sample, []byte{0xFE, 0xFF}):
		return Result{Label: "UTF-16BE", Confidence: 100}
	}

	if utf8.Valid(trimPartialRune(sample)) {
		return Result{Label: LabelUTF8, Confidence: 100}
	}

	label, conf, err := detectFn(sample)
	if err != nil || conf < MinConfidence || label == "" {
		return fallback()
	}
	if _, err := Decoder(label); err != nil {
		return fallback()
	}
	return Result{Label: label, Confidence: conf}
}

func fallback() Result {
	return Result{Label: LabelFallback, Fallback: true}
}

// trimPartialRune drops a multi-byte sequence cut off at the end of a sample.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// Decoder resolves label to an encoding. UTF-8 decoding strips a leading BOM.
func Decoder(label string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "UTF-8", "UTF8", "ASCII", "US-ASCII":
		return unicode.UTF8BOM, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("probe: unsupported encoding %q: %w", label, err)
	}
	return enc, nil
}

// NewReader decodes r from label into NFC-normalized UTF-8.
func NewReader(r io.Reader, label string) (io.Reader, error) {
	enc, err := Decoder(label)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, transform.Chain(enc.NewDecoder(), norm.NFC)), nil
}
