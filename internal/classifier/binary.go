package classifier

import (
	"errors"
	"io"
	"os"
	"unicode/utf8"
)

const (
	// SniffLength is the maximum number of bytes inspected when detecting binary content.
	SniffLength = 8000
	// controlByteThreshold is the share of non-text bytes above which content is binary.
	controlByteThreshold = 0.30
)

// IsBinary reports whether the provided byte slice appears to contain binary data:
// any NUL byte, or more than 30% non-text bytes. Bytes that do not form valid
// UTF-8 count as non-text.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	nonTextCount := 0
	for index := 0; index < len(data); {
		byteValue := data[index]
		if byteValue == 0 {
			return true
		}
		if byteValue < utf8.RuneSelf {
			if isControlByte(byteValue) {
				nonTextCount++
			}
			index++
			continue
		}
		decodedRune, runeWidth := utf8.DecodeRune(data[index:])
		if decodedRune == utf8.RuneError && runeWidth <= 1 {
			if !utf8.FullRune(data[index:]) {
				break
			}
			nonTextCount++
			index++
			continue
		}
		index += runeWidth
	}
	return float64(nonTextCount) > controlByteThreshold*float64(len(data))
}

// isControlByte reports ASCII control characters other than common whitespace.
func isControlByte(byteValue byte) bool {
	switch byteValue {
	case '\t', '\n', '\r', '\f', '\v', '\b', 0x1b:
		return false
	}
	return byteValue < 0x20 || byteValue == 0x7f
}

// IsFileBinary reads up to SniffLength bytes from the file at path and reports
// whether the content appears to be binary.
func IsFileBinary(path string) (bool, error) {
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return false, openError
	}
	defer fileHandle.Close()

	buffer := make([]byte, SniffLength)
	bytesRead, readError := io.ReadFull(fileHandle, buffer)
	if readError != nil && !errors.Is(readError, io.EOF) && !errors.Is(readError, io.ErrUnexpectedEOF) {
		return false, readError
	}
	return IsBinary(buffer[:bytesRead]), nil
}
