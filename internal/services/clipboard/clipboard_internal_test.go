package clipboard

import (
	"errors"
	"testing"
)

func TestServiceCopy(t *testing.T) {
	var written string
	service := &Service{write: func(text string) error {
		written = text
		return nil
	}}
	if err := service.Copy("compiled"); err != nil {
		t.Fatalf("Copy error: %v", err)
	}
	if written != "compiled" {
		t.Fatalf("expected text to reach the clipboard, got %q", written)
	}
}

func TestServiceCopyFailures(t *testing.T) {
	if err := (&Service{unsupported: true}).Copy("x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	writeFailure := errors.New("xclip missing")
	service := &Service{write: func(string) error { return writeFailure }}
	if err := service.Copy("x"); !errors.Is(err, writeFailure) {
		t.Fatalf("expected wrapped write failure, got %v", err)
	}
}
