package compiler

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	temporaryFilePattern    = ".codexify-*.tmp"
	outputFilePermissions   = 0o644
	errorCreateDirFormat    = "create output directory '%s': %w"
	errorCreateTempFormat   = "create temporary file in '%s': %w"
	errorWriteOutputFormat  = "write output '%s': %w"
	errorRenameOutputFormat = "replace output '%s': %w"
)

// WriteAtomically writes data to a temporary file next to destinationPath and
// renames it into place. Readers never observe a partially written file.
func WriteAtomically(destinationPath string, data []byte) error {
	destinationDirectory := filepath.Dir(destinationPath)
	if mkdirError := os.MkdirAll(destinationDirectory, 0o755); mkdirError != nil {
		return fmt.Errorf(errorCreateDirFormat, destinationDirectory, mkdirError)
	}
	temporaryFile, createError := os.CreateTemp(destinationDirectory, temporaryFilePattern)
	if createError != nil {
		return fmt.Errorf(errorCreateTempFormat, destinationDirectory, createError)
	}
	temporaryPath := temporaryFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(data); writeError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(errorWriteOutputFormat, destinationPath, writeError)
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf(errorWriteOutputFormat, destinationPath, syncError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(errorWriteOutputFormat, destinationPath, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, outputFilePermissions); chmodError != nil {
		return fmt.Errorf(errorWriteOutputFormat, destinationPath, chmodError)
	}
	if renameError := os.Rename(temporaryPath, destinationPath); renameError != nil {
		return fmt.Errorf(errorRenameOutputFormat, destinationPath, renameError)
	}
	committed = true
	return nil
}
