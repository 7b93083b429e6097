package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CopyFileWithTimestamp copies a file to the destination directory with a
// timestamp suffix. Returns the destination path.
func CopyFileWithTimestamp(sourcePath, uploadDir string) (string, error) {
	return CopyFileWithName(sourcePath, uploadDir, filepath.Base(sourcePath))
}

// CopyFileWithName copies a file into the destination directory under the
// given name plus a timestamp suffix, so repeated uploads of the same
// document never clobber each other.
func CopyFileWithName(sourcePath, uploadDir, name string) (string, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %v", err)
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %v", err)
	}
	defer sourceFile.Close()

	ext := filepath.Ext(name)
	baseFileName := strings.TrimSuffix(name, ext)
	timestamp := time.Now().Unix()
	destFileName := fmt.Sprintf("%s_%d%s", baseFileName, timestamp, ext)
	destPath := filepath.Join(uploadDir, destFileName)

	destFile, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %v", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return "", fmt.Errorf("failed to copy file: %v", err)
	}

	return destPath, nil
}
