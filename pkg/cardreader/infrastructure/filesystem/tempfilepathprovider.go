package filesystem

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"kgeyst.com/cardreader/pkg/common"
)

// ConfigKeyTempDirectory where images are written for the subprocess-based engines (llama.cpp, tesseract)
const ConfigKeyTempDirectory = "tempDirectory"

type TempFilePathProvider struct {
	tempDirectoryPath string
}

func NewTempFilePathProvider(config *common.Config) *TempFilePathProvider {
	return &TempFilePathProvider{
		tempDirectoryPath: config.GetStringOrDefault(ConfigKeyTempDirectory, os.TempDir()),
	}
}

// GetTempFilePath returns a unique path in the temp directory: concurrent requests never share a file.
func (t *TempFilePathProvider) GetTempFilePath(extension string) string {
	return filepath.Join(t.tempDirectoryPath, "cardreader-"+uuid.NewString()+extension)
}

// WriteTempFile saves `data` to a fresh temp file. The returned function removes the file.
func (t *TempFilePathProvider) WriteTempFile(data []byte, extension string) (string, func(), error) {
	err := os.MkdirAll(t.tempDirectoryPath, 0755)
	if err != nil {
		return "", nil, err
	}
	path := t.GetTempFilePath(extension)
	err = os.WriteFile(path, data, 0600)
	if err != nil {
		return "", nil, err
	}
	return path, func() {
		_ = os.Remove(path)
	}, nil
}
