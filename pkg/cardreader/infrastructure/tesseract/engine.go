package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/filesystem"
	"kgeyst.com/cardreader/pkg/common"
)

const (
	// ConfigKeyOCRBinary the tesseract executable: a path, or a name to look up in PATH
	ConfigKeyOCRBinary = "ocrBinary"
	// ConfigKeyOCRPageSegmentationMode tesseract's --psm; 6 ("a single uniform block of text") suits business cards
	ConfigKeyOCRPageSegmentationMode = "ocrPageSegmentationMode"
)

type Engine struct {
	binaryPath           string
	pageSegmentationMode int
	tempFilePathProvider *filesystem.TempFilePathProvider
}

// NewEngine runs the tesseract command line tool on the image.
func NewEngine(tempFilePathProvider *filesystem.TempFilePathProvider, config *common.Config) *Engine {
	return &Engine{
		binaryPath:           config.GetStringOrDefault(ConfigKeyOCRBinary, "tesseract"),
		pageSegmentationMode: config.GetIntOrDefault(ConfigKeyOCRPageSegmentationMode, 6),
		tempFilePathProvider: tempFilePathProvider,
	}
}

// CheckAvailable probes the binary, so that a missing installation is reported at startup.
func (e *Engine) CheckAvailable(ctx context.Context) error {
	_, err := exec.LookPath(e.binaryPath)
	if err != nil {
		return fmt.Errorf("tesseract is not installed or not on PATH: %w", err)
	}
	err = exec.CommandContext(ctx, e.binaryPath, "--version").Run()
	if err != nil {
		return fmt.Errorf("tesseract --version: %w", err)
	}
	return nil
}

func (e *Engine) Recognize(ctx context.Context, image *domain.CardImage) (string, error) {
	path, cleanup, err := e.tempFilePathProvider.WriteTempFile(image.JPEG, ".jpg")
	if err != nil {
		return "", err
	}
	defer cleanup()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binaryPath, path, "stdout", "--psm", strconv.Itoa(e.pageSegmentationMode))
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}
