package llamacpp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/filesystem"
	"kgeyst.com/cardreader/pkg/common"
)

var (
	errUnexpectedModelOutput = errors.New("unexpected model output")
	errNoProjector           = errors.New("the model received an image, but no multimodal projector is configured")
)

const (
	// ConfigKeyLlamaCppBinary the llama.cpp executable: a path, or a name to look up in PATH
	ConfigKeyLlamaCppBinary = "llamaCppBinary"
	// ConfigKeyLlamaCppModelPath the GGUF model
	ConfigKeyLlamaCppModelPath = "llamaCppModelPath"
	// ConfigKeyLlamaCppProjectorPath the multimodal projector (mmproj) GGUF; not needed for the OCR pipeline
	ConfigKeyLlamaCppProjectorPath = "llamaCppProjectorPath"
	// ConfigKeyLLMContextSize the size of the context
	ConfigKeyLLMContextSize = "llmContextSize"
	// ConfigKeyLLMCPUThreadCount the number of CPUs used during inference
	ConfigKeyLLMCPUThreadCount = "llmCPUThreadCount"
	// ConfigKeyLLMGPULayerCount how many layers in the model can be offloaded to GPU
	ConfigKeyLLMGPULayerCount = "llmGPULayerCount"
	// ConfigKeyLLMResponseTimeout when to stop if the model takes too long to process input/generate output
	ConfigKeyLLMResponseTimeout = "llmResponseTimeout"
)

// how much of stderr makes it into an error message
const stderrTailSize = 512

type LanguageModel struct {
	mutex                sync.Mutex
	binaryPath           string
	modelPath            string
	projectorPath        string
	contextSize          int
	cpuThreadCount       int
	gpuLayerCount        int
	responseTimeout      time.Duration
	promptFormatter      PromptFormatter
	tempFilePathProvider *filesystem.TempFilePathProvider
	logger               common.Logger
}

// NewLanguageModel creates a language model as implemented by llama.cpp's command line tools (llama-mtmd-cli for
// vision models, llama-cli or llama-mtmd-cli for text-only models).
// `config` contains the paths and parameters specific to the current GPU (see the constants above)
func NewLanguageModel(
	promptFormatter PromptFormatter,
	tempFilePathProvider *filesystem.TempFilePathProvider,
	config *common.Config,
	logger common.Logger,
) *LanguageModel {
	return &LanguageModel{
		binaryPath:           config.GetStringOrDefault(ConfigKeyLlamaCppBinary, "llama-mtmd-cli"),
		modelPath:            config.GetString(ConfigKeyLlamaCppModelPath),
		projectorPath:        config.GetString(ConfigKeyLlamaCppProjectorPath),
		contextSize:          config.GetIntOrDefault(ConfigKeyLLMContextSize, 4096),
		cpuThreadCount:       config.GetIntOrDefault(ConfigKeyLLMCPUThreadCount, 6),
		gpuLayerCount:        config.GetIntOrDefault(ConfigKeyLLMGPULayerCount, 99),
		responseTimeout:      config.GetDurationOrDefault(ConfigKeyLLMResponseTimeout, 2*time.Minute),
		promptFormatter:      promptFormatter,
		tempFilePathProvider: tempFilePathProvider,
		logger:               logger,
	}
}

func (l *LanguageModel) Name() string {
	return "llama.cpp:" + strings.TrimSuffix(baseName(l.modelPath), ".gguf")
}

// CheckPrerequisites makes sure the binary and the model files are in place, so that a misconfiguration is
// reported at startup and not on the first card.
func (l *LanguageModel) CheckPrerequisites(needsProjector bool) error {
	_, err := exec.LookPath(l.binaryPath)
	if err != nil {
		return fmt.Errorf("llama.cpp binary not found: %w", err)
	}
	if l.modelPath == "" {
		return fmt.Errorf("no model configured (set %q)", ConfigKeyLlamaCppModelPath)
	}
	err = checkFile(l.modelPath)
	if err != nil {
		return fmt.Errorf("model not found: %w", err)
	}
	if !needsProjector {
		return nil
	}
	if l.projectorPath == "" {
		return fmt.Errorf("no multimodal projector configured (set %q)", ConfigKeyLlamaCppProjectorPath)
	}
	err = checkFile(l.projectorPath)
	if err != nil {
		return fmt.Errorf("multimodal projector not found: %w", err)
	}
	return nil
}

func (l *LanguageModel) Complete(
	ctx context.Context,
	messages []*domain.Message,
	options domain.CompleteOptions,
	onFragment domain.FragmentFunc,
) (string, error) {
	// Only 1 request can be processed at a time because the model is run on commodity hardware which can't
	// usually process two requests simultaneously due to low amounts of VRAM.
	l.mutex.Lock()
	defer l.mutex.Unlock()
	image := domain.LastImage(messages)
	var imagePath string
	if image != nil {
		if l.projectorPath == "" {
			return "", errNoProjector
		}
		path, cleanup, err := l.tempFilePathProvider.WriteTempFile(image.JPEG, ".jpg")
		if err != nil {
			return "", err
		}
		defer cleanup()
		imagePath = path
	}
	prompt := l.promptFormatter.FormatPrompt(messages, image)
	stop := append(l.promptFormatter.StopSequences(), options.Stop...)
	collector := newOutputCollector(prompt, stop)
	args := l.buildArgs(prompt, imagePath, options)
	ctx, cancelFunc := context.WithTimeout(ctx, l.responseTimeout)
	defer cancelFunc()
	var stderr bytes.Buffer
	err := runInferCommand(ctx, cancelFunc, l.binaryPath, args, &stderr, func(line string) bool {
		fragment, keepRunning := collector.add(line)
		if fragment != "" && onFragment != nil {
			onFragment(fragment)
		}
		return keepRunning
	})
	response, rest, ok := collector.finish()
	if rest != "" && onFragment != nil {
		onFragment(rest)
	}
	if err != nil && !collector.stopped {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", fmt.Errorf("llama.cpp: no response within %s", l.responseTimeout)
		case ctx.Err() != nil:
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || response == "" {
			return "", fmt.Errorf("llama.cpp: %w: %s", err, tail(stderr.String(), stderrTailSize))
		}
		// A process can run successfully but be terminated with a SIGKILL for some reason. So we ignore it but log
		// it, leaving what has been generated so far intact.
		common.Logf(l.logger, "llama.cpp exited abnormally (%s), keeping the partial output", err)
	}
	if !ok {
		return "", errUnexpectedModelOutput
	}
	return response, nil
}

func (l *LanguageModel) buildArgs(prompt, imagePath string, options domain.CompleteOptions) []string {
	args := []string{"-m", l.modelPath}
	if imagePath != "" {
		args = append(args, "--mmproj", l.projectorPath, "--image", imagePath)
	}
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = -1
	}
	args = append(args,
		"-c", strconv.Itoa(l.contextSize),
		"-t", strconv.Itoa(l.cpuThreadCount),
		"-ngl", strconv.Itoa(l.gpuLayerCount),
		"-n", strconv.Itoa(maxTokens),
		"--temp", formatFloat(options.Temperature),
	)
	if options.TopP > 0 {
		args = append(args, "--top-p", formatFloat(options.TopP))
	}
	if options.RepeatPenalty > 0 {
		args = append(args, "--repeat-penalty", formatFloat(options.RepeatPenalty))
	}
	return append(args, "-p", prompt)
}

// We hook up to the llama.cpp binary by launching a subprocess and reading its standard output until
// processLineFunc(..) signals it should stop with false as the returned value. A new subprocess is started for
// each run.
func runInferCommand(
	ctx context.Context,
	cancelFunc context.CancelFunc,
	binaryPath string,
	args []string,
	stderr *bytes.Buffer,
	processLineFunc func(line string) bool,
) error {
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err = cmd.Start(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		keepRunning := processLineFunc(scanner.Text() + "\n")
		if !keepRunning {
			cancelFunc() // the process function signals we should stop because a certain condition has been met
			break
		}
	}
	return cmd.Wait()
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func baseName(path string) string {
	if index := strings.LastIndexAny(path, `/\`); index != -1 {
		return path[index+1:]
	}
	return path
}

func tail(s string, size int) string {
	s = strings.TrimSpace(s)
	if len(s) > size {
		return "..." + s[len(s)-size:]
	}
	return s
}
