package llamacpp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/filesystem"
	"kgeyst.com/cardreader/pkg/common"
)

// The fake binary records its arguments (one per line) and the image it was given, then prints `output`.
const fakeBinaryTemplate = `#!/bin/sh
: > %[1]s/args
prev=""
prompt=""
for arg in "$@"; do
  printf '%%s\n' "$arg" >> %[1]s/args
  if [ "$prev" = "--image" ]; then cp "$arg" %[1]s/image; fi
  if [ "$prev" = "-p" ]; then prompt="$arg"; fi
  prev="$arg"
done
%[2]s
`

type fakeBinary struct {
	directory string
	path      string
}

func newFakeBinary(t *testing.T, body string) *fakeBinary {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	directory := t.TempDir()
	path := filepath.Join(directory, "llama-mtmd-cli")
	script := fmt.Sprintf(fakeBinaryTemplate, directory, body)
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return &fakeBinary{directory: directory, path: path}
}

func (f *fakeBinary) args(t *testing.T) []string {
	data, err := os.ReadFile(filepath.Join(f.directory, "args"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func newTestModel(t *testing.T, binary *fakeBinary, values map[string]any) *LanguageModel {
	directory := t.TempDir()
	config := map[string]any{
		ConfigKeyLlamaCppBinary:        binary.path,
		ConfigKeyLlamaCppModelPath:     filepath.Join(directory, "qwen2.5-vl-3b.gguf"),
		ConfigKeyLlamaCppProjectorPath: filepath.Join(directory, "mmproj.gguf"),
		filesystem.ConfigKeyTempDirectory: directory,
	}
	for key, value := range values {
		config[key] = value
	}
	c := common.NewConfig(config).WithEnvLookup(func(string) (string, bool) { return "", false })
	return NewLanguageModel(NewChatMLPromptFormatter(), filesystem.NewTempFilePathProvider(c), c, common.NewConsoleLogger())
}

func TestCompleteWithImage(t *testing.T) {
	binary := newFakeBinary(t, `printf 'Here:\n{"name": "Jane"}\n<|im_end|>\ngarbage\n'`)
	model := newTestModel(t, binary, map[string]any{ConfigKeyLLMContextSize: 2048})
	image := &domain.CardImage{JPEG: []byte("jpeg bytes")}
	messages := []*domain.Message{domain.NewUserMessage("Read the card.", image)}
	options := domain.CompleteOptions{Temperature: 0, MaxTokens: 1024, TopP: 0.1, RepeatPenalty: 1.05}

	var fragments []string
	response, err := model.Complete(context.Background(), messages, options, func(fragment string) {
		fragments = append(fragments, fragment)
	})

	require.NoError(t, err)
	assert.Equal(t, "Here:\n{\"name\": \"Jane\"}", response)
	assert.Equal(t, response, strings.Join(fragments, ""))
	args := binary.args(t)
	assert.Equal(t, []string{"-m", model.modelPath, "--mmproj", model.projectorPath, "--image"}, args[:5])
	assert.Equal(t, []string{
		"-c", "2048",
		"-t", "6",
		"-ngl", "99",
		"-n", "1024",
		"--temp", "0",
		"--top-p", "0.1",
		"--repeat-penalty", "1.05",
		"-p",
	}, args[6:21])
	prompt := strings.Join(args[21:], "\n")
	assert.Equal(t, "<|im_start|>user\n<__media__>\nRead the card.<|im_end|>\n<|im_start|>assistant\n", prompt)
	copied, err := os.ReadFile(filepath.Join(binary.directory, "image"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(copied))
	_, err = os.Stat(args[5])
	assert.ErrorIs(t, err, os.ErrNotExist, "the temp image must be removed")
}

func TestCompleteStripsEchoedPromptAndStopsOnCustomSequence(t *testing.T) {
	binary := newFakeBinary(t, `printf '%s\n' "$prompt"; printf '{"name": "Jane"}\n\n\n\nJSON: more\n'`)
	model := newTestModel(t, binary, nil)
	messages := []*domain.Message{domain.NewTextMessage(domain.RoleUser, "OCR text")}
	options := domain.CompleteOptions{Stop: domain.OCRStopSequences}

	var fragments []string
	response, err := model.Complete(context.Background(), messages, options, func(fragment string) {
		fragments = append(fragments, fragment)
	})

	require.NoError(t, err)
	assert.Equal(t, `{"name": "Jane"}`, response)
	assert.Equal(t, response, strings.Join(fragments, ""))
	args := binary.args(t)
	assert.NotContains(t, args, "--image")
	assert.NotContains(t, args, "--top-p")
	assert.Contains(t, args, "-1")
}

func TestCompleteErrors(t *testing.T) {
	failing := newFakeBinary(t, `echo "failed to load model" >&2; exit 1`)
	model := newTestModel(t, failing, nil)
	messages := []*domain.Message{domain.NewTextMessage(domain.RoleUser, "hi")}
	_, err := model.Complete(context.Background(), messages, domain.CompleteOptions{}, nil)
	assert.ErrorContains(t, err, "failed to load model")

	silent := newFakeBinary(t, `exit 0`)
	model = newTestModel(t, silent, nil)
	_, err = model.Complete(context.Background(), messages, domain.CompleteOptions{}, nil)
	assert.ErrorIs(t, err, errUnexpectedModelOutput)

	slow := newFakeBinary(t, `exec sleep 5`)
	model = newTestModel(t, slow, map[string]any{ConfigKeyLLMResponseTimeout: 100})
	_, err = model.Complete(context.Background(), messages, domain.CompleteOptions{}, nil)
	assert.ErrorContains(t, err, "no response within 100ms")

	model = newTestModel(t, silent, map[string]any{ConfigKeyLlamaCppProjectorPath: ""})
	imageMessages := []*domain.Message{domain.NewUserMessage("hi", &domain.CardImage{JPEG: []byte{1}})}
	_, err = model.Complete(context.Background(), imageMessages, domain.CompleteOptions{}, nil)
	assert.ErrorIs(t, err, errNoProjector)
}

func TestCheckPrerequisites(t *testing.T) {
	binary := newFakeBinary(t, `exit 0`)
	model := newTestModel(t, binary, nil)
	assert.ErrorContains(t, model.CheckPrerequisites(false), "model not found")

	require.NoError(t, os.WriteFile(model.modelPath, []byte("gguf"), 0644))
	assert.NoError(t, model.CheckPrerequisites(false))
	assert.ErrorContains(t, model.CheckPrerequisites(true), "multimodal projector not found")

	require.NoError(t, os.WriteFile(model.projectorPath, []byte("gguf"), 0644))
	assert.NoError(t, model.CheckPrerequisites(true))
	assert.Equal(t, "llama.cpp:qwen2.5-vl-3b", model.Name())

	model.binaryPath = filepath.Join(t.TempDir(), "missing")
	assert.ErrorContains(t, model.CheckPrerequisites(false), "binary not found")
}

func TestChatMLPromptFormatter(t *testing.T) {
	first := &domain.CardImage{JPEG: []byte{1}}
	second := &domain.CardImage{JPEG: []byte{2}}
	messages := []*domain.Message{
		domain.NewTextMessage(domain.RoleSystem, "Be brief."),
		domain.NewUserMessage("What is it?", first),
		domain.NewTextMessage(domain.RoleAssistant, "A card."),
		domain.NewUserMessage("And this?", second),
	}
	prompt := NewChatMLPromptFormatter().FormatPrompt(messages, second)
	assert.Equal(t, "<|im_start|>system\nBe brief.<|im_end|>\n"+
		"<|im_start|>user\nWhat is it?<|im_end|>\n"+
		"<|im_start|>assistant\nA card.<|im_end|>\n"+
		"<|im_start|>user\n<__media__>\nAnd this?<|im_end|>\n"+
		"<|im_start|>assistant\n", prompt)
}

func TestOutputCollectorHoldsBackPossibleStopSequences(t *testing.T) {
	collector := newOutputCollector("PROMPT", []string{"<|im_end|>"})
	fragment, keepRunning := collector.add("PROMPT\n")
	assert.Equal(t, "", fragment)
	assert.True(t, keepRunning)
	fragment, keepRunning = collector.add("{\"name\": \"Jane Doe\", \"title\": null}\n")
	assert.Equal(t, `{"name": "Jane Doe", "title`, fragment)
	assert.True(t, keepRunning)
	fragment, keepRunning = collector.add("<|im_end|>\n")
	assert.Equal(t, `": null}`, fragment)
	assert.False(t, keepRunning)
	response, rest, ok := collector.finish()
	assert.True(t, ok)
	assert.Equal(t, "", rest)
	assert.Equal(t, `{"name": "Jane Doe", "title": null}`, response)
}
