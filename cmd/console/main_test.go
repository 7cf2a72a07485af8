package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgeyst.com/cardreader/pkg/cardreader/api"
	"kgeyst.com/cardreader/pkg/cardreader/domain"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected invocation
	}{
		{
			name:     "prompt and image",
			args:     []string{"Extract the contact - card.jpg"},
			expected: invocation{mode: modeQuery, prompt: "Extract the contact", location: "card.jpg"},
		},
		{
			name:     "split on the last separator",
			args:     []string{"Name - title - company - /tmp/card.png"},
			expected: invocation{mode: modeQuery, prompt: "Name - title - company", location: "/tmp/card.png"},
		},
		{
			name:     "unquoted arguments are joined",
			args:     []string{"Describe", "this", "-", "https://example.com/card.jpg"},
			expected: invocation{mode: modeQuery, prompt: "Describe this", location: "https://example.com/card.jpg"},
		},
		{
			name:     "prompt only",
			args:     []string{"What is a business card?"},
			expected: invocation{mode: modeQuery, prompt: "What is a business card?"},
		},
		{
			name:     "chat",
			args:     []string{"Chat"},
			expected: invocation{mode: modeChat},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := parseArgs(test.args)
			require.NoError(t, err)
			assert.Equal(t, test.expected, actual)
		})
	}
}

func TestParseArgsEmpty(t *testing.T) {
	_, err := parseArgs(nil)
	assert.ErrorIs(t, err, errNoArguments)
	_, err = parseArgs([]string{"  "})
	assert.ErrorIs(t, err, errNoArguments)
}

func TestIsExitCommand(t *testing.T) {
	for _, line := range []string{"exit", "QUIT", "q"} {
		assert.True(t, isExitCommand(line), line)
	}
	assert.False(t, isExitCommand("quite"))
}

type fakeAPI struct {
	api.API
	response  string
	err       error
	image     *domain.CardImage
	imageErr  error
	gotPrompt string
	gotImage  *domain.CardImage
}

func (f *fakeAPI) Query(_ context.Context, prompt string, image *domain.CardImage, onFragment domain.FragmentFunc) (string, error) {
	f.gotPrompt = prompt
	f.gotImage = image
	if f.err != nil {
		return "", f.err
	}
	onFragment(f.response)
	return f.response, nil
}

func (f *fakeAPI) LoadImage(context.Context, string) (*domain.CardImage, error) {
	return f.image, f.imageErr
}

func newTestConsole(cardReader *fakeAPI) (*console, *bytes.Buffer) {
	var out bytes.Buffer
	return &console{
		cardReader: cardReader,
		repairer:   domain.NewContactRepairer(domain.FirstLastBraceExtractor{}),
		out:        &out,
	}, &out
}

func TestQueryWithImagePrintsParsedContact(t *testing.T) {
	cardReader := &fakeAPI{
		response: "```json\n{\"name\": \"Jane Doe\", \"email\": \"jane@example.com\"}\n```",
		image:    &domain.CardImage{JPEG: []byte{0xFF, 0xD8}, Width: 10, Height: 5},
	}
	app, out := newTestConsole(cardReader)

	err := app.query(context.Background(), "Extract", "card.jpg")

	require.NoError(t, err)
	assert.Equal(t, "Extract", cardReader.gotPrompt)
	assert.NotNil(t, cardReader.gotImage)
	assert.Contains(t, out.String(), "Parsed JSON:")
	assert.Contains(t, out.String(), "  \"name\": \"Jane Doe\"")
	assert.Contains(t, out.String(), "  \"title\": null")
}

func TestQueryContinuesWithoutImageIfItCannotBeLoaded(t *testing.T) {
	cardReader := &fakeAPI{
		response: `{"name": "Jane Doe"}`,
		imageErr: errors.New("no such file"),
	}
	app, out := newTestConsole(cardReader)

	err := app.query(context.Background(), "Extract", "missing.jpg")

	require.NoError(t, err)
	assert.Nil(t, cardReader.gotImage)
	assert.NotContains(t, out.String(), "Parsed JSON:")
}

func TestQueryUnparsableResponse(t *testing.T) {
	cardReader := &fakeAPI{
		response: "I see a cat.",
		image:    &domain.CardImage{JPEG: []byte{0xFF, 0xD8}},
	}
	app, out := newTestConsole(cardReader)

	err := app.query(context.Background(), "Extract", "card.jpg")

	require.NoError(t, err)
	assert.Equal(t, "I see a cat.\n", out.String())
}

func TestQueryError(t *testing.T) {
	app, _ := newTestConsole(&fakeAPI{err: errors.New("connection refused")})
	err := app.query(context.Background(), "Hello", "")
	assert.EqualError(t, err, "connection refused")
}
