package common

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFormat(t *testing.T) {
	tests := map[string]bool{
		"card.jpg":                                  true,
		"/home/john/Card.JPEG":                      true,
		"scan.tiff":                                 true,
		"https://example.com/cards/jane.png?size=l": true,
		"https://example.com/cards/jane":            false,
		"https://example.com/page.html":             false,
		"notes.txt":                                 false,
		"":                                          false,
	}
	for input, expected := range tests {
		assert.Equal(t, expected, IsImageFormat(input), input)
	}
}

func TestRemoveQuotesIfAny(t *testing.T) {
	tests := map[string]string{
		`'/tmp/card 1.jpg'`: "/tmp/card 1.jpg",
		`"/tmp/card.jpg"`:   "/tmp/card.jpg",
		`'/tmp/card.jpg"`:   `'/tmp/card.jpg"`,
		`/tmp/card.jpg`:     "/tmp/card.jpg",
		`'`:                 `'`,
		`''`:                "",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, RemoveQuotesIfAny(input), input)
	}
}

func TestHash(t *testing.T) {
	assert.Equal(t, Hash([]byte("card")), Hash([]byte("card")))
	assert.NotEqual(t, Hash([]byte("card")), Hash([]byte("card2")))
	assert.Len(t, Hash(nil), 16)
}

func TestJobQueueRunsJobsInOrder(t *testing.T) {
	var logs bytes.Buffer
	queue := NewJobQueue(NewWriterLogger(&logs))
	var mutex sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		require.True(t, queue.Enqueue(func() error {
			defer wg.Done()
			mutex.Lock()
			defer mutex.Unlock()
			order = append(order, i)
			if i == 2 {
				return errors.New("job 2 failed")
			}
			return nil
		}))
	}
	wg.Wait()
	queue.Stop()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Contains(t, logs.String(), "job 2 failed")
	assert.False(t, queue.Enqueue(func() error { return nil }))
	queue.Stop()
}

func TestReadAllFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/card.jpg":
			_, _ = w.Write([]byte("jpeg bytes"))
		case "/big.jpg":
			_, _ = w.Write([]byte(strings.Repeat("x", MaxDownloadSize+1)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	content, err := ReadAllFromURL(ctx, server.URL+"/card.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(content))

	_, err = ReadAllFromURL(ctx, server.URL+"/missing.jpg")
	assert.ErrorContains(t, err, "404")

	_, err = ReadAllFromURL(ctx, server.URL+"/big.jpg")
	assert.ErrorIs(t, err, ErrDownloadTooLarge)
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	Logf(logger, "loaded %d cards", 3)
	assert.Contains(t, buf.String(), "loaded 3 cards")
}
