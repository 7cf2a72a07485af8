package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kgeyst.com/cardreader/pkg/common"
)

var ErrNoImageFound = errors.New("no image found at the URL")

// imageSelectors where a web page usually advertises its main picture, most specific first.
var imageSelectors = []struct {
	selector  string
	attribute string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
	{`img[src]`, "src"},
}

type ImageDownloader struct{}

func NewImageDownloader() *ImageDownloader {
	return &ImageDownloader{}
}

// Download fetches the image the URL points to. If the URL is a web page (a photo sharing site, for example),
// the page's main image is downloaded instead.
func (i *ImageDownloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	content, err := common.ReadAllFromURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	contentType := http.DetectContentType(content)
	if strings.HasPrefix(contentType, "image/") || common.IsImageFormat(rawURL) {
		return content, nil
	}
	if !strings.HasPrefix(contentType, "text/html") {
		return nil, fmt.Errorf("%w: unexpected content type %s", ErrNoImageFound, contentType)
	}
	imageURL, err := findPageImage(rawURL, content)
	if err != nil {
		return nil, err
	}
	return common.ReadAllFromURL(ctx, imageURL)
}

func findPageImage(pageURL string, page []byte) (string, error) {
	document, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	for _, candidate := range imageSelectors {
		var found string
		document.Find(candidate.selector).EachWithBreak(func(_ int, selection *goquery.Selection) bool {
			value := strings.TrimSpace(selection.AttrOr(candidate.attribute, ""))
			if value == "" || strings.HasPrefix(value, "data:") {
				return true
			}
			reference, err := url.Parse(value)
			if err != nil {
				return true
			}
			found = base.ResolveReference(reference).String()
			return false
		})
		if found != "" {
			return found, nil
		}
	}
	return "", ErrNoImageFound
}
