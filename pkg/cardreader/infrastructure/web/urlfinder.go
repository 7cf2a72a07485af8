package web

import (
	"strings"

	"github.com/mvdan/xurls"
)

type URLFinder struct{}

func NewURLFinder() *URLFinder {
	return &URLFinder{}
}

func (u *URLFinder) FindURLs(str string) []string {
	return xurls.Relaxed.FindAllString(str, -1)
}

// RemoveURL returns the text without the URL, for example "read this: http://x/card.jpg" => "read this:"
func RemoveURL(str, url string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(strings.ReplaceAll(str, url, "")), " "))
}
