// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package isca scrapes ISCA Archive paper pages. Those pages are static
// HTML, so they are fetched over plain HTTP: the citation text with a colly
// collector and the paper PDF with the retrying HTTP client.
package isca

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/xurls/v2"
)

var urlPattern = xurls.Strict()

// ReadURLs reads paper page URLs from path. Every URL with a scheme found on
// a line is taken, so numbered or annotated lists work as well as bare ones.
// Lines starting with # are skipped; repeats keep their first position.
func ReadURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening url list: %w", err)
	}
	defer f.Close()
	return parseURLs(f)
}

func parseURLs(r io.Reader) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, u := range urlPattern.FindAllString(line, -1) {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading url list: %w", err)
	}
	return urls, nil
}
