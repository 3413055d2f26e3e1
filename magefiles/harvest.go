//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Harvest runs the built CLI with the config in the working directory.
type Harvest mg.Namespace

// Crawl pages through the IEEE Xplore search and stores paper metadata.
func (Harvest) Crawl() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "crawl")
}

// Cite scrapes citations from the ISCA Archive URL list.
func (Harvest) Cite() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "cite")
}

// Download fetches the PDFs linked from the ISCA Archive URL list.
func (Harvest) Download() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "download")
}

// Reports builds the abstract summary, reference list, and duplicate check.
func (Harvest) Reports() error {
	mg.Deps(Build)
	for _, kind := range []string{"abstracts", "references", "duplicates"} {
		if err := sh.RunV(binPath(), "report", kind); err != nil {
			return err
		}
	}
	return nil
}
