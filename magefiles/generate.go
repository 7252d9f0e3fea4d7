//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Index builds the corpus full-text index from corpus/.
func Index() error {
	mg.Deps(Build)
	return sh.RunV("bin/contentforge", "index")
}

// Generate runs a generation for the prompt in $PROMPT and exports it.
func Generate() error {
	mg.Deps(Build)
	prompt := os.Getenv("PROMPT")
	if prompt == "" {
		prompt = "Summarize the indexed corpus"
	}
	return sh.RunV("bin/contentforge", "generate", "--export", prompt)
}

// Serve runs the HTTP API on server.addr.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV("bin/contentforge", "serve")
}
