// Swatch - Image palette extraction and remote image editing
//
// Swatch extracts representative colour palettes from images and forwards
// edit requests to a remote inference service.
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"os"

	"github.com/jmylchreest/swatch/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
