// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Command gen-schema writes the JSON Schema that storefront checks
// config.yaml against. Editors can point at the output for completion.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/storefront/storefront/internal/config"
)

const defaultOut = "schemas/config.schema.json"

func main() {
	fs := pflag.NewFlagSet("gen-schema", pflag.ExitOnError)
	out := fs.StringP("out", "o", defaultOut, "schema output path")
	_ = fs.Parse(os.Args[1:])

	if err := run(*out, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
}

// run generates the schema and writes it to out, creating parent
// directories as needed.
func run(out string, stdout io.Writer) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return oops.With("operation", "generate schema").Wrap(err)
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return oops.With("path", dir).Wrap(err)
		}
	}
	if err := os.WriteFile(out, schema, 0o600); err != nil {
		return oops.With("path", out).Wrap(err)
	}

	_, err = fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", out, len(schema))
	return err //nolint:wrapcheck // stdout write
}
