// Package main provides the numerator admin CLI.
//
//	numerator migrate up
//	numerator allocate --family NDT
//	numerator current --family NDT --year 2025
//	numerator set --family NDT --year 2025 --value 41
//	numerator sync
//	numerator import --family NDT --file legacy.jsonl
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
