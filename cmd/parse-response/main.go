// Program to show how a raw model response is parsed.
// Reads responses from files (or stdin with no arguments) and prints the
// tier that accepted each one along with the structured result.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/parse"
)

func main() {
	modeFlag := flag.String("mode", "verify", "analysis mode the response answers (verify, expose)")
	flag.Parse()

	mode, err := model.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	p := parse.New()
	for _, path := range inputs {
		raw, err := readInput(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}

		result, tier := p.ParseTier(mode, raw)
		fmt.Printf("=== %s ===\n", path)
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("  Tier:      %s\n", tier)
		fmt.Printf("  Degraded:  %v\n", result.Degraded)
		fmt.Printf("  Class:     %s (%d%%)\n", result.Classification(), result.Confidence())

		out, _ := json.MarshalIndent(result, "  ", "  ")
		fmt.Printf("  Result:\n  %s\n\n", out)
	}
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
