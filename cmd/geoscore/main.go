// geoscore scores how visible a brand is in AI assistant answers.
//
// Usage:
//
//	geoscore score -f scan.yaml [-c scoring.yaml] [-o json|text]
//	geoscore serve [--addr :8080] [-c scoring.yaml]
//	geoscore sample [--prompts 10] [--runs 3] [--seed 1] [-o scan.yaml]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
