//go:build ignore

package main

import (
	"fmt"
	"os"
	"os/exec"
)

// Run with: go run test_runner.go
func main() {
	fmt.Println("Running all tests for shortcut-service...")

	// Race detector on: the store and resolver tests hammer shared records.
	cmd := exec.Command("go", "test", "-race", "-v", "-cover", "./...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Printf("Tests failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nAll tests passed!")

	fmt.Println("\nRunning benchmarks...")
	benchCmd := exec.Command("go", "test", "-run=^$", "-bench=.", "-benchmem", "./internal/shortener/...")
	benchCmd.Stdout = os.Stdout
	benchCmd.Stderr = os.Stderr

	if err := benchCmd.Run(); err != nil {
		fmt.Printf("Benchmarks failed: %v\n", err)
		// Don't exit on benchmark failure
	}

	fmt.Println("\nTest run complete!")
}
