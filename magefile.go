//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

// Build compiles the API server into bin/api.
func Build() error {
	fmt.Println("Building...")
	return sh.RunV("go", "build", "-o", "bin/api", "./cmd/api")
}

// Run starts the API server.
func Run() error {
	return sh.RunV("go", "run", "./cmd/api")
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Tidy tidies go.mod.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// Migrate applies the database schema.
func Migrate() error {
	return sh.RunV("go", "run", "./cmd/tools/applymigration")
}

// Check runs vet and tests.
func Check() {
	mg.SerialDeps(Vet, Test)
}
