//go:build mage

// Package main provides build targets for the loom project using Mage.
//
// Usage:
//
//	mage build        Compile the loom binary to bin/
//	mage test:all     Run all tests
//	mage test:race    Run all tests with the race detector
//	mage test:cover   Write coverage to bin/coverage.out
//	mage lint         Run golangci-lint
//	mage clean        Remove build artifacts
//	mage install      Install loom to GOPATH/bin
//	mage stats        Print Go lines of code per package
package main
