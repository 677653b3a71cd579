// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the vento project using Mage.
//
// Usage:
//
//	mage build             Compile the vento binary to bin/
//	mage run serve ...     Build, then run bin/vento with the given arguments
//	mage test:all          Run all unit tests
//	mage test:race         Run unit tests with the race detector
//	mage test:cover        Run unit tests and write coverage.out
//	mage test:integration  Run the store suites against MongoDB and PostgreSQL containers
//	mage lint              Run golangci-lint
//	mage clean             Remove build artifacts
//	mage install           Install vento to GOPATH/bin
package main
