//go:build e2e

// Package e2e provides end-to-end tests for the playground harness.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running them against a production build:
//
//	VITE_TEST_BUILD=1 go test -tags=e2e ./e2e/...
//
// E2E tests use:
//   - Rod for browser automation (Chrome DevTools Protocol)
//   - fixture projects under playground/, one Go package per playground
//   - e2etest for the per-package global setup
//
// Test isolation:
// Each package launches its own browser and publishes its endpoint in a
// private setup directory, so packages can run in parallel.
package e2e
