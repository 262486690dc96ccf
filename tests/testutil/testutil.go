package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// RequirePostgresOrSkip skips tests that need a real PostgreSQL database
// (advisory locks, numeric columns) unless TEST_DATABASE_URL points at one.
func RequirePostgresOrSkip(t *testing.T) string {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if !strings.HasPrefix(url, "postgres") {
		t.Skip("Skipping test: TEST_DATABASE_URL must point at a PostgreSQL test database")
	}
	if !containsTest(url) {
		t.Fatalf("SAFETY CHECK FAILED: TEST_DATABASE_URL %s does not look like a test database", maskDatabaseURL(url))
	}
	return url
}

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in TestMain or suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}

	// Verify it was set
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// PrintEnvironmentInfo prints the current test environment configuration.
// Useful for debugging test environment issues.
func PrintEnvironmentInfo() {
	fmt.Printf("Test Environment Info:\n")
	fmt.Printf("  GO_ENV: %s\n", os.Getenv("GO_ENV"))
	fmt.Printf("  TEST_DATABASE_URL: %s\n", maskDatabaseURL(os.Getenv("TEST_DATABASE_URL")))
	fmt.Printf("  PORT: %s\n", os.Getenv("PORT"))
}

// maskDatabaseURL hides credentials and flags URLs that may not be a test database
func maskDatabaseURL(url string) string {
	if url == "" {
		return "(not set)"
	}
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if scheme := strings.Index(url, "://"); scheme >= 0 && scheme < at {
			url = url[:scheme+3] + "***" + url[at:]
		}
	}
	if !containsTest(url) {
		return url + " [WARNING: may not be test DB]"
	}
	return url
}

func containsTest(url string) bool {
	if i := strings.Index(url, "?"); i >= 0 {
		url = url[:i]
	}
	return strings.HasSuffix(url, "_test") || strings.HasSuffix(url, "test")
}
