// Package storagetest provides a conformance suite for storage.Service
// implementations.
//
// It tests the interface contract, not implementation details, so the same
// suite runs against memory, badger and (when available) a real S3 endpoint.
//
// Usage:
//
//	func TestMyService(t *testing.T) {
//	    suite := &storagetest.Suite{
//	        NewService: func(t *testing.T) storage.Service {
//	            return mybackend.New(storagetest.Accounts())
//	        },
//	    }
//	    suite.Run(t)
//	}
package storagetest

import (
	"context"
	"testing"

	"github.com/marmos91/dittoftp/pkg/storage"
)

var (
	// Owner is the primary account every backend under test must accept.
	Owner = storage.Credentials{AccessKeyID: "owner", SecretAccessKey: "owner-secret"}

	// Other is a second account used for isolation tests.
	Other = storage.Credentials{AccessKeyID: "other", SecretAccessKey: "other-secret"}
)

// Accounts returns the account table the suite expects.
func Accounts() map[string]string {
	return map[string]string{
		Owner.AccessKeyID: Owner.SecretAccessKey,
		Other.AccessKeyID: Other.SecretAccessKey,
	}
}

// Suite is a reusable test suite for storage.Service implementations.
type Suite struct {
	// NewService creates a fresh service for each test. It must accept the
	// Owner and Other credentials.
	NewService func(t *testing.T) storage.Service

	// SkipAccountChecks disables tests that rely on the service enforcing
	// credentials and per-account visibility (Localstack accepts anything).
	SkipAccountChecks bool
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("Credentials", s.RunCredentialTests)
	t.Run("Containers", s.RunContainerTests)
	t.Run("Keys", s.RunKeyTests)
	t.Run("Listing", s.RunListingTests)
}

func testContext() context.Context {
	return context.Background()
}
