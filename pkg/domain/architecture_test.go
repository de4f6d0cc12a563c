package domain

import (
	"testing"

	"healthtrack/testutil"
)

// The domain layer describes records and contracts only; backends live under internal/.
func TestDomainImportsStayPortable(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InternalImportForbidden, testutil.StorageImportForbidden),
		"pkg/domain must not depend on internal packages or storage drivers")
}
