package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentIdentity_ScopedPerTenant(t *testing.T) {
	content := []byte("shared onboarding handbook")

	idA := documentIdentity("tenant-a", content)
	idB := documentIdentity("tenant-b", content)

	// The same file uploaded by two tenants must produce two documents;
	// otherwise the second tenant collides on the primary key and its
	// indexed chunks would share ES ids with the first tenant's.
	assert.NotEqual(t, idA, idB)

	// Within one tenant the ID stays content-addressed and deterministic.
	assert.Equal(t, idA, documentIdentity("tenant-a", content))
	assert.NotEqual(t, idA, documentIdentity("tenant-a", []byte("revised handbook")))
}
