package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUUIDv7IsVersion7(t *testing.T) {
	id := NewUUIDv7()
	assert.Equal(t, 7, int(id.Version()))
}

func TestNewMessageIDSortsByCreation(t *testing.T) {
	a := NewMessageID()
	b := NewMessageID()
	assert.Len(t, a, 26)
	assert.LessOrEqual(t, a[:10], b[:10])
}
