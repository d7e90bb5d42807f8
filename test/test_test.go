package test_test

import (
	"testing"

	"github.com/arjunvale/httpcache"
	"github.com/arjunvale/httpcache/test"
)

func TestInMemoryByteStore(t *testing.T) {
	test.ByteStore(t, httpcache.NewInMemoryByteStore())
}
