//go:build !unix

package transport

import (
	"net/netip"
	"testing"

	"github.com/companyzero/seqcast/internal/assert"
)

// TestKernelReadBufferSizeUnsupported tests the query reports the platform
// as unsupported instead of failing to build.
func TestKernelReadBufferSizeUnsupported(t *testing.T) {
	t.Parallel()

	c, err := Listen(netip.MustParseAddrPort("127.0.0.1:0"))
	assert.NilErr(t, err)
	t.Cleanup(func() { c.Close() })

	_, err = c.KernelReadBufferSize()
	assert.ErrorIs(t, err, ErrKernelBufferUnsupported)
}
