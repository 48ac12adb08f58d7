package hostinfo

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalHostnameLowercased(t *testing.T) {
	name := LocalHostname()

	assert.NotEmpty(t, name)
	assert.Equal(t, strings.ToLower(name), name)
}

func TestLocalIPIsValidIPv4(t *testing.T) {
	ip := net.ParseIP(LocalIP())

	assert.NotNil(t, ip)
	assert.NotNil(t, ip.To4())
}
