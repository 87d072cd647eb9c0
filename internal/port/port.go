package port

import (
	"errors"
	"fmt"
	"net"

	"github.com/matheuscscp/loopback-login/internal/constants"
)

var ErrAllocate = errors.New("failed to allocate loopback port")

// Allocate asks the OS for an ephemeral port on the loopback interface and
// releases it right away. Another local process may grab the port before the
// caller binds it again.
func Allocate() (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(constants.LoopbackHost, "0"))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAllocate, err)
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected address type %T", ErrAllocate, l.Addr())
	}
	return addr.Port, nil
}
