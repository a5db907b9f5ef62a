package provision

import (
	"os"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
)

// CheckPrivilege verifies the process can perform privileged system mutation.
// Called before any state is touched, so an unprivileged invocation exits
// without side effects.
func CheckPrivilege() error {
	if os.Geteuid() != 0 {
		return errors.New(InsufficientPrivilegeError{})
	}

	return nil
}

// InsufficientPrivilegeError is returned when the process is not running as root.
type InsufficientPrivilegeError struct{}

func (err InsufficientPrivilegeError) Error() string {
	return "this command mutates system state and must run as root; rerun it with sudo"
}
