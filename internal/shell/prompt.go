package shell

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// PromptUserForYesNo asks the operator a yes/no question and returns their
// answer. In non-interactive mode the question is logged and assumed "yes".
func PromptUserForYesNo(prompt string, opts *options.PiSetupOptions) (bool, error) {
	if opts.NonInteractive {
		opts.Logger.Infof("%s: assuming \"yes\" due to non-interactive mode", prompt)
		return true, nil
	}

	if _, err := fmt.Fprintf(opts.Writer, "%s (y/n) ", prompt); err != nil {
		return false, errors.New(err)
	}

	reader := bufio.NewReader(opts.Reader)

	line, err := reader.ReadString('\n')
	if err != nil {
		return false, errors.New(err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
