package removal

import (
	"os"
	"regexp"
	"strings"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/pkg/log"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// RestoreFile puts a modified system file back the way it was. When a recorded
// timestamped backup exists it is restored verbatim and then deleted. Backups
// are best-effort and may be absent from older pipeline runs, so without one the
// live file is edited heuristically instead: every line matching one of the
// given patterns is dropped.
func RestoreFile(logger log.Logger, target, backupPath string, patterns []string) error {
	if backupPath != "" && util.IsFile(backupPath) {
		logger.Infof("Restoring %s from backup %s", target, backupPath)

		if err := util.CopyFile(backupPath, target); err != nil {
			return err
		}

		if err := os.Remove(backupPath); err != nil {
			return errors.New(err)
		}

		return nil
	}

	return stripMatchingLines(logger, target, patterns)
}

// StripTokens removes the given whitespace-separated tokens from the target
// file, leaving everything else in place. This is the heuristic fallback for
// single-line files like the kernel command line, where dropping a whole
// matching line would destroy the file.
func StripTokens(logger log.Logger, target string, tokens []string) error {
	fi, err := os.Stat(target)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.New(err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return errors.New(err)
	}

	drop := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		drop[token] = true
	}

	lines := strings.Split(string(data), "\n")
	dropped := 0

	for i, line := range lines {
		fields := strings.Fields(line)
		kept := make([]string, 0, len(fields))

		for _, field := range fields {
			if drop[field] {
				dropped++
				continue
			}

			kept = append(kept, field)
		}

		if len(kept) < len(fields) {
			lines[i] = strings.Join(kept, " ")
		}
	}

	if dropped == 0 {
		return nil
	}

	logger.Infof("No backup recorded for %s; stripped %d parameters instead", target, dropped)

	return util.WriteFileAtomic(target, []byte(strings.Join(lines, "\n")), fi.Mode().Perm())
}

func stripMatchingLines(logger log.Logger, target string, patterns []string) error {
	regexps := make([]*regexp.Regexp, 0, len(patterns))

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return errors.New(err)
		}

		regexps = append(regexps, re)
	}

	fi, err := os.Stat(target)
	if os.IsNotExist(err) {
		// Nothing to restore.
		return nil
	} else if err != nil {
		return errors.New(err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return errors.New(err)
	}

	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	dropped := 0

	for _, line := range lines {
		if matchesAny(line, regexps) {
			dropped++
			continue
		}

		kept = append(kept, line)
	}

	if dropped == 0 {
		return nil
	}

	logger.Infof("No backup recorded for %s; removed %d matching lines instead", target, dropped)

	return util.WriteFileAtomic(target, []byte(strings.Join(kept, "\n")), fi.Mode().Perm())
}

func matchesAny(line string, regexps []*regexp.Regexp) bool {
	for _, re := range regexps {
		if re.MatchString(line) {
			return true
		}
	}

	return false
}
