// Package application contains use-case orchestration services.
package application

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaxKeys caps how many private keys a single upload may contribute.
const MaxKeys = 100

// ErrNoKeys is returned when an uploaded file contains no line in any of the
// accepted private-key formats.
var ErrNoKeys = errors.New("no valid private keys found")

// Unprefixed keys must be exactly 64 or 66 hex characters.
var bareHexKey = regexp.MustCompile(`^([0-9a-fA-F]{64}|[0-9a-fA-F]{66})$`)

// LoadKeys parses an uploaded key file: one key per line, either 0x-prefixed
// or 64/66 bare hex characters. Lines are trimmed, normalized to lower-case
// 0x-prefixed form, deduplicated preserving first-seen order, and capped at
// MaxKeys. Returns ErrNoKeys when nothing matched.
func LoadKeys(r io.Reader) ([]string, error) {
	var (
		keys  []string
		seen  = make(map[string]bool)
		lines int
		bytes int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines++
		bytes += len(scanner.Bytes()) + 1
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "0x") && !bareHexKey.MatchString(line) {
			continue
		}

		key := strings.ToLower(line)
		if !strings.HasPrefix(key, "0x") {
			key = "0x" + key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	if len(keys) > MaxKeys {
		keys = keys[:MaxKeys]
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	slog.Info("key file parsed", "lines", lines, "bytes", bytes, "keys", len(keys))
	return keys, nil
}
