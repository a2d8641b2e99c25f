package config

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/user"
)

// ParsePwddb reads the password database: one "username:base64(nthash)"
// entry per line, blank lines and '#'-prefixed comments ignored
// (original_source's cp_parse_pwddb). No ecosystem library covers this
// flat, project-specific line format, so it's read directly with
// bufio.Scanner rather than forced through a general-purpose parser
// (see DESIGN.md).
func ParsePwddb(path string) ([]*user.User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open pwddb: %w", err)
	}
	defer f.Close()

	var users []*user.User
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		u, err := parsePwddbLine(text)
		if err != nil {
			return nil, fmt.Errorf("config: pwddb line %d: %w", line, err)
		}
		users = append(users, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read pwddb: %w", err)
	}
	return users, nil
}

func parsePwddbLine(text string) (*user.User, error) {
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return nil, fmt.Errorf("missing ':' separator")
	}
	name := text[:idx]
	if name == "" {
		return nil, fmt.Errorf("empty username")
	}

	raw, err := base64.StdEncoding.DecodeString(text[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("decode hash: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("nt hash is %d bytes, want 16", len(raw))
	}
	var hash user.NTHash
	copy(hash[:], raw)

	var flags user.Flag
	if strings.EqualFold(name, DefaultGuest) {
		flags |= user.FlagGuest
	}

	return user.New(name, hash, flags), nil
}
