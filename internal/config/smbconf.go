package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
)

// ParseSmbConf reads an smb.conf-shaped file: a [global] section plus
// one section per share, each a flat key=value list (original_source's
// cp_parse_smbconf building a GHashTable of smbconf_group). Unlike
// original_source, per-share parsing returns *share.Share directly
// instead of a generic group map, since this daemon has no separate
// "apply group to share" step.
func ParseSmbConf(path string) ([]*share.Share, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	if err != nil {
		return nil, fmt.Errorf("config: load smb.conf: %w", err)
	}

	var shares []*share.Share
	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || strings.EqualFold(name, "global") {
			continue
		}
		s, err := shareFromSection(sec)
		if err != nil {
			return nil, fmt.Errorf("config: section %q: %w", name, err)
		}
		shares = append(shares, s)
	}
	return shares, nil
}

func shareFromSection(sec *ini.Section) (*share.Share, error) {
	name := sec.Name()

	var flags share.Flag
	if sec.Key("browseable").MustBool(true) {
		flags |= share.FlagBrowseable
	}
	if sec.Key("available").MustBool(true) {
		flags |= share.FlagAvailable
	}
	if sec.Key("read only").MustBool(false) {
		flags |= share.FlagReadOnly
	}
	if sec.Key("guest ok").MustBool(false) {
		flags |= share.FlagGuestOK
	}
	if sec.Key("hide share").MustBool(false) || strings.HasSuffix(name, "$") {
		flags |= share.FlagHidden
	}
	if strings.EqualFold(name, "IPC$") {
		flags |= share.FlagPipe
	}

	s := share.New(name, sec.Key("path").String(), sec.Key("comment").String(), flags)

	if v := sec.Key("create mask").String(); v != "" {
		create, err := parseOctal(v)
		if err != nil {
			return nil, fmt.Errorf("create mask: %w", err)
		}
		dir := share.DefaultDirectoryMask
		if dv := sec.Key("directory mask").String(); dv != "" {
			dir, err = parseOctal(dv)
			if err != nil {
				return nil, fmt.Errorf("directory mask: %w", err)
			}
		}
		s.SetMasks(uint32(create), uint32(dir))
	}

	if v := sec.Key("max connections").String(); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("max connections: %w", err)
		}
		s.SetMaxConnections(n)
	}

	if v := sec.Key("guest account").String(); v != "" {
		s.SetGuestAccount(v)
	}

	if v := sec.Key("veto files").String(); v != "" {
		s.SetVetoList(splitList(v))
	}

	applyUserList(s, share.AdminUsers, sec.Key("admin users").String())
	applyUserList(s, share.ValidUsers, sec.Key("valid users").String())
	applyUserList(s, share.InvalidUsers, sec.Key("invalid users").String())
	applyUserList(s, share.ReadListUsers, sec.Key("read list").String())
	applyUserList(s, share.WriteListUsers, sec.Key("write list").String())

	applyHostList(s, share.HostsAllow, sec.Key("hosts allow").String())
	applyHostList(s, share.HostsDeny, sec.Key("hosts deny").String())

	return s, nil
}

func applyUserList(s *share.Share, kind share.UserMapKind, raw string) {
	for _, u := range splitList(raw) {
		s.AddUser(kind, u)
	}
}

func applyHostList(s *share.Share, kind share.HostMapKind, raw string) {
	for _, h := range splitList(raw) {
		s.AddHost(kind, h)
	}
}

// splitList splits a smb.conf veto/user/host list on the separators
// original_source's config_parser accepts: comma, space, and the
// veto-list's conventional '/'-delimited form.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '/' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseOctal(v string) (int, error) {
	v = strings.TrimPrefix(v, "0")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 8, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
