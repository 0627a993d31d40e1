// Package blockdata reads and writes the text blob a block carries in its
// storage component:
//
//	<token>
//
//	[GroupName]
//	key:value
//
// The first top-level line is the block's identity token. Every [Name]
// header opens a group of key:value lines. A second top-level line means
// the blob is corrupt; it is then dropped and a fresh token is minted.
package blockdata

import (
	"log"
	"strings"
)

// Holder is the host side of the storage component.
type Holder interface {
	Storage() (string, bool)
	SetStorage(value string)
}

// Parse splits a blob into its token and groups. ok is false when the blob
// has no token or more than one top-level line.
func Parse(raw string) (token string, groups *Groups, ok bool) {
	groups = NewGroups()
	var group *Group
	for _, line := range strings.Split(raw, "\n") {
		item := strings.TrimSpace(line)
		if item == "" {
			continue
		}

		if strings.HasPrefix(item, "[") && strings.HasSuffix(item, "]") && len(item) >= 2 {
			group = groups.Replace(item[1 : len(item)-1])
			continue
		}

		if group == nil {
			if token != "" {
				return "", NewGroups(), false
			}
			token = item
			continue
		}

		key, value := "", ""
		if i := strings.IndexByte(item, ':'); i >= 0 {
			key, value = item[:i], item[i+1:]
		}
		group.Set(key, value)
	}
	if token == "" {
		return "", NewGroups(), false
	}
	return token, groups, true
}

// Format is the inverse of Parse for well-formed input.
func Format(token string, groups *Groups) string {
	var b strings.Builder
	b.WriteString(token)
	b.WriteByte('\n')
	if groups == nil {
		return b.String()
	}
	for _, name := range groups.names {
		g := groups.byName[name]
		b.WriteString("\n[")
		b.WriteString(name)
		b.WriteString("]\n")
		for _, k := range g.keys {
			b.WriteString(k)
			b.WriteByte(':')
			b.WriteString(g.values[k])
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Data is the in-memory view of one block's storage. Changes reach the host
// only through Write.
type Data struct {
	holder Holder
	token  string
	Groups *Groups
}

// Load reads the holder's blob. A missing blob is a new identity and a
// corrupt one is reset; both get a fresh token written back immediately.
func Load(holder Holder, mint func() string, logger *log.Logger) *Data {
	d := &Data{holder: holder, Groups: NewGroups()}

	raw, found := holder.Storage()
	if found {
		token, groups, ok := Parse(raw)
		if ok {
			d.token = token
			d.Groups = groups
			return d
		}
		if logger != nil {
			logger.Printf("blockdata: discarding corrupt storage (%d bytes)", len(raw))
		}
	}

	d.token = mint()
	d.Write()
	return d
}

func (d *Data) Token() string { return d.token }

// SetToken replaces the identity token. The caller decides when to Write.
func (d *Data) SetToken(token string) { d.token = token }

func (d *Data) Write() {
	if d.holder == nil {
		return
	}
	d.holder.SetStorage(Format(d.token, d.Groups))
}
