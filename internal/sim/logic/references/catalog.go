// Package references keeps block-to-block references alive across copy and
// paste. Backup records every outgoing reference of a block as the target's
// identity token inside the block's storage; Restore resolves those tokens
// against a freshly built catalog and repairs references the engine broke
// while remapping handles.
package references

import (
	"log"

	"sections.ai/internal/sim/blockdata"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/ids"
	"sections.ai/internal/sim/logic/mechanical"
)

type Options struct {
	// Mint defaults to ids.NewToken.
	Mint   ids.Minter
	Logger *log.Logger
}

// Entry is one cataloged terminal block.
type Entry struct {
	Block host.Terminal
	Data  *blockdata.Data
	parts []part
}

func (e *Entry) Handle() host.BlockID { return e.Block.ID() }
func (e *Entry) Token() string        { return e.Data.Token() }

// Catalog indexes every terminal block of a structure by handle and by
// token. It is built for one operation and then dropped.
type Catalog struct {
	entries  []*Entry
	byHandle map[host.BlockID]*Entry
	byToken  map[string]*Entry
	reminted int
	logger   *log.Logger
}

// ForGrid catalogs the structure mechanically connected to root.
func ForGrid(root host.Grid, opts Options) *Catalog {
	return ForGrids(mechanical.Walk(root).Grids(), opts)
}

// ForGrids catalogs the terminal blocks of grids. A block whose token was
// already seen in this catalog gets a new token, persisted right away.
func ForGrids(grids []host.Grid, opts Options) *Catalog {
	mint := opts.Mint
	if mint == nil {
		mint = ids.NewToken
	}
	c := &Catalog{
		byHandle: map[host.BlockID]*Entry{},
		byToken:  map[string]*Entry{},
		logger:   opts.Logger,
	}
	reg := ids.NewRegistry(mint)
	seenGrid := map[host.GridID]struct{}{}

	for _, g := range grids {
		if g == nil {
			continue
		}
		if _, dup := seenGrid[g.ID()]; dup {
			continue
		}
		seenGrid[g.ID()] = struct{}{}

		for _, b := range g.Blocks() {
			term, ok := b.Terminal()
			if !ok {
				continue
			}
			if _, dup := c.byHandle[b.ID()]; dup {
				continue
			}
			data := blockdata.Load(term, mint, opts.Logger)
			token, reminted := reg.Claim(data.Token())
			if reminted {
				if c.logger != nil {
					c.logger.Printf("references: block %d token %s already taken, reminted %s", b.ID(), data.Token(), token)
				}
				data.SetToken(token)
				data.Write()
			}

			e := &Entry{Block: term, Data: data, parts: partsFor(term.Accessors())}
			c.entries = append(c.entries, e)
			c.byHandle[b.ID()] = e
			c.byToken[token] = e
		}
	}
	c.reminted = reg.Reminted
	return c
}

func (c *Catalog) Len() int { return len(c.entries) }

// Reminted is the number of tokens replaced because of a collision.
func (c *Catalog) Reminted() int { return c.reminted }

func (c *Catalog) ByHandle(id host.BlockID) (*Entry, bool) {
	e, ok := c.byHandle[id]
	return e, ok
}

func (c *Catalog) ByToken(token string) (*Entry, bool) {
	e, ok := c.byToken[token]
	return e, ok
}

// tokenOf resolves a live handle to a token. Zero and foreign handles do
// not resolve.
func (c *Catalog) tokenOf(id host.BlockID) (string, bool) {
	if id == 0 {
		return "", false
	}
	e, ok := c.byHandle[id]
	if !ok {
		return "", false
	}
	return e.Token(), true
}

func (c *Catalog) handleOf(token string) (host.BlockID, bool) {
	e, ok := c.byToken[token]
	if !ok {
		return 0, false
	}
	return e.Handle(), true
}

// valid reports whether id is a handle of this catalog.
func (c *Catalog) valid(id host.BlockID) bool {
	if id == 0 {
		return false
	}
	_, ok := c.byHandle[id]
	return ok
}

// BackupStats counts what Backup recorded.
type BackupStats struct {
	Blocks     int
	References int
}

// Backup records the current outgoing references of every cataloged block
// and writes each block's storage.
func (c *Catalog) Backup() BackupStats {
	var st BackupStats
	for _, e := range c.entries {
		n := 0
		for _, p := range e.parts {
			n += p.backup(c, e.Data.Groups)
		}
		if n > 0 {
			st.Blocks++
			st.References += n
		}
		e.Data.Write()
	}
	return st
}

// RestoreStats counts what Restore changed.
type RestoreStats struct {
	// Repaired is the number of reference writes on live blocks.
	Repaired int
	// Dangling counts stored tokens nothing in the catalog answers to.
	Dangling int
	// Pruned counts stale stored keys dropped from storage.
	Pruned int
	// Persisted counts blocks whose storage was rewritten.
	Persisted int
}

func (s *RestoreStats) add(o RestoreStats) {
	s.Repaired += o.Repaired
	s.Dangling += o.Dangling
	s.Pruned += o.Pruned
}

// Restore repairs references whose live handle is zero or unknown to the
// catalog. Live references that still resolve are never touched.
func (c *Catalog) Restore() RestoreStats {
	var st RestoreStats
	for _, e := range c.entries {
		var bs RestoreStats
		for _, p := range e.parts {
			bs.add(p.restore(c, e.Data.Groups))
		}
		if bs.Pruned > 0 {
			e.Data.Write()
			bs.Persisted = 1
		}
		st.add(bs)
		st.Persisted += bs.Persisted
	}
	return st
}

// Clear drops every stored reference group of the cataloged blocks, keeping
// their tokens, and returns the number of blocks changed.
func (c *Catalog) Clear() int {
	n := 0
	for _, e := range c.entries {
		if e.Data.Groups.Len() == 0 {
			continue
		}
		e.Data.Groups.Clear()
		e.Data.Write()
		n++
	}
	return n
}
