package proto

import "fmt"

// ProcedureID identifies one RPC operation inside the 32 bit procedure space
// shared with co-hosted services.
type ProcedureID uint32

// The contiguous identifier block reserved for the lump-storage operations.
const (
	// Namespace is the base of the reserved block.
	Namespace ProcedureID = 0x0001_0000
	// NamespaceEnd is the last identifier of the reserved block.
	NamespaceEnd ProcedureID = 0x0001_FFFF
)

// The operation identifiers. Append-only: an id, once assigned, is never
// reused for a different operation.
const (
	ProcGet         = Namespace | 0x0001
	ProcHead        = Namespace | 0x0002
	ProcPut         = Namespace | 0x0003
	ProcDelete      = Namespace | 0x0004
	ProcListRange   = Namespace | 0x0005
	ProcUsage       = Namespace | 0x0006
	ProcDeleteRange = Namespace | 0x0007
	ProcSync        = Namespace | 0x0008
)

// Procedure describes one registered operation.
type Procedure struct {
	ID   ProcedureID
	Name string

	// ReadOnly marks procedures that are safe for the caller (and the client
	// transport) to retry. Mutations are never retried automatically since
	// a duplicated delivery would duplicate the mutation.
	ReadOnly bool
}

// procedures is the static operation table. It is intentionally a slice, not
// a map, so that a duplicated id is representable and caught by validation.
var procedures = []Procedure{
	{ID: ProcGet, Name: "lump.get", ReadOnly: true},
	{ID: ProcHead, Name: "lump.head", ReadOnly: true},
	{ID: ProcPut, Name: "lump.put"},
	{ID: ProcDelete, Name: "lump.delete"},
	{ID: ProcListRange, Name: "lump.list_range", ReadOnly: true},
	{ID: ProcUsage, Name: "device.usage", ReadOnly: true},
	{ID: ProcDeleteRange, Name: "lump.delete_range"},
	{ID: ProcSync, Name: "device.sync"},
}

var procedureIndex map[ProcedureID]Procedure

func init() {
	procedureIndex = make(map[ProcedureID]Procedure, len(procedures))
	for _, p := range procedures {
		if p.ID < Namespace || p.ID > NamespaceEnd {
			panic(fmt.Sprintf("procedure %q: id 0x%08x outside reserved block [0x%08x, 0x%08x]",
				p.Name, uint32(p.ID), uint32(Namespace), uint32(NamespaceEnd)))
		}
		if dup, ok := procedureIndex[p.ID]; ok {
			panic(fmt.Sprintf("procedure id 0x%08x assigned to both %q and %q",
				uint32(p.ID), dup.Name, p.Name))
		}
		procedureIndex[p.ID] = p
	}
}

// LookupProcedure returns the table entry for id.
func LookupProcedure(id ProcedureID) (Procedure, bool) {
	p, ok := procedureIndex[id]
	return p, ok
}

// Procedures returns a copy of the registered operation table.
func Procedures() []Procedure {
	out := make([]Procedure, len(procedures))
	copy(out, procedures)
	return out
}

// IsReadOnly reports whether id names a registered read-only procedure.
func IsReadOnly(id ProcedureID) bool {
	p, ok := procedureIndex[id]
	return ok && p.ReadOnly
}

// ProcedureName returns the operation name for id, or a hex rendering for
// unregistered ids (used in logs and metrics labels).
func ProcedureName(id ProcedureID) string {
	if p, ok := procedureIndex[id]; ok {
		return p.Name
	}
	return fmt.Sprintf("unknown(0x%08x)", uint32(id))
}
