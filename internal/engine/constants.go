package engine

// Environment flags. Values follow libmdbx so the mdbx driver can log them
// verbatim; drivers translate them explicitly.
const (
	EnvDefaults uint = 0
	NoSubdir    uint = 0x00004000
	ReadOnly    uint = 0x00020000
	WriteMap    uint = 0x00080000
	NoReadahead uint = 0x00800000
	NoMemInit   uint = 0x01000000
	NoMetaSync  uint = 0x00040000
	// SafeNoSync skips fsync but keeps steady commits (LMDB MAPASYNC).
	SafeNoSync uint = 0x00010000
	// UtterlyNoSync skips all syncs (LMDB NOSYNC).
	UtterlyNoSync = SafeNoSync | NoMetaSync
)

// Database flags.
const (
	DBDefaults uint = 0
	ReverseKey uint = 0x02
	DupSort    uint = 0x04
	IntegerKey uint = 0x08
	DupFixed   uint = 0x10
	IntegerDup uint = 0x20
	ReverseDup uint = 0x40
	Create     uint = 0x40000
)

// DBOrderFlags are the flags fixed at database creation.
const DBOrderFlags = ReverseKey | DupSort | IntegerKey | DupFixed | IntegerDup | ReverseDup

// Put flags.
const (
	Upsert      uint = 0
	NoOverwrite uint = 0x10
	NoDupData   uint = 0x20
	Current     uint = 0x40
	AllDups     uint = 0x80
	Append      uint = 0x20000
	AppendDup   uint = 0x40000
)

// Op is a cursor positioning operation.
type Op uint

// Cursor operations.
const (
	First Op = iota
	FirstDup
	GetBoth
	GetBothRange
	GetCurrent
	GetMultiple
	Last
	LastDup
	Next
	NextDup
	NextMultiple
	NextNoDup
	Prev
	PrevDup
	PrevNoDup
	Set
	SetKey
	SetRange
)

var opNames = [...]string{
	First: "first", FirstDup: "first-dup", GetBoth: "get-both",
	GetBothRange: "get-both-range", GetCurrent: "get-current",
	GetMultiple: "get-multiple", Last: "last", LastDup: "last-dup",
	Next: "next", NextDup: "next-dup", NextMultiple: "next-multiple",
	NextNoDup: "next-nodup", Prev: "prev", PrevDup: "prev-dup",
	PrevNoDup: "prev-nodup", Set: "set", SetKey: "set-key", SetRange: "set-range",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// IsDupOp reports whether op walks the duplicates of a single key.
func (op Op) IsDupOp() bool {
	switch op {
	case FirstDup, LastDup, NextDup, PrevDup, GetBoth, GetBothRange, GetMultiple, NextMultiple:
		return true
	}
	return false
}
