package kvsafe

// Value is a zero-copy view of bytes owned by the engine. It is valid while
// the transaction that produced it is active; a Value from a read-write
// transaction is additionally invalidated by the next write anywhere in
// that transaction's chain, since the engine may reuse the pages.
//
// Bytes and Copy check validity on every call and fail with
// ErrInvalidState once the view has expired. The checks are atomic, so a
// Value may be inspected from any goroutine.
type Value struct {
	txn   *Txn
	epoch uint64
	b     []byte
}

func (t *Txn) newValue(b []byte) Value {
	v := Value{txn: t, b: b}
	if !t.readOnly {
		v.epoch = t.env.writeEpoch.Load()
	}
	return v
}

// Valid reports whether the view may still be read.
func (v Value) Valid() bool {
	t := v.txn
	if t == nil || t.state.Load() != txnActive {
		return false
	}
	return t.readOnly || t.env.writeEpoch.Load() == v.epoch
}

// Bytes returns the borrowed bytes. The slice must not be modified and
// must not be used after the view expires.
func (v Value) Bytes() ([]byte, error) {
	if !v.Valid() {
		return nil, newError(ErrInvalidState, "value", "value outlived its transaction or was invalidated by a write")
	}
	return v.b, nil
}

// Copy returns a copy of the bytes that stays valid after the view expires.
func (v Value) Copy() ([]byte, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Len returns the length of the view. It does not need the view to be
// valid.
func (v Value) Len() int { return len(v.b) }

// String returns a copy of the bytes as a string, or "<invalid value>".
func (v Value) String() string {
	b, err := v.Bytes()
	if err != nil {
		return "<invalid value>"
	}
	return string(b)
}
