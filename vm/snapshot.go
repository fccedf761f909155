package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// snapshotVersion is bumped when the Snapshot layout changes.
const snapshotVersion = 1

// Snapshot is the serialized form of a State. Trailing zero cells are not
// stored.
type Snapshot struct {
	Version int    `cbor:"1,keyasint"`
	Pointer uint16 `cbor:"2,keyasint"`
	Cells   []byte `cbor:"3,keyasint"`
}

// cborEncMode uses canonical mode so equal states encode identically.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalSnapshot serializes st to CBOR bytes.
func MarshalSnapshot(st *State) ([]byte, error) {
	used := st.Used()
	snap := Snapshot{
		Version: snapshotVersion,
		Pointer: st.Pointer,
		Cells:   append([]byte(nil), st.Tape[:used]...),
	}
	return cborEncMode.Marshal(&snap)
}

// UnmarshalSnapshot restores a State from CBOR bytes.
func UnmarshalSnapshot(data []byte) (State, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return State{}, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return State{}, fmt.Errorf("vm: unsupported snapshot version %d", snap.Version)
	}
	if len(snap.Cells) > TapeSize {
		return State{}, fmt.Errorf("vm: snapshot has %d cells, tape holds %d", len(snap.Cells), TapeSize)
	}

	st := State{Pointer: snap.Pointer}
	copy(st.Tape[:], snap.Cells)
	return st, nil
}
