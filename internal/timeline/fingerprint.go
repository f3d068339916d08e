package timeline

import (
	"encoding/binary"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/chronicle/internal/ir"
)

// fingerprint hashes every field of events in the supplied order, so a
// revalidated index never serves an event whose body changed. Reordering
// equal-timestamp events changes the fingerprint because it changes which
// write wins.
func fingerprint(events []ir.Event) uint64 {
	d := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(len(events)))
	_, _ = d.Write(buf[:])

	for _, e := range events {
		_, _ = d.WriteString(e.ID)
		_, _ = d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(e.Timestamp))
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(e.AttributeID)
		_, _ = d.Write([]byte{0})
		writeValue(d, e.NewValue)
		if e.OldValue == nil {
			_, _ = d.Write([]byte{0})
		} else {
			_, _ = d.Write([]byte{1})
			writeValue(d, e.OldValue)
		}
		_, _ = d.WriteString(e.Description)
		_, _ = d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(e.CreatedAt))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// snapshotFingerprint extends an index fingerprint with the initial values
// a snapshot was folded from.
func snapshotFingerprint(indexFP uint64, initial ir.Entity) uint64 {
	d := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], indexFP)
	_, _ = d.Write(buf[:])

	values := initial.InitialValues()
	ids := slices.Sorted(maps.Keys(values))
	for _, id := range ids {
		_, _ = d.WriteString(id)
		_, _ = d.Write([]byte{0})
		writeValue(d, values[id])
	}
	return d.Sum64()
}

func writeValue(d *xxhash.Digest, v ir.Value) {
	if v == nil {
		v = ir.Null{}
	}
	_, _ = d.WriteString(string(v.Kind()))
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(v.String())
	_, _ = d.Write([]byte{0})
}
