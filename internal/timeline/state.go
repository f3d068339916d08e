package timeline

import (
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/chronicle/internal/ir"
)

// StateAt returns entityID's snapshot at ts: initial's attribute values with
// every indexed event at or before ts applied in order, last write wins.
//
// An entity with no events yields its initial values. An unknown entityID
// is not an error; the fold starts from whatever initial holds. A cached
// snapshot is reused only when both the events and initial's values match.
func (r *Reconstructor) StateAt(entityID string, ts int64, events []ir.Event, initial ir.Entity) ir.Snapshot {
	idx := r.index(entityID, events)
	return r.stateAt(idx, entityID, ts, initial)
}

func (r *Reconstructor) stateAt(idx *entityIndex, entityID string, ts int64, initial ir.Entity) ir.Snapshot {
	key := snapshotKey{entityID: entityID, timestamp: ts}
	fp := snapshotFingerprint(idx.fingerprint, initial)
	if s, ok := r.lookupSnapshot(key, fp); ok {
		return s
	}

	s := fold(idx, entityID, ts, initial)
	r.storeSnapshot(key, fp, s)
	return s
}

func fold(idx *entityIndex, entityID string, ts int64, initial ir.Entity) ir.Snapshot {
	values := initial.InitialValues()
	for _, e := range idx.events[:idx.cutoff(ts)] {
		v := e.NewValue
		if v == nil {
			v = ir.Null{}
		}
		values[e.AttributeID] = v
	}
	return ir.Snapshot{EntityID: entityID, Timestamp: ts, Values: values}
}

// StatesAt returns the snapshot at ts of every id in entityIDs found in
// entities. Ids without a matching entity are skipped.
func (r *Reconstructor) StatesAt(entityIDs []string, ts int64, events []ir.Event, entities []ir.Entity) map[string]ir.Snapshot {
	byID := entitiesByID(entities)

	type job struct {
		id     string
		entity ir.Entity
	}
	var jobs []job
	for _, id := range entityIDs {
		if e, ok := byID[id]; ok {
			jobs = append(jobs, job{id: id, entity: e})
		}
	}

	results := make([]ir.Snapshot, len(jobs))
	r.each(len(jobs), func(i int) {
		results[i] = r.StateAt(jobs[i].id, ts, events, jobs[i].entity)
	})

	out := make(map[string]ir.Snapshot, len(jobs))
	for i, j := range jobs {
		out[j.id] = results[i]
	}
	return out
}

// History returns snapshots of entityID ascending by timestamp, sampled at
// start + k*interval for every k with the sample <= end, at the timestamp
// of every event in [start, end], and at end. Duplicate sample times are
// collapsed. A non-positive interval disables the fixed steps.
//
// end < start yields no snapshots.
func (r *Reconstructor) History(entityID string, start, end int64, events []ir.Event, initial ir.Entity, interval int64) []ir.Snapshot {
	if end < start {
		return []ir.Snapshot{}
	}
	idx := r.index(entityID, events)

	var times []int64
	if interval > 0 {
		for t := start; ; t += interval {
			times = append(times, t)
			if t > end-interval {
				break
			}
		}
	}
	for _, e := range idx.events[idx.lowerBound(start):idx.cutoff(end)] {
		times = append(times, e.Timestamp)
	}
	times = append(times, end)

	slices.Sort(times)
	times = slices.Compact(times)

	out := make([]ir.Snapshot, len(times))
	for i, t := range times {
		out[i] = r.stateAt(idx, entityID, t, initial)
	}
	return out
}

// WarmUp computes and caches the snapshot of every entity in entityIDs
// (found in entities) at every timestamp. Entities are processed in the
// order given unless parallelism is raised.
func (r *Reconstructor) WarmUp(entityIDs []string, timestamps []int64, events []ir.Event, entities []ir.Entity) {
	byID := entitiesByID(entities)

	var ids []string
	for _, id := range entityIDs {
		if _, ok := byID[id]; ok {
			ids = append(ids, id)
		}
	}

	r.each(len(ids), func(i int) {
		id := ids[i]
		idx := r.index(id, events)
		for _, ts := range timestamps {
			r.stateAt(idx, id, ts, byID[id])
		}
	})

	r.logger.Debug("snapshot cache warmed",
		"entities", len(ids),
		"timestamps", len(timestamps))
}

// each calls fn for 0..n-1, sequentially or across r.parallelism goroutines.
func (r *Reconstructor) each(n int, fn func(i int)) {
	if r.parallelism <= 1 || n <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait() // fn never fails
}

// entitiesByID indexes entities by id. The first entity wins on duplicates.
func entitiesByID(entities []ir.Entity) map[string]ir.Entity {
	m := make(map[string]ir.Entity, len(entities))
	for _, e := range entities {
		if _, ok := m[e.ID]; !ok {
			m[e.ID] = e
		}
	}
	return m
}
