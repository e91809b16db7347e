package leader

import (
	"io"

	"github.com/hashicorp/raft"
)

// noopFSM is a Raft finite state machine that holds no state. The
// scheduling engine uses Raft purely to elect a single coordinator among
// identical instances; it never replicates application data through the
// log, so Apply/Snapshot/Restore are all no-ops.
type noopFSM struct{}

func (noopFSM) Apply(*raft.Log) interface{} { return nil }

func (noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (noopFSM) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }

func (noopSnapshot) Release() {}
