/*
Package leader elects a single coordinator among identical fleetsched
instances via Raft, so that a tick only runs once per cluster even when
several replicas are deployed for availability. It carries no application
state through the Raft log — just the leadership token itself.
*/
package leader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config holds the configuration for a single Node.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Node wraps a Raft instance reduced to pure leader election.
type Node struct {
	nodeID   string
	bindAddr string
	dataDir  string
	raft     *raft.Raft
}

// New constructs a Node without starting Raft. Call Bootstrap to form a
// new single-node cluster, or Join to attach to an existing one.
func New(cfg Config) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("leader: create data dir: %w", err)
	}
	return &Node{nodeID: cfg.NodeID, bindAddr: cfg.BindAddr, dataDir: cfg.DataDir}, nil
}

func (n *Node) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(n.nodeID)

	// Tuned for a handful of coordinator replicas on the same network,
	// not a WAN-scale cluster: failover inside a few seconds matters more
	// here than tolerating high round-trip latency between voters.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", n.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("leader: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(n.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("leader: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(n.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("leader: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(n.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("leader: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(n.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("leader: create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("leader: create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap forms a new single-node cluster with this node as the only
// voter. Use Join instead when attaching to peers that already exist.
func (n *Node) Bootstrap() error {
	r, transport, err := n.newRaft()
	if err != nil {
		return err
	}
	n.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(n.nodeID), Address: transport.LocalAddr()}},
	}
	if err := n.raft.BootstrapCluster(configuration).Error(); err != nil {
		return fmt.Errorf("leader: bootstrap cluster: %w", err)
	}
	return nil
}

// Join starts Raft without bootstrapping a configuration; the caller is
// expected to already be a voter added via the current leader's AddVoter.
func (n *Node) Join() error {
	r, _, err := n.newRaft()
	if err != nil {
		return err
	}
	n.raft = r
	return nil
}

// AddVoter adds a peer to the cluster. Only the current leader can do this.
func (n *Node) AddVoter(nodeID, address string) error {
	if n.raft == nil {
		return fmt.Errorf("leader: raft not started")
	}
	if !n.IsLeader() {
		return fmt.Errorf("leader: not the leader, current leader is %s", n.LeaderAddr())
	}
	return n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second).Error()
}

// RemoveServer removes a peer from the cluster.
func (n *Node) RemoveServer(nodeID string) error {
	if n.raft == nil {
		return fmt.Errorf("leader: raft not started")
	}
	if !n.IsLeader() {
		return fmt.Errorf("leader: not the leader")
	}
	return n.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// IsLeader reports whether this node currently holds leadership.
func (n *Node) IsLeader() bool {
	return n.raft != nil && n.raft.State() == raft.Leader
}

// LeaderAddr returns the bind address of the current leader, if known.
func (n *Node) LeaderAddr() string {
	if n.raft == nil {
		return ""
	}
	return string(n.raft.Leader())
}

// Stats reports leader/peer/log-index state for the metrics collector.
type Stats struct {
	IsLeader     bool
	LastLogIndex uint64
	AppliedIndex uint64
	Peers        int
}

// LeaderStats returns the raw numbers the metrics collector plots,
// without requiring it to depend on the Stats type.
func (n *Node) LeaderStats() (lastLogIndex, appliedIndex uint64, peers int) {
	s := n.Stats()
	return s.LastLogIndex, s.AppliedIndex, s.Peers
}

func (n *Node) Stats() Stats {
	if n.raft == nil {
		return Stats{}
	}
	stats := Stats{
		IsLeader:     n.IsLeader(),
		LastLogIndex: n.raft.LastIndex(),
		AppliedIndex: n.raft.AppliedIndex(),
	}
	future := n.raft.GetConfiguration()
	if err := future.Error(); err == nil {
		stats.Peers = len(future.Configuration().Servers)
	}
	return stats
}

// Shutdown gracefully releases Raft resources.
func (n *Node) Shutdown() error {
	if n.raft == nil {
		return nil
	}
	return n.raft.Shutdown().Error()
}
