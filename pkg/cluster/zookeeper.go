package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	availableNode = "available"
	readOnlyNode  = "readonly"
	hubsNode      = "hubs"
)

// SnapshotFunc receives a full replacement membership snapshot.
type SnapshotFunc func(writable, readOnly []NodeAddress)

// ZKMembership registers this hub in ZooKeeper and watches the storage
// node registry, delivering full writable/read-only snapshots whenever
// the children change.
//
// Layout under root:
//
//	<root>/available/<bookie-addr>           writable storage nodes
//	<root>/available/readonly/<bookie-addr>  read-only storage nodes
//	<root>/hubs/<hub-addr>                   live hub processes
type ZKMembership struct {
	conn     *zk.Conn
	rootPath string
	local    NodeAddress
}

func NewZKMembership(servers []string, rootPath string, sessionTimeout time.Duration, localAddr NodeAddress) (*ZKMembership, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return &ZKMembership{
		conn:     conn,
		rootPath: rootPath,
		local:    localAddr,
	}, nil
}

// Conn exposes the underlying connection so the ownership store can
// share one ZooKeeper session with membership.
func (m *ZKMembership) Conn() *zk.Conn { return m.conn }

func (m *ZKMembership) Close() error {
	m.conn.Close()
	return nil
}

func (m *ZKMembership) ensurePath(path string) error {
	parts := strings.Split(path, "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := m.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = m.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && err != zk.ErrNodeExists {
				return err
			}
		}
	}
	return nil
}

// RegisterSelf creates an ephemeral znode for this hub so peers and
// ownership claimers can see which hubs are alive.
func (m *ZKMembership) RegisterSelf() error {
	if err := m.waitConnected(10 * time.Second); err != nil {
		return err
	}
	if err := m.ensurePath(m.rootPath + "/" + hubsNode); err != nil {
		return fmt.Errorf("ensure hubs path: %w", err)
	}
	if err := m.ensurePath(fmt.Sprintf("%s/%s/%s", m.rootPath, availableNode, readOnlyNode)); err != nil {
		return fmt.Errorf("ensure available path: %w", err)
	}

	nodePath := fmt.Sprintf("%s/%s/%s", m.rootPath, hubsNode, m.local)
	_, err := m.conn.Create(nodePath, nil, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("create ephemeral hub node: %w", err)
	}
	slog.Info("registered hub in zookeeper", "path", nodePath)
	return nil
}

// LiveHubs returns the set of currently registered hub addresses.
func (m *ZKMembership) LiveHubs() (NodeSet, error) {
	children, _, err := m.conn.Children(m.rootPath + "/" + hubsNode)
	if err != nil {
		return nil, fmt.Errorf("zk children: %w", err)
	}
	hubs := NewNodeSet()
	for _, c := range children {
		hubs[NodeAddress(c)] = struct{}{}
	}
	return hubs, nil
}

func (m *ZKMembership) readSnapshot() (writable, readOnly []NodeAddress, watch <-chan zk.Event, err error) {
	availPath := m.rootPath + "/" + availableNode
	children, _, ch, err := m.conn.ChildrenW(availPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("zk childrenW %s: %w", availPath, err)
	}
	for _, c := range children {
		// the readonly subtree lives under /available
		if c == readOnlyNode {
			continue
		}
		writable = append(writable, NodeAddress(c))
	}
	roChildren, _, err := m.conn.Children(availPath + "/" + readOnlyNode)
	if err != nil && err != zk.ErrNoNode {
		return nil, nil, nil, fmt.Errorf("zk children readonly: %w", err)
	}
	for _, c := range roChildren {
		readOnly = append(readOnly, NodeAddress(c))
	}
	sort.Slice(writable, func(i, j int) bool { return writable[i] < writable[j] })
	sort.Slice(readOnly, func(i, j int) bool { return readOnly[i] < readOnly[j] })
	return writable, readOnly, ch, nil
}

// RunWatch re-reads the storage node registry on every change and hands
// each full snapshot to fn. Blocks until ctx is cancelled; run it on its
// own goroutine.
func (m *ZKMembership) RunWatch(ctx context.Context, fn SnapshotFunc) {
	for {
		writable, readOnly, ch, err := m.readSnapshot()
		if err != nil {
			slog.Warn("membership watch read failed, retrying", "error", err)
			select {
			case <-time.After(2 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		fn(writable, readOnly)

		select {
		case ev := <-ch:
			slog.Debug("membership change event", "type", ev.Type.String(), "path", ev.Path)
		case <-ctx.Done():
			slog.Info("membership watch stopped")
			return
		}
	}
}

func (m *ZKMembership) waitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st := m.conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("zk: not connected after %s, state=%v", timeout, st)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
