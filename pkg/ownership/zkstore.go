package ownership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-zookeeper/zk"

	"ledgerhub/pkg/cluster"
)

// ZKStore keeps ownership records and region-subscription flags in
// ZooKeeper.
//
// Layout under root:
//
//	<root>/topics/<topic>/hub                 ephemeral, data = owner addr
//	<root>/topics/<topic>/regions/<region>    persistent marker
//
// The hub znode is ephemeral so a crashed owner's record disappears
// with its session and the topic becomes claimable again.
type ZKStore struct {
	conn     *zk.Conn
	rootPath string
}

var _ CoordStore = (*ZKStore)(nil)

func NewZKStore(conn *zk.Conn, rootPath string) *ZKStore {
	return &ZKStore{conn: conn, rootPath: rootPath}
}

func (s *ZKStore) hubPath(topic string) string {
	return fmt.Sprintf("%s/topics/%s/hub", s.rootPath, topic)
}

func (s *ZKStore) regionPath(topic, region string) string {
	return fmt.Sprintf("%s/topics/%s/regions/%s", s.rootPath, topic, region)
}

// mapErr folds connectivity-class failures into ErrServiceUnavailable.
// Conditional-write failures keep their specific sentinel.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zk.ErrNoNode):
		return ErrNoRecord
	case errors.Is(err, zk.ErrNodeExists):
		return ErrRecordExists
	case errors.Is(err, zk.ErrBadVersion):
		return ErrVersionMismatch
	default:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
}

func (s *ZKStore) ensureParents(path string) error {
	idx := strings.LastIndex(path, "/")
	parts := strings.Split(path[:idx], "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		_, err := s.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return err
		}
	}
	return nil
}

func (s *ZKStore) GetOwner(ctx context.Context, topic string) (Record, error) {
	data, stat, err := s.conn.Get(s.hubPath(topic))
	if err != nil {
		return Record{}, mapErr(err)
	}
	return Record{
		Topic:   topic,
		Owner:   cluster.NodeAddress(data),
		Version: stat.Version,
	}, nil
}

func (s *ZKStore) CreateOwner(ctx context.Context, topic string, owner cluster.NodeAddress) (Record, error) {
	path := s.hubPath(topic)
	if err := s.ensureParents(path); err != nil {
		return Record{}, mapErr(err)
	}
	_, err := s.conn.Create(path, []byte(owner), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil {
		return Record{}, mapErr(err)
	}
	_, stat, err := s.conn.Get(path)
	if err != nil {
		return Record{}, mapErr(err)
	}
	return Record{Topic: topic, Owner: owner, Version: stat.Version}, nil
}

func (s *ZKStore) DeleteOwner(ctx context.Context, topic string, owner cluster.NodeAddress, version int32) error {
	path := s.hubPath(topic)
	data, stat, err := s.conn.Get(path)
	if err != nil {
		return mapErr(err)
	}
	if cluster.NodeAddress(data) != owner || stat.Version != version {
		return ErrVersionMismatch
	}
	// Delete conditioned on the observed version; a concurrent
	// re-claim bumps it and we fail instead of deleting their record.
	return mapErr(s.conn.Delete(path, version))
}

func (s *ZKStore) SetRegion(ctx context.Context, topic, region string) error {
	path := s.regionPath(topic, region)
	if err := s.ensureParents(path); err != nil {
		return mapErr(err)
	}
	_, err := s.conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return mapErr(err)
	}
	return nil
}

func (s *ZKStore) ClearRegion(ctx context.Context, topic, region string) error {
	err := s.conn.Delete(s.regionPath(topic, region), -1)
	if err != nil && err != zk.ErrNoNode {
		return mapErr(err)
	}
	return nil
}

func (s *ZKStore) HasRegion(ctx context.Context, topic, region string) (bool, error) {
	ok, _, err := s.conn.Exists(s.regionPath(topic, region))
	if err != nil {
		return false, mapErr(err)
	}
	return ok, nil
}
