package port

import "github.com/anthanhphan/go-distributed-cache/pkg/membership"

//go:generate mockgen -destination=../service/mocks/ring_mock.go -package=mocks -source=ring.go

// Ring maps keys to nodes.
type Ring interface {
	AddNode(node string)
	RemoveNode(node string)
	Locate(key string) (string, bool)
	Nodes() []string
}

// Membership is the live node set the client follows.
type Membership interface {
	Nodes() membership.Snapshot
	AddChangeListener(fn membership.ChangeListener) membership.Snapshot
	Close() error
}
