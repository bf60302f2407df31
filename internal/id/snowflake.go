// Package id mints message identifiers.
package id

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// DefaultNode is used when New runs before Init.
const DefaultNode int64 = 1

var ErrNoNode = errors.New("id: snowflake node not initialized")

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID. Only the first
// call, from Init or New, takes effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered identifier unique within this process's node.
// Without a prior Init the node defaults to DefaultNode.
func New() (string, error) {
	if err := Init(DefaultNode); err != nil {
		return "", err
	}
	if node == nil {
		return "", ErrNoNode
	}
	return node.Generate().Base58(), nil
}
