package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// NodeID is a content-addressed identifier: the SHA-256 of the node's
// definition path, e.g. "defpart/cube" or "wrinkle/cube/1".
type NodeID [sha256.Size]byte

// ZeroID is the unset NodeID.
var ZeroID NodeID

// NewNodeID derives a NodeID from a definition path.
func NewNodeID(path string) NodeID {
	return NodeID(sha256.Sum256([]byte(path)))
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex digits, for messages.
func (id NodeID) Short() string {
	return id.String()[:8]
}

func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *NodeID) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != len(id) {
		return fmt.Errorf("graph: node id %q has wrong length", b)
	}
	_, err := hex.Decode(id[:], b)
	return err
}

// ContentHash hashes a node's payload so unchanged nodes can be
// recognised across evaluations.
type ContentHash [sha256.Size]byte

// HashData hashes the type and JSON form of a node payload.
func HashData(d NodeData) ContentHash {
	b, err := json.Marshal(d)
	if err != nil {
		b = []byte(err.Error())
	}
	return ContentHash(sha256.Sum256(append([]byte(fmt.Sprintf("%T", d)), b...)))
}

func (h ContentHash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

// SourceRef locates the form that created a node.
type SourceRef struct {
	Line int `json:"line,omitempty"`
	Col  int `json:"col,omitempty"`
}
