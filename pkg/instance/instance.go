package instance

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/angelmondragon/hydrofarm-backend/pkg/env"
)

const (
	idEnv   = "HYDROFARM_WORKER_ID"
	nodeEnv = "HYDROFARM_NODE_ID"

	// Snowflake node ids are 10 bits.
	maxNode = 1023
)

// GetID returns the worker instance identifier or a default value.
func GetID() string {
	return env.String(idEnv, "worker-0")
}

// NodeID returns the snowflake node of this process. An explicit
// HYDROFARM_NODE_ID wins; otherwise a trailing number in the worker id is used
// (worker-3 -> 3) and anything else is hashed into range.
func NodeID() int64 {
	if n := env.Int(nodeEnv, -1); n >= 0 && n <= maxNode {
		return int64(n)
	}
	return nodeFromID(GetID())
}

func nodeFromID(id string) int64 {
	if i := strings.LastIndexAny(id, "-_"); i >= 0 {
		if n, err := strconv.Atoi(id[i+1:]); err == nil && n >= 0 && n <= maxNode {
			return int64(n)
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum32() % (maxNode + 1))
}
