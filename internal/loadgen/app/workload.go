package app

import (
	"encoding/base64"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/anthanhphan/go-distributed-cache/internal/loadgen/config"
)

type Op int

const (
	OpGet Op = iota
	OpPut
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Workload draws operations, keys, values and think times for one worker.
// It is not safe for concurrent use.
type Workload struct {
	cfg config.WorkloadConfig
	rng *rand.Rand
}

func NewWorkload(cfg config.WorkloadConfig, seed uint64) *Workload {
	return &Workload{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (w *Workload) NextOp() Op {
	n := w.rng.IntN(100)
	switch {
	case n < w.cfg.GetPercent:
		return OpGet
	case n < w.cfg.GetPercent+w.cfg.PutPercent:
		return OpPut
	default:
		return OpDelete
	}
}

func (w *Workload) Key() string {
	return "key-" + strconv.Itoa(w.rng.IntN(w.cfg.KeySpace))
}

// Value returns a base64 payload between MinValueBytes and MaxValueBytes long.
func (w *Workload) Value() []byte {
	size := w.cfg.MinValueBytes + w.rng.IntN(w.cfg.MaxValueBytes-w.cfg.MinValueBytes+1)

	raw := make([]byte, base64.StdEncoding.DecodedLen(size)+3)
	for i := range raw {
		raw[i] = byte(w.rng.Uint32())
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(encoded, raw)
	return encoded[:size]
}

func (w *Workload) Think() time.Duration {
	if w.cfg.MaxThinkMS <= 0 {
		return 0
	}
	return time.Duration(w.rng.Int64N(int64(w.cfg.MaxThink()) + 1))
}
