package app

import "sync/atomic"

type Result int

const (
	ResultOK Result = iota
	ResultMiss
	ResultError
)

// Stats counts results per operation.
type Stats struct {
	counts [3][3]atomic.Int64
}

func (s *Stats) Record(op Op, res Result) {
	s.counts[op][res].Add(1)
}

type OpCounts struct {
	OK    int64
	Miss  int64
	Error int64
}

func (c OpCounts) Total() int64 {
	return c.OK + c.Miss + c.Error
}

func (s *Stats) Snapshot(op Op) OpCounts {
	return OpCounts{
		OK:    s.counts[op][ResultOK].Load(),
		Miss:  s.counts[op][ResultMiss].Load(),
		Error: s.counts[op][ResultError].Load(),
	}
}

// Fields renders all counters as logger key/value pairs.
func (s *Stats) Fields() []interface{} {
	fields := make([]interface{}, 0, 18)
	for _, op := range []Op{OpGet, OpPut, OpDelete} {
		c := s.Snapshot(op)
		name := op.String()
		fields = append(fields, name+"_ok", c.OK, name+"_miss", c.Miss, name+"_error", c.Error)
	}
	return fields
}
