package store

import "time"

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

type writeOp struct {
	kind   opKind
	path   string
	fields Fields
	merge  bool
}

// recorder collects the writes issued inside a transaction or batch callback.
type recorder struct {
	ops []writeOp
}

func (r *recorder) Set(path string, fields Fields, opts ...SetOption) {
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	r.ops = append(r.ops, writeOp{kind: opSet, path: path, fields: fields, merge: o.merge})
}

func (r *recorder) Update(path string, fields Fields) {
	r.ops = append(r.ops, writeOp{kind: opUpdate, path: path, fields: fields})
}

func (r *recorder) Delete(path string) {
	r.ops = append(r.ops, writeOp{kind: opDelete, path: path})
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
