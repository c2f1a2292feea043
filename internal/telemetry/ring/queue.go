package ring

import "sync/atomic"

// queue holds flushed bucket values until they are dequeued. Producers push
// whole batches onto a lock-free stack; drain detaches the stack in one
// swap and restores chronological order.
//
// Only the goroutine holding the ring's flushing flag pushes, so batches
// are pushed in increasing bucket order.
type queue struct {
	head atomic.Pointer[batchNode]
}

type batchNode struct {
	values []int64
	next   *batchNode
}

func (q *queue) push(values []int64) {
	if len(values) == 0 {
		return
	}
	n := &batchNode{values: values}
	for {
		n.next = q.head.Load()
		if q.head.CompareAndSwap(n.next, n) {
			return
		}
	}
}

func (q *queue) drain() []int64 {
	return flatten(q.head.Swap(nil))
}

func (q *queue) snapshot() []int64 {
	return flatten(q.head.Load())
}

// flatten turns a newest-first list of batches into one oldest-first slice.
func flatten(head *batchNode) []int64 {
	var batches [][]int64
	total := 0
	for n := head; n != nil; n = n.next {
		batches = append(batches, n.values)
		total += len(n.values)
	}
	if total == 0 {
		return nil
	}

	out := make([]int64, 0, total)
	for i := len(batches) - 1; i >= 0; i-- {
		out = append(out, batches[i]...)
	}
	return out
}
