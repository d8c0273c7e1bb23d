package sweeper

// schedule is a min-heap of registrations ordered by next run time.
// It implements container/heap.Interface and keeps Registration.index current
// so cancelled registrations can be removed in O(log n).
type schedule []*Registration

func (q schedule) Len() int           { return len(q) }
func (q schedule) Less(i, j int) bool { return q[i].next.Before(q[j].next) }

func (q schedule) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *schedule) Push(x any) {
	r := x.(*Registration)
	r.index = len(*q)
	*q = append(*q, r)
}

func (q *schedule) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*q = old[:n-1]
	return r
}
