package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
)

func keys(l *container.List[int32]) []float64 {
	res := make([]float64, 0, l.Len())
	for node := l.First(); node != nil; node = node.Next() {
		res = append(res, node.S)
	}
	return res
}

func values(l *container.List[int32]) []int32 {
	res := make([]int32, 0, l.Len())
	for node := l.First(); node != nil; node = node.Next() {
		res = append(res, node.Value)
	}
	return res
}

func TestListInit(t *testing.T) {
	l := &container.List[int32]{}
	assert.Nil(t, l.First())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.PopUnsorted())
}

func TestListResort(t *testing.T) {
	l := &container.List[int32]{}
	nodes := make([]*container.ListNode[int32], 0)
	for i := int32(4); i >= 1; i-- {
		nodes = append(nodes, &container.ListNode[int32]{S: float64(i * 10), Value: i})
	}
	l.Merge(nodes)
	// ^, 10, 20, 30, 40, ^
	assert.Equal(t, []float64{10, 20, 30, 40}, keys(l))
	assert.Equal(t, []int32{1, 2, 3, 4}, values(l))
	assert.Equal(t, l, nodes[0].Parent())

	// 位置更新后：^, 10, 35, 30, 5, ^
	nodes[2].S = 35
	nodes[0].S = 5
	unsorted := l.PopUnsorted()
	assert.ElementsMatch(t, []*container.ListNode[int32]{nodes[1], nodes[0]}, unsorted)
	assert.Equal(t, 2, l.Len())
	assert.Nil(t, nodes[0].Parent())

	// ^, 0, 5, 10, 30, 35, ^
	n0 := &container.ListNode[int32]{S: 0, Value: 0}
	l.Merge(append(unsorted, n0))
	assert.Equal(t, []float64{0, 5, 10, 30, 35}, keys(l))
	assert.Equal(t, []int32{0, 4, 1, 3, 2}, values(l))
	assert.Equal(t, l, n0.Parent())

	l.Remove(nodes[2])
	assert.Equal(t, []int32{0, 4, 1, 3}, values(l))
	assert.Equal(t, 4, l.Len())

	// 键相同时新节点排在后面
	same := &container.ListNode[int32]{S: 10, Value: 9}
	l.Merge([]*container.ListNode[int32]{same})
	assert.Equal(t, same, nodes[3].Next())
}

func TestListRemoveWrongParent(t *testing.T) {
	a := &container.List[int32]{ID: "a"}
	b := &container.List[int32]{ID: "b"}
	n := &container.ListNode[int32]{S: 1}
	a.Merge([]*container.ListNode[int32]{n})
	assert.Panics(t, func() { b.Remove(n) })
	assert.Panics(t, func() { b.Merge([]*container.ListNode[int32]{n}) })
}
