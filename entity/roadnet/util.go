package roadnet

import (
	"sync"

	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
)

// laneList 车道上的车辆列表
// 功能：增删操作先进入缓冲区，在prepare阶段统一应用并恢复按S排序
type laneList struct {
	list              *container.List[*Vehicle]
	addBuffer         []*container.ListNode[*Vehicle]
	addBufferMutex    sync.Mutex
	removeBuffer      []*container.ListNode[*Vehicle]
	removeBufferMutex sync.Mutex
}

func newLaneList(id string) laneList {
	return laneList{
		list:         &container.List[*Vehicle]{ID: id},
		addBuffer:    make([]*container.ListNode[*Vehicle], 0),
		removeBuffer: make([]*container.ListNode[*Vehicle], 0),
	}
}

// prepare 应用缓冲区中的增删操作，并将位置更新后乱序的节点重新插入
func (l *laneList) prepare() {
	for _, v := range l.removeBuffer {
		l.list.Remove(v)
	}
	unsorted := l.list.PopUnsorted()
	l.list.Merge(append(l.addBuffer, unsorted...))
	l.removeBuffer = l.removeBuffer[:0]
	l.addBuffer = l.addBuffer[:0]
}

func (l *laneList) add(node *container.ListNode[*Vehicle]) {
	if node.Parent() != nil {
		log.Panic("add node who has parent")
	}
	l.addBufferMutex.Lock()
	l.addBuffer = append(l.addBuffer, node)
	l.addBufferMutex.Unlock()
}

// remove 移除节点；节点仍在新增缓冲区中（本步内加入）时直接撤销加入
func (l *laneList) remove(node *container.ListNode[*Vehicle]) {
	if node.Parent() == nil {
		l.addBufferMutex.Lock()
		defer l.addBufferMutex.Unlock()
		for i, n := range l.addBuffer {
			if n == node {
				l.addBuffer = append(l.addBuffer[:i], l.addBuffer[i+1:]...)
				return
			}
		}
		log.Panicf("remove node %v which is neither in %v nor waiting to be added", node, l.list)
	}
	if node.Parent() != l.list {
		log.Panicf("remove node %v (parent=%v) from wrong parent %v", node, node.Parent(), l.list)
	}
	l.removeBufferMutex.Lock()
	l.removeBuffer = append(l.removeBuffer, node)
	l.removeBufferMutex.Unlock()
}
