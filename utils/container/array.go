package container

import (
	"sync"
)

// IIncrementalItem 记录自身下标的元素，供增量数组O(1)删除
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase 可嵌入的下标字段
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// pendingIndex 已Add但尚未Prepare的元素的下标
const pendingIndex = -2

// IncrementalArray 增量数组
// 功能：Add/Remove先写入缓冲区（可并发调用），Prepare时统一应用，
// 两次Prepare之间Data返回的内容保持不变
// 说明：删除时用末尾元素填补空位，不保持元素顺序
type IncrementalArray[T IIncrementalItem] struct {
	data []T

	add       []T
	addMtx    sync.Mutex
	remove    []T
	removeMtx sync.Mutex
}

func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 当前数据（只读，Prepare后失效）
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.addMtx.Lock()
	defer a.addMtx.Unlock()
	value.SetIndex(pendingIndex)
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
// 说明：元素尚未被Prepare加入时直接从新增缓冲区中撤销
func (a *IncrementalArray[T]) Remove(value T) {
	if value.Index() == pendingIndex {
		a.addMtx.Lock()
		defer a.addMtx.Unlock()
		for i, x := range a.add {
			if any(x) == any(value) {
				a.add = append(a.add[:i], a.add[i+1:]...)
				value.SetIndex(-1)
				return
			}
		}
		return
	}
	a.removeMtx.Lock()
	defer a.removeMtx.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare 应用缓冲区中的增删操作
// 算法说明：
// 1. 新增元素优先填入被删除元素的位置
// 2. 新增元素不足时，从末尾依次取元素填补剩余空位，末尾元素本身被删除时直接截断
// 3. 新增元素有剩余时追加到末尾
func (a *IncrementalArray[T]) Prepare() {
	holes := make([]int, 0, len(a.remove))
	for _, x := range a.remove {
		holes = append(holes, x.Index())
		x.SetIndex(-1)
	}
	i := 0
	for ; i < len(holes) && i < len(a.add); i++ {
		a.put(holes[i], a.add[i])
	}
	if i < len(holes) {
		for _, hole := range holes[i:] {
			// 截掉末尾已删除的元素
			for len(a.data) > 0 && a.data[len(a.data)-1].Index() < 0 {
				a.data = a.data[:len(a.data)-1]
			}
			if hole >= len(a.data) {
				continue
			}
			last := a.data[len(a.data)-1]
			a.data = a.data[:len(a.data)-1]
			if hole < len(a.data) {
				a.put(hole, last)
			} else {
				a.data = append(a.data, last)
			}
		}
		for len(a.data) > 0 && a.data[len(a.data)-1].Index() < 0 {
			a.data = a.data[:len(a.data)-1]
		}
	}
	for _, x := range a.add[i:] {
		x.SetIndex(len(a.data))
		a.data = append(a.data, x)
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}

func (a *IncrementalArray[T]) put(index int, x T) {
	a.data[index] = x
	x.SetIndex(index)
}
