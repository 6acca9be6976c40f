package container

import "container/heap"

// item 优先队列中单个元素
// 功能：表示优先队列中的一个元素，包含值、优先级与入队次序
// 说明：index由heap.Interface的方法维护
type item[T any] struct {
	Value    T       // 元素的值
	Priority float64 // 优先级（越小越优先）
	Tie      int64   // 优先级相同时的次序（越小越优先），保证出队顺序可复现
	index    int     // 在堆中的索引，由heap.Interface维护
}

// priorityQueue 实现heap.Interface的最小堆
// 功能：内部优先队列实现，基于Go标准库的heap包
type priorityQueue[T any] []*item[T]

// Len 返回队列长度
// 功能：实现heap.Interface接口
func (pq priorityQueue[T]) Len() int { return len(pq) }

// Less 比较两个元素的优先级
// 功能：实现heap.Interface接口
// 参数：i,j-要比较的两个元素索引
// 返回：true表示i先于j出队
// 说明：优先级数值小者在前，相同时入队早者在前
func (pq priorityQueue[T]) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].Tie < pq[j].Tie
}

// Swap 交换两个元素的位置，同时更新元素的索引
func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push 向队列末尾添加元素
// 功能：实现heap.Interface接口
// 参数：x-要添加的元素（类型为*item[T]）
func (pq *priorityQueue[T]) Push(x any) {
	n := len(*pq)
	item := x.(*item[T])
	item.index = n
	*pq = append(*pq, item)
}

// Pop 移除并返回队列末尾的元素
// 功能：实现heap.Interface接口
// 返回：被移除的元素
// 说明：移除时清理索引信息，避免内存泄漏
func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.index = -1 // 为了安全起见
	*pq = old[0 : n-1]
	return item
}

// PriorityQueue 优先队列
// 功能：按优先级数值从小到大出队，优先级相同时按入队顺序出队
// 说明：延误最小化信控的状态搜索、最大压力信控的相位选择与预约控制器的队列选择都依赖出队顺序的确定性
type PriorityQueue[T any] struct {
	queue priorityQueue[T]
	seq   int64
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
// 返回：队列中元素的个数
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// HeapPush 加入元素（堆操作）
// 参数：value-元素值，priority-元素优先级（越小越优先）
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.queue, q.newItem(value, priority))
}

// HeapPop 弹出优先级数值最小的元素（堆操作）
// 返回：value-元素值，priority-元素优先级
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	item := heap.Pop(&q.queue).(*item[T])
	return item.Value, item.Priority
}

// newItem 创建元素并分配入队次序
func (q *PriorityQueue[T]) newItem(value T, priority float64) *item[T] {
	q.seq++
	return &item[T]{Value: value, Priority: priority, Tie: q.seq}
}
