package container

import (
	"fmt"
	"log"
	"sort"
)

// ListNode 链表节点，S为排序键（车道上的位置）
type ListNode[T any] struct {
	parent     *List[T]
	prev, next *ListNode[T]
	S          float64
	Value      T
}

func (n *ListNode[T]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v}", n.S, n.Value)
}

func (n *ListNode[T]) Next() *ListNode[T] { return n.next }

func (n *ListNode[T]) Parent() *List[T] { return n.parent }

// List 按S升序维护的双向链表
// 功能：车道上车辆的有序存储，车辆位置被直接修改后通过PopUnsorted+Merge恢复有序
type List[T any] struct {
	ID         string
	head, tail *ListNode[T]
	length     int
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

func (l *List[T]) Len() int { return l.length }

// First 链表头节点（键最小），空链表时为nil
func (l *List[T]) First() *ListNode[T] { return l.head }

// Remove 从链表中移除节点
func (l *List[T]) Remove(node *ListNode[T]) {
	if node.parent != l {
		log.Panicf("remove node %v from wrong list %v", node, l)
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev, node.next, node.parent = nil, nil, nil
	l.length--
}

// PopUnsorted 移除并返回键小于前驱的节点，剩余节点保持有序
func (l *List[T]) PopUnsorted() (unsorted []*ListNode[T]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge 将一批节点按键插入有序链表，键相同时新节点排在已有节点之后
func (l *List[T]) Merge(adds []*ListNode[T]) {
	sort.SliceStable(adds, func(i, j int) bool { return adds[i].S < adds[j].S })
	cur := l.head
	for _, add := range adds {
		for cur != nil && cur.S <= add.S {
			cur = cur.next
		}
		if cur == nil {
			l.link(add, l.tail, nil)
		} else {
			l.link(add, cur.prev, cur)
		}
	}
}

// link 将add插入到prev与next之间，二者为nil分别表示链表头、尾
func (l *List[T]) link(add, prev, next *ListNode[T]) {
	if add.parent != nil {
		log.Panicf("insert node %v which is already in list %v", add, add.parent)
	}
	add.parent, add.prev, add.next = l, prev, next
	if prev != nil {
		prev.next = add
	} else {
		l.head = add
	}
	if next != nil {
		next.prev = add
	} else {
		l.tail = add
	}
	l.length++
}
