package roadnet

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
)

// Node 路口节点
type Node struct {
	id        int32
	xy        geometry.Point
	hasSignal bool

	inwardEdges  []entity.IEdge
	lightGroupID int32
}

func newNode(id int32, x, y float64, hasSignal bool) *Node {
	return &Node{
		id:           id,
		xy:           geometry.Point{X: x, Y: y},
		hasSignal:    hasSignal,
		lightGroupID: -1,
	}
}

func (n *Node) ID() int32 {
	return n.id
}

func (n *Node) XY() geometry.Point {
	return n.xy
}

func (n *Node) HasSignal() bool {
	return n.hasSignal
}

func (n *Node) InwardEdges() []entity.IEdge {
	return n.inwardEdges
}

func (n *Node) LightGroupID() int32 {
	return n.lightGroupID
}

// SetLightGroupWhenInit 设置节点所属的信号灯组，每个节点只能被分组一次
func (n *Node) SetLightGroupWhenInit(id int32) {
	if n.lightGroupID >= 0 {
		log.Panicf("node %d already in light group %d", n.id, n.lightGroupID)
	}
	n.lightGroupID = id
}
