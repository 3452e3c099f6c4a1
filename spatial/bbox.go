package spatial

import "math"

// BBox 轴对齐包围盒，闭区间
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Around 以 (x,y) 为中心、r 为半边长的包围盒
func Around(x, y, r float64) BBox {
	return BBox{MinX: x - r, MinY: y - r, MaxX: x + r, MaxY: y + r}
}

func emptyBBox() BBox {
	return BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// Intersects 两盒相交（含边界接触）
func (b BBox) Intersects(o BBox) bool {
	return o.MinX <= b.MaxX && o.MinY <= b.MaxY && o.MaxX >= b.MinX && o.MaxY >= b.MinY
}

// Contains o 完全落在 b 内
func (b BBox) Contains(o BBox) bool {
	return b.MinX <= o.MinX && b.MinY <= o.MinY && o.MaxX <= b.MaxX && o.MaxY <= b.MaxY
}

func (b BBox) extend(o BBox) BBox {
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

func (b BBox) area() float64 { return (b.MaxX - b.MinX) * (b.MaxY - b.MinY) }

func (b BBox) margin() float64 { return (b.MaxX - b.MinX) + (b.MaxY - b.MinY) }

func (b BBox) enlargedArea(o BBox) float64 {
	return (math.Max(o.MaxX, b.MaxX) - math.Min(o.MinX, b.MinX)) *
		(math.Max(o.MaxY, b.MaxY) - math.Min(o.MinY, b.MinY))
}

func (b BBox) intersectionArea(o BBox) float64 {
	minX := math.Max(b.MinX, o.MinX)
	minY := math.Max(b.MinY, o.MinY)
	maxX := math.Min(b.MaxX, o.MaxX)
	maxY := math.Min(b.MaxY, o.MaxY)
	return math.Max(0, maxX-minX) * math.Max(0, maxY-minY)
}
