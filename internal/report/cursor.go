// internal/report/cursor.go
package report

// pageAdder 由 *fpdf.Fpdf 实现
type pageAdder interface {
	AddPage()
}

// Cursor 显式的纵向排版游标
type Cursor struct {
	doc    pageAdder
	Y      float64
	Top    float64
	Bottom float64
	pages  int
}

// NewCursor top/bottom 为内容区上下边界（mm）
func NewCursor(doc pageAdder, top, bottom float64) *Cursor {
	return &Cursor{doc: doc, Y: top, Top: top, Bottom: bottom}
}

// NewPage 另起一页并把游标移到顶部
func (c *Cursor) NewPage() {
	c.doc.AddPage()
	c.pages++
	c.Y = c.Top
}

// Reserve 若高度 h 的块会越过下边界则换页，返回是否换页
func (c *Cursor) Reserve(h float64) bool {
	if c.Y+h <= c.Bottom {
		return false
	}
	c.NewPage()
	return true
}

// Advance 下移 h
func (c *Cursor) Advance(h float64) {
	c.Y += h
}

// Pages 通过游标新增的页数
func (c *Cursor) Pages() int {
	return c.pages
}
