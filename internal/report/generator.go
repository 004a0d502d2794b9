// internal/report/generator.go
package report

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Krosebrook/lovable-prompt-artist/internal/duration"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// A4 纵向版面，单位 mm
const (
	pageWidth      = 210.0
	pageHeight     = 297.0
	margin         = 20.0
	contentWidth   = pageWidth - 2*margin
	contentBottom  = pageHeight - margin - 10
	maxImageHeight = 80.0

	fontFamily  = "Helvetica"
	closingLine = "Generated by Video Script AI"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]`)

// Report 生成结果
type Report struct {
	Filename      string
	Data          []byte
	Pages         int
	SkippedImages []int
}

// Generator 项目 PDF 报告生成器
type Generator struct {
	loader   ImageLoader
	logger   *utils.Logger
	now      func() time.Time
	compress bool
}

// Option 生成器选项
type Option func(*Generator)

// WithClock 固定时间，用于测试
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger 指定日志器
func WithLogger(l *utils.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithCompression 是否压缩页面内容流
func WithCompression(on bool) Option {
	return func(g *Generator) { g.compress = on }
}

func NewGenerator(loader ImageLoader, opts ...Option) *Generator {
	g := &Generator{
		loader:   loader,
		logger:   utils.GetLogger(),
		now:      time.Now,
		compress: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Filename video-script-<slug>-<unix ms>.pdf
func Filename(title string, at time.Time) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return fmt.Sprintf("video-script-%s-%d.pdf", slug, at.UnixMilli())
}

// document 单次生成的状态
type document struct {
	pdf     *fpdf.Fpdf
	cur     *Cursor
	tr      func(string) string
	skipped []int
}

// Generate 渲染封面、目录、逐场景页和汇总页
func (g *Generator) Generate(ctx context.Context, project *models.Project) (*Report, error) {
	if project == nil {
		return nil, fmt.Errorf("project is nil")
	}
	now := g.now()
	scenes := project.Script.Scenes

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(g.compress)
	pdf.SetCreationDate(now)
	pdf.SetTitle(project.Title, true)
	pdf.SetCreator("Video Script AI", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	doc := &document{
		pdf: pdf,
		cur: NewCursor(pdf, margin, contentBottom),
		tr:  translator(pdf),
	}

	title := project.Title
	if title == "" {
		title = project.Script.Title
	}

	g.cover(doc, title, project.Topic, duration.CalculateTotal(scenes), len(scenes), now)
	g.contents(doc, scenes)

	for i, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.RegisterAlias(pageAlias(i), fmt.Sprintf("%d", pdf.PageCount()+1))
		g.scenePage(ctx, doc, scene, project.StoryboardImages)
	}

	g.summary(doc, scenes, now)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	pages := pdf.PageCount()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return &Report{
		Filename:      Filename(title, now),
		Data:          buf.Bytes(),
		Pages:         pages,
		SkippedImages: doc.skipped,
	}, nil
}

func (g *Generator) cover(doc *document, title, topic, total string, sceneCount int, now time.Time) {
	doc.cur.NewPage()
	doc.cur.Y = 80

	doc.centered(title, "B", 24, 11)
	doc.cur.Advance(6)
	doc.centered(topic, "", 14, 8)
	doc.cur.Advance(12)
	doc.centered("Generated: "+now.Format("January 2, 2006"), "", 12, 7)
	doc.centered("Duration: "+total, "", 12, 7)
	doc.centered(fmt.Sprintf("Total Scenes: %d", sceneCount), "", 12, 7)
}

// contents 页码用别名占位，场景页实际落在哪页由生成时回填
func (g *Generator) contents(doc *document, scenes []models.Scene) {
	doc.cur.NewPage()
	doc.heading("Table of Contents", 18)

	pdf := doc.pdf
	for i, scene := range scenes {
		doc.cur.Reserve(8)
		pdf.SetFont(fontFamily, "", 12)
		pdf.SetXY(margin, doc.cur.Y)
		pdf.CellFormat(60, 8, fmt.Sprintf("Scene %d", scene.SceneNumber), "", 0, "L", false, 0, "")
		pdf.CellFormat(70, 8, doc.tr(scene.Duration), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, "Page "+pageAlias(i), "", 0, "R", false, 0, "")
		doc.cur.Advance(8)
	}
}

func (g *Generator) scenePage(ctx context.Context, doc *document, scene models.Scene, images []models.StoryboardImage) {
	doc.cur.NewPage()
	doc.heading(fmt.Sprintf("Scene %d", scene.SceneNumber), 18)
	doc.paragraph("Duration: "+scene.Duration, "", 11, 6)
	doc.cur.Advance(4)

	if ref, ok := models.ImageFor(images, scene.SceneNumber); ok && g.loader != nil {
		if err := g.embedImage(ctx, doc, scene.SceneNumber, ref); err != nil {
			doc.skipped = append(doc.skipped, scene.SceneNumber)
			g.logger.Warn("分镜图加载失败，跳过", map[string]interface{}{
				"scene": scene.SceneNumber,
				"error": err.Error(),
			})
		}
	}

	doc.block("Voice Over:", scene.VoiceOver)
	doc.block("Visual Description:", scene.VisualDescription)
	if strings.TrimSpace(scene.Notes) != "" {
		doc.block("Notes:", scene.Notes)
	}
}

// embedImage 先按内容宽度缩放，再限制最大高度，保持宽高比
func (g *Generator) embedImage(ctx context.Context, doc *document, sceneNumber int, ref string) error {
	img, err := g.loader.Load(ctx, ref)
	if err != nil {
		return err
	}

	pdf := doc.pdf
	name := fmt.Sprintf("scene-%d", sceneNumber)
	info := register(pdf, name, img)
	if info == nil {
		// fpdf 不支持的 PNG 变体（如隔行扫描）重新编码后再试
		normalized, rerr := reencode(img.Data)
		if rerr != nil {
			return rerr
		}
		if info = register(pdf, name+"-n", normalized); info == nil {
			return fmt.Errorf("unsupported image data")
		}
		name += "-n"
	}
	if info.Width() <= 0 || info.Height() <= 0 {
		return fmt.Errorf("image has no size")
	}

	w := contentWidth
	h := w * info.Height() / info.Width()
	if h > maxImageHeight {
		h = maxImageHeight
		w = h * info.Width() / info.Height()
	}

	doc.cur.Reserve(h + 5)
	pdf.ImageOptions(name, margin, doc.cur.Y, w, h, false, fpdf.ImageOptions{ImageType: img.Type}, 0, "")
	doc.cur.Advance(h + 5)
	return nil
}

// register 注册失败时清除 fpdf 的错误状态，避免整份文档作废
func register(pdf *fpdf.Fpdf, name string, img *Image) *fpdf.ImageInfoType {
	info := pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
	if pdf.Err() {
		pdf.ClearError()
		return nil
	}
	return info
}

func (g *Generator) summary(doc *document, scenes []models.Scene, now time.Time) {
	doc.cur.NewPage()
	doc.heading("Summary", 18)

	doc.paragraph(fmt.Sprintf("Total Scenes: %d", len(scenes)), "", 12, 7)
	doc.paragraph("Total Duration: "+duration.CalculateTotal(scenes), "", 12, 7)
	doc.cur.Advance(4)

	doc.paragraph("Scene Breakdown:", "B", 12, 7)
	for i, p := range duration.ScenePercentages(scenes) {
		doc.paragraph(fmt.Sprintf("Scene %d: %s (%d%%)", p.SceneNumber, scenes[i].Duration, p.Percentage), "", 11, 6)
	}

	doc.cur.Advance(8)
	doc.paragraph("Exported: "+now.Format("2006-01-02 15:04:05 MST"), "", 10, 6)
	doc.cur.Advance(10)
	doc.centered(closingLine, "I", 10, 6)
}

func pageAlias(i int) string {
	return fmt.Sprintf("{pg%d}", i)
}

func (d *document) heading(text string, size float64) {
	d.paragraph(text, "B", size, size*0.5)
	d.cur.Advance(4)
}

// block 粗体标签加正文段落
func (d *document) block(label, text string) {
	d.cur.Reserve(7 + 6)
	d.paragraph(label, "B", 12, 7)
	d.paragraph(text, "", 11, 6)
	d.cur.Advance(4)
}

// paragraph 按内容宽度折行，每行推进游标
func (d *document) paragraph(text, style string, size, lineHeight float64) {
	d.lines(text, style, size, lineHeight, "L")
}

func (d *document) centered(text, style string, size, lineHeight float64) {
	d.lines(text, style, size, lineHeight, "C")
}

func (d *document) lines(text, style string, size, lineHeight float64, align string) {
	d.pdf.SetFont(fontFamily, style, size)
	for _, line := range wrap(d.pdf, d.tr(text), contentWidth) {
		d.cur.Reserve(lineHeight)
		d.pdf.SetXY(margin, d.cur.Y)
		d.pdf.CellFormat(contentWidth, lineHeight, line, "", 0, align, false, 0, "")
		d.cur.Advance(lineHeight)
	}
}

// widther 由 *fpdf.Fpdf 实现
type widther interface {
	GetStringWidth(s string) float64
}

// wrap 按词折行，超长单词按字节截断（输入已是单字节编码）
func wrap(m widther, text string, width float64) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := ""
		for _, word := range words {
			for m.GetStringWidth(word) > width && len(word) > 1 {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				cut := len(word) - 1
				for cut > 1 && m.GetStringWidth(word[:cut]) > width {
					cut--
				}
				out = append(out, word[:cut])
				word = word[cut:]
			}
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if m.GetStringWidth(candidate) > width && line != "" {
				out = append(out, line)
				line = word
				continue
			}
			line = candidate
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// translator UTF-8 转 cp1252，无法表示的字符替换为 '?'
func translator(pdf *fpdf.Fpdf) func(string) string {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return func(s string) string {
		var b strings.Builder
		for _, r := range s {
			if r < 0x80 {
				b.WriteRune(r)
				continue
			}
			if t := tr(string(r)); len(t) == 1 {
				b.WriteString(t)
			} else {
				b.WriteByte('?')
			}
		}
		return b.String()
	}
}
