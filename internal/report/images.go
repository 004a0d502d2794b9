// internal/report/images.go
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// 单张图片最大字节数
const maxImageBytes = 20 << 20

// Image 可嵌入 PDF 的图片，Type 为 fpdf 的图片类型
type Image struct {
	Data []byte
	Type string
}

// ImageLoader 按分镜图引用加载图片
type ImageLoader interface {
	Load(ctx context.Context, ref string) (*Image, error)
}

// HTTPImageLoader 支持 http(s) URL 与 data URI
type HTTPImageLoader struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPImageLoader(timeout time.Duration) *HTTPImageLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPImageLoader{Client: &http.Client{}, Timeout: timeout}
}

// Load 获取并规范化图片
func (l *HTTPImageLoader) Load(ctx context.Context, ref string) (*Image, error) {
	var raw []byte
	var err error
	switch {
	case strings.HasPrefix(ref, "data:"):
		raw, err = decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		raw, err = l.fetch(ctx, ref)
	default:
		return nil, fmt.Errorf("unsupported image reference")
	}
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

func (l *HTTPImageLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	if _, err := url.ParseRequestURI(ref); err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

// decodeDataURI 解析 data:[<mime>][;base64],<data>
func decodeDataURI(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data uri")
	}
	meta, payload := ref[len("data:"):comma], ref[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return data, nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return []byte(decoded), nil
}

// Normalize PNG/JPEG 原样保留，其它格式解码后转为 PNG
func Normalize(raw []byte) (*Image, error) {
	switch http.DetectContentType(raw) {
	case "image/png":
		return &Image{Data: raw, Type: "PNG"}, nil
	case "image/jpeg":
		return &Image{Data: raw, Type: "JPG"}, nil
	}
	return reencode(raw)
}

func reencode(raw []byte) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &Image{Data: buf.Bytes(), Type: "PNG"}, nil
}
