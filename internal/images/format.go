package images

import (
	"bytes"
	"net/url"
	"path"
	"strings"
)

var knownExtensions = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
	"bmp":  "bmp",
}

// DetectFormat 识别图片格式
// 优先看文件头, 识别不了时按地址扩展名, 都不行默认jpg
func DetectFormat(data []byte, rawURL string) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpg"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 'P', 'N', 'G'}):
		return "png"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("GIF8")):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	}

	if ext := extension(rawURL); ext != "" {
		return ext
	}
	return "jpg"
}

// OriginalName 从地址路径取文件名, 没有扩展名时补上识别出的格式
func OriginalName(rawURL, format string) string {
	name := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if path.Ext(name) == "" {
		name += "." + format
	}
	return name
}

func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	return knownExtensions[ext]
}
