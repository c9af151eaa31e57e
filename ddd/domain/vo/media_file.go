package vo

import (
	"path/filepath"
	"strings"
)

// MediaFile 上传的原始文件
type MediaFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// Ext returns the lower-cased extension of the original file name, or def when there is none.
func (f MediaFile) Ext(def string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(f.Filename)))
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
		return def
	}
	return ext
}
