package vo

import (
	"fmt"
	"strconv"
)

const (
	// DefaultWebPQuality libwebp 默认质量
	DefaultWebPQuality = 80
	// DefaultSegmentDuration HLS 默认切片时长(秒)
	DefaultSegmentDuration = 6
	// DefaultGOPSize 关键帧间隔，保证切片边界落在关键帧上
	DefaultGOPSize = 48

	PlaylistName          = "index.m3u8"
	SegmentNamePattern    = "segment_%03d.ts"
	WebPContentType       = "image/webp"
	PlaylistContentType   = "application/vnd.apple.mpegurl"
	SegmentContentType    = "video/mp2t"
	DefaultRawContentType = "application/octet-stream"
)

// SegmentName returns the file name of segment i.
func SegmentName(i int) string {
	return fmt.Sprintf(SegmentNamePattern, i)
}

// WebPParams 单帧 WebP 编码参数
type WebPParams struct {
	Quality int
}

// NewWebPParams 创建 WebP 参数
func NewWebPParams(quality int) (*WebPParams, error) {
	p := &WebPParams{Quality: quality}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate 验证质量范围
func (p *WebPParams) Validate() error {
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("invalid webp quality: %d, expected 0-100", p.Quality)
	}
	return nil
}

// GetFFmpegArgs 获取FFmpeg参数
func (p *WebPParams) GetFFmpegArgs(input, output string) []string {
	return []string{
		"-y", "-i", input,
		"-frames:v", "1",
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(p.Quality),
		output,
	}
}

// HLSParams HLS 切片参数
type HLSParams struct {
	SegmentDuration   int
	GOPSize           int
	SceneCutThreshold int
}

// NewHLSParams 创建 HLS 参数
func NewHLSParams(segmentDuration, gopSize, sceneCut int) (*HLSParams, error) {
	p := &HLSParams{SegmentDuration: segmentDuration, GOPSize: gopSize, SceneCutThreshold: sceneCut}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate 验证切片参数
func (p *HLSParams) Validate() error {
	if p.SegmentDuration <= 0 {
		return fmt.Errorf("invalid segment duration: %d", p.SegmentDuration)
	}
	if p.GOPSize <= 0 {
		return fmt.Errorf("invalid gop size: %d", p.GOPSize)
	}
	if p.SceneCutThreshold < 0 {
		return fmt.Errorf("invalid scene cut threshold: %d", p.SceneCutThreshold)
	}
	return nil
}

// GetFFmpegArgs 获取FFmpeg参数，输出文件名相对于编码器工作目录
func (p *HLSParams) GetFFmpegArgs(input string) []string {
	gop := strconv.Itoa(p.GOPSize)
	return []string{
		"-y", "-i", input,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", strconv.Itoa(p.SceneCutThreshold),
		"-hls_time", strconv.Itoa(p.SegmentDuration),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", SegmentNamePattern,
		"-f", "hls",
		PlaylistName,
	}
}
