package vo

// TranscodeManifest 转码产物清单。图片只有 ImageKey，视频有 PlaylistKey 和 SegmentKeys
type TranscodeManifest struct {
	ImageKey    ObjectKey
	PlaylistKey ObjectKey
	SegmentKeys []ObjectKey
}

// IsImage reports whether the manifest describes a single still image.
func (m TranscodeManifest) IsImage() bool { return m.ImageKey != "" }

// IsHLS reports whether the manifest describes a playlist.
func (m TranscodeManifest) IsHLS() bool { return m.PlaylistKey != "" }

// Keys lists every key in upload order: image, or playlist then segments.
func (m TranscodeManifest) Keys() []ObjectKey {
	keys := make([]ObjectKey, 0, len(m.SegmentKeys)+1)
	if m.ImageKey != "" {
		keys = append(keys, m.ImageKey)
	}
	if m.PlaylistKey != "" {
		keys = append(keys, m.PlaylistKey)
	}
	return append(keys, m.SegmentKeys...)
}

// SegmentStrings returns the segment keys as plain strings.
func (m TranscodeManifest) SegmentStrings() []string {
	out := make([]string, 0, len(m.SegmentKeys))
	for _, k := range m.SegmentKeys {
		out = append(out, k.String())
	}
	return out
}
