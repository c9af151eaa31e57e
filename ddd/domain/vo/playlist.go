package vo

import (
	"bufio"
	"bytes"
	"path"
	"strings"
)

// PlaylistSegments returns the segment URIs a media playlist references, in order.
func PlaylistSegments(playlist []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(playlist))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, path.Base(line))
	}
	return out
}
