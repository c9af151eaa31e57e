package vo

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectKey 存储桶内对象路径，不以 "/" 开头
type ObjectKey string

func (k ObjectKey) String() string { return string(k) }

// Dir returns the key prefix up to the last slash, without the slash.
func (k ObjectKey) Dir() string { return path.Dir(string(k)) }

// Base returns the last path element.
func (k ObjectKey) Base() string { return path.Base(string(k)) }

// Join appends name below the key's directory.
func (k ObjectKey) Join(name string) ObjectKey {
	return ObjectKey(strings.TrimLeft(string(k), "/") + "/" + strings.TrimLeft(name, "/"))
}

// Visibility 命名空间：public 直链访问，private 仅限预签名访问
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ACL 对象访问控制
type ACL string

const (
	ACLPublicRead ACL = "public-read"
	ACLPrivate    ACL = "private"
)

// ACL maps the namespace onto the canned ACL used at upload time.
func (v Visibility) ACL() ACL {
	if v == VisibilityPublic {
		return ACLPublicRead
	}
	return ACLPrivate
}

// ParseVisibility accepts "public" or "private"; anything else is private.
func ParseVisibility(s string) Visibility {
	if strings.EqualFold(strings.TrimSpace(s), string(VisibilityPublic)) {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// VisibilityOf derives the namespace from a key.
func VisibilityOf(key ObjectKey) Visibility {
	if strings.HasPrefix(string(key), string(VisibilityPublic)+"/") {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// ACLForKey is the ACL a key must be uploaded with.
func ACLForKey(key ObjectKey) ACL {
	return VisibilityOf(key).ACL()
}

// Scope identifies the owner of an artifact, e.g. courses/{courseId}/thumbnail.
type Scope struct {
	Namespace string
	IDs       []string
	Suffix    string
}

// CourseThumbnailScope is used for course cover images.
func CourseThumbnailScope(courseID string) Scope {
	return Scope{Namespace: "courses", IDs: []string{courseID}, Suffix: "thumbnail"}
}

// LessonModuleScope is used for lesson module videos and images.
func LessonModuleScope(lessonID, moduleID string) Scope {
	return Scope{Namespace: "courses", IDs: []string{lessonID, "modules", moduleID}}
}

// ReviewScope is used for review images.
func ReviewScope(reviewID string) Scope {
	return Scope{Namespace: "reviews", IDs: []string{reviewID}}
}

// ParseScope builds a scope from the names accepted at the boundary.
func ParseScope(name string, ids []string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "course_thumbnail", "course-thumbnail", "course":
		if len(ids) != 1 {
			return Scope{}, fmt.Errorf("course thumbnail scope needs 1 id, got %d", len(ids))
		}
		return CourseThumbnailScope(ids[0]), nil
	case "lesson_module", "lesson-module", "lesson":
		if len(ids) != 2 {
			return Scope{}, fmt.Errorf("lesson module scope needs 2 ids, got %d", len(ids))
		}
		return LessonModuleScope(ids[0], ids[1]), nil
	case "review":
		if len(ids) != 1 {
			return Scope{}, fmt.Errorf("review scope needs 1 id, got %d", len(ids))
		}
		return ReviewScope(ids[0]), nil
	default:
		return Scope{}, fmt.Errorf("unknown scope %q", name)
	}
}

// Path joins the scope into a slash-delimited prefix.
func (s Scope) Path() (string, error) {
	if strings.TrimSpace(s.Namespace) == "" {
		return "", fmt.Errorf("scope namespace is empty")
	}
	parts := make([]string, 0, len(s.IDs)+2)
	parts = append(parts, s.Namespace)
	for _, id := range s.IDs {
		id = strings.TrimSpace(id)
		if id == "" || strings.Contains(id, "/") || id == "." || id == ".." {
			return "", fmt.Errorf("invalid scope id %q", id)
		}
		parts = append(parts, id)
	}
	if s.Suffix != "" {
		parts = append(parts, s.Suffix)
	}
	return strings.Join(parts, "/"), nil
}

// BuildKey joins visibility, scope and filename into a key.
func BuildKey(visibility Visibility, scope Scope, filename string) (ObjectKey, error) {
	prefix, err := scope.Path()
	if err != nil {
		return "", err
	}
	filename = strings.Trim(filename, "/")
	if filename == "" {
		return "", fmt.Errorf("filename is empty")
	}
	if visibility != VisibilityPublic {
		visibility = VisibilityPrivate
	}
	return ObjectKey(string(visibility) + "/" + prefix + "/" + filename), nil
}

// NewArtifactName returns a random file name with the given extension (".webp").
func NewArtifactName(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return uuid.NewString() + strings.ToLower(ext)
}

// NormalizeKey turns a stored URL or key back into a bare key.
//
// Bare keys only lose leading slashes. Full URLs lose scheme and host, then one
// of pathPrefixes (the endpoint or public base path, e.g. "/s3") if the path
// starts with it, then a leading "{bucket}/", and are percent-decoded once.
// A bucket name further inside the path is part of the key. A URL whose
// decoded key is itself a URL yields "". Applying it twice gives the same result.
func NormalizeKey(urlOrKey, bucket string, pathPrefixes ...string) ObjectKey {
	s := strings.TrimSpace(urlOrKey)
	if !hasScheme(s) {
		return ObjectKey(strings.TrimLeft(s, "/"))
	}

	u, err := url.Parse(s)
	if err != nil {
		return ObjectKey(strings.TrimLeft(s, "/"))
	}
	p := strings.TrimLeft(u.EscapedPath(), "/")
	for _, prefix := range pathPrefixes {
		prefix = strings.Trim(prefix, "/")
		if prefix != "" && strings.HasPrefix(p, prefix+"/") {
			p = strings.TrimPrefix(p, prefix+"/")
			break
		}
	}
	if bucket != "" {
		p = strings.TrimPrefix(p, EscapeBucket(bucket)+"/")
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.TrimLeft(p, "/")
	if hasScheme(p) {
		return ""
	}
	return ObjectKey(p)
}

func hasScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// EscapeBucket escapes a bucket name the way it appears in a path-style URL.
func EscapeBucket(bucket string) string {
	return url.PathEscape(bucket)
}
