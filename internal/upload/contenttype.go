package upload

import "strings"

// DefaultContentType is returned for extensions with no known MIME type.
const DefaultContentType = "application/octet-stream"

// mimeTypes is the static extension registry. The host's mime.types is never consulted.
var mimeTypes = map[string]string{
	"7z":   "application/x-7z-compressed",
	"aac":  "audio/aac",
	"avi":  "video/x-msvideo",
	"avif": "image/avif",
	"bmp":  "image/bmp",
	"csv":  "text/csv",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"epub": "application/epub+zip",
	"flac": "audio/flac",
	"gif":  "image/gif",
	"gz":   "application/gzip",
	"heic": "image/heic",
	"ico":  "image/vnd.microsoft.icon",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"json": "application/json",
	"m4a":  "audio/mp4",
	"md":   "text/markdown",
	"mkv":  "video/x-matroska",
	"mov":  "video/quicktime",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"mpeg": "video/mpeg",
	"odp":  "application/vnd.oasis.opendocument.presentation",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"odt":  "application/vnd.oasis.opendocument.text",
	"oga":  "audio/ogg",
	"ogg":  "audio/ogg",
	"ogv":  "video/ogg",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"rar":  "application/vnd.rar",
	"rtf":  "application/rtf",
	"svg":  "image/svg+xml",
	"tar":  "application/x-tar",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"tsv":  "text/tab-separated-values",
	"txt":  "text/plain",
	"wav":  "audio/wav",
	"webm": "video/webm",
	"webp": "image/webp",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xml":  "application/xml",
	"zip":  "application/zip",
}

// KnownExtensions returns every extension in the MIME registry.
func KnownExtensions() []string {
	out := make([]string, 0, len(mimeTypes))
	for ext := range mimeTypes {
		out = append(out, ext)
	}
	return out
}

// ContentTypeResolver maps file extensions to MIME types.
type ContentTypeResolver struct{}

// Resolve returns explicit when set, otherwise the registered type for
// extension, otherwise DefaultContentType. It never fails.
func (ContentTypeResolver) Resolve(extension, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ct, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(extension, "."))]; ok {
		return ct
	}
	return DefaultContentType
}
