package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

var assetContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".bmp":  "image/bmp",
	".tga":  "image/tga",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".fbx":  "model/fbx",
	".obj":  "model/obj",
}

// DetectContentType returns the upload content type for an asset file name.
func DetectContentType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ct, ok := assetContentTypes[ext]; ok {
		return ct
	} else if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
