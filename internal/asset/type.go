package asset

import "fmt"

// Type is the kind of asset, inferred from the file extension.
type Type int

const (
	TypeUnknown Type = iota
	TypeImage
	TypeAudio
	TypeModel
)

var typesByExt = map[string]Type{
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".bmp":  TypeImage,
	".tga":  TypeImage,
	".mp3":  TypeAudio,
	".ogg":  TypeAudio,
	".wav":  TypeAudio,
	".flac": TypeAudio,
	".fbx":  TypeModel,
	".obj":  TypeModel,
}

// TypeOf returns the asset type for an ident, TypeUnknown if unsupported.
func TypeOf(ident Ident) Type {
	return typesByExt[ident.Ext()]
}

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypeModel:
		return "model"
	default:
		return "unknown"
	}
}

// CloudName is the asset type name used by the hosting service API.
func (t Type) CloudName() (string, error) {
	switch t {
	case TypeImage:
		return "Decal", nil
	case TypeAudio:
		return "Audio", nil
	case TypeModel:
		return "Model", nil
	default:
		return "", fmt.Errorf("no cloud asset type for %s", t)
	}
}
