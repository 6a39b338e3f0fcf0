package codegen

import (
	"fmt"

	"github.com/runway-sync/runway/internal/config"
)

type Format string

const (
	FormatJSON                  Format = "json"
	FormatYAML                  Format = "yaml"
	FormatTypeScript            Format = "typescript"
	FormatTypeScriptDeclaration Format = "typescript-declaration"
	FormatLuau                  Format = "luau"
)

var formats = []Format{FormatJSON, FormatYAML, FormatTypeScript, FormatTypeScriptDeclaration, FormatLuau}

const headerText = "This file was @generated by runway. It is not intended for manual editing."

// ParseFormat accepts a format name and a few common aliases.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "ts":
		return FormatTypeScript, nil
	case "d.ts", "dts":
		return FormatTypeScriptDeclaration, nil
	case "lua":
		return FormatLuau, nil
	case "yml":
		return FormatYAML, nil
	}
	for _, f := range formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown codegen format '%s'", config.ErrConfig, s)
}

// Render serializes the mapping. Output only depends on the mapping content.
func Render(root *Node, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(root)
	case FormatYAML:
		return renderYAML(root)
	case FormatTypeScript:
		return renderTypeScript(root, false), nil
	case FormatTypeScriptDeclaration:
		return renderTypeScript(root, true), nil
	case FormatLuau:
		return renderLuau(root), nil
	default:
		return nil, fmt.Errorf("%w: unknown codegen format '%s'", config.ErrConfig, format)
	}
}
