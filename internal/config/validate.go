package config

import (
	"fmt"
	"strings"
)

// Validate checks the parts of the config that can be checked without I/O.
// Codegen formats are validated by the codegen package.
func (c *Config) Validate() error {
	if err := c.validateTargets(); err != nil {
		return err
	}
	if err := c.validateInputs(); err != nil {
		return err
	}
	return c.validateCodegens()
}

func (c *Config) validateTargets() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: at least one [[target]] is required", ErrConfig)
	}

	seen := make(map[string]struct{}, len(c.Targets))
	for _, t := range c.Targets {
		if _, dup := seen[t.Key]; dup {
			return fmt.Errorf("%w: targets have duplicate key '%s'", ErrConfig, t.Key)
		}
		seen[t.Key] = struct{}{}

		switch t.Type {
		case TargetLocal, TargetCloud:
		case TargetS3:
			if strings.TrimSpace(t.Bucket) == "" {
				return fmt.Errorf("%w: target '%s': bucket is required for s3 targets", ErrConfig, t.Key)
			}
		case "":
			return fmt.Errorf("%w: target '%s': type is required", ErrConfig, t.Key)
		default:
			return fmt.Errorf("%w: target '%s': unknown type '%s'", ErrConfig, t.Key, t.Type)
		}
	}
	return nil
}

func (c *Config) validateInputs() error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("%w: at least one [[input]] is required", ErrConfig)
	}
	for i, in := range c.Inputs {
		if strings.TrimSpace(in.Glob) == "" {
			return fmt.Errorf("%w: input %d: glob is required", ErrConfig, i)
		}
	}
	return nil
}

func (c *Config) validateCodegens() error {
	seen := make(map[string]struct{}, len(c.Codegens))
	for i, cg := range c.Codegens {
		if strings.TrimSpace(cg.Path) == "" {
			return fmt.Errorf("%w: codegen %d: path is required", ErrConfig, i)
		}
		if cg.Format == "" {
			return fmt.Errorf("%w: codegen '%s': format is required", ErrConfig, cg.Path)
		}
		p := c.ResolvePath(cg.Path)
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: codegen path '%s' is used twice", ErrConfig, cg.Path)
		}
		seen[p] = struct{}{}
	}
	return nil
}
