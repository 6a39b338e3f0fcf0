package config

import (
	"fmt"
	"strings"
)

// Credentials are supplied per invocation (flags or RUNWAY_* env), never
// stored in runway.toml.
type Credentials struct {
	APIKey  string
	UserID  string
	GroupID string

	// s3 targets fall back to the default AWS credential chain when empty
	S3AccessKey string
	S3SecretKey string
}

// ValidateCloud checks the cloud target requirements: an API key and exactly
// one of user or group as the owning creator.
func (c *Credentials) ValidateCloud() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: an API key is required for cloud targets", ErrConfig)
	}
	hasUser := strings.TrimSpace(c.UserID) != ""
	hasGroup := strings.TrimSpace(c.GroupID) != ""
	switch {
	case hasUser && hasGroup:
		return fmt.Errorf("%w: specify either a user ID or a group ID, not both", ErrConfig)
	case !hasUser && !hasGroup:
		return fmt.Errorf("%w: a user ID or group ID is required for cloud targets", ErrConfig)
	}
	return nil
}

// ValidateS3 checks that static keys, when given, come as a pair.
func (c *Credentials) ValidateS3() error {
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("%w: s3 access key and secret key must be set together", ErrConfig)
	}
	return nil
}
