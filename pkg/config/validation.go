package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct tags plus a few
// cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if err := cfg.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	if cfg.Ops.Enabled && cfg.Ops.Port == cfg.Server.Port && cfg.Server.Port != 0 {
		return fmt.Errorf("ops port %d collides with server port", cfg.Ops.Port)
	}

	return nil
}
