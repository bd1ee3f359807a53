package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if StorageConfigInstance != nil {
		if err := validate.Struct(StorageConfigInstance); err != nil {
			return formatValidationError(err)
		}
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	for i, entry := range cfg.UserWhitelist {
		if entry == "*" {
			continue
		}
		if _, err := strconv.ParseUint(entry, 10, 64); err != nil {
			return fmt.Errorf("USER_WHITELIST[%d]: %q is not a user id", i, entry)
		}
	}
	if cfg.DailyUploadLimitBytes < 0 {
		return errors.New("DAILY_UPLOAD_LIMIT_BYTES: must not be negative")
	}
	if cfg.UserLimit < 0 {
		return errors.New("USER_LIMIT: must not be negative")
	}
	if cfg.CacheSyncMode == "amqp" && cfg.RabbitMQURL == "" {
		return errors.New("CACHE_SYNC_MODE=amqp requires a RabbitMQ url")
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
