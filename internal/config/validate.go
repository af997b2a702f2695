package config

import (
	"fmt"
	"strings"
)

// Validate checks the parts of the config that can be verified without
// touching collaborators (duration strings, required fields). The app layer
// adds checks that need live components (e.g. cron schedule syntax).
func (c *Config) Validate() error {
	if _, _, _, err := c.API.Timeouts(); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", busyTimeout(c.Storage)); err != nil {
		return err
	}
	if c.Delivery.Webhook != nil {
		if strings.TrimSpace(c.Delivery.Webhook.URL) == "" {
			return fmt.Errorf("delivery.webhook.url is required when the webhook channel is configured")
		}
		if _, err := ParseDurationField("delivery.webhook.timeout", c.Delivery.Webhook.Timeout); err != nil {
			return err
		}
	}
	if c.Delivery.Telegram != nil {
		if strings.TrimSpace(c.Delivery.Telegram.Token) == "" {
			return fmt.Errorf("delivery.telegram.token is required when the telegram channel is configured")
		}
		if _, err := ParseDurationField("delivery.telegram.poll_timeout", c.Delivery.Telegram.PollTimeout); err != nil {
			return err
		}
	}

	seen := map[string]struct{}{}
	for i, r := range c.Directory.Recipients {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return fmt.Errorf("directory.recipients[%d]: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("directory.recipients: duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	for i, t := range c.Directory.Teams {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("directory.teams[%d]: id is required", i)
		}
	}
	return nil
}

func busyTimeout(s *StorageConfig) string {
	if s == nil {
		return ""
	}
	return s.BusyTimeout
}
