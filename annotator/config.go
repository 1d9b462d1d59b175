package annotator

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultCaption is the text shown under the annotated element.
const DefaultCaption = "Recently used on this site"

// Config controls one Annotator.
type Config struct {
	// SettleDelay is the wait between a viewport resize and the retry.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// Caption is plain text; markup is stripped.
	Caption string `yaml:"caption"`
	// MaxDeliveryRounds bounds the mutation checkpoint run after each task.
	MaxDeliveryRounds int `yaml:"max_delivery_rounds"`
	// QueueSize is the capacity of the task queue.
	QueueSize int `yaml:"queue_size"`

	// AfterFunc schedules the settle timer. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 200 * time.Millisecond
	}
	c.Caption = sanitizeCaption(c.Caption)
	if c.Caption == "" {
		c.Caption = DefaultCaption
	}
	if c.MaxDeliveryRounds <= 0 {
		c.MaxDeliveryRounds = 16
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

var captionPolicy = bluemonday.StrictPolicy()

// sanitizeCaption reduces s to plain text. The caption is inserted as a text
// node, so the entities bluemonday emits are decoded again.
func sanitizeCaption(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(captionPolicy.Sanitize(s))), " ")
}
