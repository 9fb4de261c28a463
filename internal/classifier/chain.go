package classifier

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

type classifierChain struct {
	primary  Classifier
	fallback Classifier
}

// WithFallback returns a classifier that tries the primary implementation first and
// uses the fallback when the primary is unavailable, errors, or returns output that
// fails validation.
func WithFallback(primary, fallback Classifier) Classifier {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &classifierChain{primary: primary, fallback: fallback}
}

func (c *classifierChain) Name() string {
	if c.primary != nil && c.primary.Enabled() {
		return c.primary.Name()
	}
	return c.fallback.Name()
}

func (c *classifierChain) Enabled() bool {
	if c == nil {
		return false
	}
	return (c.primary != nil && c.primary.Enabled()) || (c.fallback != nil && c.fallback.Enabled())
}

func (c *classifierChain) Classify(ctx context.Context, text string) ([]Prediction, error) {
	predictions, _, err := c.classifyNamed(ctx, text)
	return predictions, err
}

func (c *classifierChain) classifyNamed(ctx context.Context, text string) ([]Prediction, string, error) {
	if c == nil {
		return nil, "", ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		predictions, name, err := ClassifyNamed(ctx, c.primary, text)
		if err == nil {
			if _, err = Top(predictions); err == nil {
				return predictions, name, nil
			}
		}
		if errors.Is(err, ErrEmptyText) || ctx.Err() != nil {
			return nil, name, err
		}
		logrus.WithError(err).WithField("classifier", c.primary.Name()).Warn("primary classifier failed, using fallback")
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return ClassifyNamed(ctx, c.fallback, text)
	}
	return nil, "", ErrDisabled
}
