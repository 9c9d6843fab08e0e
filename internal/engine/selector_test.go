package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wzin/datawipe/internal/domain"
)

func TestMethodSelector(t *testing.T) {
	t.Parallel()

	catalog := catalogFor("example.com")
	selector := NewMethodSelector(catalog, nil)
	ctx := context.Background()

	t.Run("automated when profile exists", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, "example.com")
		assert.Equal(t, domain.MethodAutomated, selector.Select(ctx, task))
	})

	t.Run("email when no profile registered", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, "unknown.net")
		assert.Equal(t, domain.MethodEmail, selector.Select(ctx, task))
	})

	t.Run("email after captcha", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, "example.com")
		task.CaptchaSeen = true
		assert.Equal(t, domain.MethodEmail, selector.Select(ctx, task))
	})

	t.Run("email after repeated structural failures", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, "example.com")
		task.StructuralFailures = StructuralSwitchThreshold
		assert.Equal(t, domain.MethodEmail, selector.Select(ctx, task))
	})

	t.Run("automated below structural threshold", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, "example.com")
		task.StructuralFailures = StructuralSwitchThreshold - 1
		assert.Equal(t, domain.MethodAutomated, selector.Select(ctx, task))
	})

	t.Run("manual never reselected", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, "example.com")
		task.Method = domain.MethodManual
		task.CaptchaSeen = true
		assert.Equal(t, domain.MethodManual, selector.Select(ctx, task))
	})
}
