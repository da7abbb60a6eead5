package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramedCentersHeading(t *testing.T) {
	assert.Equal(t, "-------[scan]-------", framed("scan", 20))
}

func TestFramedClampsWhenHeadingExceedsWidth(t *testing.T) {
	msg := "a heading wider than the terminal"
	assert.NotPanics(t, func() {
		assert.Equal(t, "["+msg+"]", framed(msg, 10))
	})
}
