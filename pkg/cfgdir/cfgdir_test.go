package cfgdir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	assert.Equal(t, filepath.Join(dir, "config.yaml"), Expand("config.yaml"))
	assert.True(t, filepath.IsAbs(Expand("public.pem")))
}
