package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldVersion, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldVersion, oldSHA, oldTime })

	assert.Equal(t, "dev (commit: unknown, built: unknown)", String())

	Version, GitSHA, BuildTime = "1.2.0", "abc1234", "2026-01-02T03:04:05Z"
	assert.Equal(t, "1.2.0 (commit: abc1234, built: 2026-01-02T03:04:05Z)", String())
}
