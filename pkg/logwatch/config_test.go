package logwatch

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/batteryradar/pkg/models"
)

func TestConfigValidate(t *testing.T) {
	t.Run("requires log_dir", func(t *testing.T) {
		cfg := &Config{}

		require.ErrorIs(t, cfg.Validate(), errLogDirRequired)
	})

	t.Run("applies defaults", func(t *testing.T) {
		cfg := &Config{LogDir: "/var/log/systray"}

		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultFilePattern, cfg.FilePattern)
		assert.Equal(t, defaultPollInterval, time.Duration(cfg.PollInterval))
	})

	t.Run("rejects invalid file_pattern", func(t *testing.T) {
		cfg := &Config{LogDir: "/var/log/systray", FilePattern: "(unclosed"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid file_pattern")
	})

	t.Run("rejects negative poll_interval", func(t *testing.T) {
		cfg := &Config{
			LogDir:       "/var/log/systray",
			PollInterval: models.Duration(-time.Second),
		}

		require.ErrorIs(t, cfg.Validate(), errInvalidPollInterval)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := &Config{
			LogDir:       "/var/log/systray",
			FilePattern:  `^custom\.log$`,
			PollInterval: models.Duration(3 * time.Second),
		}

		require.NoError(t, cfg.Validate())
		assert.Equal(t, `^custom\.log$`, cfg.FilePattern)
		assert.Equal(t, 3*time.Second, time.Duration(cfg.PollInterval))
	})
}

func TestDefaultFilePatternMatchesRotatedFamily(t *testing.T) {
	re := regexp.MustCompile(DefaultFilePattern)

	assert.True(t, re.MatchString("systray_systrayv2.log"))
	assert.True(t, re.MatchString("systray_systrayv201.log"))
	assert.True(t, re.MatchString("SYSTRAY_SYSTRAYV25.LOG"))
	assert.False(t, re.MatchString("systray_systrayv2.log.bak"))
	assert.False(t, re.MatchString("systray_other.log"))
}
