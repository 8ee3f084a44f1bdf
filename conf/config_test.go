package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type configTestSuite struct {
	suite.Suite
	dir string
}

func (suite *configTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	Path = suite.dir
}

func (suite *configTestSuite) TestDefaultsWithoutFile() {
	cfg, err := LoadConfig()
	suite.Require().NoError(err)

	suite.Equal("https://api-v2.soundcloud.com", cfg.SoundCloud.APIBaseURL)
	suite.Equal("DAYS_30", cfg.SoundCloud.Window)
	suite.Equal(50, cfg.SoundCloud.Limit)
	suite.Equal(20, cfg.SoundCloud.GeoTracks)
	suite.Equal(300*time.Millisecond, cfg.SoundCloud.Interval)
	suite.Equal(File, cfg.Persistence.Driver)

	// reports land next to the exported files, not in the config path
	store := cfg.ReportStore()
	suite.Equal(".", store.Host)
	suite.Equal(cfg.Output.Dir, store.Host)

	cfg.Output.Dir = filepath.Join(suite.dir, "out")
	suite.Equal(cfg.Output.Dir, cfg.ReportStore().Host)

	suite.Equal(filepath.Join(suite.dir, "user.creds"), cfg.EventBus.CredsFile())
}

func (suite *configTestSuite) TestLoadConfigExpandsEnv() {
	suite.T().Setenv("TEST_SC_TOKEN", "2-123456-987654-abcdef")

	content := `
name: insights-test
soundcloud:
  token: ${TEST_SC_TOKEN}
  window: DAYS_7
  geoTracks: 5
  interval: 1s
persistence:
  driver: badger
  inmem: true
eventBus:
  url: nats://localhost:4222
  creds: /etc/nats/insights.creds
cities:
  Reykjavik: [64.1466, -21.9426]
`
	err := os.WriteFile(filepath.Join(suite.dir, "config.yaml"), []byte(content), 0o644)
	suite.Require().NoError(err)

	cfg, err := LoadConfig()
	suite.Require().NoError(err)

	suite.Equal("insights-test", cfg.Name)
	suite.Equal("2-123456-987654-abcdef", cfg.SoundCloud.Token)
	suite.Equal("DAYS_7", cfg.SoundCloud.Window)
	suite.Equal(5, cfg.SoundCloud.GeoTracks)
	suite.Equal(50, cfg.SoundCloud.Limit)
	suite.Equal(time.Second, cfg.SoundCloud.Interval)

	suite.Equal(BadgerDB, cfg.Persistence.Driver)
	suite.Equal("soundcloud_insights", cfg.Persistence.Name)
	suite.Empty(cfg.Persistence.Host)
	suite.Equal(suite.dir, cfg.ReportStore().Host)
	suite.True(cfg.Persistence.InMem)

	suite.Equal("nats://localhost:4222", cfg.EventBus.URL)
	suite.Equal("/etc/nats/insights.creds", cfg.EventBus.CredsFile())
	suite.Equal([]float64{64.1466, -21.9426}, cfg.Cities["Reykjavik"])
}

func (suite *configTestSuite) TestUnsupportedDriver() {
	content := "persistence:\n  driver: mongo\n"
	err := os.WriteFile(filepath.Join(suite.dir, "config.yaml"), []byte(content), 0o644)
	suite.Require().NoError(err)

	_, err = LoadConfig()
	suite.Error(err)
}

func (suite *configTestSuite) TestLoadDotEnvDoesNotOverride() {
	suite.T().Setenv("INSIGHTS_EXISTING", "kept")

	content := "# comment\nINSIGHTS_EXISTING=replaced\nINSIGHTS_DOTENV_NEW = fresh \ninvalid line\n"
	filename := filepath.Join(suite.dir, ".env")
	err := os.WriteFile(filename, []byte(content), 0o644)
	suite.Require().NoError(err)

	suite.T().Cleanup(func() { os.Unsetenv("INSIGHTS_DOTENV_NEW") })

	err = LoadDotEnv(filename)
	suite.Require().NoError(err)

	suite.Equal("kept", os.Getenv("INSIGHTS_EXISTING"))
	suite.Equal("fresh", os.Getenv("INSIGHTS_DOTENV_NEW"))

	suite.NoError(LoadDotEnv(filepath.Join(suite.dir, "missing.env")))
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(configTestSuite))
}
