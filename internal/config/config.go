// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sua-org/cam-events/internal/core"
)

const (
	DefaultPictureFilename  = "%v-%Y%m%d%H%M%S-%q"
	DefaultSnapshotFilename = "%v-%Y%m%d%H%M%S-snapshot"
	DefaultMovieFilename    = "%v-%Y%m%d%H%M%S"

	// LastSnapName as snapshot_filename writes the stable name directly,
	// without a timestamped file and link.
	LastSnapName = "lastsnap"
)

type Config struct {
	CameraID   int    `yaml:"camera_id"`
	CameraName string `yaml:"camera_name"`

	Output    OutputConfig    `yaml:"output"`
	Commands  CommandsConfig  `yaml:"commands"`
	Pipe      PipeConfig      `yaml:"pipe"`
	Stream    StreamConfig    `yaml:"stream"`
	Database  DatabaseConfig  `yaml:"database"`
	VideoPipe VideoPipeConfig `yaml:"video_pipe"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Storage   StorageConfig   `yaml:"storage"`

	StatusIntervalSeconds int `yaml:"status_interval_seconds"`
}

type OutputConfig struct {
	TargetDir        string `yaml:"target_dir"`
	PictureType      string `yaml:"picture_type"` // jpeg, ppm, webp
	PictureFilename  string `yaml:"picture_filename"`
	SnapshotFilename string `yaml:"snapshot_filename"`
	MovieFilename    string `yaml:"movie_filename"`
	PictureOutput    bool   `yaml:"picture_output"`
	MotionImages     bool   `yaml:"motion_images"`
	Quiet            bool   `yaml:"quiet"`
}

type CommandsConfig struct {
	OnEventStart     string `yaml:"on_event_start"`
	OnEventEnd       string `yaml:"on_event_end"`
	OnPictureSave    string `yaml:"on_picture_save"`
	OnMotionDetected string `yaml:"on_motion_detected"`
	OnAreaDetected   string `yaml:"on_area_detected"`
	OnMovieStart     string `yaml:"on_movie_start"`
	OnMovieEnd       string `yaml:"on_movie_end"`
	OnCameraLost     string `yaml:"on_camera_lost"`
}

type PipeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Command   string `yaml:"command"`
	Secondary bool   `yaml:"secondary"`
}

type StreamConfig struct {
	Port      int  `yaml:"port"`
	Secondary bool `yaml:"secondary"`
}

type DatabaseConfig struct {
	Type       string `yaml:"type"` // mysql, postgresql, sqlite3 or empty
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SQLitePath string `yaml:"sqlite_path"`
	Query      string `yaml:"query"`

	LogPicture   bool `yaml:"log_picture"`
	LogSnapshot  bool `yaml:"log_snapshot"`
	LogMovie     bool `yaml:"log_movie"`
	LogTimelapse bool `yaml:"log_timelapse"`
}

// VideoPipeConfig names the loopback device that receives every picture.
type VideoPipeConfig struct {
	Device string `yaml:"device"`
}

type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	BaseTopic string `yaml:"base_topic"`
}

type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
	Prefix        string `yaml:"prefix"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		CameraID: 1,
		Output: OutputConfig{
			TargetDir:        "/var/lib/cam-events",
			PictureType:      "jpeg",
			PictureFilename:  DefaultPictureFilename,
			SnapshotFilename: DefaultSnapshotFilename,
			MovieFilename:    DefaultMovieFilename,
			PictureOutput:    true,
		},
		Database: DatabaseConfig{
			Query: "insert into security(camera, filename, frame, file_type, time_stamp, text_event) " +
				"values('%t', '%f', '%q', '%n', '%Y-%m-%d %T', '%{filetype}')",
			LogPicture:  true,
			LogSnapshot: true,
			LogMovie:    true,
		},
		MQTT: MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			ClientID:  "cam-events",
			BaseTopic: "security-vision/cam-events",
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
			Bucket:   "cam-events",
		},
		StatusIntervalSeconds: 30,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no handler can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.PictureType) {
	case "jpeg", "jpg", "ppm", "webp":
	default:
		return fmt.Errorf("output.picture_type %q not supported", c.Output.PictureType)
	}
	switch strings.ToLower(c.Database.Type) {
	case "":
	case "mysql", "postgresql", "postgres", "pgsql":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when database type is %s", c.Database.Type)
		}
	case "sqlite3", "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required when database type is %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Pipe.Enabled && strings.TrimSpace(c.Pipe.Command) == "" {
		return fmt.Errorf("pipe.command is required when pipe is enabled")
	}
	if c.Storage.Enabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key / storage.secret_key not configured")
	}
	return nil
}

// SQLMask is the set of file types the SQL handler logs.
func (c *Config) SQLMask() core.FileType {
	var m core.FileType
	if c.Database.LogPicture {
		m |= core.FileImage | core.FileImageMotion
	}
	if c.Database.LogSnapshot {
		m |= core.FileImageSnapshot
	}
	if c.Database.LogMovie {
		m |= core.FileMovie | core.FileMovieMotion
	}
	if c.Database.LogTimelapse {
		m |= core.FileMovieTimelapse
	}
	return m
}

// ImageExt is the extension matching the configured picture type.
func (c *Config) ImageExt() string {
	switch strings.ToLower(c.Output.PictureType) {
	case "ppm":
		return "ppm"
	case "webp":
		return "webp"
	}
	return "jpg"
}

func (c *Config) applyEnv() {
	c.CameraID = getenvInt("CAM_EVENTS_CAMERA_ID", c.CameraID)
	c.Output.TargetDir = getenv("CAM_EVENTS_TARGET_DIR", c.Output.TargetDir)

	c.Database.Host = getenv("DATABASE_HOST", c.Database.Host)
	c.Database.User = getenv("DATABASE_USER", c.Database.User)
	c.Database.Password = getenv("DATABASE_PASSWORD", c.Database.Password)

	c.MQTT.Enabled = getenvBool("MQTT_ENABLED", c.MQTT.Enabled)
	c.MQTT.Host = getenv("MQTT_HOST", c.MQTT.Host)
	c.MQTT.Port = getenvInt("MQTT_PORT", c.MQTT.Port)
	c.MQTT.Username = getenv("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getenv("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = getenv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.BaseTopic = strings.TrimSuffix(getenv("MQTT_BASE_TOPIC", c.MQTT.BaseTopic), "/")

	c.Storage.Enabled = getenvBool("MINIO_ENABLED", c.Storage.Enabled)
	c.Storage.Endpoint = getenv("MINIO_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getenv("MINIO_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getenv("MINIO_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getenv("MINIO_BUCKET", c.Storage.Bucket)
	c.Storage.UseSSL = getenvBool("MINIO_USE_SSL", c.Storage.UseSSL)
	c.Storage.PublicBaseURL = getenv("MINIO_PUBLIC_BASE_URL", c.Storage.PublicBaseURL)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	x, err := strconv.Atoi(v)
	if err != nil || x <= 0 {
		return def
	}
	return x
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
