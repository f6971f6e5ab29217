package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Everything is read from the environment (optionally seeded by a .env file).
type Config struct {
	HTTPAddr string

	FFmpegPath  string
	FFprobePath string
	DemucsPath  string // empty disables neural separation
	WorkDir     string // scratch space for extracted streams and intermediates
	UploadDir   string // where multipart uploads land when MinIO is not used

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBLogLevel string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	RecognizerURL    string
	RecognizerAPIKey string

	// Silence segmentation, all durations in milliseconds.
	SilenceThresholdDB float64
	MinSilenceMs       int
	KeepSilenceMs      int
	MinSegmentMs       int

	SufficiencyThreshold int

	EDLFrameRate        float64
	EDLDropFrame        bool
	EDLOutputDir        string
	EDLArtifactBackend  string // "local" or "minio"
	EDLDeduplicateTitle bool

	JobWorkers       int
	ProbeTimeout     time.Duration
	ExtractTimeout   time.Duration
	RecognizeTimeout time.Duration
	SeparateTimeout  time.Duration

	WatchfolderEnabled    bool
	WatchfolderInput      string
	WatchfolderExtensions []string

	AuthJWTSecret    string
	AuthUser         string
	AuthPasswordHash string
	AuthTokenTTL     time.Duration

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	workDir := getEnv("WORK_DIR", filepath.Join("files", "work"))

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		FFmpegPath:  ffmpegPath,
		FFprobePath: getEnv("FFPROBE_PATH", strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)),
		DemucsPath:  getEnv("DEMUCS_PATH", ""),
		WorkDir:     workDir,
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "mxfedl"),
		DBLogLevel: getEnv("DB_LOG_LEVEL", "warn"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "mxfedl"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		RecognizerURL:    getEnv("RECOGNIZER_URL", "http://127.0.0.1:8000/recognize"),
		RecognizerAPIKey: getEnv("RECOGNIZER_API_KEY", ""),

		SilenceThresholdDB: getEnvFloat("SILENCE_THRESHOLD", -60),
		MinSilenceMs:       getEnvInt("MIN_SILENCE_LEN", 2000),
		KeepSilenceMs:      getEnvInt("KEEP_SILENCE_LEN", 1000),
		MinSegmentMs:       getEnvInt("MIN_SEGMENT_DURATION", 10000),

		SufficiencyThreshold: getEnvInt("SUFFICIENCY_THRESHOLD", 2),

		EDLFrameRate:        getEnvFloat("EDL_FRAME_RATE", 29.97),
		EDLDropFrame:        getEnvBool("EDL_DROP_FRAME", false),
		EDLOutputDir:        getEnv("EDL_OUTPUT_DIR", filepath.Join("files", "output")),
		EDLArtifactBackend:  strings.ToLower(getEnv("EDL_ARTIFACT_BACKEND", "local")),
		EDLDeduplicateTitle: getEnvBool("EDL_DEDUPLICATE_TITLES", false),

		JobWorkers:       getEnvInt("JOB_WORKERS", 2),
		ProbeTimeout:     getEnvDuration("PROBE_TIMEOUT", 30*time.Second),
		ExtractTimeout:   getEnvDuration("EXTRACT_TIMEOUT", 10*time.Minute),
		RecognizeTimeout: getEnvDuration("RECOGNIZE_TIMEOUT", 60*time.Second),
		SeparateTimeout:  getEnvDuration("SEPARATE_TIMEOUT", 15*time.Minute),

		WatchfolderEnabled:    getEnvBool("WATCHFOLDER_ENABLED", false),
		WatchfolderInput:      getEnv("WATCHFOLDER_INPUT", filepath.Join("files", "input")),
		WatchfolderExtensions: getEnvList("WATCHFOLDER_EXTENSIONS", []string{".mxf"}),

		AuthJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		AuthUser:         getEnv("AUTH_USER", "operator"),
		AuthPasswordHash: os.Getenv("AUTH_PASSWORD_HASH"),
		AuthTokenTTL:     getEnvDuration("AUTH_TOKEN_TTL", 12*time.Hour),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// RedisEnabled reports whether a Redis host has been configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisHost) != ""
}

// MinioEnabled reports whether a MinIO endpoint has been configured.
func (c *Config) MinioEnabled() bool {
	return strings.TrimSpace(c.MinioEndpoint) != ""
}

// AuthEnabled reports whether API routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != ""
}

// Validate checks for combinations that cannot work at runtime.
func (c *Config) Validate() error {
	if c.JobWorkers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive, got %d", c.JobWorkers)
	}
	if c.SufficiencyThreshold <= 0 {
		return fmt.Errorf("SUFFICIENCY_THRESHOLD must be positive, got %d", c.SufficiencyThreshold)
	}
	if c.MinSilenceMs <= 0 || c.MinSegmentMs < 0 || c.KeepSilenceMs < 0 {
		return fmt.Errorf("invalid silence segmentation settings")
	}
	if c.EDLFrameRate <= 0 {
		return fmt.Errorf("EDL_FRAME_RATE must be positive, got %v", c.EDLFrameRate)
	}
	switch c.EDLArtifactBackend {
	case "local":
	case "minio":
		if !c.MinioEnabled() {
			return fmt.Errorf("EDL_ARTIFACT_BACKEND=minio requires MINIO_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown EDL_ARTIFACT_BACKEND %q", c.EDLArtifactBackend)
	}
	if c.AuthEnabled() && c.AuthPasswordHash == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is set but AUTH_PASSWORD_HASH is empty")
	}
	return nil
}
