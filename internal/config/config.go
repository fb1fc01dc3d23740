package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Logger      LoggerConfig
	Models      ModelsConfig
	ONNX        ONNXConfig
	Inference   InferenceConfig
	Detection   DetectionConfig
	RequestLogs RequestLogsConfig
	Database    DatabaseConfig
	Redis       RedisConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Mode           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadMB    int64
	MaxPixels      int64
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type ModelsConfig struct {
	Dir               string
	DefaultClassifier string
	Classifiers       map[string]string
	DetectionFile     string
	CountFile         string
	ClassLabels       []string
	CountLabels       []string
	EagerLoad         bool
}

type ONNXConfig struct {
	LibraryPath    string
	IntraOpThreads int
}

type InferenceConfig struct {
	MaxConcurrent int
	QueueTimeout  time.Duration
}

type DetectionConfig struct {
	DefaultConf   float64
	IoU           float64
	InputSize     int
	MaxDetections int
}

type RequestLogsConfig struct {
	Dir           string
	RetentionDays int
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DefaultClassifierFiles maps classifier ids to their exported weight files.
var DefaultClassifierFiles = map[string]string{
	"resnet-50":       "best_resnet50.onnx",
	"densenet-121":    "best_densenet121.onnx",
	"mobilenet-v2":    "best_mobilenet.onnx",
	"efficientnet-b0": "best_EfficientNetB0.onnx",
	"cnn":             "best_CNN.onnx",
	"vit-base":        "best_vit.onnx",
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("SERVER_MODE", "release")
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "120s")
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 10)
	v.SetDefault("SERVER_MAX_IMAGE_PIXELS", 178956970)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")
	v.SetDefault("MODELS_DIR", "models")
	v.SetDefault("MODELS_DEFAULT_CLASSIFIER", "mobilenet-v2")
	v.SetDefault("MODELS_DETECTION_FILE", "yolov8n.onnx")
	v.SetDefault("MODELS_COUNT_FILE", "wbc_rbc_best.onnx")
	v.SetDefault("MODELS_CLASS_LABELS", "basophil,eosinophil,lymphocyte,monocyte,neutrophil")
	v.SetDefault("MODELS_COUNT_LABELS", "RBC,WBC")
	v.SetDefault("MODELS_EAGER_LOAD", true)
	v.SetDefault("ONNX_LIBRARY_PATH", "")
	v.SetDefault("ONNX_INTRA_OP_THREADS", 0)
	v.SetDefault("INFERENCE_MAX_CONCURRENT", 4)
	v.SetDefault("INFERENCE_QUEUE_TIMEOUT", "30s")
	v.SetDefault("DETECTION_DEFAULT_CONF", 0.25)
	v.SetDefault("DETECTION_IOU", 0.7)
	v.SetDefault("DETECTION_INPUT_SIZE", 640)
	v.SetDefault("DETECTION_MAX_DETECTIONS", 300)
	v.SetDefault("REQUEST_LOGS_DIR", "logs")
	v.SetDefault("REQUEST_LOGS_RETENTION_DAYS", 7)
	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_NAME", "bloodcell")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", "24h")

	// Optional config file
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Env
	v.AutomaticEnv()

	classifiers := make(map[string]string, len(DefaultClassifierFiles))
	for id, file := range DefaultClassifierFiles {
		classifiers[id] = file
	}
	for id, file := range v.GetStringMapString("MODELS_CLASSIFIERS") {
		classifiers[id] = file
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    durationOr(v.GetString("SERVER_READ_TIMEOUT"), 30*time.Second),
			WriteTimeout:   durationOr(v.GetString("SERVER_WRITE_TIMEOUT"), 120*time.Second),
			MaxUploadMB:    v.GetInt64("SERVER_MAX_UPLOAD_MB"),
			MaxPixels:      v.GetInt64("SERVER_MAX_IMAGE_PIXELS"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Models: ModelsConfig{
			Dir:               v.GetString("MODELS_DIR"),
			DefaultClassifier: v.GetString("MODELS_DEFAULT_CLASSIFIER"),
			Classifiers:       classifiers,
			DetectionFile:     v.GetString("MODELS_DETECTION_FILE"),
			CountFile:         v.GetString("MODELS_COUNT_FILE"),
			ClassLabels:       splitList(v.GetString("MODELS_CLASS_LABELS")),
			CountLabels:       splitList(v.GetString("MODELS_COUNT_LABELS")),
			EagerLoad:         v.GetBool("MODELS_EAGER_LOAD"),
		},
		ONNX: ONNXConfig{
			LibraryPath:    v.GetString("ONNX_LIBRARY_PATH"),
			IntraOpThreads: v.GetInt("ONNX_INTRA_OP_THREADS"),
		},
		Inference: InferenceConfig{
			MaxConcurrent: v.GetInt("INFERENCE_MAX_CONCURRENT"),
			QueueTimeout:  durationOr(v.GetString("INFERENCE_QUEUE_TIMEOUT"), 30*time.Second),
		},
		Detection: DetectionConfig{
			DefaultConf:   v.GetFloat64("DETECTION_DEFAULT_CONF"),
			IoU:           v.GetFloat64("DETECTION_IOU"),
			InputSize:     v.GetInt("DETECTION_INPUT_SIZE"),
			MaxDetections: v.GetInt("DETECTION_MAX_DETECTIONS"),
		},
		RequestLogs: RequestLogsConfig{
			Dir:           v.GetString("REQUEST_LOGS_DIR"),
			RetentionDays: v.GetInt("REQUEST_LOGS_RETENTION_DAYS"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DATABASE_ENABLED"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durationOr(v.GetString("DATABASE_CONN_MAX_LIFETIME"), 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      durationOr(v.GetString("REDIS_TTL"), 24*time.Hour),
		},
	}

	if cfg.Inference.MaxConcurrent <= 0 {
		cfg.Inference.MaxConcurrent = 1
	}

	return cfg, nil
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
