package config

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	JWTTTLHours        int
	RateLimitPerMinute int
	AllowedOrigins     []string
	SiteName           string
	SiteURL            string
	// Database
	DBDriver    string // mysql or sqlite
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Gin framework configuration
	GinMode string
	GinPath string
	// SMTP for contact notifications and newsletter mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Redis for caching; empty host disables Redis and every caller falls back
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Geo resolution for view analytics
	GeoIPDBPath     string
	GeoRemoteAPI    bool
	GeoRemoteAPIURL string
	// Public form abuse protection
	FormCooldownSec    int
	FormMaxPerIPPerDay int
	ContactNotifyEmail string
	// Admins
	AdminUsernames []string
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// Load loads the application configuration. It should be called once during boot.
// Precedence: defaults -> config/config.json -> environment variables.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	v := newViper()
	v.SetConfigFile(filepath.Join("config", "config.json"))
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			log.Fatalf("config: invalid config/config.json: %v", err)
		}
	}

	cfg = fromViper(v)
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in config or environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// Set installs c as the active configuration. Used by tests and tools that
// build configuration in code.
func Set(c AppConfig) {
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
}

// Defaults returns the configuration produced by defaults alone, ignoring files and environment.
func Defaults() AppConfig {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)
	bindEnv(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.jwtttlhours", 24*7)
	v.SetDefault("app.ratelimitperminute", 60)
	v.SetDefault("app.allowedorigins", []string{"*"})
	v.SetDefault("app.sitename", "AIBlog")
	v.SetDefault("app.siteurl", "http://localhost:8080")
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.path", "logs/go_gin.log")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "aiblog")
	v.SetDefault("database.sqlitepath", "data/aiblog.db")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxagedays", 7)
	v.SetDefault("geo.remoteapi", true)
	v.SetDefault("geo.remoteapiurl", "https://api.cloudcpp.com/ip/")
	v.SetDefault("forms.cooldownsec", 10)
	v.SetDefault("forms.maxperipperday", 20)
}

func bindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"app.port":               "APP_PORT",
		"app.jwtsecret":          "JWT_SECRET",
		"app.jwtttlhours":        "JWT_TTL_HOURS",
		"app.ratelimitperminute": "RATE_LIMIT_PER_MINUTE",
		"app.allowedorigins":     "CORS_ALLOWED_ORIGINS",
		"app.sitename":           "SITE_NAME",
		"app.siteurl":            "SITE_URL",
		"gin.mode":               "GIN_MODE",
		"gin.path":               "GIN_PATH",
		"database.driver":        "DB_DRIVER",
		"database.uri":           "DATABASE_URI",
		"database.host":          "DB_HOST",
		"database.port":          "DB_PORT",
		"database.user":          "DB_USER",
		"database.password":      "DB_PASSWORD",
		"database.name":          "DB_NAME",
		"database.sqlitepath":    "SQLITE_PATH",
		"redis.host":             "REDIS_HOST",
		"redis.port":             "REDIS_PORT",
		"redis.db":               "REDIS_DB",
		"redis.password":         "REDIS_PASSWORD",
		"smtp.host":              "SMTP_HOST",
		"smtp.port":              "SMTP_PORT",
		"smtp.username":          "SMTP_USERNAME",
		"smtp.password":          "SMTP_PASSWORD",
		"smtp.from":              "SMTP_FROM",
		"smtp.fromname":          "SMTP_FROM_NAME",
		"smtp.tls":               "SMTP_TLS",
		"log.level":              "LOG_LEVEL",
		"log.path":               "LOG_PATH",
		"log.maxsizemb":          "LOG_MAX_SIZE_MB",
		"log.maxbackups":         "LOG_MAX_BACKUPS",
		"log.maxagedays":         "LOG_MAX_AGE_DAYS",
		"log.compress":           "LOG_COMPRESS",
		"geo.dbpath":             "GEOIP_DB_PATH",
		"geo.remoteapi":          "GEO_REMOTE_API",
		"geo.remoteapiurl":       "GEO_REMOTE_API_URL",
		"forms.cooldownsec":      "FORM_COOLDOWN_SEC",
		"forms.maxperipperday":   "FORM_MAX_PER_IP_PER_DAY",
		"forms.notifyemail":      "CONTACT_NOTIFY_EMAIL",
		"admin.usernames":        "ADMIN_USERNAMES",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

func fromViper(v *viper.Viper) AppConfig {
	return AppConfig{
		AppPort:            v.GetString("app.port"),
		JWTSecret:          v.GetString("app.jwtsecret"),
		JWTTTLHours:        v.GetInt("app.jwtttlhours"),
		RateLimitPerMinute: v.GetInt("app.ratelimitperminute"),
		AllowedOrigins:     readList(v, "app.allowedorigins"),
		SiteName:           v.GetString("app.sitename"),
		SiteURL:            strings.TrimRight(v.GetString("app.siteurl"), "/"),
		DBDriver:           strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:        v.GetString("database.uri"),
		DBHost:             v.GetString("database.host"),
		DBPort:             v.GetString("database.port"),
		DBUser:             v.GetString("database.user"),
		DBPassword:         v.GetString("database.password"),
		DBName:             v.GetString("database.name"),
		SQLitePath:         v.GetString("database.sqlitepath"),
		GinMode:            v.GetString("gin.mode"),
		GinPath:            v.GetString("gin.path"),
		SMTPHost:           v.GetString("smtp.host"),
		SMTPPort:           v.GetInt("smtp.port"),
		SMTPUsername:       v.GetString("smtp.username"),
		SMTPPassword:       v.GetString("smtp.password"),
		SMTPFrom:           v.GetString("smtp.from"),
		SMTPFromName:       v.GetString("smtp.fromname"),
		SMTPTLS:            v.GetBool("smtp.tls"),
		RedisHost:          v.GetString("redis.host"),
		RedisPort:          v.GetInt("redis.port"),
		RedisDB:            v.GetInt("redis.db"),
		RedisPassword:      v.GetString("redis.password"),
		LogLevel:           v.GetString("log.level"),
		LogPath:            v.GetString("log.path"),
		LogMaxSizeMB:       v.GetInt("log.maxsizemb"),
		LogMaxBackups:      v.GetInt("log.maxbackups"),
		LogMaxAgeDays:      v.GetInt("log.maxagedays"),
		LogCompress:        v.GetBool("log.compress"),
		GeoIPDBPath:        v.GetString("geo.dbpath"),
		GeoRemoteAPI:       v.GetBool("geo.remoteapi"),
		GeoRemoteAPIURL:    v.GetString("geo.remoteapiurl"),
		FormCooldownSec:    v.GetInt("forms.cooldownsec"),
		FormMaxPerIPPerDay: v.GetInt("forms.maxperipperday"),
		ContactNotifyEmail: v.GetString("forms.notifyemail"),
		AdminUsernames:     readList(v, "admin.usernames"),
	}
}

// readList accepts both JSON arrays and comma separated environment values.
func readList(v *viper.Viper, key string) []string {
	raw := v.GetStringSlice(key)
	items := []string{}
	for _, entry := range raw {
		for _, item := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}
