package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Providers ProvidersConfig
	Limits    LimitsConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis 配置，用于账户级同步互斥锁
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Type      string // local, minio
	BasePath  string // local 存储根目录
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ProvidersConfig 外部数据源 OAuth 配置
type ProvidersConfig struct {
	Dropbox DropboxConfig
	Google  GoogleConfig
}

// DropboxConfig Dropbox 应用配置
type DropboxConfig struct {
	AppKey    string
	AppSecret string
}

// GoogleConfig Google OAuth 配置，Drive 和 Gmail 共用
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// LimitsConfig 摄取限制与同步列举筛选
type LimitsConfig struct {
	MaxFilesPerSync           int
	MaxFilesPerUpload         int
	MaxFileSizeSync           int64 // 同步下载的单文件大小上限（字节）
	GmailMaxMessages          int
	GmailDaysBack             int
	SyncIncludeExtensions     []string
	SyncExcludeExtensions     []string
	SyncFolderPrefixes        []string
	SyncExcludeFolderPrefixes []string
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			// 配置文件缺失时用默认值和环境变量运行
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// 环境变量
	v.SetEnvPrefix("KNOWLEDGE_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "knowledge-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "knowledge_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.basePath", "./data/files")
	v.SetDefault("storage.bucket", "knowledge-files")
	v.SetDefault("storage.useSSL", false)

	// Limits
	v.SetDefault("limits.maxFilesPerSync", 10)
	v.SetDefault("limits.maxFilesPerUpload", 20)
	v.SetDefault("limits.maxFileSizeSync", 50*1024*1024)
	v.SetDefault("limits.gmailMaxMessages", 50)
	v.SetDefault("limits.gmailDaysBack", 90)
	v.SetDefault("limits.syncIncludeExtensions",
		[]string{"pdf", "doc", "docx", "txt", "md", "json", "csv"})
	v.SetDefault("limits.syncExcludeExtensions", []string{})
	v.SetDefault("limits.syncFolderPrefixes", []string{})
	v.SetDefault("limits.syncExcludeFolderPrefixes", []string{})
}
