package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	PubSub  PubSubConfig
	Speech  SpeechConfig
	Session SessionConfig
	Storage StorageConfig
	AI      AIConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	pubsub, err := loadPubSubConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		PubSub:  pubsub,
		Speech:  speech,
		Session: session,
		Storage: storage,
		AI:      ai,
		Log:     logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// PubSubConfig 描述实时消息通道（Web PubSub）配置。
type PubSubConfig struct {
	ConnectionString string
	Endpoint         string
	AccessKey        string
	Hub              string
	ClientURL        string
	UserID           string
	Groups           []string
	TokenTTL         time.Duration
	AckTimeout       time.Duration
}

// Enabled 表示是否具备建立连接所需的信息。
func (c PubSubConfig) Enabled() bool {
	if c.ClientURL != "" {
		return true
	}
	return c.Endpoint != "" && c.AccessKey != "" && c.Hub != ""
}

// SendGroup 返回发送转写文本的共享分组，即配置中的第一个分组。
func (c PubSubConfig) SendGroup() string {
	if len(c.Groups) == 0 {
		return ""
	}
	return c.Groups[0]
}

func loadPubSubConfig() (PubSubConfig, error) {
	ttl, err := parseDurationEnv("WEBPUBSUB_TOKEN_TTL", time.Hour)
	if err != nil {
		return PubSubConfig{}, err
	}

	ackTimeout, err := parseDurationEnv("WEBPUBSUB_ACK_TIMEOUT", 10*time.Second)
	if err != nil {
		return PubSubConfig{}, err
	}

	cfg := PubSubConfig{
		ConnectionString: strings.TrimSpace(os.Getenv("WEBPUBSUB_CONNECTION_STRING")),
		Endpoint:         strings.TrimSpace(os.Getenv("WEBPUBSUB_ENDPOINT")),
		AccessKey:        strings.TrimSpace(os.Getenv("WEBPUBSUB_ACCESS_KEY")),
		Hub:              getEnvOrDefault("WEBPUBSUB_HUB", "voice_assistant"),
		ClientURL:        strings.TrimSpace(os.Getenv("WEBPUBSUB_CLIENT_URL")),
		UserID:           getEnvOrDefault("WEBPUBSUB_USER_ID", "voice-user"),
		Groups:           parseListEnv("WEBPUBSUB_GROUPS", []string{"voice-chat"}),
		TokenTTL:         ttl,
		AckTimeout:       ackTimeout,
	}

	// 连接字符串优先级低于显式配置的 endpoint / key。
	if cfg.ConnectionString != "" {
		endpoint, key, err := ParseConnectionString(cfg.ConnectionString)
		if err != nil {
			return PubSubConfig{}, err
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = endpoint
		}
		if cfg.AccessKey == "" {
			cfg.AccessKey = key
		}
	}

	return cfg, nil
}

// ParseConnectionString 解析 "Endpoint=https://...;AccessKey=...;Version=1.0;" 形式的连接字符串。
func ParseConnectionString(raw string) (endpoint, accessKey string, err error) {
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return "", "", fmt.Errorf("invalid connection string segment %q", part)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "endpoint":
			endpoint = strings.TrimRight(strings.TrimSpace(value), "/")
		case "accesskey":
			accessKey = strings.TrimSpace(value)
		}
	}

	if endpoint == "" || accessKey == "" {
		return "", "", fmt.Errorf("connection string requires Endpoint and AccessKey")
	}
	return endpoint, accessKey, nil
}

// SpeechConfig 描述语音合成相关配置。
type SpeechConfig struct {
	Key          string
	Region       string
	Endpoint     string
	Voice        string
	Style        string
	StyleDegree  float64
	Language     string
	OutputFormat string
	Player       string
	LocalEngine  string
	Rate         float64
	Pitch        float64
	Volume       float64
	Timeout      time.Duration
}

// CloudEnabled 表示是否提供了云端合成所需的密钥。
func (c SpeechConfig) CloudEnabled() bool {
	return c.Key != "" && (c.Region != "" || c.Endpoint != "")
}

func loadSpeechConfig() (SpeechConfig, error) {
	degree, err := parseFloatEnv("SPEECH_STYLE_DEGREE", 1.3)
	if err != nil {
		return SpeechConfig{}, err
	}

	rate, err := parseFloatEnv("SPEECH_RATE", 1.0)
	if err != nil {
		return SpeechConfig{}, err
	}

	pitch, err := parseFloatEnv("SPEECH_PITCH", 1.0)
	if err != nil {
		return SpeechConfig{}, err
	}

	volume, err := parseFloatEnv("SPEECH_VOLUME", 1.0)
	if err != nil {
		return SpeechConfig{}, err
	}

	timeout, err := parseDurationEnv("SPEECH_TIMEOUT", 30*time.Second)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		Key:          strings.TrimSpace(os.Getenv("AZURE_SPEECH_KEY")),
		Region:       strings.TrimSpace(os.Getenv("AZURE_SPEECH_REGION")),
		Endpoint:     strings.TrimSpace(os.Getenv("AZURE_SPEECH_ENDPOINT")),
		Voice:        getEnvOrDefault("SPEECH_VOICE", "en-US-JennyNeural"),
		Style:        getEnvOrDefault("SPEECH_STYLE", "friendly"),
		StyleDegree:  degree,
		Language:     getEnvOrDefault("SPEECH_LANGUAGE", "en-US"),
		OutputFormat: getEnvOrDefault("SPEECH_OUTPUT_FORMAT", "audio-24khz-48kbitrate-mono-mp3"),
		Player:       strings.TrimSpace(os.Getenv("SPEECH_PLAYER")),
		LocalEngine:  getEnvOrDefault("SPEECH_LOCAL_ENGINE", "auto"),
		Rate:         rate,
		Pitch:        pitch,
		Volume:       volume,
		Timeout:      timeout,
	}, nil
}

// SessionConfig 描述会话协调器的时间窗口。
type SessionConfig struct {
	DedupWindow     time.Duration
	EchoWindow      time.Duration
	ConnectionGrace time.Duration
	RestartDelay    time.Duration
	ReconnectDelay  time.Duration
	CaptureLanguage string
	AutoConnect     bool
}

func loadSessionConfig() (SessionConfig, error) {
	dedup, err := parseDurationEnv("SESSION_DEDUP_WINDOW", 2*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	echo, err := parseDurationEnv("SESSION_ECHO_WINDOW", 10*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	grace, err := parseDurationEnv("SESSION_CONNECTION_GRACE", 5*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	restart, err := parseDurationEnv("CAPTURE_RESTART_DELAY", 300*time.Millisecond)
	if err != nil {
		return SessionConfig{}, err
	}

	reconnect, err := parseDurationEnv("SESSION_RECONNECT_DELAY", time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	autoConnect, err := parseBoolEnv("SESSION_AUTO_CONNECT", true)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		DedupWindow:     dedup,
		EchoWindow:      echo,
		ConnectionGrace: grace,
		RestartDelay:    restart,
		ReconnectDelay:  reconnect,
		CaptureLanguage: getEnvOrDefault("CAPTURE_LANGUAGE", "en-US"),
		AutoConnect:     autoConnect,
	}, nil
}

// StorageConfig 描述消息日志与偏好设置的持久化后端。
type StorageConfig struct {
	Driver        string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

func loadStorageConfig() (StorageConfig, error) {
	redisDB := 0
	if override, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return StorageConfig{}, err
	} else if override != nil {
		redisDB = *override
	}

	driver := strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", "sqlite"))
	switch driver {
	case "sqlite", "redis", "memory":
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER value: %q", driver)
	}

	return StorageConfig{
		Driver:        driver,
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", "data/voicelink.db"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:       redisDB,
		KeyPrefix:     getEnvOrDefault("STORAGE_KEY_PREFIX", "voicelink:"),
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey           string
	AccessKey        string
	SecretKey        string
	Model            string
	BaseURL          string
	Region           string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	AssistantEnabled bool
	AssistantUserID  string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	assistant, err := parseBoolEnv("ASSISTANT_ENABLED", false)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:           strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:        strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:        strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:            strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:          getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:           getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:      temperature,
		TopP:             topP,
		MaxTokens:        maxTokens,
		AssistantEnabled: assistant,
		AssistantUserID:  getEnvOrDefault("ASSISTANT_USER_ID", "voice-assistant-bot"),
	}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level   string
	Console bool
	File    string
}

func loadLogConfig() (LogConfig, error) {
	console, err := parseBoolEnv("LOG_CONSOLE", true)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{
		Level:   getEnvOrDefault("LOG_LEVEL", "info"),
		Console: console,
		File:    strings.TrimSpace(os.Getenv("LOG_FILE")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return items
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
