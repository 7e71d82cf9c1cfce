package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env              string // DEV (local; default), TEST, QA, PROD
	Build            string
	AppName          string
	Debug            bool
	TestMode         bool
	WorkDir          string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	RollbarToken     string
	SendgridApiKey   string

	Server struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Auth struct {
		JWTSecret      string
		InternalAPIKey string
	}

	LiveKit struct {
		URL       string
		APIKey    string
		APISecret string
		TokenTTL  time.Duration
	}

	Agent struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}

	Completion struct {
		APIKey  string
		BaseURL string
		Model   string
		Timeout time.Duration
	}

	Session struct {
		RoomPrefix         string
		TranscriptAttempts int
		TranscriptDelay    time.Duration
		Timezone           string
	}

	Tutor struct {
		Name              string
		PersonalityPrompt string
		VoiceModel        string
		TTSSpeed          string
	}
}

// NewConfig loads the configuration for the current ENV.
// Values are looked up (by priority) in: env vars prefixed with the ENV, config/.env.<env>, defaults.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		WorkDir:         workDir,
		FrontendBaseURL: v.GetString("frontendBaseUrl"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
	}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Auth.JWTSecret = v.GetString("auth.jwtSecret")
	conf.Auth.InternalAPIKey = v.GetString("auth.internalApiKey")

	conf.LiveKit.URL = v.GetString("livekit.url")
	conf.LiveKit.APIKey = v.GetString("livekit.apiKey")
	conf.LiveKit.APISecret = v.GetString("livekit.apiSecret")
	conf.LiveKit.TokenTTL = v.GetDuration("livekit.tokenTtl")

	conf.Agent.BaseURL = strings.TrimRight(v.GetString("agent.baseUrl"), "/")
	conf.Agent.APIKey = v.GetString("agent.apiKey")
	conf.Agent.Timeout = v.GetDuration("agent.timeout")

	conf.Completion.APIKey = v.GetString("completion.apiKey")
	conf.Completion.BaseURL = v.GetString("completion.baseUrl")
	conf.Completion.Model = v.GetString("completion.model")
	conf.Completion.Timeout = v.GetDuration("completion.timeout")

	conf.Session.RoomPrefix = v.GetString("session.roomPrefix")
	conf.Session.TranscriptAttempts = v.GetInt("session.transcriptAttempts")
	conf.Session.TranscriptDelay = v.GetDuration("session.transcriptDelay")
	conf.Session.Timezone = v.GetString("session.timezone")

	conf.Tutor.Name = v.GetString("tutor.name")
	conf.Tutor.PersonalityPrompt = v.GetString("tutor.personalityPrompt")
	conf.Tutor.VoiceModel = v.GetString("tutor.voiceModel")
	conf.Tutor.TTSSpeed = v.GetString("tutor.ttsSpeed")

	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appName", "Director of Studies")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "dos")
	v.SetDefault("database.user", "dos")
	v.SetDefault("database.password", "dos")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("auth.jwtSecret", "s3cr3t-d0s-dev-0nly")
	v.SetDefault("auth.internalApiKey", "")

	v.SetDefault("livekit.url", "http://localhost:7880")
	v.SetDefault("livekit.apiKey", "devkey")
	v.SetDefault("livekit.apiSecret", "secret")
	v.SetDefault("livekit.tokenTtl", 2*time.Hour)

	v.SetDefault("agent.baseUrl", "http://localhost:8081")
	v.SetDefault("agent.apiKey", "")
	v.SetDefault("agent.timeout", 15*time.Second)

	v.SetDefault("completion.apiKey", "")
	v.SetDefault("completion.baseUrl", "")
	v.SetDefault("completion.model", "gpt-4o")
	v.SetDefault("completion.timeout", 60*time.Second)

	v.SetDefault("session.roomPrefix", "dos-")
	v.SetDefault("session.transcriptAttempts", 6)
	v.SetDefault("session.transcriptDelay", 400*time.Millisecond)
	v.SetDefault("session.timezone", "Local")

	v.SetDefault("tutor.name", "TutorBot")
	v.SetDefault("tutor.personalityPrompt", "Be warm, concise, and Socratic.")
	v.SetDefault("tutor.voiceModel", "aura-2-draco-en")
	v.SetDefault("tutor.ttsSpeed", "1.0")
}

func (conf *Config) Location() *time.Location {
	loc, err := time.LoadLocation(conf.Session.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (conf *Config) DatabaseAddress() string {
	return net.JoinHostPort(conf.Database.Host, conf.Database.Port)
}

// NewTestConfig returns a Config with defaults only, without reading the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)

	conf := &Config{
		Env:      "TEST",
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		TestMode: true,
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		FrontendBaseURL: v.GetString("frontendBaseUrl"),
	}
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Auth.JWTSecret = v.GetString("auth.jwtSecret")
	conf.Auth.InternalAPIKey = "internal-test-key"
	conf.Completion.Model = v.GetString("completion.model")
	conf.Session.RoomPrefix = v.GetString("session.roomPrefix")
	conf.Session.TranscriptAttempts = v.GetInt("session.transcriptAttempts")
	conf.Session.TranscriptDelay = v.GetDuration("session.transcriptDelay")
	conf.Session.Timezone = "UTC"
	conf.Tutor.Name = v.GetString("tutor.name")
	conf.Tutor.PersonalityPrompt = v.GetString("tutor.personalityPrompt")
	conf.Tutor.VoiceModel = v.GetString("tutor.voiceModel")
	conf.Tutor.TTSSpeed = v.GetString("tutor.ttsSpeed")
	return conf
}
