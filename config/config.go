package config

import (
	"log"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults here and must come from config.yaml, .env or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	OAuthRedirectBase  string
	PublicBaseURL      string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Document store: "mongo" (default), "mysql" or "memory"
	DBDriver      string
	MongoURI      string
	MongoDatabase string
	DatabaseURI   string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	// Redis for caching/verification; empty host keeps everything in memory
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Object storage: "minio" or "aliyun"
	StorageProvider  string
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	UploadMaxMB      int
	// SMS gateway: "aliyun" or "log"
	SMSProvider          string
	SMSRegion            string
	SMSAccessKeyID       string
	SMSAccessKeySecret   string
	SMSSignName          string
	SMSTemplateCode      string
	PhoneCodeTTLSeconds  int
	PhoneCodeCooldownSec int
	PhoneCodeMaxPerDay   int
	PhoneCodeMaxAttempts int
	// Mail relay: "sendgrid" or "smtp"
	MailProvider     string
	SendGridAPIKey   string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPTLS          bool
	MailFrom         string
	MailFromName     string
	ContactRecipient string
	// OAuth
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Registration security
	RegisterCaptchaEnabled        bool
	RegisterMaxPerIPPerDay        int
	RegisterAttemptCooldownSec    int
	RegisterFailedMaxPerIPPerHour int
	RegisterTempBanMinutes        int
	// Admins
	AdminEmails []string
	// Site
	SiteName        string
	SiteTagline     string
	FooterAddress   string
	FooterPhone     string
	FooterEmail     string
	NoticeTitle     string
	NoticeHTML      string
	AboutHeading    string
	AboutActivities []string
}

var (
	mu     sync.RWMutex
	cfg    AppConfig
	loaded bool
)

// Load reads config/config.yaml, .env and the environment. It should be called once during boot.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	// Precedence: defaults -> config/config.yaml -> .env -> environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("invalid config file: %v", err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = fromViper(v)
	if cfg.JWTSecret == "" {
		log.Fatal("APP_JWTSECRET (app.jwtsecret) must be set")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		c := cfg
		mu.RUnlock()
		return c
	}
	mu.RUnlock()
	return Load()
}

// Set replaces the active configuration. Zero values are filled with defaults.
func Set(c AppConfig) {
	applyDefaults(&c)
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.tokenttlhours", 72)
	v.SetDefault("app.ratelimitperminute", 60)
	v.SetDefault("app.allowedorigins", "*")
	v.SetDefault("app.oauthredirectbase", "http://localhost:8080")
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.path", "logs/go_gin.log")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.mongouri", "mongodb://127.0.0.1:27017")
	v.SetDefault("database.mongodatabase", "eduboard")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "eduboard")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("storage.provider", "minio")
	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.bucket", "eduboard")
	v.SetDefault("storage.uploadmaxmb", 50)
	v.SetDefault("sms.provider", "log")
	v.SetDefault("sms.region", "cn-hangzhou")
	v.SetDefault("sms.codettlseconds", 300)
	v.SetDefault("sms.cooldownsec", 60)
	v.SetDefault("sms.maxperday", 10)
	v.SetDefault("sms.maxattempts", 5)
	v.SetDefault("mail.provider", "smtp")
	v.SetDefault("mail.smtpport", 587)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxagedays", 7)
	v.SetDefault("register.captchaenabled", true)
	v.SetDefault("register.maxperipperday", 5)
	v.SetDefault("register.attemptcooldownsec", 10)
	v.SetDefault("register.failedmaxperipperhour", 20)
	v.SetDefault("register.tempbanminutes", 60)
}

func fromViper(v *viper.Viper) AppConfig {
	c := AppConfig{
		AppPort:            v.GetString("app.port"),
		JWTSecret:          v.GetString("app.jwtsecret"),
		TokenTTLHours:      v.GetInt("app.tokenttlhours"),
		RateLimitPerMinute: v.GetInt("app.ratelimitperminute"),
		AllowedOrigins:     stringList(v, "app.allowedorigins"),
		OAuthRedirectBase:  v.GetString("app.oauthredirectbase"),
		PublicBaseURL:      v.GetString("app.publicbaseurl"),

		GinMode: v.GetString("gin.mode"),
		GinPath: v.GetString("gin.path"),

		DBDriver:      strings.ToLower(v.GetString("database.driver")),
		MongoURI:      v.GetString("database.mongouri"),
		MongoDatabase: v.GetString("database.mongodatabase"),
		DatabaseURI:   v.GetString("database.uri"),
		DBHost:        v.GetString("database.host"),
		DBPort:        v.GetString("database.port"),
		DBUser:        v.GetString("database.user"),
		DBPassword:    v.GetString("database.password"),
		DBName:        v.GetString("database.name"),

		RedisHost:     v.GetString("redis.host"),
		RedisPort:     v.GetInt("redis.port"),
		RedisDB:       v.GetInt("redis.db"),
		RedisPassword: v.GetString("redis.password"),

		StorageProvider:  strings.ToLower(v.GetString("storage.provider")),
		StorageEndpoint:  v.GetString("storage.endpoint"),
		StorageAccessKey: v.GetString("storage.accesskey"),
		StorageSecretKey: v.GetString("storage.secretkey"),
		StorageBucket:    v.GetString("storage.bucket"),
		StorageUseSSL:    v.GetBool("storage.usessl"),
		UploadMaxMB:      v.GetInt("storage.uploadmaxmb"),

		SMSProvider:          strings.ToLower(v.GetString("sms.provider")),
		SMSRegion:            v.GetString("sms.region"),
		SMSAccessKeyID:       v.GetString("sms.accesskeyid"),
		SMSAccessKeySecret:   v.GetString("sms.accesskeysecret"),
		SMSSignName:          v.GetString("sms.signname"),
		SMSTemplateCode:      v.GetString("sms.templatecode"),
		PhoneCodeTTLSeconds:  v.GetInt("sms.codettlseconds"),
		PhoneCodeCooldownSec: v.GetInt("sms.cooldownsec"),
		PhoneCodeMaxPerDay:   v.GetInt("sms.maxperday"),
		PhoneCodeMaxAttempts: v.GetInt("sms.maxattempts"),

		MailProvider:     strings.ToLower(v.GetString("mail.provider")),
		SendGridAPIKey:   v.GetString("mail.sendgridapikey"),
		SMTPHost:         v.GetString("mail.smtphost"),
		SMTPPort:         v.GetInt("mail.smtpport"),
		SMTPUsername:     v.GetString("mail.smtpusername"),
		SMTPPassword:     v.GetString("mail.smtppassword"),
		SMTPTLS:          v.GetBool("mail.smtptls"),
		MailFrom:         v.GetString("mail.from"),
		MailFromName:     v.GetString("mail.fromname"),
		ContactRecipient: v.GetString("mail.contactrecipient"),

		GitHubClientID:     v.GetString("oauth.githubclientid"),
		GitHubClientSecret: v.GetString("oauth.githubclientsecret"),
		GoogleClientID:     v.GetString("oauth.googleclientid"),
		GoogleClientSecret: v.GetString("oauth.googleclientsecret"),

		LogLevel:      v.GetString("log.level"),
		LogPath:       v.GetString("log.path"),
		LogMaxSizeMB:  v.GetInt("log.maxsizemb"),
		LogMaxBackups: v.GetInt("log.maxbackups"),
		LogMaxAgeDays: v.GetInt("log.maxagedays"),
		LogCompress:   v.GetBool("log.compress"),

		RegisterCaptchaEnabled:        v.GetBool("register.captchaenabled"),
		RegisterMaxPerIPPerDay:        v.GetInt("register.maxperipperday"),
		RegisterAttemptCooldownSec:    v.GetInt("register.attemptcooldownsec"),
		RegisterFailedMaxPerIPPerHour: v.GetInt("register.failedmaxperipperhour"),
		RegisterTempBanMinutes:        v.GetInt("register.tempbanminutes"),

		AdminEmails: stringList(v, "admin.emails"),

		SiteName:        v.GetString("site.name"),
		SiteTagline:     v.GetString("site.tagline"),
		FooterAddress:   v.GetString("site.footeraddress"),
		FooterPhone:     v.GetString("site.footerphone"),
		FooterEmail:     v.GetString("site.footeremail"),
		NoticeTitle:     v.GetString("site.noticetitle"),
		NoticeHTML:      v.GetString("site.noticehtml"),
		AboutHeading:    v.GetString("site.aboutheading"),
		AboutActivities: stringList(v, "site.aboutactivities"),
	}
	applyDefaults(&c)
	return c
}

// applyDefaults fills values that viper defaults cannot express (lists, derived values).
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mongo"
	}
	if c.UploadMaxMB == 0 {
		c.UploadMaxMB = 50
	}
	if c.PhoneCodeTTLSeconds == 0 {
		c.PhoneCodeTTLSeconds = 300
	}
	if c.PhoneCodeCooldownSec == 0 {
		c.PhoneCodeCooldownSec = 60
	}
	if c.PhoneCodeMaxPerDay == 0 {
		c.PhoneCodeMaxPerDay = 10
	}
	if c.PhoneCodeMaxAttempts == 0 {
		c.PhoneCodeMaxAttempts = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.AdminEmails) == 0 {
		c.AdminEmails = []string{"admin@teachers.example.org"}
	}
	if c.ContactRecipient == "" {
		c.ContactRecipient = c.AdminEmails[0]
	}
	if c.SiteName == "" {
		c.SiteName = "Teachers' Association"
	}
	if c.NoticeTitle == "" {
		c.NoticeTitle = "Notice"
	}
	if c.AboutHeading == "" {
		c.AboutHeading = "About the Association"
	}
	if len(c.AboutActivities) == 0 {
		c.AboutActivities = []string{
			"Professional development workshops for member teachers",
			"Sharing of teaching materials and lesson plans",
			"Job posting board for schools and educators",
			"Advocacy for teachers' working conditions",
			"Community events and regional meetups",
		}
	}
}

// stringList reads a list from yaml (sequence) or env (comma separated).
func stringList(v *viper.Viper, key string) []string {
	switch t := v.Get(key).(type) {
	case nil:
		return nil
	case string:
		return splitAndTrim(t)
	default:
		var items []string
		for _, s := range v.GetStringSlice(key) {
			items = append(items, splitAndTrim(s)...)
		}
		return items
	}
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// IsAdminEmail reports whether the email is on the admin allow-list.
func IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, a := range Get().AdminEmails {
		if strings.ToLower(a) == email {
			return true
		}
	}
	return false
}
