package config

import "time"

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	SupportURL     string   `env:"SUPPORT_URL" envDefault:"https://vestilook.app/support"`

	SupabaseConnString string `env:"SUPABASE_CONNECTION_STRING,required,notEmpty"`
	RedisURL           string `env:"REDIS_URL"`

	Auth       AuthConfig
	Storage    StorageConfig
	Vertex     VertexConfig
	Garment    ImageConfig `envPrefix:"GARMENT_"`
	Persona    PersonaConfig
	Quota      QuotaConfig
	Generation GenerationConfig
	Consent    ConsentConfig
	Worker     WorkerConfig
	Scheduler  SchedulerConfig
	RateLimit  RateLimitConfig
}

type AuthConfig struct {
	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"authenticated"`
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`
	LoginPath     string `env:"LOGIN_PATH" envDefault:"/auth/login"`
}

type StorageConfig struct {
	Endpoint        string        `env:"STORAGE_ENDPOINT"`
	Region          string        `env:"STORAGE_REGION" envDefault:"us-east-1"`
	AccessKey       string        `env:"STORAGE_ACCESS_KEY"`
	SecretKey       string        `env:"STORAGE_SECRET_KEY"`
	PersonaBucket   string        `env:"STORAGE_BUCKET_PERSONAS" envDefault:"personas"`
	GarmentBucket   string        `env:"STORAGE_BUCKET_GARMENTS" envDefault:"garments"`
	ResultBucket    string        `env:"STORAGE_BUCKET_RESULTS" envDefault:"results"`
	SignedURLTTL    time.Duration `env:"SIGNED_URL_TTL" envDefault:"60s"`
	SignedURLFresh  time.Duration `env:"SIGNED_URL_CACHE_TTL" envDefault:"60s"`
	ConnectAttempts int           `env:"STORAGE_CONNECT_ATTEMPTS" envDefault:"5"`
}

type VertexConfig struct {
	Endpoint    string        `env:"VERTEX_ENDPOINT"`
	AccessToken string        `env:"VERTEX_ACCESS_TOKEN"`
	RateLimit   float64       `env:"VERTEX_RATE_LIMIT" envDefault:"5"`
	Timeout     time.Duration `env:"VERTEX_TIMEOUT" envDefault:"120s"`
}

type ImageConfig struct {
	MinWidth     int      `env:"MIN_WIDTH" envDefault:"1024"`
	MinHeight    int      `env:"MIN_HEIGHT" envDefault:"1024"`
	MaxBytes     int64    `env:"MAX_BYTES" envDefault:"10485760"`
	MaxPixels    int      `env:"MAX_PIXELS" envDefault:"36000000"`
	AllowedTypes []string `env:"ALLOWED_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/webp"`
}

type PersonaConfig struct {
	MinWidth     int      `env:"PERSONA_MIN_WIDTH" envDefault:"512"`
	MinHeight    int      `env:"PERSONA_MIN_HEIGHT" envDefault:"512"`
	MaxBytes     int64    `env:"PERSONA_MAX_BYTES" envDefault:"10485760"`
	MaxPixels    int      `env:"PERSONA_MAX_PIXELS" envDefault:"36000000"`
	AllowedTypes []string `env:"PERSONA_ALLOWED_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/webp"`
}

type QuotaConfig struct {
	FreeTotal     int           `env:"QUOTA_FREE_TOTAL" envDefault:"5"`
	RenewalPeriod time.Duration `env:"QUOTA_RENEWAL_PERIOD" envDefault:"720h"`
}

type GenerationConfig struct {
	ETASeconds         int `env:"VTON_ETA_SECONDS" envDefault:"45"`
	DefaultRetainHours int `env:"VTON_DEFAULT_RETAIN_HOURS" envDefault:"72"`
	MaxRetainHours     int `env:"VTON_MAX_RETAIN_HOURS" envDefault:"168"`
}

type ConsentConfig struct {
	PolicyPath string `env:"CONSENT_POLICY_PATH" envDefault:"./policy/consent.md"`
	PolicyURL  string `env:"CONSENT_POLICY_URL"`
}

type WorkerConfig struct {
	Concurrency  int      `env:"WORKER_CONCURRENCY" envDefault:"2"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"vton.generations"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"vestilook-workers"`
}

type SchedulerConfig struct {
	PurgeSchedule        string `env:"PURGE_SCHEDULE" envDefault:"@every 15m"`
	QuotaRenewalSchedule string `env:"QUOTA_RENEWAL_SCHEDULE" envDefault:"@hourly"`
	StaleSweepSchedule   string `env:"STALE_SWEEP_SCHEDULE" envDefault:"@every 5m"`
}

type RateLimitConfig struct {
	Generations string `env:"RATE_LIMIT_GENERATIONS" envDefault:"10-M"`
}
