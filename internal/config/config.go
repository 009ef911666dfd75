package config

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Port    int    `yaml:"port" json:"port"`
	Debug   bool   `yaml:"debug" json:"debug"`
	LogFile string `yaml:"log_file" json:"log_file"`
}

// ServicesConfig holds upstream endpoints and gateway behavior.
type ServicesConfig struct {
	GeminiBaseURL      string `yaml:"gemini_base_url" json:"gemini_base_url"`
	VertexBaseURL      string `yaml:"vertex_base_url" json:"vertex_base_url"`
	MaxRetries         int    `yaml:"max_retries" json:"max_retries"`
	RetryStatuses      []int  `yaml:"retry_statuses" json:"retry_statuses"`
	StoreRequestBodies bool   `yaml:"store_request_bodies" json:"store_request_bodies"`
	DatabaseURL        string `yaml:"database_url" json:"database_url"`
}

// SecurityConfig holds client access control and admin credentials.
type SecurityConfig struct {
	AdminUsername     string   `yaml:"admin_username" json:"admin_username"`
	AdminPasswordHash string   `yaml:"admin_password_hash" json:"admin_password_hash"`
	AllowedClientIPs  []string `yaml:"allowed_client_ips" json:"allowed_client_ips"`
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
	CORSOrigins       []string `yaml:"cors_origins" json:"cors_origins"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	CredsRoot         string `yaml:"creds_root" json:"creds_root"`
	EncryptionKeyFile string `yaml:"encryption_key_file" json:"encryption_key_file"`
}

// LROConfig selects the affinity cache backend.
type LROConfig struct {
	Backend       string `yaml:"backend" json:"backend"` // memory | redis
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	TTLHours      int    `yaml:"ttl_hours" json:"ttl_hours"`
	MaxEntries    int    `yaml:"max_entries" json:"max_entries"`
}

// Config is the root configuration, grouped by functional domain.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Services ServicesConfig `yaml:"services" json:"services"`
	Security SecurityConfig `yaml:"security" json:"security"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	LRO      LROConfig      `yaml:"lro" json:"lro"`
}

// GeminiKeysFile is the Gemini key list location under the creds root.
func (p PathsConfig) GeminiKeysFile() string {
	return p.GeminiCredsDir() + "/api_keys.json"
}

// GeminiCredsDir is the Gemini credential directory under the creds root.
func (p PathsConfig) GeminiCredsDir() string {
	return p.CredsRoot + "/gemini"
}

// VertexCredsDir is the Vertex service-account directory under the creds root.
func (p PathsConfig) VertexCredsDir() string {
	return p.CredsRoot + "/vertex"
}
