package config

import (
	"fmt"
	"time"
)

// AppConfig is the root configuration tree. go-config hydrates it from
// config files and environment overrides.
type AppConfig struct {
	Server      Server      `json:"server" koanf:"server"`
	Auth        Auth        `json:"auth" koanf:"auth"`
	Persistence Persistence `json:"persistence" koanf:"persistence"`
	Redis       Redis       `json:"redis" koanf:"redis"`
	SMTP        SMTP        `json:"smtp" koanf:"smtp"`
}

func (a AppConfig) Validate() error {
	if a.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	return nil
}

func (a *AppConfig) GetServer() *Server           { return &a.Server }
func (a *AppConfig) GetAuth() *Auth               { return &a.Auth }
func (a *AppConfig) GetPersistence() *Persistence { return &a.Persistence }
func (a *AppConfig) GetRedis() *Redis             { return &a.Redis }
func (a *AppConfig) GetSMTP() *SMTP               { return &a.SMTP }

type Server struct {
	Address string `json:"address" koanf:"address"`
}

func (s Server) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

// Auth implements the config surface the session and token layers consume.
type Auth struct {
	SigningKey                  string `json:"signing_key" koanf:"signing_key"`
	Issuer                      string `json:"issuer" koanf:"issuer"`
	BaseURL                     string `json:"base_url" koanf:"base_url"`
	AccessTokenExpression       string `json:"access_token_ttl" koanf:"access_token_ttl"`
	RefreshTokenExpression      string `json:"refresh_token_ttl" koanf:"refresh_token_ttl"`
	ConfirmationTokenExpression string `json:"confirmation_token_ttl" koanf:"confirmation_token_ttl"`
	IdentityCacheExpression     string `json:"identity_cache_ttl" koanf:"identity_cache_ttl"`
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetIssuer() string {
	if a.Issuer == "" {
		return "contacts"
	}
	return a.Issuer
}

func (a Auth) GetBaseURL() string {
	if a.BaseURL == "" {
		return "http://localhost:8080"
	}
	return a.BaseURL
}

func (a Auth) GetAccessTokenTTL() time.Duration {
	return parseExpression(a.AccessTokenExpression, 15*time.Minute)
}

func (a Auth) GetRefreshTokenTTL() time.Duration {
	return parseExpression(a.RefreshTokenExpression, 7*24*time.Hour)
}

func (a Auth) GetConfirmationTokenTTL() time.Duration {
	return parseExpression(a.ConfirmationTokenExpression, 7*24*time.Hour)
}

func (a Auth) GetIdentityCacheTTL() time.Duration {
	return parseExpression(a.IdentityCacheExpression, 15*time.Minute)
}

type Persistence struct {
	Driver string `json:"driver" koanf:"driver"`
	DSN    string `json:"dsn" koanf:"dsn"`
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	if p.DSN == "" {
		return "file:contacts.db?cache=shared&_pragma=foreign_keys(1)"
	}
	return p.DSN
}

type Redis struct {
	Addr     string `json:"addr" koanf:"addr"`
	Password string `json:"password" koanf:"password"`
	DB       int    `json:"db" koanf:"db"`
}

func (r Redis) GetAddr() string {
	if r.Addr == "" {
		return "localhost:6379"
	}
	return r.Addr
}

type SMTP struct {
	Host     string `json:"host" koanf:"host"`
	Port     int    `json:"port" koanf:"port"`
	Username string `json:"username" koanf:"username"`
	Password string `json:"password" koanf:"password"`
	From     string `json:"from" koanf:"from"`
}

// Enabled reports whether a relay is configured; without one the server
// logs confirmation links instead of sending them.
func (s SMTP) Enabled() bool {
	return s.Host != ""
}

func (s SMTP) GetPort() int {
	if s.Port == 0 {
		return 587
	}
	return s.Port
}

func (s SMTP) GetFrom() string {
	if s.From == "" {
		return "no-reply@localhost"
	}
	return s.From
}

func parseExpression(expr string, def time.Duration) time.Duration {
	if expr == "" {
		return def
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(fmt.Sprintf("unable to parse time: expr %s", expr))
	}
	return dur
}
