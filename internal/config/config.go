package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config хранит настройки сайта: адрес HTTP-сервера, доступ к Supabase,
// ключи EmailJS и интервал фонового обновления кэша.
type Config struct {
	ListenAddr      string   `json:"listen_addr" env:"SITE_LISTEN_ADDR"`
	DatabaseURL     string   `json:"database_url" env:"SITE_DATABASE_URL"`
	RefreshInterval int      `json:"refresh_interval" env:"SITE_REFRESH_INTERVAL"`
	Supabase        Supabase `json:"supabase" envPrefix:"SITE_SUPABASE_"`
	EmailJS         EmailJS  `json:"emailjs" envPrefix:"SITE_EMAILJS_"`
	ContactAddress  string   `json:"contact_address" env:"SITE_CONTACT_ADDRESS"`
	SecureCookies   bool     `json:"secure_cookies" env:"SITE_SECURE_COOKIES"`
}

// Supabase описывает проект Supabase: REST-адрес, ключи и бакет хранилища.
type Supabase struct {
	URL        string `json:"url" env:"URL"`
	AnonKey    string `json:"anon_key" env:"ANON_KEY"`
	ServiceKey string `json:"service_key" env:"SERVICE_KEY"`
	JWTSecret  string `json:"jwt_secret" env:"JWT_SECRET"`
	Bucket     string `json:"bucket" env:"BUCKET"`
}

// EmailJS описывает сервис и шаблон для отправки контактной формы.
type EmailJS struct {
	URL        string `json:"url" env:"URL"`
	ServiceID  string `json:"service_id" env:"SERVICE_ID"`
	TemplateID string `json:"template_id" env:"TEMPLATE_ID"`
	PublicKey  string `json:"public_key" env:"PUBLIC_KEY"`
	PrivateKey string `json:"private_key" env:"PRIVATE_KEY"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		RefreshInterval: 15,
		ContactAddress:  "csmatoea@gmail.com",
		Supabase:        Supabase{Bucket: "ImageStorage"},
		EmailJS:         EmailJS{URL: "https://api.emailjs.com"},
	}
}

// Validate проверяет обязательные поля, URL и интервал обновления (не меньше 5 минут).
func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database url is required")
	}
	if cfg.RefreshInterval < 5 {
		return errors.New("refresh interval must be ≥ 5 minutes")
	}
	for name, u := range map[string]string{
		"supabase url": cfg.Supabase.URL,
		"emailjs url":  cfg.EmailJS.URL,
	} {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid %s: %q", name, u)
		}
	}
	required := []struct{ name, value string }{
		{"supabase anon key", cfg.Supabase.AnonKey},
		{"supabase service key", cfg.Supabase.ServiceKey},
		{"supabase jwt secret", cfg.Supabase.JWTSecret},
		{"supabase bucket", cfg.Supabase.Bucket},
		{"emailjs service id", cfg.EmailJS.ServiceID},
		{"emailjs template id", cfg.EmailJS.TemplateID},
		{"emailjs public key", cfg.EmailJS.PublicKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if _, err := mail.ParseAddress(cfg.ContactAddress); err != nil {
		return fmt.Errorf("invalid contact address: %q", cfg.ContactAddress)
	}
	return nil
}

// LoadConfig читает JSON-файл по пути path поверх значений по умолчанию.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load читает файл path (если он существует) и накладывает переменные окружения SITE_*.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
