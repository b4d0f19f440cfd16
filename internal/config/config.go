package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	BlobSupabase = "supabase"
	BlobLocal    = "local"
)

// Generator: настройки cmd/gqlgen
type Generator struct {
	TypesPath string   `json:"typesPath" env:"GEN_TYPES"`
	OutDir    string   `json:"outDir"    env:"GEN_OUT"`
	Package   string   `json:"package"   env:"GEN_PACKAGE"`
	DBSchema  string   `json:"dbSchema"  env:"GEN_DB_SCHEMA"`
	Tables    []string `json:"tables"    env:"GEN_TABLES" envSeparator:","`
}

// Config собирается один раз при старте и передаётся компонентам явно.
// Порядок слоёв: def() → JSON → .env.<mode> → ENV → флаги.
type Config struct {
	Mode  string `json:"mode"  env:"APP_ENV"`
	Debug bool   `json:"debug" env:"DEBUG"`
	Port  string `json:"port"  env:"PORT"`

	SupabaseURL            string `json:"supabaseUrl"            env:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `json:"supabaseServiceRoleKey" env:"SUPABASE_SERVICE_ROLE_KEY"`
	HasuraEndpoint         string `json:"hasuraEndpoint"         env:"HASURA_ENDPOINT"`
	HasuraAdminSecret      string `json:"hasuraAdminSecret"      env:"HASURA_ADMIN_SECRET"`

	// таймаут HTTP-клиента внешних сервисов; в JSON не кладём, только ENV ("15s")
	UpstreamTimeout time.Duration `json:"-" env:"UPSTREAM_TIMEOUT"`

	UploadBucket   string   `json:"uploadBucket"   env:"UPLOAD_BUCKET"`
	MaxUploadBytes int64    `json:"maxUploadBytes" env:"MAX_UPLOAD_BYTES"`
	BodyLimitBytes int64    `json:"bodyLimitBytes" env:"BODY_LIMIT_BYTES"`
	PhoneRegion    string   `json:"phoneRegion"    env:"PHONE_REGION"`
	CORSOrigins    []string `json:"corsOrigins"    env:"CORS_ORIGINS" envSeparator:","`
	PublicDir      string   `json:"publicDir"      env:"PUBLIC_DIR"`

	// Файлы: supabase (storage-api) или local (диск, для разработки)
	BlobDriver    string `json:"blobDriver"    env:"BLOB_DRIVER"`
	FilesRoot     string `json:"filesRoot"     env:"FILES_ROOT"`
	PublicBaseURL string `json:"publicBaseUrl" env:"PUBLIC_BASE_URL"`

	// Postgres для интроспекции в генераторе (пусто: читаем файл описаний)
	DBURL string `json:"dbUrl" env:"DB_URL"`

	Generator Generator `json:"generator"`
}

func def() Config {
	return Config{
		Mode:  ModeDevelopment,
		Debug: true,
		Port:  "3000",

		UpstreamTimeout: 15 * time.Second,

		UploadBucket:   "uploads",
		MaxUploadBytes: 2 << 20,
		BodyLimitBytes: 10 << 20,
		PhoneRegion:    "AU",
		CORSOrigins:    []string{"*"},
		PublicDir:      "public",

		BlobDriver:    BlobSupabase,
		FilesRoot:     "uploads",
		PublicBaseURL: "http://localhost:3000",

		Generator: Generator{
			TypesPath: "gql/types.yaml",
			OutDir:    "gql/generated",
			Package:   "generated",
			DBSchema:  "public",
		},
	}
}

func loadJSON(path string, cfg *Config) (debugSet bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	var probe struct {
		Debug *bool `json:"debug"`
	}
	_ = json.Unmarshal(b, &probe)
	return probe.Debug != nil, nil
}

// flagValues: значения флагов; применяются только явно переданные
type flagValues struct {
	config, envFile, mode, port string
	debug                       bool
	blob, files, publicDir, db  string
	types, out, pkg, schema     string
	tables                      string
}

func bindFlags(set *flag.FlagSet) *flagValues {
	v := &flagValues{}
	set.StringVar(&v.config, "config", "config.json", "Path to config JSON")
	set.StringVar(&v.envFile, "env-file", "", "Path to dotenv file (default .env.<mode>)")
	set.StringVar(&v.mode, "mode", "", "Run mode (development/production)")
	set.StringVar(&v.port, "port", "", "HTTP port")
	set.BoolVar(&v.debug, "debug", false, "Debug logging")
	set.StringVar(&v.blob, "blob-driver", "", "Blob driver (supabase/local)")
	set.StringVar(&v.files, "files-root", "", "Local files root (if blob=local)")
	set.StringVar(&v.publicDir, "public", "", "Static files directory")
	set.StringVar(&v.db, "db", "", "Postgres URL for introspection")
	set.StringVar(&v.types, "types", "", "Entity descriptor file or directory")
	set.StringVar(&v.out, "out", "", "Output directory for generated files")
	set.StringVar(&v.pkg, "package", "", "Go package name of the typed module")
	set.StringVar(&v.schema, "schema", "", "Postgres schema to introspect")
	set.StringVar(&v.tables, "tables", "", "Comma separated tables to introspect (default all)")
	return v
}

func (v *flagValues) apply(set *flag.FlagSet, cfg *Config) {
	set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = strings.TrimSpace(v.mode)
		case "port":
			cfg.Port = strings.TrimSpace(v.port)
		case "debug":
			cfg.Debug = v.debug
		case "blob-driver":
			cfg.BlobDriver = strings.TrimSpace(v.blob)
		case "files-root":
			cfg.FilesRoot = strings.TrimSpace(v.files)
		case "public":
			cfg.PublicDir = strings.TrimSpace(v.publicDir)
		case "db":
			cfg.DBURL = strings.TrimSpace(v.db)
		case "types":
			cfg.Generator.TypesPath = strings.TrimSpace(v.types)
		case "out":
			cfg.Generator.OutDir = strings.TrimSpace(v.out)
		case "package":
			cfg.Generator.Package = strings.TrimSpace(v.pkg)
		case "schema":
			cfg.Generator.DBSchema = strings.TrimSpace(v.schema)
		case "tables":
			cfg.Generator.Tables = splitList(v.tables)
		}
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load регистрирует флаги в set, разбирает args и собирает конфиг по слоям.
// Лишние позиционные аргументы остаются в set.Args().
func Load(set *flag.FlagSet, args []string) (Config, error) {
	fv := bindFlags(set)
	if err := set.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def()

	// JSON (если файл существует)
	debugSet := false
	if st, err := os.Stat(fv.config); err == nil && !st.IsDir() {
		explicit, err := loadJSON(fv.config, &cfg)
		if err != nil {
			return Config{}, err
		}
		debugSet = explicit
	}

	// режим нужен заранее: от него зависит .env-файл
	if m := strings.TrimSpace(os.Getenv("APP_ENV")); m != "" {
		cfg.Mode = m
	}
	if fv.mode != "" {
		cfg.Mode = strings.TrimSpace(fv.mode)
	}
	cfg.Mode = strings.ToLower(cfg.Mode)

	envFile := fv.envFile
	if envFile == "" {
		envFile = ".env." + cfg.Mode
	}
	// уже выставленные переменные окружения .env-файл не перетирает
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	if !debugSet {
		cfg.Debug = cfg.Mode != ModeProduction
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fv.apply(set, &cfg)
	cfg.Mode = strings.ToLower(cfg.Mode)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadWithPath: как Load, но без флагов командной строки
func LoadWithPath(jsonPath string) (Config, error) {
	set := flag.NewFlagSet("config", flag.ContinueOnError)
	return Load(set, []string{"-config", jsonPath})
}

// Validate проверяет только то, без чего процесс не сможет работать
func (c Config) Validate() error {
	var errs []error
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode))
	}
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port is empty"))
	}
	switch c.BlobDriver {
	case BlobSupabase, BlobLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.BlobDriver))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("maxUploadBytes must be positive"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("upstream timeout must be positive"))
	}
	return errors.Join(errs...)
}

// RequireUpstreams: проверка для сервера: без адресов внешних сервисов гейтвей бесполезен
func (c Config) RequireUpstreams() error {
	var errs []error
	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is not set"))
	}
	if c.SupabaseServiceRoleKey == "" {
		errs = append(errs, errors.New("SUPABASE_SERVICE_ROLE_KEY is not set"))
	}
	if c.HasuraEndpoint == "" {
		errs = append(errs, errors.New("HASURA_ENDPOINT is not set"))
	}
	return errors.Join(errs...)
}

// Logger: development-энкодер в debug, иначе production JSON
func (c Config) Logger() (*zap.Logger, error) {
	if c.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
