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

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugAddress    string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	FirestoreConfig struct {
		ProjectID       string
		CredentialsFile string
	}

	AttendanceConfig struct {
		MinScanInterval  time.Duration
		ScanLockWindow   time.Duration
		RolloverSchedule string
		DigestRecipients []string
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		WorkDir          string
		Timezone         string
		Storage          string // sql | firestore
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration

		PhoneCountryCode string

		Server     ServerConfig
		Database   DatabaseConfig
		Firestore  FirestoreConfig
		Attendance AttendanceConfig
	}
)

// NewConfig loads the configuration for the current ENV (DEV by default)
// from defaults, config/.env.<env> and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Playmate")
	v.SetDefault("secretKey", "ok9v-x7#m2qwz+&4r_pl8$e!jd3(yf0^bh6a*tcn1gs5u%kp")
	v.SetDefault("defaultFromEmail", "Playmate <noreply@localhost>")
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("storage", "sql")
	v.SetDefault("phoneCountryCode", "91")
	v.SetDefault("jwtExpirationDelta", 8*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 2*time.Hour)
	v.SetDefault("server.address", "0.0.0.0:8000")
	v.SetDefault("server.debugAddress", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "playmate")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.path", "playmate.db")
	v.SetDefault("attendance.minScanInterval", 60*time.Minute)
	v.SetDefault("attendance.scanLockWindow", 3*time.Second)
	v.SetDefault("attendance.rolloverSchedule", "5 0 * * *")
	v.SetDefault("attendance.digestRecipients", []string{})

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	host, _ := os.Hostname()
	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		Timezone:         v.GetString("timezone"),
		Storage:          strings.ToLower(v.GetString("storage")),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),

		JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),

		PhoneCountryCode: v.GetString("phoneCountryCode"),

		Server: ServerConfig{
			Host:            host,
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Firestore: FirestoreConfig{
			ProjectID:       v.GetString("firestore.projectID"),
			CredentialsFile: v.GetString("firestore.credentialsFile"),
		},
		Attendance: AttendanceConfig{
			MinScanInterval:  v.GetDuration("attendance.minScanInterval"),
			ScanLockWindow:   v.GetDuration("attendance.scanLockWindow"),
			RolloverSchedule: v.GetString("attendance.rolloverSchedule"),
			DigestRecipients: v.GetStringSlice("attendance.digestRecipients"),
		},
	}
}

func (conf Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	return *addr
}

// Location returns the school's time zone, falling back to UTC when it cannot be loaded.
func (conf Config) Location() *time.Location {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DigestRecipients returns the parsed addresses of the daily attendance digest recipients.
func (conf Config) DigestRecipients() []mail.Address {
	addrs := make([]mail.Address, 0, len(conf.Attendance.DigestRecipients))
	for _, raw := range conf.Attendance.DigestRecipients {
		if addr, err := mail.ParseAddress(raw); err == nil {
			addrs = append(addrs, *addr)
		}
	}
	return addrs
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}
